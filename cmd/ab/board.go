package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/marchhare/agileboard/internal/board"
	"github.com/spf13/cobra"
)

func newBoardCmd() *cobra.Command {
	var (
		configPath string
		sprintArg  string
		backlog    bool
	)

	cmd := &cobra.Command{
		Use:   "board PROJECT",
		Short: "Show a project's board",
		Long:  "Shows the project's issues grouped into status columns. Filter to one sprint with --sprint or to unscheduled issues with --backlog.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := board.Filters{Project: args[0], Backlog: backlog}
			if sprintArg != "" {
				id, err := strconv.ParseUint(sprintArg, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid sprint id %q", sprintArg)
				}
				sid := uint(id)
				f.SprintID = &sid
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			columns, err := board.Columns(gormDB, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, col := range columns {
				fmt.Fprintf(out, "%s (%d issues, %d pts)\n", col.Status, len(col.Issues), col.Points)
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, i := range col.Issues {
					points := "-"
					if i.StoryPoints != nil {
						points = fmt.Sprintf("%d", *i.StoryPoints)
					}
					fmt.Fprintf(w, "  %s\t%s\t%s\n", i.Key, points, i.Summary)
				}
				w.Flush()
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&sprintArg, "sprint", "", "show only one sprint's issues")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "show only backlog issues")
	return cmd
}
