package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/marchhare/agileboard/internal/metrics"
	"github.com/marchhare/agileboard/internal/sprint"
	"github.com/spf13/cobra"
)

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint management commands",
	}

	cmd.AddCommand(newSprintCreateCmd())
	cmd.AddCommand(newSprintListCmd())
	cmd.AddCommand(newSprintStartCmd())
	cmd.AddCommand(newSprintCompleteCmd())
	cmd.AddCommand(newSprintAddCmd())
	cmd.AddCommand(newSprintRemoveCmd())
	cmd.AddCommand(newSprintReportCmd())
	cmd.AddCommand(newSprintVelocityCmd())
	return cmd
}

func parseSprintID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sprint id %q", arg)
	}
	return uint(id), nil
}

func newSprintCreateCmd() *cobra.Command {
	var (
		configPath string
		projectKey string
		goal       string
		startDate  string
		endDate    string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Plan a new sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return fmt.Errorf("--start must be YYYY-MM-DD")
			}
			end, err := time.Parse("2006-01-02", endDate)
			if err != nil {
				return fmt.Errorf("--end must be YYYY-MM-DD")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			created, err := sprint.Create(gormDB, sprint.CreateOpts{
				Name:      args[0],
				Project:   projectKey,
				Goal:      goal,
				StartDate: start,
				EndDate:   end,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created sprint %d: %s (%s to %s)\n",
				created.ID, created.Name, startDate, endDate)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&projectKey, "project", "", "project key (required)")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&startDate, "start", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newSprintListCmd() *cobra.Command {
	var (
		configPath string
		projectKey string
		state      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sprints, err := sprint.List(gormDB, projectKey, state)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROJECT\tSTATE\tSTART\tEND\tPOINTS")
			for _, s := range sprints {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
					s.ID, s.Name, s.ProjectKey, s.State,
					s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"),
					s.CompletedPoints, s.TotalPoints)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&projectKey, "project", "", "filter by project")
	cmd.Flags().StringVar(&state, "state", "", "filter by state (future, active, completed)")
	return cmd
}

func newSprintStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start ID",
		Short: "Start a sprint",
		Long:  "Activates a future sprint. Any other active sprint in the same project is completed first, so the project never has two running sprints.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSprintID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			started, err := sprint.Start(gormDB, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sprint %d (%s) is now active\n", started.ID, started.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newSprintCompleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "complete ID",
		Short: "Complete a sprint",
		Long:  "Completes an active sprint. Issues not yet done are moved back to the backlog.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSprintID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			completed, moved, err := sprint.Complete(gormDB, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sprint %d (%s) completed: %d/%d points\n",
				completed.ID, completed.Name, completed.CompletedPoints, completed.TotalPoints)
			if moved > 0 {
				fmt.Fprintf(out, "%d unfinished issue(s) moved to the backlog\n", moved)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newSprintAddCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add ID KEY...",
		Short: "Add issues to a sprint",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSprintID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			added, err := sprint.AddIssues(gormDB, id, args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d issue(s) to sprint %d\n", added, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newSprintRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove ID KEY...",
		Short: "Remove issues from a sprint",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSprintID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			removed, err := sprint.RemoveIssues(gormDB, id, args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d issue(s) from sprint %d\n", removed, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newSprintReportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "report ID",
		Short: "Show a sprint report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSprintID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			report, err := sprint.BuildReport(gormDB, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := report.Sprint
			fmt.Fprintf(out, "Sprint %d: %s [%s]\n", s.ID, s.Name, s.State)
			if s.Goal != "" {
				fmt.Fprintf(out, "Goal: %s\n", s.Goal)
			}
			fmt.Fprintf(out, "Dates: %s to %s\n",
				s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
			fmt.Fprintf(out, "Points: %d/%d (%.1f%%)\n",
				report.Metrics.CompletedPoints, report.Metrics.TotalPoints, report.Metrics.ProgressPct)
			fmt.Fprintf(out, "Issues: %d total, %d done, %d in progress, %d to do\n",
				report.Issues.Total, report.Issues.Completed, report.Issues.InProgress, report.Issues.ToDo)

			if len(report.Burndown) > 0 {
				fmt.Fprintln(out, "\nBurndown:")
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tREMAINING\tIDEAL\tCOMPLETED")
				for _, sample := range report.Burndown {
					fmt.Fprintf(w, "%s\t%d\t%.1f\t%d\n",
						sample.Date, sample.RemainingPoints, sample.IdealRemaining, sample.CompletedPoints)
				}
				w.Flush()
			}

			fmt.Fprintf(out, "\nTeam velocity: %.1f avg over %d sprint(s), trend %s\n",
				report.Velocity.Average, report.Velocity.SprintsAnalyzed, report.Velocity.Trend)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newSprintVelocityCmd() *cobra.Command {
	var (
		configPath string
		window     int
	)

	cmd := &cobra.Command{
		Use:   "velocity PROJECT",
		Short: "Show a project's velocity history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			velocity, err := metrics.TeamVelocity(gormDB, args[0], window)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s velocity: %.1f avg over %d sprint(s), last %d, trend %s\n",
				args[0], velocity.Average, velocity.SprintsAnalyzed, velocity.LastSprint, velocity.Trend)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().IntVar(&window, "window", 5, "number of completed sprints to average")
	return cmd
}
