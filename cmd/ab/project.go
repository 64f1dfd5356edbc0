package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/marchhare/agileboard/internal/project"
	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectSchemeCmd())
	cmd.AddCommand(newProjectBurndownCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create KEY",
		Short: "Create a new project",
		Long:  "Creates a project whose key becomes the prefix of its issue keys (e.g. CORE yields CORE-1).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			created, err := project.Create(gormDB, args[0], name, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", created.Key, created.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&name, "name", "", "project display name (required)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			projects, err := project.List(gormDB)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tSCHEME")
			for _, p := range projects {
				scheme := "-"
				if p.WorkflowScheme != nil {
					scheme = *p.WorkflowScheme
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Name, scheme)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newProjectSchemeCmd() *cobra.Command {
	var (
		configPath string
		detach     bool
	)

	cmd := &cobra.Command{
		Use:   "scheme KEY [SCHEME]",
		Short: "Bind a workflow scheme to a project",
		Long:  "Binds the named workflow scheme to a project, or detaches the current one with --detach. A project without a scheme permits every transition.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme := ""
			if len(args) == 2 {
				scheme = args[1]
			}
			if !detach && scheme == "" {
				return fmt.Errorf("provide a scheme name or --detach")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			updated, err := project.SetScheme(gormDB, args[0], scheme)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if updated.WorkflowScheme == nil {
				fmt.Fprintf(out, "Project %s now has no workflow scheme (all transitions permitted)\n", updated.Key)
			} else {
				fmt.Fprintf(out, "Project %s now uses scheme %q\n", updated.Key, *updated.WorkflowScheme)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().BoolVar(&detach, "detach", false, "remove the project's workflow scheme")
	return cmd
}

func newProjectBurndownCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "burndown KEY on|off",
		Short: "Enable or disable burndown tracking for a project",
		Long:  "Toggles burndown chart tracking. While off, sprint lifecycle changes and the daily sweep skip the project's burndown samples.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("second argument must be on or off, got %q", args[1])
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			updated, err := project.SetBurndown(gormDB, args[0], enabled)
			if err != nil {
				return err
			}

			state := "disabled"
			if updated.BurndownEnabled {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Burndown tracking %s for project %s\n", state, updated.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}
