package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/marchhare/agileboard/internal/issue"
	"github.com/spf13/cobra"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue management commands",
	}

	cmd.AddCommand(newIssueCreateCmd())
	cmd.AddCommand(newIssueListCmd())
	cmd.AddCommand(newIssueShowCmd())
	cmd.AddCommand(newIssueTransitionCmd())
	cmd.AddCommand(newIssueAssignCmd())
	cmd.AddCommand(newIssueLogWorkCmd())
	cmd.AddCommand(newIssueEstimateCmd())
	return cmd
}

func newIssueCreateCmd() *cobra.Command {
	var (
		configPath  string
		projectKey  string
		summary     string
		description string
		issueType   string
		priority    string
		points      int
		estimate    string
		actor       string
		assignees   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new issue",
		Long:  "Creates an issue with an auto-generated key in the target project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := issue.CreateOpts{
				Project:     projectKey,
				Summary:     summary,
				Description: description,
				Type:        issueType,
				Priority:    priority,
				Reporter:    actor,
				Assignees:   assignees,
			}
			if cmd.Flags().Changed("points") {
				opts.StoryPoints = &points
			}
			if estimate != "" {
				seconds, err := issue.ParseDuration(estimate)
				if err != nil {
					return err
				}
				opts.OriginalEstimate = seconds
				opts.RemainingEstimate = seconds
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			created, err := issue.Create(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created issue %s (%s)\n", created.Key, created.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&projectKey, "project", "", "project key (required)")
	cmd.Flags().StringVar(&summary, "summary", "", "issue summary (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&issueType, "type", "Task", "issue type")
	cmd.Flags().StringVar(&priority, "priority", "", "issue priority")
	cmd.Flags().IntVar(&points, "points", 0, "story points")
	cmd.Flags().StringVar(&estimate, "estimate", "", "original estimate (e.g. '2h 30m')")
	cmd.Flags().StringVar(&actor, "as", "", "acting user, recorded as reporter (required)")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "assignees (repeatable)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("summary")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newIssueListCmd() *cobra.Command {
	var (
		configPath string
		projectKey string
		status     string
		issueType  string
		assignee   string
		backlog    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			issues, err := issue.List(gormDB, issue.ListFilters{
				Project:  projectKey,
				Status:   status,
				Type:     issueType,
				Assignee: assignee,
				Backlog:  backlog,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE\tSTATUS\tPOINTS\tSUMMARY")
			for _, i := range issues {
				points := "-"
				if i.StoryPoints != nil {
					points = fmt.Sprintf("%d", *i.StoryPoints)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", i.Key, i.Type, i.Status, points, i.Summary)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&projectKey, "project", "", "filter by project")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&issueType, "type", "", "filter by issue type")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "only issues outside any sprint")
	return cmd
}

func newIssueShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show issue details and available transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			loaded, err := issue.Get(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", loaded.Key, loaded.Summary)
			fmt.Fprintf(out, "Project:  %s\n", loaded.ProjectKey)
			fmt.Fprintf(out, "Type:     %s\n", loaded.Type)
			fmt.Fprintf(out, "Status:   %s\n", loaded.Status)
			if loaded.Priority != "" {
				fmt.Fprintf(out, "Priority: %s\n", loaded.Priority)
			}
			if loaded.StoryPoints != nil {
				fmt.Fprintf(out, "Points:   %d\n", *loaded.StoryPoints)
			}
			fmt.Fprintf(out, "Reporter: %s\n", loaded.Reporter)
			if len(loaded.Assignees) > 0 {
				names := make([]string, len(loaded.Assignees))
				for i, a := range loaded.Assignees {
					names[i] = a.User
				}
				fmt.Fprintf(out, "Assignees: %s\n", strings.Join(names, ", "))
			}
			if loaded.OriginalEstimate > 0 || loaded.TimeSpent > 0 {
				fmt.Fprintf(out, "Time:     %s spent / %s remaining (original %s)\n",
					issue.FormatDuration(loaded.TimeSpent),
					issue.FormatDuration(loaded.RemainingEstimate),
					issue.FormatDuration(loaded.OriginalEstimate))
			}
			if loaded.Description != "" {
				fmt.Fprintf(out, "\n%s\n", loaded.Description)
			}

			transitions, err := issue.AvailableTransitions(gormDB, loaded.Key)
			if err != nil {
				return err
			}
			if len(transitions) > 0 {
				fmt.Fprintf(out, "\nAvailable transitions:\n")
				for _, tr := range transitions {
					note := ""
					if tr.RequiredPermission != "" {
						note = fmt.Sprintf(" (requires %s)", tr.RequiredPermission)
					}
					fmt.Fprintf(out, "  -> %s%s\n", tr.ToStatus, note)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newIssueTransitionCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		comment    string
	)

	cmd := &cobra.Command{
		Use:   "transition KEY STATUS",
		Short: "Move an issue to a new status",
		Long:  "Moves an issue along its project's workflow scheme, enforcing transition paths, conditions, and permissions.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			updated, err := issue.Transition(gormDB, args[0], args[1], actor, comment)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Key, updated.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&actor, "as", "", "acting user (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "transition comment")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newIssueAssignCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "assign KEY USER...",
		Short: "Replace an issue's assignees",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			updated, err := issue.Assign(gormDB, args[0], args[1:], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s\n", updated.Key, strings.Join(args[1:], ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&actor, "as", "", "acting user (required)")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newIssueLogWorkCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "log-work KEY DURATION",
		Short: "Log time spent on an issue",
		Long:  "Records a work log entry. Durations accept forms like '2h 30m', '1.5h', or '90m'.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := issue.LogWork(gormDB, args[0], args[1], description, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s on %s\n", issue.FormatDuration(entry.Seconds), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&actor, "as", "", "acting user (required)")
	cmd.Flags().StringVar(&description, "description", "", "what the time was spent on")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newIssueEstimateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		kind       string
	)

	cmd := &cobra.Command{
		Use:   "estimate KEY DURATION",
		Short: "Update an issue's time estimate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := issue.UpdateEstimate(gormDB, args[0], kind, args[1], actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s estimate on %s\n", kind, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	cmd.Flags().StringVar(&actor, "as", "", "acting user (required)")
	cmd.Flags().StringVar(&kind, "kind", "remaining", "which estimate to set (original or remaining)")
	cmd.MarkFlagRequired("as")
	return cmd
}
