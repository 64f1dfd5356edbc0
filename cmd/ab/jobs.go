package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/marchhare/agileboard/internal/jobs"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Background job commands",
	}

	cmd.AddCommand(newJobsRunCmd())
	cmd.AddCommand(newJobsSweepCmd())
	return cmd
}

func newJobsRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the job scheduler",
		Long:  "Runs the cron scheduler until interrupted: periodic metrics refresh and daily burndown sampling for every active sprint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return jobs.Run(ctx, gormDB, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}

func newJobsSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one metrics and burndown sweep immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := jobs.RefreshActiveSprints(gormDB); err != nil {
				return err
			}
			if err := jobs.SampleBurndowns(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sweep complete.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgileBoard config file")
	return cmd
}
