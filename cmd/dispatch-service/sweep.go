package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire unanswered offers once and reassign their orders",
		Long:  "sweep runs a single timeout pass. Schedule it from cron or a job runner;\nthe service has no timer of its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if timeout == 0 {
				timeout = a.cfg.Dispatch.AssignmentTimeout
			}

			result, err := a.reaper.Sweep(cmd.Context(), timeout)
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d reassigned=%d\n", result.Expired, result.Reassigned)
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "pending offers older than this are expired (default DISPATCH_ASSIGNMENT_TIMEOUT)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.Info().Str("driver", a.cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	}
}
