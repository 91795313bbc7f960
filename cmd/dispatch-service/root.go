package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dispatch-service",
		Short:         "Driver dispatch and reassignment service",
		Long:          "dispatch-service assigns delivery orders to drivers, expires unanswered offers\nand moves orders on to the next eligible driver.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newSweepCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)

	return cmd
}
