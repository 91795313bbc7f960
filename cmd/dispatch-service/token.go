package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dispatch-service/internal/auth"
	"dispatch-service/internal/config"
	"dispatch-service/internal/model"
)

// newTokenCmd signs a driver access token for local testing against the API.
func newTokenCmd() *cobra.Command {
	var (
		driverID string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a driver access token signed with JWT_ACCESS_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			id := uuid.New()
			if driverID != "" {
				id, err = uuid.Parse(driverID)
				if err != nil {
					return fmt.Errorf("invalid --driver %q: %w", driverID, err)
				}
			}

			token, err := auth.Sign(cfg.Auth.AccessSecret, id, model.UserRoleDriver, nil, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&driverID, "driver", "", "driver id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
