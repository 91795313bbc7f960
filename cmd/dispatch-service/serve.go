package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dispatch-service/internal/auth"
	httphandler "dispatch-service/internal/http"
	"dispatch-service/internal/http/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tokenParser := auth.NewParser(a.cfg.Auth.AccessSecret)
			handler := httphandler.NewHandler(a.dispatcher, a.coordinator, a.reaper, a.assignments, a.cfg.Dispatch.AssignmentTimeout, a.log)
			router := httphandler.NewRouter(
				handler,
				middleware.Auth(tokenParser),
				middleware.InternalToken(a.cfg.Auth.InternalToken),
				a.cfg.Environment,
			)

			addr := fmt.Sprintf("%s:%d", a.cfg.HTTP.Host, a.cfg.HTTP.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", addr).Msg("starting dispatch service")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
