package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pulse/api"
	"pulse/logger"
	"pulse/nlp"
	"pulse/seed"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port   string
		memory bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON API under /api/v1.

Examples:
  # Serve from Postgres on the configured port
  pulse serve

  # Serve from an in-memory store filled with demo data
  pulse serve --memory --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, memory)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP port (default from PORT)")
	cmd.Flags().BoolVar(&memory, "memory", false, "Use an in-memory store seeded with demo data")

	return cmd
}

func runServe(ctx context.Context, port string, memory bool) error {
	a, err := bootstrap(ctx, memory)
	if err != nil {
		return err
	}
	defer a.close()

	if port == "" {
		port = a.cfg.Port
	}
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if memory {
		seeder := seed.NewSeeder(a.stores, nlp.NewRuleAnnotator(a.lex), logger.Component(a.log, "seed"))
		if _, err := seeder.Seed(ctx, seed.Options{}); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewRouter(a.services(), a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Bool("memory", memory).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		a.log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		a.log.Info().Msg("shutdown complete")
	}
	return nil
}
