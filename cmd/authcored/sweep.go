package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-session-core/internal/app"
	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired session and verification tokens once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context())
		},
	}
}

func runSweep(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logger, loggerProvider, err := observability.NewLogger(ctx, cfg)
	if err != nil {
		return err
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return err
	}
	defer shutdownObservability(runtime, cfg.ShutdownObservabilityTimeout)

	application, cleanup, err := app.InitializeApp(cfg, logger, runtime)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, verifications, err := application.Sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep complete", "sessions", sessions, "verifications", verifications)
	return nil
}
