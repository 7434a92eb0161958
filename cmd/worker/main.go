// Package main provides the entry point for the shortreel background worker.
// It runs asset passes and renders queued by the API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/maauso/shortreel/internal/bootstrap"
	"github.com/maauso/shortreel/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting shortreel worker", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to release dependencies", slog.String("error", err.Error()))
		}
	}()

	srv, err := deps.NewWorkerServer(cfg, logger)
	if err != nil {
		return err
	}

	// Run blocks until SIGINT or SIGTERM and drains in-flight tasks.
	if err := srv.Run(deps.Worker.Mux()); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	logger.Info("worker stopped gracefully")
	return nil
}
