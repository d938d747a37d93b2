package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DukeRupert/prefork/internal"
	"github.com/DukeRupert/prefork/internal/cluster"
	"github.com/DukeRupert/prefork/internal/server"
)

func run() error {
	// SIGINT from a terminal reaches only the primary: workers run in their
	// own process group and are stopped by the supervisor.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	role, workerID := cluster.DetectRole(os.Getenv)
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, role.String())

	if role == cluster.RoleWorker {
		return runWorker(ctx, cfg, logger.With("worker_id", workerID), workerID)
	}
	return runPrimary(ctx, cfg, logger)
}

func runWorker(ctx context.Context, cfg *internal.Config, logger *slog.Logger, workerID int) error {
	if err := server.Start(ctx, cfg, logger, server.WithWorkerID(workerID)); err != nil {
		return fmt.Errorf("worker %d: %w", workerID, err)
	}
	return nil
}

func runPrimary(ctx context.Context, cfg *internal.Config, logger *slog.Logger) error {
	clusterCfg := cluster.DefaultConfig()
	clusterCfg.Workers = cfg.Workers
	clusterCfg.ShutdownTimeout = cfg.ShutdownTimeout
	clusterCfg.StatsInterval = cfg.StatsInterval

	if !server.SharedPort && clusterCfg.WorkerCount() > 1 {
		logger.Warn("Platform cannot share a listening port, running a single worker",
			"requested_workers", clusterCfg.WorkerCount(),
		)
		clusterCfg.Workers = 1
	}

	spawner, err := cluster.NewExecSpawner()
	if err != nil {
		return fmt.Errorf("spawner initialization failed: %w", err)
	}

	sup, err := cluster.New(spawner, clusterCfg, logger)
	if err != nil {
		return fmt.Errorf("supervisor initialization failed: %w", err)
	}

	go cluster.NewStatsCollector(sup, cluster.SampleProcess, logger).Run(ctx)

	if cfg.MetricsPort > 0 {
		go func() {
			if err := server.ServeMetrics(ctx, cfg, logger); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	logger.Info("Primary stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
