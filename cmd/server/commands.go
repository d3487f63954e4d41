package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scoop_backend/internal/config"
	"scoop_backend/internal/queue"
	transport "scoop_backend/internal/transport/http"
	"scoop_backend/internal/worker"
)

var (
	workerCount int

	rootCmd = &cobra.Command{
		Use:          "scoop",
		Short:        "Scoop social backend: HTTP API, push workers and maintenance jobs",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Consume the push stream and deliver notifications to devices",
		RunE:  runWorker,
	}

	purgeScoopsCmd = &cobra.Command{
		Use:   "purge-scoops",
		Short: "Physically delete scoops past their 24h expiry",
		RunE:  runPurgeScoops,
	}
)

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "consumer goroutines (default PUSH_WORKERS)")
	rootCmd.AddCommand(serveCmd, workerCmd, purgeScoopsCmd)
}

// bootstrap loads config, builds the logger and wires the app.
func bootstrap(ctx context.Context) (*transport.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	app, err := transport.NewApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer func() { _ = app.Logger.Sync() }()

	return app.Serve(ctx)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer func() { _ = app.Logger.Sync() }()

	if app.Redis == nil {
		return errors.New("worker needs a reachable REDIS_URL")
	}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = app.Config.PushWorkers
	if workerCount > 0 {
		cfg.WorkerCount = workerCount
	}

	consumer := queue.NewConsumer(app.Redis.Client, app.Logger)
	manager := worker.NewManager(consumer, worker.NewHandler(app.Push, app.Logger), cfg, app.Logger)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	<-ctx.Done()
	manager.Stop()
	return nil
}

func runPurgeScoops(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer func() { _ = app.Logger.Sync() }()

	start := time.Now()
	purged, err := app.Scoops.Purge(ctx, start)
	if err != nil {
		return fmt.Errorf("purge scoops: %w", err)
	}
	app.Logger.Info("expired scoops purged", zap.Int("count", purged), zap.Duration("duration", time.Since(start)))
	return nil
}
