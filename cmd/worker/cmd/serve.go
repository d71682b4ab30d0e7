package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphauslabs/verticalbuilder/cmd/worker/service"
	"github.com/alphauslabs/verticalbuilder/internal/config"
	"github.com/alphauslabs/verticalbuilder/internal/janitor"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/queue"
)

var (
	allowedOrigins string
	drainTimeout   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the build worker",
	Long:  `Start the worker: accept jobs over Pub/Sub push, Connect RPC and optionally NATS, and build them on a bounded worker pool.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&allowedOrigins, "allowed-origins", os.Getenv("ALLOWED_ORIGINS"), "Comma-separated list of allowed CORS origins for the RPC endpoints")
	serveCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 15*time.Minute, "How long shutdown waits for queued and running builds")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting worker...")

	ctx := context.Background()

	// Load configuration from environment variables.
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("Loaded configuration",
		slog.String("env", cfg.Env),
		slog.String("hosting_project", cfg.HostingProject),
		slog.Int("queue_depth", cfg.Queue.Depth),
		slog.Int("queue_workers", cfg.Queue.Workers))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Registered first, stopped last.
	lifecycle := service.NewLifecycle(logger)
	lifecycle.AddCloser("stores", a)

	q := queue.New(cfg.Queue.Depth, cfg.Queue.Workers, a.orchestrator.Run, a.metrics, logger)
	lifecycle.Add("queue", q.Stop)

	jan, err := janitor.New(cfg.WorkspaceRoot, cfg.Janitor.Retention, q.IfIdle, logger)
	if err != nil {
		lifecycle.Stop(ctx)
		return err
	}
	if err := jan.Start(cfg.Janitor.Interval); err != nil {
		lifecycle.Stop(ctx)
		return err
	}
	lifecycle.Add("janitor", func(context.Context) error { return jan.Stop() })

	svc := service.NewBuildService(job.Intake{Env: cfg.Env, HostingProject: cfg.HostingProject}, q, a.receipts, logger)

	if cfg.NATS.URL != "" {
		sub, err := service.NewSubscriber(cfg.NATS, svc, logger)
		if err != nil {
			lifecycle.Stop(ctx)
			return err
		}
		lifecycle.AddCloser("nats", sub)
	}

	origins := splitOrigins(allowedOrigins)
	logger.Info("CORS allowed origins", slog.Any("origins", origins))

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           service.NewRouter(svc, a.metrics.Handler(), origins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lifecycle.Add("http", server.Shutdown)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Worker listening",
			slog.String("addr", addr),
			slog.String("push", service.PushPath),
			slog.String("submit", service.SubmitBuildProcedure),
			slog.String("receipt", service.GetReceiptProcedure))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-sigCtx.Done():
		logger.Info("Shutdown signal received, gracefully shutting down...")
	case runErr = <-serveErr:
		logger.Error("HTTP server failed", logfields.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := lifecycle.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", logfields.Error(err))
		runErr = errors.Join(runErr, err)
	}

	logger.Info("Worker stopped")
	return runErr
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
