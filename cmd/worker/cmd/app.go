package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	"github.com/alphauslabs/verticalbuilder/internal/database"
	"github.com/alphauslabs/verticalbuilder/internal/lock"
	"github.com/alphauslabs/verticalbuilder/internal/metrics"
	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
	_ "github.com/alphauslabs/verticalbuilder/internal/objectstore/gcs"   // Register GCS provider
	_ "github.com/alphauslabs/verticalbuilder/internal/objectstore/local" // Register local provider
	_ "github.com/alphauslabs/verticalbuilder/internal/objectstore/minio" // Register MinIO provider
	"github.com/alphauslabs/verticalbuilder/internal/orchestrator"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
	"github.com/alphauslabs/verticalbuilder/internal/runner"
	"github.com/alphauslabs/verticalbuilder/internal/snapshot"
	"github.com/alphauslabs/verticalbuilder/internal/workspace"
)

// app holds the collaborators shared by serve and run.
type app struct {
	cfg          *config.Config
	store        database.Store
	objects      objectstore.Provider
	metrics      *metrics.PrometheusRecorder
	receipts     *receipt.Recorder
	orchestrator *orchestrator.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := config.CheckBaseConfig(cfg.BaseConfigPath); err != nil {
		return nil, err
	}

	store, err := database.NewStore(ctx, database.Config{
		Provider:      cfg.Database.Provider,
		ProjectID:     cfg.Database.ProjectID,
		Instance:      cfg.Database.Instance,
		Database:      cfg.Database.Database,
		RedisAddr:     cfg.Database.RedisAddr,
		RedisPassword: cfg.Database.RedisPassword,
		RedisDB:       cfg.Database.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}
	logger.Info("Connected to document store", slog.String("provider", cfg.Database.Provider))

	objects, err := objectstore.NewProvider(ctx, objectstore.ProviderConfig{
		Provider:  cfg.ObjectStore.Provider,
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		UseSSL:    cfg.ObjectStore.UseSSL,
		LocalRoot: cfg.ObjectStore.LocalRoot,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create object store provider: %w", err)
	}
	logger.Info("Initialized object store",
		slog.String("provider", cfg.ObjectStore.Provider),
		slog.String("bucket", cfg.ExportBucket))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	receipts := receipt.NewRecorder(store, logger)
	orch := orchestrator.New(cfg, orchestrator.Deps{
		Locks:     lock.NewManager(store, recorder, logger),
		Receipts:  receipts,
		Snapshots: snapshot.NewAcquirer(objects, logger),
		Assembler: &workspace.Assembler{
			ThemesRoot:     cfg.ThemesRoot,
			BaseConfigPath: cfg.BaseConfigPath,
			Logger:         logger,
		},
		Builder:  runner.New(cfg.GeneratorBin, cfg.DeployBin, cfg.CommandTimeout, logger),
		Recorder: recorder,
		Logger:   logger,
	})

	return &app{
		cfg:          cfg,
		store:        store,
		objects:      objects,
		metrics:      recorder,
		receipts:     receipts,
		orchestrator: orch,
	}, nil
}

// Close releases the object store and document store clients.
func (a *app) Close() error {
	return errors.Join(a.objects.Close(), a.store.Close())
}
