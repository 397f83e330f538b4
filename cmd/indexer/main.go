package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/app"
	"github.com/crolopez/enterprise-rag-system/internal/config"
	"github.com/crolopez/enterprise-rag-system/internal/db"
	dbRedis "github.com/crolopez/enterprise-rag-system/internal/db/redis"
	logpkg "github.com/crolopez/enterprise-rag-system/internal/logger"
	"github.com/crolopez/enterprise-rag-system/internal/transport/openmeteo"
	"github.com/crolopez/enterprise-rag-system/internal/transport/qdrant"
	indexeruc "github.com/crolopez/enterprise-rag-system/internal/usecase/indexer"
	"github.com/crolopez/enterprise-rag-system/internal/version"
)

const forecastTimeout = 30 * time.Second

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting data indexer",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.Int("sources", len(cfg.Indexer.Sources)),
		zap.String("qdrant_url", cfg.Qdrant.URL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional embedding cache; file sources in particular re-embed the
	// same unchanged content every cycle.
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache")
	}

	docEmbedder, embedderHealth := app.BuildEmbedder(cfg, cfg.Embedding.DocumentInstruction, store, logger)

	checkCtx, cancelCheck := context.WithTimeout(ctx, 5*time.Second)
	if err := embedderHealth.HealthCheck(checkCtx); err != nil {
		logger.Warn("Embedding service not reachable at startup", zap.Error(err))
	}
	cancelCheck()

	index := qdrant.NewClient(&qdrant.Config{
		URL:     cfg.Qdrant.URL,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	forecaster := openmeteo.NewClient(&openmeteo.Config{
		Timeout: forecastTimeout,
		Logger:  logger,
	})

	// Collections and intervals already carry their defaults from config.
	sources := make([]indexeruc.Source, 0, len(cfg.Indexer.Sources))
	for _, sc := range cfg.Indexer.Sources {
		sources = append(sources, indexeruc.Source{
			ID:         sc.ID,
			Type:       sc.Type,
			Collection: sc.Collection,
			Interval:   time.Duration(sc.IntervalMinutes) * time.Minute,
			Settings:   sc.Settings,
		})
	}

	handlers := indexeruc.DefaultRegistry().Build(sources, indexeruc.Deps{
		Embedder:   docEmbedder,
		Index:      index,
		Forecaster: forecaster,
		VectorSize: cfg.Indexer.VectorSize,
		Logger:     logger,
	})

	indexeruc.NewScheduler(handlers, logger).Run(ctx)

	logger.Info("Indexer stopped gracefully")
}
