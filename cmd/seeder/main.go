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
	logpkg "github.com/crolopez/enterprise-rag-system/internal/logger"
	"github.com/crolopez/enterprise-rag-system/internal/transport/qdrant"
	"github.com/crolopez/enterprise-rag-system/internal/transport/webui"
	seederuc "github.com/crolopez/enterprise-rag-system/internal/usecase/seeder"
	"github.com/crolopez/enterprise-rag-system/internal/version"
)

const webuiReadyTimeout = 60 * time.Second

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting document seeder",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("webui_url", cfg.Seeder.WebUIURL),
		zap.Int("documents", len(cfg.Seeder.Documents)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot job: a handful of documents does not warrant a cache.
	docEmbedder, _ := app.BuildEmbedder(cfg, cfg.Embedding.DocumentInstruction, nil, logger)

	index := qdrant.NewClient(&qdrant.Config{
		URL:     cfg.Qdrant.URL,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	uploader := webui.NewClient(&webui.Config{
		URL:     cfg.Seeder.WebUIURL,
		Timeout: time.Duration(cfg.Seeder.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	docs := make([]seederuc.Document, 0, len(cfg.Seeder.Documents))
	for _, d := range cfg.Seeder.Documents {
		docs = append(docs, seederuc.Document{Name: d.Name, File: d.File, Content: d.Content})
	}

	svc := seederuc.New(uploader, docEmbedder, index, seederuc.Config{
		AdminEmail:    cfg.Seeder.AdminEmail,
		AdminPassword: cfg.Seeder.AdminPassword,
		ReadyTimeout:  webuiReadyTimeout,
		Collection:    cfg.Retrieval.Collection,
		VectorSize:    cfg.Indexer.VectorSize,
	}, logger)

	if err := svc.Run(ctx, docs); err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	logger.Info("Seeding complete")
}
