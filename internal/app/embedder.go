// Package app assembles the dependency chains shared by the binaries.
package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/config"
	"github.com/crolopez/enterprise-rag-system/internal/db"
	"github.com/crolopez/enterprise-rag-system/internal/domain"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
	"github.com/crolopez/enterprise-rag-system/internal/repository/embcache"
	openaiEmb "github.com/crolopez/enterprise-rag-system/internal/transport/openai"
	teiEmb "github.com/crolopez/enterprise-rag-system/internal/transport/tei"
	embeddinguc "github.com/crolopez/enterprise-rag-system/internal/usecase/embedding"
)

// BuildEmbedder assembles the decorator chain used by every binary:
// provider -> Cached -> Instrumented -> Instruction. The returned
// HealthChecker probes the base provider; the decorators do not forward
// health checks. Pass a nil store to skip the cache layer.
func BuildEmbedder(
	cfg config.Config,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) (domain.Embedder, domain.HealthChecker) {
	var base domain.Embedder
	var health domain.HealthChecker

	provider := cfg.Embedding.Provider
	switch provider {
	case "openai":
		e := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   provider,
			Logger:     logger,
		})
		base, health = e, e
	default:
		provider = "tei"
		e := teiEmb.NewEmbedder(&teiEmb.Config{
			URL:     cfg.Embedding.URL,
			Model:   cfg.Embedding.Model,
			Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		base, health = e, e
	}

	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provider, cfg.Embedding.Model, logger)

	// Instruction prefix stays outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction), health
	}
	return embedder, health
}
