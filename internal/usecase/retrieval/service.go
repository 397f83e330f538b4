package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
)

// Route labels for augmentation metrics.
const (
	routeGenerate = "generate"
	routeChat     = "chat"
)

// Config tunes one retrieval pass.
type Config struct {
	Collection     string
	Limit          int
	ScoreThreshold float64
}

// Service implements the augmentation policy: extract the query, optionally
// gate it, retrieve context, and rewrite the request. Every retrieval
// failure degrades to "forward unchanged"; forwarding is never blocked on
// the index or the embedder.
type Service struct {
	embedder Embedder
	searcher Searcher
	gate     Gate
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval service. A nil gate means every query goes to
// retrieval.
func New(embedder Embedder, searcher Searcher, gate Gate, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		searcher: searcher,
		gate:     gate,
		cfg:      cfg,
		logger:   logger,
	}
}

// AugmentGenerate rewrites the prompt of a single-shot request with
// retrieved context. Returns the request to forward and whether it was
// rewritten. The input request is never mutated.
func (s *Service) AugmentGenerate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationRequest, bool) {
	query, ok := req.Prompt()
	if !ok || strings.TrimSpace(query) == "" {
		metrics.AugmentationTotal.WithLabelValues(routeGenerate, metrics.OutcomeNoQuery).Inc()
		return req, false
	}

	docs, outcome := s.retrieve(ctx, query)
	metrics.AugmentationTotal.WithLabelValues(routeGenerate, outcome).Inc()
	if len(docs) == 0 {
		return req, false
	}

	return req.WithPrompt(BuildAugmentedPrompt(docs, query)), true
}

// AugmentChat rewrites the last user turn of a multi-turn request with
// retrieved context. Earlier turns and every other field pass through
// untouched. The input request is never mutated.
func (s *Service) AugmentChat(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationRequest, bool) {
	query, ok := req.LastUserContent()
	if !ok || strings.TrimSpace(query) == "" {
		metrics.AugmentationTotal.WithLabelValues(routeChat, metrics.OutcomeNoQuery).Inc()
		return req, false
	}

	docs, outcome := s.retrieve(ctx, query)
	metrics.AugmentationTotal.WithLabelValues(routeChat, outcome).Inc()
	if len(docs) == 0 {
		return req, false
	}

	rewritten, ok := req.WithLastUserContent(BuildAugmentedPrompt(docs, query))
	if !ok {
		return req, false
	}
	return rewritten, true
}

// retrieve runs gate, embed, and search. It returns the retrieved
// documents plus the outcome label, and reports failures as an empty set.
func (s *Service) retrieve(ctx context.Context, query string) ([]domain.ScoredDocument, string) {
	if s.gate != nil && !s.gate.Relevant(query) {
		s.logger.Debug("query gated, skipping retrieval", zap.String("query", firstN(query, 50)))
		return nil, metrics.OutcomeGated
	}

	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil, metrics.OutcomeNoQuery
	}

	emb, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		s.logger.Warn("embedding failed, forwarding without context", zap.Error(err))
		return nil, metrics.OutcomeDegraded
	}

	docs, err := s.searcher.Search(ctx, s.cfg.Collection, emb.Embedding, s.cfg.Limit, s.cfg.ScoreThreshold)
	if err != nil {
		s.logger.Warn("vector search failed, forwarding without context", zap.Error(err))
		return nil, metrics.OutcomeDegraded
	}

	metrics.RetrievedDocuments.WithLabelValues(s.cfg.Collection).Observe(float64(len(docs)))
	if len(docs) == 0 {
		return nil, metrics.OutcomeNoResults
	}

	s.logger.Info("context retrieved",
		zap.Int("documents", len(docs)),
		zap.String("query", firstN(query, 50)))
	return docs, metrics.OutcomeAugmented
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
