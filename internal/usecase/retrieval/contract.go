package retrieval

import (
	"context"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs a nearest-neighbor search against the vector index.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]domain.ScoredDocument, error)
}

// Gate decides whether a query is worth a retrieval round-trip. It is an
// optimization only: a false positive costs one wasted search, never
// correctness.
type Gate interface {
	Relevant(query string) bool
}
