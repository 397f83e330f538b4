package indexer

import (
	"context"
	"time"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Embedder vectorizes document text before upsert.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index is the write side of the vector store.
type Index interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []domain.Point) error
}

// Forecaster fetches weather data for a coordinate.
type Forecaster interface {
	Forecast(ctx context.Context, query domain.ForecastQuery) (*domain.Forecast, error)
}

// Handler is one configured source that refreshes its slice of the index
// on every Run.
type Handler interface {
	// ID identifies the source in logs.
	ID() string
	// Run performs one full refresh cycle.
	Run(ctx context.Context) error
	// Interval is the requested delay between refresh cycles.
	Interval() time.Duration
}
