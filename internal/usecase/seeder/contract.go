package seeder

import (
	"context"
	"time"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Uploader is the Open WebUI surface used for seeding.
type Uploader interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Signup(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) error
	UploadKnowledge(ctx context.Context, filename, name, content string) error
	UploadDocument(ctx context.Context, filename, content string) error
	UploadRAGDocument(ctx context.Context, name, content string) error
}

// Embedder vectorizes document text before injection.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index is the write side of the vector store.
type Index interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []domain.Point) error
}
