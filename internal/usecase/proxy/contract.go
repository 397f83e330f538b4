package proxy

import (
	"context"
	"io"
	"net/http"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Augmenter rewrites inference requests with retrieved context. Both
// methods return the request to forward and whether it was rewritten.
type Augmenter interface {
	AugmentGenerate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationRequest, bool)
	AugmentChat(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationRequest, bool)
}

// Backend talks to the inference backend. Generate and Chat use the long
// generation timeout, Forward the short passthrough timeout.
type Backend interface {
	Generate(ctx context.Context, body []byte) (*domain.UpstreamResponse, error)
	Chat(ctx context.Context, body []byte) (*domain.UpstreamResponse, error)
	Forward(ctx context.Context, method, pathAndQuery string, header http.Header, body io.Reader) (*domain.UpstreamResponse, error)
}
