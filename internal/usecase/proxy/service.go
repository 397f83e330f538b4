package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
)

// Mode labels for upstream duration metrics.
const (
	modeStream   = "stream"
	modeBuffered = "buffered"
)

// Service orchestrates one proxied inference request: decode, augment,
// forward. Augmentation never fails a request; only the upstream call can.
type Service struct {
	augmenter Augmenter
	backend   Backend
	logger    *zap.Logger
}

// New creates a proxy service.
func New(augmenter Augmenter, backend Backend, logger *zap.Logger) *Service {
	return &Service{augmenter: augmenter, backend: backend, logger: logger}
}

// Generate proxies a single-shot inference request. The raw body is
// forwarded byte-for-byte unless augmentation rewrote it. Returns the
// upstream response with its body still open; the caller relays and
// closes it. Upstream error statuses are part of the response, not an
// error.
func (s *Service) Generate(ctx context.Context, raw []byte) (*domain.UpstreamResponse, error) {
	req, err := domain.ParseGenerationRequest(raw)
	if err != nil {
		return nil, err
	}

	body := raw
	if augmented, changed := s.augmenter.AugmentGenerate(ctx, req); changed {
		body = s.encodeOrFallback(augmented, raw)
	}

	start := time.Now()
	resp, err := s.backend.Generate(ctx, body)
	if err != nil {
		return nil, err
	}
	metrics.UpstreamRequestDuration.WithLabelValues("generate", modeLabel(req)).Observe(time.Since(start).Seconds())
	return resp, nil
}

// Chat proxies a multi-turn inference request. Same forwarding contract
// as Generate, with only the last user turn subject to rewriting.
func (s *Service) Chat(ctx context.Context, raw []byte) (*domain.UpstreamResponse, error) {
	req, err := domain.ParseGenerationRequest(raw)
	if err != nil {
		return nil, err
	}

	body := raw
	if augmented, changed := s.augmenter.AugmentChat(ctx, req); changed {
		body = s.encodeOrFallback(augmented, raw)
	}

	start := time.Now()
	resp, err := s.backend.Chat(ctx, body)
	if err != nil {
		return nil, err
	}
	metrics.UpstreamRequestDuration.WithLabelValues("chat", modeLabel(req)).Observe(time.Since(start).Seconds())
	return resp, nil
}

// Forward relays any other backend route untouched.
func (s *Service) Forward(ctx context.Context, method, pathAndQuery string, header http.Header, body io.Reader) (*domain.UpstreamResponse, error) {
	start := time.Now()
	resp, err := s.backend.Forward(ctx, method, pathAndQuery, header, body)
	if err != nil {
		return nil, err
	}
	metrics.UpstreamRequestDuration.WithLabelValues("passthrough", modeBuffered).Observe(time.Since(start).Seconds())
	return resp, nil
}

// encodeOrFallback serializes the rewritten request, falling back to the
// original bytes if encoding fails.
func (s *Service) encodeOrFallback(req *domain.GenerationRequest, raw []byte) []byte {
	encoded, err := req.Encode()
	if err != nil {
		s.logger.Warn("encode augmented request failed, forwarding original", zap.Error(err))
		return raw
	}
	return encoded
}

func modeLabel(req *domain.GenerationRequest) string {
	if req.Stream() {
		return modeStream
	}
	return modeBuffered
}
