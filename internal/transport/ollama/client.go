package ollama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Client talks to an Ollama-compatible inference backend. Inference
// routes use a long timeout, administrative routes a short one. Backend
// error statuses are relayed as responses, never turned into errors.
type Client struct {
	baseURL       string
	generate      *http.Client
	passthrough   *http.Client
	healthTimeout time.Duration
	logger        *zap.Logger
}

// Config holds the backend connection settings.
type Config struct {
	URL                string
	GenerateTimeout    time.Duration
	PassthroughTimeout time.Duration
	HealthTimeout      time.Duration
	Logger             *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL:       cfg.URL,
		generate:      &http.Client{Timeout: cfg.GenerateTimeout},
		passthrough:   &http.Client{Timeout: cfg.PassthroughTimeout},
		healthTimeout: cfg.HealthTimeout,
		logger:        cfg.Logger,
	}
}

// Generate sends a completion request to POST /api/generate.
func (c *Client) Generate(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	return c.post(ctx, "/api/generate", body)
}

// Chat sends a conversation request to POST /api/chat.
func (c *Client) Chat(ctx context.Context, body []byte) (*domain.UpstreamResponse, error) {
	return c.post(ctx, "/api/chat", body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*domain.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.generate.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return wrap(resp), nil
}

// Forward relays an arbitrary API request to the backend unchanged.
// pathAndQuery must carry the original path with its raw query string.
func (c *Client) Forward(ctx context.Context, method, pathAndQuery string, header http.Header, body io.Reader) (*domain.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	CopyHeader(req.Header, header)

	resp, err := c.passthrough.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return wrap(resp), nil
}

// Ping probes backend availability via GET /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("build backend request: %w", err)
	}

	resp, err := c.passthrough.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("backend returned status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	return nil
}

func wrap(resp *http.Response) *domain.UpstreamResponse {
	return &domain.UpstreamResponse{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}
}

// mapTransportError folds transport failures onto the two upstream
// sentinels: timeouts and canceled deadlines become ErrUpstreamTimeout,
// everything else ErrUpstreamUnavailable.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("backend request: %s: %w", err, domain.ErrUpstreamTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("backend request: %s: %w", err, domain.ErrUpstreamTimeout)
	}
	return fmt.Errorf("backend request: %s: %w", err, domain.ErrUpstreamUnavailable)
}

// Hop-by-hop headers are scoped to one connection and must not cross the proxy.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CopyHeader copies end-to-end headers from src to dst, dropping
// hop-by-hop ones. Used for both request and response relaying.
func CopyHeader(dst http.Header, src map[string][]string) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
}
