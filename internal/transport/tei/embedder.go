package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
)

// Embedder is an embedding provider speaking the Hugging Face
// text-embeddings-inference protocol: POST {"inputs": [...]} returning
// one vector per input.
type Embedder struct {
	url    string
	model  string
	client *http.Client
	logger *zap.Logger
}

// Config holds the TEI provider settings.
type Config struct {
	URL     string // full embed endpoint, e.g. http://tei:80/embed
	Model   string // informational, used as a metrics label
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewEmbedder creates a TEI embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	model := cfg.Model
	if model == "" {
		model = "default"
	}
	return &Embedder{
		url:    cfg.URL,
		model:  model,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

// Embed implements domain.Embedder. TEI reports no token usage, so the
// result carries the vector only.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vectors[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder via the native multi-input request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(vectors) != len(texts) {
		metrics.EmbeddingErrorsTotal.WithLabelValues("tei", e.model, "shape_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(vectors), len(texts), domain.ErrEmbeddingUnavailable)
	}
	return domain.BatchEmbeddingResult{Embeddings: vectors}, nil
}

func (e *Embedder) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("tei", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("tei", e.model, "transport").Inc()
		return nil, fmt.Errorf("embed request: %s: %w", err, domain.ErrEmbeddingUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("tei", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("tei", e.model, "transport").Inc()
		return nil, fmt.Errorf("read embed response: %s: %w", err, domain.ErrEmbeddingUnavailable)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		metrics.EmbeddingRequestsTotal.WithLabelValues("tei", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("tei", e.model, "api_error").Inc()
		if detail := extractError(body); detail != "" {
			return nil, fmt.Errorf("embedding API error %d: %s: %w",
				resp.StatusCode, detail, domain.ErrEmbeddingUnavailable)
		}
		return nil, fmt.Errorf("embedding API error %d: %s: %w",
			resp.StatusCode, body, domain.ErrEmbeddingUnavailable)
	}

	vectors, err := decodeVectors(body)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("tei", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("tei", e.model, "bad_response").Inc()
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("tei", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("tei", e.model).Observe(duration.Seconds())

	e.logger.Debug("embedded texts",
		zap.Int("inputs", len(inputs)),
		zap.Int("dimensions", len(vectors[0])),
		zap.Duration("duration", duration))

	return vectors, nil
}

// HealthCheck verifies TEI availability via its /health endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	target, err := healthURL(e.url)
	if err != nil {
		return fmt.Errorf("derive health url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}
	return nil
}

// decodeVectors accepts both the usual one-vector-per-input array and a
// bare vector, which some deployments return for single-input requests.
func decodeVectors(body []byte) ([][]float32, error) {
	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingUnavailable)
		}
		return nested, nil
	}

	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return [][]float32{flat}, nil
	}

	return nil, fmt.Errorf("undecodable embedding response: %w", domain.ErrEmbeddingUnavailable)
}

// healthURL swaps the embed path for /health on the same host.
func healthURL(embedURL string) (string, error) {
	u, err := url.Parse(embedURL)
	if err != nil {
		return "", fmt.Errorf("parse embed url: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String(), nil
}

// extractError extracts the "error" field from a TEI JSON error body.
func extractError(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return ""
}
