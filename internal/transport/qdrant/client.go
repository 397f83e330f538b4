package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Client talks to Qdrant over its REST API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Config holds the Qdrant connection settings.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a Qdrant REST client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold float64   `json:"score_threshold"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs a vector similarity query and returns documents above the
// score threshold. Hits without a textual content payload are skipped.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]domain.ScoredDocument, error) {
	body, err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection),
		searchRequest{
			Vector:         vector,
			Limit:          limit,
			WithPayload:    true,
			ScoreThreshold: threshold,
		})
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", domain.ErrIndexUnavailable)
	}

	docs := make([]domain.ScoredDocument, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		content, ok := hit.Payload["content"].(string)
		if !ok || content == "" {
			c.logger.Debug("skipping hit without content payload", zap.Float64("score", hit.Score))
			continue
		}
		docs = append(docs, domain.NewScoredDocument(content, hit.Score))
	}
	return docs, nil
}

type collectionSpec struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// EnsureCollection creates the collection with cosine distance when it
// does not exist yet. Existing collections are left untouched.
func (c *Client) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	target := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("build collection request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("collection request: %s: %w", err, domain.ErrIndexUnavailable)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// fall through to create
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("collection lookup returned status %d: %w", resp.StatusCode, domain.ErrIndexUnavailable)
	}

	if _, err := c.doJSON(ctx, http.MethodPut, target, collectionSpec{
		Vectors: vectorParams{Size: vectorSize, Distance: "Cosine"},
	}); err != nil {
		return err
	}

	c.logger.Info("created collection",
		zap.String("collection", collection),
		zap.Int("vector_size", vectorSize))
	return nil
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

type upsertPoint struct {
	ID      uint32         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes points with wait=true so documents are searchable as
// soon as the call returns.
func (c *Client) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	req := upsertRequest{Points: make([]upsertPoint, len(points))}
	for i, p := range points {
		req.Points[i] = upsertPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}

	if _, err := c.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection), req); err != nil {
		return err
	}

	c.logger.Debug("upserted points",
		zap.String("collection", collection),
		zap.Int("count", len(points)))
	return nil
}

// Ping checks Qdrant readiness.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build readiness request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("readiness request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("vector index returned status %d", resp.StatusCode)
	}
	return nil
}

// doJSON sends a JSON request and returns the response body, mapping
// transport and API failures onto domain.ErrIndexUnavailable.
func (c *Client) doJSON(ctx context.Context, method, target string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request: %s: %w", err, domain.ErrIndexUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read index response: %s: %w", err, domain.ErrIndexUnavailable)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if detail := extractStatusError(body); detail != "" {
			return nil, fmt.Errorf("index API error %d: %s: %w",
				resp.StatusCode, detail, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("index API error %d: %s: %w",
			resp.StatusCode, body, domain.ErrIndexUnavailable)
	}
	return body, nil
}

// extractStatusError extracts the error message from a Qdrant JSON error body.
func extractStatusError(body []byte) string {
	var parsed struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Status.Error != "" {
		return parsed.Status.Error
	}
	return ""
}
