package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

const readyPollInterval = 2 * time.Second

// Client talks to the Open WebUI management API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	token   string
}

// Config holds the Open WebUI connection settings.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an Open WebUI client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

// WaitForReady polls the UI root until it answers or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if c.ready(ctx) {
			c.logger.Info("webui is ready", zap.String("url", c.baseURL))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("webui at %s not ready: %w", c.baseURL, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// A redirect to the login page counts: the server is up.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
		return true
	}
	return false
}

// Signup creates the admin account. On an instance that already has one
// the endpoint refuses, which callers treat as fine.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	return c.postJSON(ctx, "/api/v1/auth/signup", map[string]string{
		"name":              name,
		"email":             email,
		"password":          password,
		"profile_image_url": "",
	})
}

// Login authenticates and stores the bearer token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if decoded.Token == "" {
		return fmt.Errorf("login response carries no token")
	}

	c.token = decoded.Token
	c.logger.Debug("webui login succeeded", zap.String("email", email))
	return nil
}

// UploadKnowledge registers a document in the knowledge base.
func (c *Client) UploadKnowledge(ctx context.Context, filename, name, content string) error {
	return c.postJSON(ctx, "/api/v1/knowledge", map[string]string{
		"filename": filename,
		"name":     name,
		"content":  content,
	})
}

// UploadDocument uploads a document as a multipart file.
func (c *Client) UploadDocument(ctx context.Context, filename, content string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/documents", &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req)
}

// UploadRAGDocument pushes a document to the RAG ingestion endpoint.
func (c *Client) UploadRAGDocument(ctx context.Context, name, content string) error {
	return c.postJSON(ctx, "/api/v1/rag/documents", map[string]string{
		"name":    name,
		"content": content,
	})
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req)
}

func (c *Client) send(req *http.Request) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webui request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case unsupportedStatus(resp.StatusCode):
		return fmt.Errorf("webui returned status %d for %s: %w",
			resp.StatusCode, req.URL.Path, domain.ErrEndpointUnsupported)
	default:
		return fmt.Errorf("webui returned status %d for %s", resp.StatusCode, req.URL.Path)
	}
}

// unsupportedStatus reports whether a status means the endpoint does not
// exist on this deployment, so retrying or re-sending cannot help.
func unsupportedStatus(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed,
		http.StatusGone, http.StatusNotImplemented:
		return true
	}
	return false
}
