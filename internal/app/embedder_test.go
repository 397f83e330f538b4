package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/config"
	"github.com/crolopez/enterprise-rag-system/internal/db"
)

// --- Mocks ---

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getKeys []string
	setKeys []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getKeys = append(f.getKeys, key)
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (f *fakeStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setKeys = append(f.setKeys, key)
	f.data[key] = value
	return nil
}

func (f *fakeStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return f.Set(ctx, key, value)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) Close() {}

func (f *fakeStore) WaitForReady(ctx context.Context, timeout time.Duration) error { return nil }

type teiServer struct {
	*httptest.Server
	mu         sync.Mutex
	inputs     [][]string
	healthHits int
}

func newTEIServer(t *testing.T) *teiServer {
	t.Helper()
	s := &teiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Path == "/health" {
			s.healthHits++
			w.WriteHeader(http.StatusOK)
			return
		}
		var body struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode embed body: %v", err)
		}
		s.inputs = append(s.inputs, body.Inputs)
		w.Write([]byte(`[[0.1, 0.2]]`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *teiServer) embedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func teiConfig(url string) config.Config {
	return config.Config{
		Embedding: config.EmbeddingConfig{
			Provider:   "tei",
			URL:        url,
			TimeoutSec: 5,
		},
		Cache: config.CacheConfig{KeyPrefix: "ragproxy:"},
	}
}

// --- Tests ---

func TestBuildEmbedder_AppliesInstructionBeforeProvider(t *testing.T) {
	server := newTEIServer(t)

	embedder, health := BuildEmbedder(teiConfig(server.URL), "query: ", nil, zap.NewNop())

	result, err := embedder.Embed(context.Background(), "tiempo en Madrid")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("embedding = %v, want 2 dimensions", result.Embedding)
	}
	if server.embedCalls() != 1 || server.inputs[0][0] != "query: tiempo en Madrid" {
		t.Errorf("provider received %v, want the instructed text", server.inputs)
	}

	if err := health.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if server.healthHits != 1 {
		t.Errorf("health hits = %d, want 1", server.healthHits)
	}
}

func TestBuildEmbedder_CacheKeyCoversInstructedText(t *testing.T) {
	server := newTEIServer(t)
	store := newFakeStore()

	embedder, _ := BuildEmbedder(teiConfig(server.URL), "query: ", store, zap.NewNop())

	if _, err := embedder.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	sum := sha256.Sum256([]byte("query: hola"))
	wantKey := "ragproxy:emb_cache:" + hex.EncodeToString(sum[:])
	if len(store.getKeys) != 1 || store.getKeys[0] != wantKey {
		t.Errorf("cache lookup keys = %v, want [%s]", store.getKeys, wantKey)
	}
	if len(store.setKeys) != 1 || store.setKeys[0] != wantKey {
		t.Errorf("cache write keys = %v, want [%s]", store.setKeys, wantKey)
	}

	// Second identical call is served from the cache.
	if _, err := embedder.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if server.embedCalls() != 1 {
		t.Errorf("provider calls = %d, want 1 after a cache hit", server.embedCalls())
	}
}

func TestBuildEmbedder_NilStoreSkipsCache(t *testing.T) {
	server := newTEIServer(t)

	embedder, _ := BuildEmbedder(teiConfig(server.URL), "", nil, zap.NewNop())

	if _, err := embedder.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := embedder.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if server.embedCalls() != 2 {
		t.Errorf("provider calls = %d, want 2 without a cache", server.embedCalls())
	}
}

func TestBuildEmbedder_OpenAIProvider(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "embedding": [0.5], "index": 0}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Config{
		Embedding: config.EmbeddingConfig{
			Provider: "openai",
			APIKey:   "test-key",
			BaseURL:  server.URL,
			Model:    "text-embedding-3-small",
		},
	}
	embedder, _ := BuildEmbedder(cfg, "", nil, zap.NewNop())

	result, err := embedder.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(result.Embedding) != 1 || result.Embedding[0] != 0.5 {
		t.Errorf("embedding = %v, want [0.5]", result.Embedding)
	}
	if gotPath != "/embeddings" {
		t.Errorf("path = %q, want /embeddings", gotPath)
	}
}
