package seeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

const adminName = "Administrator"

// Document is one piece of content to seed.
type Document struct {
	Name    string
	File    string // read at seed time when set
	Content string // inline alternative
}

// Config holds the seeding settings.
type Config struct {
	AdminEmail    string
	AdminPassword string
	ReadyTimeout  time.Duration
	Collection    string
	VectorSize    int
}

// Service pushes documents into Open WebUI and the vector index. The
// UI uploads make documents visible in the chat interface; the direct
// index injection is what retrieval actually depends on.
type Service struct {
	uploader Uploader
	embedder Embedder
	index    Index
	cfg      Config
	logger   *zap.Logger
}

// New creates a seeding service.
func New(uploader Uploader, embedder Embedder, index Index, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		uploader: uploader,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run seeds all documents. WebUI uploads are cosmetic; Run fails when
// any document misses the index, since that is where retrieval looks.
func (s *Service) Run(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		s.logger.Warn("no documents configured, nothing to seed")
		return nil
	}

	webuiUp := s.connect(ctx)

	if err := s.index.EnsureCollection(ctx, s.cfg.Collection, s.cfg.VectorSize); err != nil {
		return fmt.Errorf("ensure collection %q: %w", s.cfg.Collection, err)
	}

	failed := 0
	for _, doc := range docs {
		content, err := s.loadContent(doc)
		if err != nil {
			s.logger.Error("unreadable document",
				zap.String("document", doc.Name),
				zap.Error(err))
			failed++
			continue
		}
		filename := documentFilename(doc)

		if webuiUp {
			s.uploadToWebUI(ctx, filename, doc.Name, content)
		}

		if err := s.inject(ctx, filename, doc.Name, content); err != nil {
			s.logger.Error("index injection failed",
				zap.String("document", doc.Name),
				zap.Error(err))
			failed++
		}
	}

	s.logger.Info("seeding complete",
		zap.Int("seeded", len(docs)-failed),
		zap.Int("documents", len(docs)))

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to seed", failed, len(docs))
	}
	return nil
}

// connect is best effort: a missing or locked-down UI never blocks the
// index injection.
func (s *Service) connect(ctx context.Context) bool {
	if err := s.uploader.WaitForReady(ctx, s.cfg.ReadyTimeout); err != nil {
		s.logger.Warn("webui not reachable, seeding the index only", zap.Error(err))
		return false
	}
	// First boot has no account yet; a refusal means one already exists.
	if err := s.uploader.Signup(ctx, adminName, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
		s.logger.Debug("signup declined", zap.Error(err))
	}
	if err := s.uploader.Login(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
		s.logger.Warn("webui login failed, uploads may be rejected", zap.Error(err))
	}
	return true
}

// uploadOutcome classifies one upload attempt.
type uploadOutcome int

const (
	uploadApplied uploadOutcome = iota
	uploadNotApplicable
	uploadFailed
)

// classifyUpload separates "this deployment has no such endpoint" from a
// real failure. Only the latter is worth a warning.
func classifyUpload(err error) uploadOutcome {
	switch {
	case err == nil:
		return uploadApplied
	case errors.Is(err, domain.ErrEndpointUnsupported):
		return uploadNotApplicable
	default:
		return uploadFailed
	}
}

// uploadToWebUI walks the known upload endpoints and stops at the first
// one that accepts the document. Open WebUI versions differ in which
// endpoint exists, so a missing one just moves on to the next.
func (s *Service) uploadToWebUI(ctx context.Context, filename, name, content string) {
	strategies := []struct {
		endpoint string
		upload   func() error
	}{
		{"knowledge", func() error { return s.uploader.UploadKnowledge(ctx, filename, name, content) }},
		{"documents", func() error { return s.uploader.UploadDocument(ctx, filename, content) }},
		{"rag", func() error { return s.uploader.UploadRAGDocument(ctx, name, content) }},
	}

	anyFailed := false
	for _, strategy := range strategies {
		err := strategy.upload()
		switch classifyUpload(err) {
		case uploadApplied:
			s.logger.Info("document uploaded to webui",
				zap.String("endpoint", strategy.endpoint),
				zap.String("document", name))
			return
		case uploadNotApplicable:
			s.logger.Debug("upload endpoint not present",
				zap.String("endpoint", strategy.endpoint),
				zap.String("document", name))
		case uploadFailed:
			anyFailed = true
			s.logger.Warn("upload endpoint failed",
				zap.String("endpoint", strategy.endpoint),
				zap.String("document", name),
				zap.Error(err))
		}
	}

	if anyFailed {
		s.logger.Warn("document not uploaded to webui, it reaches the index only",
			zap.String("document", name))
		return
	}
	s.logger.Info("webui exposes no document upload endpoint",
		zap.String("document", name))
}

func (s *Service) loadContent(doc Document) (string, error) {
	if doc.File != "" {
		raw, err := os.ReadFile(doc.File)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", doc.File, err)
		}
		return string(raw), nil
	}
	if strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("document %q has no file and no content", doc.Name)
	}
	return doc.Content, nil
}

func (s *Service) inject(ctx context.Context, filename, name, content string) error {
	result, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	pointID := domain.PointID("seeder", name)
	point := domain.Point{
		ID:     pointID,
		Vector: result.Embedding,
		Payload: map[string]any{
			"document_id": pointID,
			"filename":    filename,
			"doc_name":    name,
			"content":     content,
			"source":      "seeder",
		},
	}
	return s.index.Upsert(ctx, s.cfg.Collection, []domain.Point{point})
}

// documentFilename picks the upload filename: the source file's base
// name, or one derived from the document name for inline content.
func documentFilename(doc Document) string {
	if doc.File != "" {
		return filepath.Base(doc.File)
	}
	slug := strings.ToLower(strings.TrimSpace(doc.Name))
	slug = strings.ReplaceAll(slug, " ", "_")
	if strings.HasSuffix(slug, ".txt") {
		return slug
	}
	return slug + ".txt"
}
