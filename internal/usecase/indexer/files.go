package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// FileSettings is the settings block of a file_source entry.
type FileSettings struct {
	Directory string   `yaml:"directory"`
	Patterns  []string `yaml:"patterns"`
}

// FileHandler indexes plain-text files from a directory.
type FileHandler struct {
	source   Source
	settings FileSettings
	deps     Deps
	logger   *zap.Logger
}

// NewFileHandler builds a file source handler.
func NewFileHandler(src Source, deps Deps) (Handler, error) {
	var settings FileSettings
	if !src.Settings.IsZero() {
		if err := src.Settings.Decode(&settings); err != nil {
			return nil, fmt.Errorf("decode file settings: %w", err)
		}
	}
	if settings.Directory == "" {
		return nil, fmt.Errorf("file source %q has no directory", src.ID)
	}
	if len(settings.Patterns) == 0 {
		settings.Patterns = []string{"*.txt"}
	}

	return &FileHandler{
		source:   src,
		settings: settings,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("source", src.ID)),
	}, nil
}

func (h *FileHandler) ID() string { return h.source.ID }

func (h *FileHandler) Interval() time.Duration { return h.source.Interval }

// Run indexes every matching file. A missing directory is not an error:
// the source stays idle until someone mounts content there.
func (h *FileHandler) Run(ctx context.Context) error {
	if _, err := os.Stat(h.settings.Directory); os.IsNotExist(err) {
		h.logger.Warn("source directory does not exist, skipping cycle",
			zap.String("directory", h.settings.Directory))
		return nil
	}

	if err := h.deps.Index.EnsureCollection(ctx, h.source.Collection, h.deps.VectorSize); err != nil {
		return fmt.Errorf("ensure collection %q: %w", h.source.Collection, err)
	}

	paths, err := h.matchFiles()
	if err != nil {
		return err
	}

	indexed := 0
	for _, path := range paths {
		ok, err := h.indexFile(ctx, path)
		if err != nil {
			h.logger.Error("file indexing failed",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if ok {
			indexed++
		}
	}

	h.logger.Info("file refresh complete",
		zap.Int("indexed", indexed),
		zap.Int("matched", len(paths)))
	return nil
}

func (h *FileHandler) matchFiles() ([]string, error) {
	var paths []string
	for _, pattern := range h.settings.Patterns {
		matches, err := filepath.Glob(filepath.Join(h.settings.Directory, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// indexFile embeds and upserts one file. Empty files are skipped and
// reported as not indexed.
func (h *FileHandler) indexFile(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read file: %w", err)
	}
	content := string(raw)
	if strings.TrimSpace(content) == "" {
		h.logger.Debug("skipping empty file", zap.String("path", path))
		return false, nil
	}

	result, err := h.deps.Embedder.Embed(ctx, content)
	if err != nil {
		return false, fmt.Errorf("embed document: %w", err)
	}

	point := domain.Point{
		ID:     domain.PointID(h.source.ID, path),
		Vector: result.Embedding,
		Payload: map[string]any{
			"source":         h.source.ID,
			"filename":       filepath.Base(path),
			"file_path":      path,
			"content":        content,
			"content_length": len(content),
			"metadata": map[string]any{
				"collection": h.source.Collection,
				"handler":    h.source.Type,
				"type":       "file",
			},
		},
	}

	if err := h.deps.Index.Upsert(ctx, h.source.Collection, []domain.Point{point}); err != nil {
		return false, err
	}
	return true, nil
}
