package indexer

import (
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Registered source types.
const (
	TypeWeatherOpenMeteo = "weather_open_meteo"
	TypeFileSource       = "file_source"
)

// Source is one configured data source.
type Source struct {
	ID         string
	Type       string
	Collection string
	Interval   time.Duration
	Settings   yaml.Node
}

// Deps bundles the shared dependencies handed to each handler constructor.
type Deps struct {
	Embedder   Embedder
	Index      Index
	Forecaster Forecaster
	VectorSize int
	Logger     *zap.Logger
}

// Constructor builds a handler for one source.
type Constructor func(src Source, deps Deps) (Handler, error)

// Registry maps source types to their constructors.
type Registry map[string]Constructor

// DefaultRegistry returns all built-in source handlers.
func DefaultRegistry() Registry {
	return Registry{
		TypeWeatherOpenMeteo: NewWeatherHandler,
		TypeFileSource:       NewFileHandler,
	}
}

// Build constructs a handler per source. A source with an unknown type or
// a broken settings block is skipped so the remaining sources still run.
func (r Registry) Build(sources []Source, deps Deps) []Handler {
	handlers := make([]Handler, 0, len(sources))
	for _, src := range sources {
		construct, ok := r[src.Type]
		if !ok {
			deps.Logger.Warn("skipping source with unknown type",
				zap.String("source", src.ID),
				zap.String("type", src.Type))
			continue
		}
		handler, err := construct(src, deps)
		if err != nil {
			deps.Logger.Error("skipping source that failed to initialize",
				zap.String("source", src.ID),
				zap.Error(err))
			continue
		}
		handlers = append(handlers, handler)
	}
	return handlers
}
