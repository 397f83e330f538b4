package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragproxy configuration shared by all binaries.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Seeder    SeederConfig    `yaml:"seeder"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig holds the inference backend connection settings.
type BackendConfig struct {
	URL                   string `yaml:"url"`
	GenerateTimeoutSec    int    `yaml:"generate_timeout_sec"`
	PassthroughTimeoutSec int    `yaml:"passthrough_timeout_sec"`
	HealthTimeoutSec      int    `yaml:"health_timeout_sec"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // tei, openai (default: tei)
	URL                 string `yaml:"url"`      // tei endpoint
	APIKey              string `yaml:"api_key"`  // openai-compatible providers
	BaseURL             string `yaml:"base_url"` // openai-compatible providers
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// QdrantConfig holds the vector index connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	Collection     string     `yaml:"collection"`
	Limit          int        `yaml:"limit"`
	ScoreThreshold float64    `yaml:"score_threshold"`
	Gate           GateConfig `yaml:"gate"`
}

// GateConfig holds the keyword gate settings. When the gate is enabled,
// only queries containing at least one keyword are augmented.
type GateConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`
}

// IndexerConfig holds document ingestion settings.
type IndexerConfig struct {
	VectorSize int            `yaml:"vector_size"`
	Sources    []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one document source for the indexer. Settings
// stays an opaque YAML node; each handler decodes its own shape.
type SourceConfig struct {
	ID              string    `yaml:"id"`
	Type            string    `yaml:"type"` // registered handler name, e.g. weather_open_meteo
	Collection      string    `yaml:"collection"`
	IntervalMinutes int       `yaml:"interval_minutes"`
	Settings        yaml.Node `yaml:"settings"`
}

// SeederConfig holds the Open WebUI seeding settings.
type SeederConfig struct {
	WebUIURL      string         `yaml:"webui_url"`
	AdminEmail    string         `yaml:"admin_email"`
	AdminPassword string         `yaml:"admin_password"`
	TimeoutSec    int            `yaml:"timeout_sec"`
	Documents     []SeedDocument `yaml:"documents"`
}

// SeedDocument describes one document to seed, either inline or from a file.
type SeedDocument struct {
	Name    string `yaml:"name"`
	File    string `yaml:"file"`
	Content string `yaml:"content"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	// The write timeout must outlive the longest backend generation.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 630
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.GenerateTimeoutSec <= 0 {
		c.Backend.GenerateTimeoutSec = 600
	}
	if c.Backend.PassthroughTimeoutSec <= 0 {
		c.Backend.PassthroughTimeoutSec = 30
	}
	if c.Backend.HealthTimeoutSec <= 0 {
		c.Backend.HealthTimeoutSec = 5
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "tei"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "ragproxy:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Qdrant.TimeoutSec <= 0 {
		c.Qdrant.TimeoutSec = 10
	}
	if c.Retrieval.Collection == "" {
		c.Retrieval.Collection = "documents"
	}
	if c.Retrieval.Limit <= 0 {
		c.Retrieval.Limit = 2
	}
	if c.Retrieval.ScoreThreshold <= 0 {
		c.Retrieval.ScoreThreshold = 0.3
	}
	if c.Indexer.VectorSize <= 0 {
		c.Indexer.VectorSize = c.Embedding.Dimensions
	}
	for i := range c.Indexer.Sources {
		if c.Indexer.Sources[i].Collection == "" {
			c.Indexer.Sources[i].Collection = c.Retrieval.Collection
		}
		if c.Indexer.Sources[i].IntervalMinutes <= 0 {
			c.Indexer.Sources[i].IntervalMinutes = 60
		}
	}
	if c.Seeder.TimeoutSec <= 0 {
		c.Seeder.TimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	switch c.Embedding.Provider {
	case "tei":
		if c.Embedding.URL == "" {
			return fmt.Errorf("embedding.url is required for the tei provider")
		}
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the openai provider")
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for the openai provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"tei\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Qdrant.URL == "" {
		return fmt.Errorf("qdrant.url is required")
	}
	if c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be between 0 and 1, got %v", c.Retrieval.ScoreThreshold)
	}
	seen := make(map[string]bool, len(c.Indexer.Sources))
	for i, src := range c.Indexer.Sources {
		if src.ID == "" {
			return fmt.Errorf("indexer.sources[%d].id is required", i)
		}
		if src.Type == "" {
			return fmt.Errorf("indexer.sources[%d].type is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("indexer.sources[%d].id %q is duplicated", i, src.ID)
		}
		seen[src.ID] = true
	}
	for i, doc := range c.Seeder.Documents {
		if doc.Name == "" {
			return fmt.Errorf("seeder.documents[%d].name is required", i)
		}
		if doc.File == "" && doc.Content == "" {
			return fmt.Errorf("seeder.documents[%d] needs either file or content", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
