// Package config provides configuration loading and structs for the suisen server and CLI.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/suisen/pkg/errors"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level,omitempty"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Recommend RecommendConfig `yaml:"recommend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeoutSeconds bounds each request, including embedding calls.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" split_words:"true"`
}

// StorageConfig selects the persistence driver and database location.
type StorageConfig struct {
	// Driver is "sqlite3" (cgo), "sqlite" (pure Go), or "memory" (no persistence).
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path" split_words:"true"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Backend is "hash", "onnx", or "openai".
	Backend     string `yaml:"backend"`
	Dimensions  int    `yaml:"dimensions"`
	ModelPath   string `yaml:"model_path" split_words:"true"`
	LibraryPath string `yaml:"library_path,omitempty" split_words:"true"`
	MaxTokens   int    `yaml:"max_tokens" split_words:"true"`
	CacheSize   int    `yaml:"cache_size" split_words:"true"`

	OpenAIModel   string `yaml:"openai_model" envconfig:"OPENAI_MODEL"`
	OpenAIAPIKey  string `yaml:"openai_api_key,omitempty" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty" envconfig:"OPENAI_BASE_URL"`

	// RequestsPerSecond limits calls to remote backends; zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
	Burst             int     `yaml:"burst"`

	// ReindexOnStartup re-embeds persisted items whose dimensionality differs from the backend's.
	ReindexOnStartup bool `yaml:"reindex_on_startup" split_words:"true"`
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	// Type is "memory" (linear scan) or "hnsw" (graph-seeded, same results).
	Type              string `yaml:"type"`
	HNSWM             int    `yaml:"hnsw_m" envconfig:"HNSW_M"`
	HNSWEfSearch      int    `yaml:"hnsw_ef_search" envconfig:"HNSW_EF_SEARCH"`
	Oversample        int    `yaml:"oversample"`
	ParallelThreshold int    `yaml:"parallel_threshold" split_words:"true"`
}

// RecommendConfig holds result-size defaults and limits.
type RecommendConfig struct {
	DefaultTopK      int `yaml:"default_top_k" envconfig:"DEFAULT_TOP_K"`
	MaxTopK          int `yaml:"max_top_k" envconfig:"MAX_TOP_K"`
	DefaultListLimit int `yaml:"default_list_limit" split_words:"true"`
}

// CatalogConfig lists catalog files imported at startup and optionally watched.
type CatalogConfig struct {
	Paths      []string `yaml:"paths"`
	Watch      bool     `yaml:"watch"`
	DebounceMS int      `yaml:"debounce_ms" envconfig:"DEBOUNCE_MS"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to read config", errors.Field("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to parse config", errors.Field("path", path))
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Catalog.Paths {
		cfg.Catalog.Paths[i] = expandPath(cfg.Catalog.Paths[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to marshal config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to create config directory")
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to write config", errors.Field("path", path))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" is the home directory; other relative paths are relative to the home directory.
// ":memory:" and empty paths are returned unchanged.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
