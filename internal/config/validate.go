package config

import (
	"slices"

	"github.com/hyperjump/suisen/pkg/errors"
)

var (
	validDrivers    = []string{"sqlite3", "sqlite", "memory"}
	validBackends   = []string{"hash", "onnx", "openai"}
	validIndexTypes = []string{"memory", "hnsw"}
	validLogLevels  = []string{"", "debug", "info", "warn", "error"}
)

// Validate rejects unknown names and out-of-range limits.
func (c *Config) Validate() error {
	switch {
	case !slices.Contains(validDrivers, c.Storage.Driver):
		return invalid("storage.driver", c.Storage.Driver)
	case c.Storage.Driver != "memory" && c.Storage.DatabasePath == "":
		return invalid("storage.database_path", c.Storage.DatabasePath)
	case !slices.Contains(validBackends, c.Embedding.Backend):
		return invalid("embedding.backend", c.Embedding.Backend)
	case c.Embedding.Dimensions <= 0:
		return invalid("embedding.dimensions", c.Embedding.Dimensions)
	case c.Embedding.CacheSize < 0:
		return invalid("embedding.cache_size", c.Embedding.CacheSize)
	case c.Embedding.RequestsPerSecond < 0:
		return invalid("embedding.requests_per_second", c.Embedding.RequestsPerSecond)
	case c.Embedding.Backend == "openai" && c.Embedding.OpenAIAPIKey == "":
		return invalid("embedding.openai_api_key", "")
	case !slices.Contains(validIndexTypes, c.Index.Type):
		return invalid("index.type", c.Index.Type)
	case c.Index.Oversample <= 0:
		return invalid("index.oversample", c.Index.Oversample)
	case c.Recommend.DefaultTopK <= 0:
		return invalid("recommend.default_top_k", c.Recommend.DefaultTopK)
	case c.Recommend.MaxTopK < c.Recommend.DefaultTopK:
		return invalid("recommend.max_top_k", c.Recommend.MaxTopK)
	case c.Recommend.DefaultListLimit <= 0:
		return invalid("recommend.default_list_limit", c.Recommend.DefaultListLimit)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return invalid("server.port", c.Server.Port)
	case !slices.Contains(validLogLevels, c.LogLevel):
		return invalid("log_level", c.LogLevel)
	}
	return nil
}

func invalid(key string, value any) error {
	return errors.New(errors.CodeConfigInvalidValue, "invalid config value for "+key,
		errors.Field("key", key), errors.Field("value", value))
}
