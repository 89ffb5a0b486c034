package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/suisen/data/db/items.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "hash"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/suisen/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.HNSWM == 0 {
		cfg.Index.HNSWM = 16
	}
	if cfg.Index.HNSWEfSearch == 0 {
		cfg.Index.HNSWEfSearch = 64
	}
	if cfg.Index.Oversample == 0 {
		cfg.Index.Oversample = 4
	}
	if cfg.Index.ParallelThreshold == 0 {
		cfg.Index.ParallelThreshold = 4096
	}
	if cfg.Recommend.DefaultTopK == 0 {
		cfg.Recommend.DefaultTopK = 5
	}
	if cfg.Recommend.MaxTopK == 0 {
		cfg.Recommend.MaxTopK = 100
	}
	if cfg.Recommend.DefaultListLimit == 0 {
		cfg.Recommend.DefaultListLimit = 20
	}
	if cfg.Catalog.DebounceMS == 0 {
		cfg.Catalog.DebounceMS = 500
	}
}
