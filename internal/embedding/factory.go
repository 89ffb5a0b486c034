package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/config"
)

// New builds the configured embedder, wrapped with rate limiting (remote backends) and caching.
// It returns the effective backend name: "onnx" falls back to "hash" with a warning when the
// runtime or model is unavailable.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		base    Embedder
		backend = cfg.Backend
		err     error
	)
	switch backend {
	case BackendHash, "":
		backend = BackendHash
		base, err = NewHashEmbedder(cfg.Dimensions)
	case BackendONNX:
		onnx, onnxErr := NewONNXEmbedder(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
			LibraryPath: cfg.LibraryPath,
		})
		if onnxErr != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder", zap.Error(onnxErr))
			backend = BackendHash
			base, err = NewHashEmbedder(cfg.Dimensions)
		} else {
			base = onnx
		}
	case BackendOpenAI:
		var remote Embedder
		remote, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Dimensions: cfg.Dimensions,
		})
		if err == nil && cfg.RequestsPerSecond > 0 {
			remote = NewRateLimitedEmbedder(remote, cfg.RequestsPerSecond, cfg.Burst)
		}
		base = remote
	default:
		return nil, "", fmt.Errorf("unknown embedding backend: %s (supported: hash, onnx, openai)", backend)
	}
	if err != nil {
		return nil, "", err
	}

	if cfg.CacheSize > 0 {
		base = NewCachedEmbedder(base, cfg.CacheSize)
	}
	logger.Info("embedder ready", zap.String("backend", backend), zap.Int("dimensions", base.Dimensions()))
	return base, backend, nil
}
