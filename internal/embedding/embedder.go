// Package embedding turns item text into vectors. Backends: hash (default), onnx, openai.
package embedding

import "context"

// Embedder produces vector embeddings for text. Every vector from one Embedder has Dimensions() entries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Backend names accepted by New.
const (
	BackendHash   = "hash"
	BackendONNX   = "onnx"
	BackendOpenAI = "openai"
)

// SupportedBackends lists the accepted backend names.
func SupportedBackends() []string {
	return []string{BackendHash, BackendONNX, BackendOpenAI}
}

// embedEach implements EmbedBatch for backends without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
