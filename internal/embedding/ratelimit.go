package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder bounds the request rate to a remote embedding backend.
// A batch counts as one request.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows requestsPerSecond calls with the given burst.
func NewRateLimitedEmbedder(next Embedder, requestsPerSecond float64, burst int) *RateLimitedEmbedder {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Embed waits for a token, then embeds text.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, text)
}

// EmbedBatch waits for a token, then embeds texts.
func (e *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped embedder's dimension.
func (e *RateLimitedEmbedder) Dimensions() int {
	return e.next.Dimensions()
}

// Close closes the wrapped embedder.
func (e *RateLimitedEmbedder) Close() error {
	return e.next.Close()
}
