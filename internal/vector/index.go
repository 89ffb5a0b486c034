// Package vector provides cosine ranking and the vector indexes the item store searches.
package vector

import (
	"context"

	"github.com/hyperjump/suisen/pkg/errors"
)

// VectorIndex holds one vector per id, all of the same dimensionality, and ranks them against a query.
// Implementations are safe for concurrent use.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Remove(ctx context.Context, id string) error
	// Search ranks the vectors accepted by accept (all when nil) and returns the top k.
	Search(ctx context.Context, query []float32, k int, accept func(id string) bool) ([]Result, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

func checkDimensions(what string, got, want int) error {
	if got == want {
		return nil
	}
	return errors.Errorf(errors.CodeDimensionMismatch, "%s dimension mismatch: got %d, expected %d", what, got, want)
}
