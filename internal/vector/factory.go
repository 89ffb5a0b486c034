package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses exact brute-force search. This is the default.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW seeds a similarity threshold from an HNSW graph and scores only vectors a pivot bound
	// cannot rule out. Results match IndexTypeMemory.
	IndexTypeHNSW IndexType = "hnsw"
)

// Options tunes index construction. Zero fields take defaults.
type Options struct {
	HNSWM             int
	HNSWEfSearch      int
	Oversample        int
	ParallelThreshold int
}

// DefaultOptions returns the defaults used for zero Options fields.
func DefaultOptions() Options {
	return Options{
		HNSWM:             16,
		HNSWEfSearch:      64,
		Oversample:        4,
		ParallelThreshold: DefaultParallelThreshold,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HNSWM <= 0 {
		o.HNSWM = d.HNSWM
	}
	if o.HNSWEfSearch <= 0 {
		o.HNSWEfSearch = d.HNSWEfSearch
	}
	if o.Oversample <= 0 {
		o.Oversample = d.Oversample
	}
	if o.ParallelThreshold == 0 {
		o.ParallelThreshold = d.ParallelThreshold
	}
	return o
}

// SupportedTypes lists the accepted index type names.
func SupportedTypes() []string {
	return []string{string(IndexTypeMemory), string(IndexTypeHNSW)}
}

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "hnsw".
func NewVectorIndex(indexType string, dimensions int, opts Options) (VectorIndex, error) {
	opts = opts.withDefaults()
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions, Ranker{ParallelThreshold: opts.ParallelThreshold})
	case IndexTypeHNSW:
		return NewHNSWIndex(dimensions, opts)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, hnsw)", indexType)
	}
}
