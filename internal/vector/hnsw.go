package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// pivotCount is the number of fixed reference directions used to bound similarity.
	pivotCount = 8
	// boundSlack absorbs floating point error in the pivot bound.
	boundSlack = 1e-6
	// staleDivisor triggers a graph rebuild once more than 1/staleDivisor of the
	// vectors have changed or been removed since the last build.
	staleDivisor = 4
)

// HNSWIndex uses a coder/hnsw graph to find a similarity threshold quickly, then scores
// exactly every vector that a pivot bound cannot rule out. Results equal those of the
// exact MemoryIndex.
//
// The graph never deletes nodes. Replaced and removed ids stay in it as stale entries
// until enough accumulate to rebuild it from the live vectors.
type HNSWIndex struct {
	dimensions int
	oversample int
	graph      *hnsw.Graph[string]
	inGraph    map[string]bool
	stale      int
	vectors    map[string][]float32
	angles     map[string][]float64 // nil for zero vectors
	pivots     [][]float64
	opts       Options
	ranker     Ranker
	mu         sync.Mutex
}

// NewHNSWIndex creates an HNSW-backed index with the given dimension.
func NewHNSWIndex(dimensions int, opts Options) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	opts = opts.withDefaults()
	return &HNSWIndex{
		dimensions: dimensions,
		oversample: opts.Oversample,
		graph:      newGraph(opts),
		inGraph:    make(map[string]bool),
		vectors:    make(map[string][]float32),
		angles:     make(map[string][]float64),
		pivots:     newPivots(dimensions),
		opts:       opts,
		ranker:     Ranker{ParallelThreshold: opts.ParallelThreshold},
	}, nil
}

func newGraph(opts Options) *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = opts.HNSWM
	g.EfSearch = opts.HNSWEfSearch
	return g
}

// newPivots returns unit vectors drawn from a generator seeded by dims, so an index
// rebuilt with the same dimensionality uses the same pivots.
func newPivots(dims int) [][]float64 {
	rng := rand.New(rand.NewPCG(uint64(dims), 0x5eed))
	pivots := make([][]float64, 0, pivotCount)
	for len(pivots) < pivotCount {
		p := make([]float64, dims)
		var norm float64
		for i := range p {
			p[i] = rng.NormFloat64()
			norm += p[i] * p[i]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for i := range p {
			p[i] /= norm
		}
		pivots = append(pivots, p)
	}
	return pivots
}

// pivotAngles returns the angle between v and each pivot, or nil for a zero vector.
func (h *HNSWIndex) pivotAngles(v []float32) []float64 {
	n := L2Norm(v)
	if n == 0 {
		return nil
	}
	out := make([]float64, len(h.pivots))
	for j, p := range h.pivots {
		var dot float64
		for i, x := range v {
			dot += float64(x) * p[i]
		}
		out[j] = math.Acos(max(-1, min(1, dot/n)))
	}
	return out
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Dimensions returns the vector length this index accepts.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Upsert adds or replaces the vector for id.
func (h *HNSWIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	if err := checkDimensions("vector", len(vector), h.dimensions); err != nil {
		return err
	}
	vec := make([]float32, h.dimensions)
	copy(vec, vector)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.vectors[id] = vec
	h.angles[id] = h.pivotAngles(vec)
	if h.inGraph[id] {
		h.stale++
		return nil
	}
	// Zero vectors have no cosine direction; only the exact pass reaches them.
	if L2Norm(vec) > 0 {
		h.graph.Add(hnsw.MakeNode(id, vec))
		h.inGraph[id] = true
	}
	return nil
}

// Remove deletes id from the index. Removing an unknown id is a no-op.
func (h *HNSWIndex) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vectors[id]; !ok {
		return nil
	}
	delete(h.vectors, id)
	delete(h.angles, id)
	if h.inGraph[id] {
		h.stale++
	}
	if len(h.vectors) == 0 {
		h.resetGraph()
	}
	return nil
}

func (h *HNSWIndex) resetGraph() {
	h.graph = newGraph(h.opts)
	h.inGraph = make(map[string]bool)
	h.stale = 0
}

func (h *HNSWIndex) rebuildGraph() {
	h.resetGraph()
	ids := make([]string, 0, len(h.vectors))
	for id, angles := range h.angles {
		if angles != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		h.graph.Add(hnsw.MakeNode(id, h.vectors[id]))
		h.inGraph[id] = true
	}
}

// Search returns the top-k accepted vectors by cosine similarity.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, accept func(id string) bool) ([]Result, error) {
	if err := checkDimensions("query", len(query), h.dimensions); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	budget := k * h.oversample
	if accept != nil || k <= 0 || budget >= len(h.vectors) || L2Norm(query) == 0 {
		return h.ranker.Rank(ctx, query, h.all(accept), k)
	}
	if h.stale > len(h.vectors)/staleDivisor {
		h.rebuildGraph()
	}
	if h.graph.Len() == 0 {
		return h.ranker.Rank(ctx, query, h.all(nil), k)
	}

	nodes := h.graph.Search(query, budget)
	seeds := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		if vec, ok := h.vectors[node.Key]; ok {
			seeds = append(seeds, Candidate{ID: node.Key, Vector: vec})
		}
	}
	if len(seeds) < k {
		return h.ranker.Rank(ctx, query, h.all(nil), k)
	}
	top, err := h.ranker.Rank(ctx, query, seeds, k)
	if err != nil {
		return nil, err
	}
	return h.ranker.Rank(ctx, query, h.within(query, top[k-1].Score-boundSlack), k)
}

// within returns every vector whose similarity to query may reach threshold.
//
// Angles between unit vectors obey the triangle inequality, so for every pivot p
// angle(q, x) >= |angle(q, p) - angle(x, p)|. A vector is skipped only when some pivot
// proves its angle to the query exceeds acos(threshold).
func (h *HNSWIndex) within(query []float32, threshold float64) []Candidate {
	if threshold <= -1 {
		return h.all(nil)
	}
	radius := math.Acos(min(threshold, 1)) + boundSlack
	qa := h.pivotAngles(query)
	out := make([]Candidate, 0)
	for id, vec := range h.vectors {
		xa := h.angles[id]
		if xa == nil {
			if threshold <= 0 {
				out = append(out, Candidate{ID: id, Vector: vec})
			}
			continue
		}
		if reachable(qa, xa, radius) {
			out = append(out, Candidate{ID: id, Vector: vec})
		}
	}
	return out
}

func reachable(qa, xa []float64, radius float64) bool {
	for j := range qa {
		if math.Abs(qa[j]-xa[j]) > radius {
			return false
		}
	}
	return true
}

func (h *HNSWIndex) all(accept func(id string) bool) []Candidate {
	out := make([]Candidate, 0, len(h.vectors))
	for id, vec := range h.vectors {
		if accept != nil && !accept(id) {
			continue
		}
		out = append(out, Candidate{ID: id, Vector: vec})
	}
	return out
}

// Size returns the number of vectors in the index.
func (h *HNSWIndex) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.vectors)
}

// Close drops the graph.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetGraph()
	h.vectors = make(map[string][]float32)
	h.angles = make(map[string][]float64)
	return nil
}
