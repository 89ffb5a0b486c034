package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is an exact in-memory index: every search scores every accepted vector.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	pos        map[string]int
	ranker     Ranker
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int, ranker Ranker) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		pos:        make(map[string]int),
		ranker:     ranker,
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the vector length this index accepts.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Upsert stores a copy of vector under id, replacing any previous vector.
func (m *MemoryIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	if err := checkDimensions("vector", len(vector), m.dimensions); err != nil {
		return err
	}
	vec := make([]float32, m.dimensions)
	copy(vec, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.pos[id]; ok {
		m.vectors[i] = vec
		return nil
	}
	m.pos[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, vec)
	return nil
}

// Remove deletes the vector for id. Removing an unknown id is a no-op.
func (m *MemoryIndex) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.pos[id]
	if !ok {
		return nil
	}
	last := len(m.ids) - 1
	if i != last {
		m.ids[i] = m.ids[last]
		m.vectors[i] = m.vectors[last]
		m.pos[m.ids[i]] = i
	}
	m.ids = m.ids[:last]
	m.vectors = m.vectors[:last]
	delete(m.pos, id)
	return nil
}

// Search returns the top-k accepted vectors by cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, accept func(id string) bool) ([]Result, error) {
	if err := checkDimensions("query", len(query), m.dimensions); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ranker.Rank(ctx, query, m.candidates(accept), k)
}

func (m *MemoryIndex) candidates(accept func(id string) bool) []Candidate {
	out := make([]Candidate, 0, len(m.ids))
	for i, id := range m.ids {
		if accept != nil && !accept(id) {
			continue
		}
		out = append(out, Candidate{ID: id, Vector: m.vectors[i]})
	}
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
