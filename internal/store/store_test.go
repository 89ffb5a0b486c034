package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/internal/storage"
	"github.com/hyperjump/suisen/internal/vector"
	"github.com/hyperjump/suisen/pkg/errors"
)

func item(id, category string, vec ...float32) *models.Item {
	return &models.Item{ID: id, Title: "t-" + id, Description: "d-" + id, Category: category, Embedding: vec}
}

// failingPersistence records calls and fails when err is set.
type failingPersistence struct {
	mu    sync.Mutex
	err   error
	saved map[string]*models.Item
	order []string
}

func newFailingPersistence() *failingPersistence {
	return &failingPersistence{saved: make(map[string]*models.Item)}
}

func (p *failingPersistence) LoadItems(ctx context.Context) ([]*models.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.Item
	for _, id := range p.order {
		if it, ok := p.saved[id]; ok {
			out = append(out, it.Clone())
		}
	}
	return out, p.err
}

func (p *failingPersistence) SaveItem(ctx context.Context, it *models.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if _, ok := p.saved[it.ID]; !ok {
		p.order = append(p.order, it.ID)
	}
	p.saved[it.ID] = it.Clone()
	return nil
}

func (p *failingPersistence) SaveItems(ctx context.Context, items []*models.Item) error {
	for _, it := range items {
		if err := p.SaveItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (p *failingPersistence) DeleteItem(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	delete(p.saved, id)
	return nil
}

func (p *failingPersistence) CountItems(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.saved)), p.err
}

func (p *failingPersistence) Close() error { return nil }

func TestPut_CreateAndReplace(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1000, 0)
	s := New(WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }))

	stored, created, err := s.Put(ctx, item("a1", "Phones", 1, 0, 0))
	require.NoError(t, err)
	assert.True(t, created)
	firstCreated := stored.CreatedAt

	_, _, err = s.Put(ctx, item("a2", "Phones", 0, 1, 0))
	require.NoError(t, err)

	replacement := item("a1", "Tablets", 0, 0, 1)
	replacement.Title = "renamed"
	stored, created, err = s.Put(ctx, replacement)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstCreated, stored.CreatedAt, "created_at survives replacement")
	assert.True(t, stored.UpdatedAt.After(firstCreated))

	assert.Equal(t, 2, s.Count())
	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "Tablets", got.Category)
	assert.Equal(t, []float32{0, 0, 1}, got.Embedding)

	items, _ := s.List(models.ListFilter{})
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0].ID, "replacement keeps listing position")
}

func TestPut_SameTextIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, err := s.Put(ctx, item("a", "", 1, 2))
	require.NoError(t, err)
	_, _, err = s.Put(ctx, item("a", "", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count())
	got, _ := s.Get(ctx, "a")
	assert.Equal(t, []float32{1, 2}, got.Embedding)
}

func TestPut_DimensionMismatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, err := s.Put(ctx, item("a", "", 1, 0, 0))
	require.NoError(t, err)
	_, _, err = s.Put(ctx, item("b", "", 0, 1, 0))
	require.NoError(t, err)

	_, _, err = s.Put(ctx, item("c", "", 1, 0))
	assert.True(t, errors.IsDimensionMismatch(err))
	// Replacing one of several records with a different dimensionality is also rejected.
	_, _, err = s.Put(ctx, item("a", "", 1, 0))
	assert.True(t, errors.IsDimensionMismatch(err))

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 3, s.Dimensions())
	got, _ := s.Get(ctx, "a")
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	_, err = s.Get(ctx, "c")
	assert.True(t, errors.IsNotFound(err))
}

func TestPut_OnlyRecordMayChangeDimensions(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, err := s.Put(ctx, item("a", "", 1, 0, 0))
	require.NoError(t, err)
	_, _, err = s.Put(ctx, item("a", "", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Dimensions())

	matches, err := s.Nearest(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestPut_InvalidInput(t *testing.T) {
	s := New()
	_, _, err := s.Put(context.Background(), item("", "", 1))
	assert.True(t, errors.IsInvalidArgument(err))
	_, _, err = s.Put(context.Background(), item("x", ""))
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Zero(t, s.Count())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.Put(ctx, item("a", "", 1, 0))
	_, _, _ = s.Put(ctx, item("b", "", 0, 1))

	before := s.Stats().TotalItems
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, before-1, s.Stats().TotalItems)
	_, err := s.Get(ctx, "a")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.Delete(ctx, "a")))
}

func TestDelete_EmptyStoreResetsDimensions(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.Put(ctx, item("a", "", 1, 0, 0))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Zero(t, s.Dimensions())

	_, _, err := s.Put(ctx, item("b", "", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Dimensions())
}

func TestList_FilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, cat := range []string{"Phones", "Laptops", "smartphones", "", "Phones"} {
		_, _, err := s.Put(ctx, item(fmt.Sprintf("i%d", i), cat, 1, float32(i)))
		require.NoError(t, err)
	}

	items, total := s.List(models.ListFilter{Category: "PHONE"})
	assert.Equal(t, 3, total)
	ids := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"i0", "i2", "i4"}, ids)

	items, total = s.List(models.ListFilter{Limit: 2, Offset: 1})
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "i1", items[0].ID)

	items, total = s.List(models.ListFilter{Offset: 10})
	assert.Equal(t, 5, total)
	assert.Empty(t, items)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.Put(ctx, item("a", "Phones", 1, 0))
	_, _, _ = s.Put(ctx, item("b", "Phones", 0, 1))
	_, _, _ = s.Put(ctx, item("c", "", 1, 1))

	stats := s.Stats()
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.Dimensions)
	assert.Equal(t, map[string]int{"Phones": 2, models.UncategorizedLabel: 1}, stats.Categories)
	assert.Equal(t, "memory", stats.IndexType)
}

func TestSimilarTo(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.Put(ctx, item("a1", "", 1, 0.1, 0))
	_, _, _ = s.Put(ctx, item("a2", "", 1, 0.2, 0))
	_, _, _ = s.Put(ctx, item("a3", "", 0.8, 0.5, 0))
	_, _, _ = s.Put(ctx, item("far", "", 0, 0, 1))

	base, matches, err := s.SimilarTo(ctx, "a1", 2, true)
	require.NoError(t, err)
	assert.Equal(t, "a1", base.ID)
	require.Len(t, matches, 2)
	assert.Equal(t, "a2", matches[0].Item.ID)
	assert.Equal(t, "a3", matches[1].Item.ID)

	_, matches, err = s.SimilarTo(ctx, "a1", 1, false)
	require.NoError(t, err)
	assert.Equal(t, "a1", matches[0].Item.ID)

	_, _, err = s.SimilarTo(ctx, "missing", 2, true)
	assert.True(t, errors.IsNotFound(err))
}

func TestNearest(t *testing.T) {
	ctx := context.Background()
	s := New(WithIndex("hnsw", vector.Options{}))
	matches, err := s.Nearest(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, _, _ = s.Put(ctx, item("a", "x", 1, 0))
	_, _, _ = s.Put(ctx, item("b", "y", 0, 1))

	matches, err = s.Nearest(ctx, []float32{1, 0}, 3, func(it *models.Item) bool { return it.Category == "y" })
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Item.ID)

	_, err = s.Nearest(ctx, []float32{1, 0, 0}, 3, nil)
	assert.True(t, errors.IsDimensionMismatch(err))
}

func TestPut_ReAddWithHNSWIndex(t *testing.T) {
	ctx := context.Background()
	s := New(WithIndex("hnsw", vector.Options{Oversample: 1}))

	_, _, err := s.Put(ctx, item("a", "x", 1, 0))
	require.NoError(t, err)
	_, created, err := s.Put(ctx, item("a", "x", 0, 1))
	require.NoError(t, err)
	assert.False(t, created)
	_, _, err = s.Put(ctx, item("b", "y", 1, 1))
	require.NoError(t, err)
	_, _, err = s.Put(ctx, item("c", "y", 1, 0))
	require.NoError(t, err)

	matches, err := s.Nearest(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Item.ID)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "c"))
	_, _, err = s.Put(ctx, item("d", "y", 0, 1))
	require.NoError(t, err)

	_, matches, err = s.SimilarTo(ctx, "d", 1, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Item.ID)
}

func TestPersistenceFailureKeepsInMemoryChange(t *testing.T) {
	ctx := context.Background()
	p := newFailingPersistence()
	p.err = stderrors.New("disk full")
	s := New(WithPersistence(p))

	stored, created, err := s.Put(ctx, item("a", "", 1, 0))
	assert.True(t, errors.IsPersistenceFailure(err))
	assert.True(t, created)
	assert.Equal(t, "a", stored.ID)
	assert.Equal(t, 1, s.Count())

	assert.True(t, errors.IsPersistenceFailure(s.Delete(ctx, "a")))
	assert.Zero(t, s.Count())
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()
	p, err := storage.NewSQLiteStorage(storage.DriverPureGo, filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)

	s := New(WithPersistence(p))
	_, _, err = s.Put(ctx, item("b", "x", 1, 0))
	require.NoError(t, err)
	_, _, err = s.Put(ctx, item("a", "y", 0, 1))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "b"))
	_, _, err = s.Put(ctx, item("c", "y", 1, 1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	p, err = storage.NewSQLiteStorage(storage.DriverPureGo, p.Path())
	require.NoError(t, err)
	restored := New(WithPersistence(p))
	defer restored.Close()
	n, err := restored.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, restored.Dimensions())

	items, _ := restored.List(models.ListFilter{})
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "c", items[1].ID)

	matches, err := restored.Nearest(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", matches[0].Item.ID)
}

func TestHydrate_InconsistentDimensions(t *testing.T) {
	ctx := context.Background()
	p := newFailingPersistence()
	require.NoError(t, p.SaveItem(ctx, item("a", "", 1, 0)))
	require.NoError(t, p.SaveItem(ctx, item("b", "", 1, 0, 0)))

	s := New(WithPersistence(p))
	_, err := s.Hydrate(ctx)
	assert.True(t, errors.IsDimensionMismatch(err))
	assert.Zero(t, s.Count())
}

func TestReplaceEmbeddings(t *testing.T) {
	ctx := context.Background()
	p := newFailingPersistence()
	s := New(WithPersistence(p))
	_, _, _ = s.Put(ctx, item("a", "", 1, 0))
	_, _, _ = s.Put(ctx, item("b", "", 0, 1))

	var refresh []Refresh
	for _, it := range s.Snapshot() {
		refresh = append(refresh, Refresh{ID: it.ID, Embedding: []float32{1, 1, 1}, UpdatedAt: it.UpdatedAt})
	}
	n, err := s.ReplaceEmbeddings(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, s.Dimensions())
	assert.Len(t, p.saved["a"].Embedding, 3)

	// A partial refresh that would mix dimensionalities is rejected as a whole.
	_, err = s.ReplaceEmbeddings(ctx, []Refresh{{ID: "a", Embedding: []float32{1}, UpdatedAt: refresh[0].UpdatedAt}})
	assert.True(t, errors.IsDimensionMismatch(err))
	got, _ := s.Get(ctx, "a")
	assert.Len(t, got.Embedding, 3)
}

func TestReplaceEmbeddings_SkipsModifiedItems(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.Put(ctx, item("a", "", 1, 0))
	snapshot := s.Snapshot()
	time.Sleep(time.Millisecond)
	_, _, _ = s.Put(ctx, item("a", "", 0, 1))

	n, err := s.ReplaceEmbeddings(ctx, []Refresh{{ID: "a", Embedding: []float32{5, 5}, UpdatedAt: snapshot[0].UpdatedAt}})
	require.NoError(t, err)
	assert.Zero(t, n)
	got, _ := s.Get(ctx, "a")
	assert.Equal(t, []float32{0, 1}, got.Embedding)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, _, _ = s.Put(ctx, item(id, "", 1, float32(i)))
				_, _ = s.Nearest(ctx, []float32{1, 0}, 5, nil)
				if i%3 == 0 {
					_ = s.Delete(ctx, id)
				}
			}
		}(w)
	}
	wg.Wait()
	items, total := s.List(models.ListFilter{})
	assert.Equal(t, len(items), total)
	assert.Equal(t, s.Count(), total)
}
