// Package store holds the authoritative id → item mapping and keeps the similarity index in step with it.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/internal/storage"
	"github.com/hyperjump/suisen/internal/vector"
	"github.com/hyperjump/suisen/pkg/errors"
	"github.com/hyperjump/suisen/pkg/utils"
)

// IndexFactory builds an empty vector index for the given dimensionality.
type IndexFactory func(dimensions int) (vector.VectorIndex, error)

// ItemStore is the single shared mutable resource of the engine.
//
// Mutations hold the write lock for the in-memory change and its persistence side effect.
// Reads, including ranking passes, hold the read lock and therefore see one consistent snapshot.
// The dimensionality is fixed by the first record and resets when the store becomes empty.
type ItemStore struct {
	mu        sync.RWMutex
	items     map[string]*models.Item
	order     []string
	dims      int
	index     vector.VectorIndex
	newIndex  IndexFactory
	indexType string
	persist   storage.Persistence
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an ItemStore.
type Option func(*ItemStore)

// WithLogger sets the logger for the store.
func WithLogger(l *zap.Logger) Option {
	return func(s *ItemStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPersistence makes every mutation durable through p. Nil disables persistence.
func WithPersistence(p storage.Persistence) Option {
	return func(s *ItemStore) {
		s.persist = p
	}
}

// WithIndex selects the vector index type built for each dimensionality.
func WithIndex(indexType string, opts vector.Options) Option {
	return func(s *ItemStore) {
		s.indexType = indexType
		s.newIndex = func(dimensions int) (vector.VectorIndex, error) {
			return vector.NewVectorIndex(indexType, dimensions, opts)
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ItemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty item store. Call Hydrate to load persisted items.
func New(opts ...Option) *ItemStore {
	s := &ItemStore{
		items:     make(map[string]*models.Item),
		indexType: string(vector.IndexTypeMemory),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	WithIndex(string(vector.IndexTypeMemory), vector.Options{})(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Match is a ranked item.
type Match struct {
	Item  *models.Item
	Score float64
}

// Put inserts item or fully replaces the record with the same id and reports whether it was created.
// A replacement keeps the original CreatedAt and listing position. A rejected put leaves the store
// unchanged. A persistence failure is returned as PersistenceFailure while the in-memory change stands.
func (s *ItemStore) Put(ctx context.Context, item *models.Item) (*models.Item, bool, error) {
	if item == nil || item.ID == "" {
		return nil, false, errors.New(errors.CodeInvalidArgument, "item id cannot be empty")
	}
	dims := len(item.Embedding)
	if dims == 0 {
		return nil, false, errors.New(errors.CodeInvalidArgument, "item embedding cannot be empty", errors.FieldItemID(item.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, replacing := s.items[item.ID]
	others := len(s.items)
	if replacing {
		others--
	}
	if others > 0 && dims != s.dims {
		return nil, false, errors.New(errors.CodeDimensionMismatch, "embedding dimensionality differs from the store",
			errors.FieldItemID(item.ID), errors.Field("dimensions", dims), errors.Field("expected", s.dims))
	}

	// Only the record being replaced may hold the old dimensionality, so a fresh index is correct.
	if s.index == nil || s.index.Dimensions() != dims {
		idx, err := s.newIndex(dims)
		if err != nil {
			return nil, false, errors.Wrap(err, errors.CodeInvalidArgument, "create vector index", errors.Field("dimensions", dims))
		}
		if s.index != nil {
			_ = s.index.Close()
		}
		s.index = idx
	}
	if err := s.index.Upsert(ctx, item.ID, item.Embedding); err != nil {
		return nil, false, err
	}

	stored := item.Clone()
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if replacing {
		stored.CreatedAt = existing.CreatedAt
	} else {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = stored
	s.dims = dims

	s.logger.Debug("item stored", zap.String("item_id", item.ID), zap.Int("dimensions", dims), zap.Bool("created", !replacing))

	if s.persist != nil {
		if err := s.persist.SaveItem(ctx, stored); err != nil {
			s.logger.Warn("failed to persist item", zap.String("item_id", item.ID), zap.Error(err))
			return stored.Clone(), !replacing, errors.Wrap(err, errors.CodePersistenceFailure, "persist item", errors.FieldItemID(item.ID))
		}
	}
	return stored.Clone(), !replacing, nil
}

// Get returns a copy of the item with the given id.
func (s *ItemStore) Get(ctx context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return item.Clone(), nil
}

// Delete removes the item with the given id. Deleting a missing id is NotFound.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return notFound(id)
	}
	delete(s.items, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	if s.index != nil {
		_ = s.index.Remove(ctx, id)
	}
	if len(s.items) == 0 {
		s.resetIndex()
	}

	s.logger.Debug("item deleted", zap.String("item_id", id))

	if s.persist != nil {
		if err := s.persist.DeleteItem(ctx, id); err != nil {
			s.logger.Warn("failed to delete persisted item", zap.String("item_id", id), zap.Error(err))
			return errors.Wrap(err, errors.CodePersistenceFailure, "delete persisted item", errors.FieldItemID(id))
		}
	}
	return nil
}

// List returns copies of the items matching filter in insertion order, paged by filter.Offset and
// filter.Limit (zero limit means no limit), plus the number of matches before paging.
func (s *ItemStore) List(filter models.ListFilter) ([]*models.Item, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Item
	for _, id := range s.order {
		item := s.items[id]
		if MatchesCategory(item, filter.Category) {
			matched = append(matched, item)
		}
	}
	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	out := make([]*models.Item, 0, end-start)
	for _, item := range matched[start:end] {
		out = append(out, item.Clone())
	}
	return out, total
}

// MatchesCategory reports whether item's category contains category, ignoring case.
// An empty category matches everything.
func MatchesCategory(item *models.Item, category string) bool {
	return category == "" || utils.ContainsFold(item.Category, category)
}

// Snapshot returns copies of every item in insertion order.
func (s *ItemStore) Snapshot() []*models.Item {
	items, _ := s.List(models.ListFilter{})
	return items
}

// Count returns the number of items.
func (s *ItemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Dimensions returns the current dimensionality, or 0 when the store is empty.
func (s *ItemStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// IndexType returns the configured vector index type.
func (s *ItemStore) IndexType() string {
	return s.indexType
}

// Stats returns item counts per category and the dimensionality.
func (s *ItemStore) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make(map[string]int)
	for _, item := range s.items {
		label := item.Category
		if label == "" {
			label = models.UncategorizedLabel
		}
		categories[label]++
	}
	return models.Stats{
		TotalItems: len(s.items),
		Categories: categories,
		Dimensions: s.dims,
		IndexType:  s.indexType,
	}
}

// Nearest ranks the items accepted by accept (all when nil) against query and returns the top k.
func (s *ItemStore) Nearest(ctx context.Context, query []float32, k int, accept func(*models.Item) bool) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nearestLocked(ctx, query, k, accept)
}

// SimilarTo ranks the store against the stored embedding of id within one snapshot and returns the base
// item with its matches. The base item is left out of the candidates when excludeSelf is set.
func (s *ItemStore) SimilarTo(ctx context.Context, id string, k int, excludeSelf bool) (*models.Item, []Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	base, ok := s.items[id]
	if !ok {
		return nil, nil, notFound(id)
	}
	var accept func(*models.Item) bool
	if excludeSelf {
		accept = func(item *models.Item) bool { return item.ID != id }
	}
	matches, err := s.nearestLocked(ctx, base.Embedding, k, accept)
	if err != nil {
		return nil, nil, err
	}
	return base.Clone(), matches, nil
}

func (s *ItemStore) nearestLocked(ctx context.Context, query []float32, k int, accept func(*models.Item) bool) ([]Match, error) {
	if s.index == nil || len(s.items) == 0 {
		return []Match{}, nil
	}
	if len(query) != s.dims {
		return nil, errors.New(errors.CodeDimensionMismatch, "query dimensionality differs from the store",
			errors.Field("dimensions", len(query)), errors.Field("expected", s.dims))
	}
	var acceptID func(string) bool
	if accept != nil {
		acceptID = func(id string) bool {
			item, ok := s.items[id]
			return ok && accept(item)
		}
	}
	results, err := s.index.Search(ctx, query, k, acceptID)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		item, ok := s.items[r.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Item: item.Clone(), Score: r.Score})
	}
	return matches, nil
}

// Hydrate replaces the store's contents with the persisted items. Items keep their timestamps.
// All persisted items must share one dimensionality.
func (s *ItemStore) Hydrate(ctx context.Context) (int, error) {
	if s.persist == nil {
		return 0, nil
	}
	items, err := s.persist.LoadItems(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodePersistenceFailure, "load persisted items")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rebuildLocked(ctx, items); err != nil {
		return 0, err
	}
	s.logger.Info("store hydrated", zap.Int("items", len(items)), zap.Int("dimensions", s.dims))
	return len(items), nil
}

// Refresh describes a re-embedded item. UpdatedAt is the item's UpdatedAt when its text was read;
// records modified since then are left alone.
type Refresh struct {
	ID        string
	Embedding []float32
	UpdatedAt time.Time
}

// ReplaceEmbeddings atomically swaps in new embeddings, which may use a new dimensionality.
// It fails with DimensionMismatch, leaving the store unchanged, if the result would mix dimensionalities.
func (s *ItemStore) ReplaceEmbeddings(ctx context.Context, refreshed []Refresh) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*models.Item, 0, len(s.order))
	var changed []*models.Item
	byID := make(map[string]Refresh, len(refreshed))
	for _, r := range refreshed {
		byID[r.ID] = r
	}
	for _, id := range s.order {
		item := s.items[id]
		r, ok := byID[id]
		if !ok || !r.UpdatedAt.Equal(item.UpdatedAt) {
			next = append(next, item)
			continue
		}
		c := item.Clone()
		c.Embedding = append([]float32(nil), r.Embedding...)
		next = append(next, c)
		changed = append(changed, c)
	}
	if err := s.rebuildLocked(ctx, next); err != nil {
		return 0, err
	}
	s.logger.Info("embeddings replaced", zap.Int("items", len(changed)), zap.Int("dimensions", s.dims))

	if s.persist != nil && len(changed) > 0 {
		if err := s.persist.SaveItems(ctx, changed); err != nil {
			s.logger.Warn("failed to persist re-embedded items", zap.Error(err))
			return len(changed), errors.Wrap(err, errors.CodePersistenceFailure, "persist re-embedded items")
		}
	}
	return len(changed), nil
}

// rebuildLocked replaces every record and the index. On error the store is unchanged.
func (s *ItemStore) rebuildLocked(ctx context.Context, items []*models.Item) error {
	dims := 0
	if len(items) > 0 {
		dims = len(items[0].Embedding)
	}
	var idx vector.VectorIndex
	if dims > 0 {
		var err error
		if idx, err = s.newIndex(dims); err != nil {
			return errors.Wrap(err, errors.CodeInvalidArgument, "create vector index", errors.Field("dimensions", dims))
		}
	}
	byID := make(map[string]*models.Item, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if len(item.Embedding) != dims || dims == 0 {
			if idx != nil {
				_ = idx.Close()
			}
			return errors.New(errors.CodeDimensionMismatch, "items have inconsistent dimensionality",
				errors.FieldItemID(item.ID), errors.Field("dimensions", len(item.Embedding)), errors.Field("expected", dims))
		}
		if err := idx.Upsert(ctx, item.ID, item.Embedding); err != nil {
			_ = idx.Close()
			return err
		}
		if _, dup := byID[item.ID]; !dup {
			order = append(order, item.ID)
		}
		byID[item.ID] = item
	}

	if s.index != nil {
		_ = s.index.Close()
	}
	s.items = byID
	s.order = order
	s.index = idx
	s.dims = dims
	return nil
}

func (s *ItemStore) resetIndex() {
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = nil
	s.dims = 0
}

// Close releases the index and the persistence collaborator.
func (s *ItemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIndex()
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.CodeNotFound, "item not found: "+id, errors.FieldItemID(id))
}
