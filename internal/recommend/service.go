// Package recommend implements the recommendation operations on top of the item store and an embedder.
package recommend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/embedding"
	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/internal/store"
	"github.com/hyperjump/suisen/pkg/errors"
)

// Service is the entry point for adding, retrieving, and ranking items.
// Embedding always happens before the store lock is taken.
type Service struct {
	store            *store.ItemStore
	embedder         embedding.Embedder
	backend          string
	defaultTopK      int
	maxTopK          int
	defaultListLimit int
	logger           *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits sets the default and maximum top_k and the default list page size. Non-positive values keep the defaults.
func WithLimits(defaultTopK, maxTopK, defaultListLimit int) Option {
	return func(s *Service) {
		if defaultTopK > 0 {
			s.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			s.maxTopK = maxTopK
		}
		if defaultListLimit > 0 {
			s.defaultListLimit = defaultListLimit
		}
	}
}

// WithBackendName sets the embedding backend name reported by GetStats.
func WithBackendName(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

// NewService creates a recommendation service over st using embedder for text.
func NewService(st *store.ItemStore, embedder embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		store:            st,
		embedder:         embedder,
		defaultTopK:      models.DefaultTopK,
		maxTopK:          models.DefaultMaxTopK,
		defaultListLimit: models.DefaultListLimit,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem embeds title and description and inserts or replaces the item.
func (s *Service) AddItem(ctx context.Context, input models.ItemInput) (*models.AddResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	vec, err := s.embed(ctx, models.EmbeddingText(input.Title, input.Description))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailure, "embed item", errors.FieldItemID(input.ID))
	}

	stored, created, err := s.store.Put(ctx, &models.Item{
		ID:          input.ID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Tags:        input.Tags,
		Embedding:   vec,
	})
	if err != nil {
		return nil, err
	}

	status := models.StatusUpdated
	if created {
		status = models.StatusAdded
	}
	s.logger.Debug("item added", zap.String("item_id", input.ID), zap.String("status", string(status)))
	return &models.AddResult{Status: status, Item: stored.Metadata()}, nil
}

// GetItem returns the metadata of one item.
func (s *Service) GetItem(ctx context.Context, id string) (*models.ItemMetadata, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := item.Metadata()
	return &meta, nil
}

// Recommend ranks the store against the stored embedding of req.ID.
func (s *Service) Recommend(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error) {
	k, err := models.ResolveTopK(req.TopK, s.defaultTopK, s.maxTopK)
	if err != nil {
		return nil, err
	}
	base, matches, err := s.store.SimilarTo(ctx, req.ID, k, req.ExcludeSelfOrDefault())
	if err != nil {
		return nil, err
	}
	return &models.RecommendResponse{
		Base:            base.Metadata(),
		Recommendations: scored(matches),
		TopK:            k,
	}, nil
}

// Search embeds the query and ranks the store, optionally restricted to a category.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	k, err := models.ResolveTopK(req.TopK, s.defaultTopK, s.maxTopK)
	if err != nil {
		return nil, err
	}
	vec, err := s.embed(ctx, req.Query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailure, "embed query")
	}

	var accept func(*models.Item) bool
	if req.Category != "" {
		accept = func(item *models.Item) bool { return store.MatchesCategory(item, req.Category) }
	}
	matches, err := s.store.Nearest(ctx, vec, k, accept)
	if err != nil {
		return nil, err
	}
	results := scored(matches)
	return &models.SearchResponse{
		Query:     req.Query,
		Category:  req.Category,
		Results:   results,
		Count:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// ListItems returns one page of items in insertion order.
func (s *Service) ListItems(ctx context.Context, filter models.ListFilter) (*models.ListResponse, error) {
	if err := filter.Validate(s.defaultListLimit); err != nil {
		return nil, err
	}
	items, total := s.store.List(filter)
	out := make([]models.ItemMetadata, len(items))
	for i, item := range items {
		out[i] = item.Metadata()
	}
	return &models.ListResponse{
		Items:  out,
		Count:  len(out),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// DeleteItem removes an item.
func (s *Service) DeleteItem(ctx context.Context, id string) (*models.DeleteResult, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &models.DeleteResult{ID: id, Deleted: true}, nil
}

// GetStats summarises the store and reports the index type and embedding backend.
func (s *Service) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := s.store.Stats()
	stats.EmbeddingBackend = s.backend
	return &stats, nil
}

// Reindex recomputes every embedding with the current embedder and swaps them in atomically.
// Items modified while embeddings are computed keep their fresher embedding.
func (s *Service) Reindex(ctx context.Context) (*models.ReindexResult, error) {
	start := time.Now()
	items := s.store.Snapshot()
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = models.EmbeddingText(item.Title, item.Description)
	}

	vecs, err := s.embedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailure, "re-embed items")
	}
	refreshed := make([]store.Refresh, len(items))
	for i, item := range items {
		refreshed[i] = store.Refresh{ID: item.ID, Embedding: vecs[i], UpdatedAt: item.UpdatedAt}
	}

	n, err := s.store.ReplaceEmbeddings(ctx, refreshed)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reindex complete", zap.Int("items", n), zap.Duration("duration", time.Since(start)))
	return &models.ReindexResult{
		Reindexed:  n,
		Dimensions: s.store.Dimensions(),
		Duration:   time.Since(start).Milliseconds(),
	}, nil
}

// EmbedderDimensions returns the dimensionality the embedder produces.
func (s *Service) EmbedderDimensions() int {
	return s.embedder.Dimensions()
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New(errors.CodeEmbeddingFailure, "embedder returned an empty vector")
	}
	return vec, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errors.Errorf(errors.CodeEmbeddingFailure, "embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

func scored(matches []store.Match) []models.ScoredItem {
	out := make([]models.ScoredItem, len(matches))
	for i, m := range matches {
		out[i] = models.ScoredItem{Item: m.Item.Metadata(), Score: m.Score, Rank: i + 1}
	}
	return out
}
