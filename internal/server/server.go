// Package server provides the HTTP API for suisen.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/config"
	"github.com/hyperjump/suisen/internal/models"
)

const requestIDHeader = "X-Request-ID"

// Recommender is the set of operations the API exposes. recommend.Service implements it.
type Recommender interface {
	AddItem(ctx context.Context, input models.ItemInput) (*models.AddResult, error)
	GetItem(ctx context.Context, id string) (*models.ItemMetadata, error)
	Recommend(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error)
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	ListItems(ctx context.Context, filter models.ListFilter) (*models.ListResponse, error)
	DeleteItem(ctx context.Context, id string) (*models.DeleteResult, error)
	GetStats(ctx context.Context) (*models.Stats, error)
	Reindex(ctx context.Context) (*models.ReindexResult, error)
}

// Server is the HTTP server for the suisen API.
type Server struct {
	svc          Recommender
	config       *config.ServerConfig
	databasePath string
	logger       *zap.Logger
	server       *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDatabasePath makes /api/v1/status report the database size on disk.
func WithDatabasePath(path string) Option {
	return func(s *Server) { s.databasePath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Recommender, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := 60 * time.Second
	if s.config != nil && s.config.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(s.config.RequestTimeoutSeconds) * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/items", s.handleAddItem)
		r.Get("/items", s.handleListItems)
		r.Get("/items/{id}", s.handleGetItem)
		r.Delete("/items/{id}", s.handleDeleteItem)
		r.Get("/items/{id}/recommendations", s.handleRecommend)
		r.Post("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
		r.Post("/reindex", s.handleReindex)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestID propagates the caller's X-Request-ID or assigns a new one, and stores it where
// chi's logger looks for it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
