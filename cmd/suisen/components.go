package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/config"
	"github.com/hyperjump/suisen/internal/embedding"
	"github.com/hyperjump/suisen/internal/recommend"
	"github.com/hyperjump/suisen/internal/storage"
	"github.com/hyperjump/suisen/internal/store"
	"github.com/hyperjump/suisen/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Store    *store.ItemStore
	Embedder embedding.Embedder
	Service  *recommend.Service
	Backend  string
}

// Close releases the embedder, the index and the database.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	storeOpts := []store.Option{
		store.WithLogger(logger),
		store.WithIndex(cfg.Index.Type, vector.Options{
			HNSWM:             cfg.Index.HNSWM,
			HNSWEfSearch:      cfg.Index.HNSWEfSearch,
			Oversample:        cfg.Index.Oversample,
			ParallelThreshold: cfg.Index.ParallelThreshold,
		}),
	}
	if cfg.Storage.Driver != storage.DriverMemory {
		db, err := storage.NewSQLiteStorage(cfg.Storage.Driver, cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		storeOpts = append(storeOpts, store.WithPersistence(db))
	}
	st := store.New(storeOpts...)

	loaded, err := st.Hydrate(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	embedder, backend, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	svc := recommend.NewService(st, embedder,
		recommend.WithLogger(logger),
		recommend.WithBackendName(backend),
		recommend.WithLimits(cfg.Recommend.DefaultTopK, cfg.Recommend.MaxTopK, cfg.Recommend.DefaultListLimit),
	)
	c := &Components{Store: st, Embedder: embedder, Service: svc, Backend: backend}

	logger.Info("store initialized",
		zap.Int("items", loaded),
		zap.Int("dimensions", st.Dimensions()),
		zap.String("index_type", st.IndexType()),
		zap.String("driver", cfg.Storage.Driver))

	if loaded > 0 && st.Dimensions() != embedder.Dimensions() {
		if !cfg.Embedding.ReindexOnStartup {
			logger.Warn("stored embeddings do not match the embedder; run reindex",
				zap.Int("stored_dimensions", st.Dimensions()),
				zap.Int("embedder_dimensions", embedder.Dimensions()))
			return c, nil
		}
		res, err := svc.Reindex(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to reindex on startup: %w", err)
		}
		logger.Info("reindexed on startup", zap.Int("items", res.Reindexed), zap.Int("dimensions", res.Dimensions))
	}
	return c, nil
}
