// Package storage persists items so the in-memory store survives restarts.
package storage

import (
	"context"

	"github.com/hyperjump/suisen/internal/models"
)

// Persistence is the durable side of the item store. The store calls it on every mutation
// and once at startup to hydrate.
type Persistence interface {
	// LoadItems returns every persisted item in first-insertion order.
	LoadItems(ctx context.Context) ([]*models.Item, error)
	// SaveItem inserts or replaces an item. A replaced item keeps its listing position.
	SaveItem(ctx context.Context, item *models.Item) error
	// SaveItems replaces a batch of items in one transaction.
	SaveItems(ctx context.Context, items []*models.Item) error
	DeleteItem(ctx context.Context, id string) error
	CountItems(ctx context.Context) (int64, error)
	Close() error
}

// Driver names accepted by NewSQLiteStorage.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
	// DriverMemory disables persistence.
	DriverMemory = "memory"
)

// SupportedDrivers lists the accepted storage driver names.
func SupportedDrivers() []string {
	return []string{DriverCGO, DriverPureGo, DriverMemory}
}
