package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/suisen/internal/models"
)

// SQLiteStorage implements Persistence using SQLite through either the cgo or the pure Go driver.
type SQLiteStorage struct {
	db     *sql.DB
	driver string
	path   string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. dbPath ":memory:" opens a private
// in-memory database.
func NewSQLiteStorage(driver, dbPath string) (*SQLiteStorage, error) {
	switch driver {
	case DriverCGO, DriverPureGo:
	case "":
		driver = DriverCGO
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The item store serialises writes itself; one connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, driver: driver, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		dimensions INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_seq ON items(seq);
	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
	`
	_, err := db.Exec(schema)
	return err
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStorage) Driver() string {
	return s.driver
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

const upsertItem = `
	INSERT INTO items (id, seq, title, description, category, tags, dimensions, embedding, created_at, updated_at)
	VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM items), ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		category = excluded.category,
		tags = excluded.tags,
		dimensions = excluded.dimensions,
		embedding = excluded.embedding,
		updated_at = excluded.updated_at`

// SaveItem inserts or replaces an item.
func (s *SQLiteStorage) SaveItem(ctx context.Context, item *models.Item) error {
	args, err := itemArgs(item)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertItem, args...); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}
	return nil
}

// SaveItems replaces multiple items in a transaction.
func (s *SQLiteStorage) SaveItems(ctx context.Context, items []*models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertItem)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		args, err := itemArgs(item)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func itemArgs(item *models.Item) ([]any, error) {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return []any{
		item.ID, item.Title, item.Description, item.Category, string(tagsJSON),
		len(item.Embedding), EncodeEmbedding(item.Embedding),
		item.CreatedAt.UnixNano(), item.UpdatedAt.UnixNano(),
	}, nil
}

// LoadItems returns all items ordered by first insertion.
func (s *SQLiteStorage) LoadItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, category, tags, dimensions, embedding, created_at, updated_at
		 FROM items ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var item models.Item
		var tagsJSON string
		var dims int
		var blob []byte
		var created, updated int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &tagsJSON, &dims, &blob, &created, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags of %s: %w", item.ID, err)
		}
		if len(item.Tags) == 0 {
			item.Tags = nil
		}
		item.Embedding, err = DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		if len(item.Embedding) != dims {
			return nil, fmt.Errorf("item %s: stored dimensions %d, embedding has %d", item.ID, dims, len(item.Embedding))
		}
		item.CreatedAt = time.Unix(0, created)
		item.UpdatedAt = time.Unix(0, updated)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// DeleteItem removes an item. Deleting a missing id is not an error here; the store reports it.
func (s *SQLiteStorage) DeleteItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	return err
}

// CountItems returns the number of persisted items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
