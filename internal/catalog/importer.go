package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/models"
)

// ItemAdder adds one item. The recommendation service and the HTTP client both satisfy it.
type ItemAdder interface {
	AddItem(ctx context.Context, input models.ItemInput) (*models.AddResult, error)
}

// EntryError records why one catalog entry was rejected.
type EntryError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}

func (e EntryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("entry %d: %s", e.Index, e.Err)
	}
	return fmt.Sprintf("entry %d (%s): %s", e.Index, e.ID, e.Err)
}

// Report summarises one import.
type Report struct {
	Path     string       `json:"path"`
	Added    int          `json:"added"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Errors   []EntryError `json:"errors,omitempty"`
	Duration int64        `json:"duration_ms"`
}

// Total is the number of entries processed.
func (r *Report) Total() int {
	return r.Added + r.Updated + r.Failed
}

// Importer loads catalogs and adds their entries one by one.
type Importer struct {
	adder  ItemAdder
	logger *zap.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithImportLogger sets the importer's logger.
func WithImportLogger(l *zap.Logger) ImporterOption {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewImporter returns an importer that adds entries through adder.
func NewImporter(adder ItemAdder, opts ...ImporterOption) *Importer {
	i := &Importer{adder: adder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import loads the catalog at path and adds every entry. A rejected entry is counted and
// reported without stopping the rest. The returned error is only set when the file cannot
// be loaded or ctx is cancelled.
func (i *Importer) Import(ctx context.Context, path string) (*Report, error) {
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	return i.ImportEntries(ctx, path, entries)
}

// ImportEntries adds already loaded entries; path is only used for reporting.
func (i *Importer) ImportEntries(ctx context.Context, path string, entries []models.ItemInput) (*Report, error) {
	start := time.Now()
	report := &Report{Path: path}
	for n, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start).Milliseconds()
			return report, err
		}
		res, err := i.adder.AddItem(ctx, entry)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, EntryError{Index: n, ID: entry.ID, Err: err.Error()})
			i.logger.Warn("catalog entry rejected", zap.String("path", path), zap.Int("index", n), zap.String("item_id", entry.ID), zap.Error(err))
			continue
		}
		if res.Status == models.StatusAdded {
			report.Added++
		} else {
			report.Updated++
		}
	}
	report.Duration = time.Since(start).Milliseconds()
	i.logger.Info("catalog imported",
		zap.String("path", path),
		zap.Int("added", report.Added),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed))
	return report, nil
}

// ImportPaths imports every catalog file under paths (see Files). Paths that cannot be read
// are logged and skipped.
func (i *Importer) ImportPaths(ctx context.Context, paths []string) ([]*Report, error) {
	var reports []*Report
	for _, p := range paths {
		files, err := Files(p)
		if err != nil {
			i.logger.Warn("catalog path skipped", zap.String("path", p), zap.Error(err))
			continue
		}
		for _, f := range files {
			report, err := i.Import(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return reports, ctx.Err()
				}
				i.logger.Warn("catalog skipped", zap.String("path", f), zap.Error(err))
				continue
			}
			reports = append(reports, report)
		}
	}
	return reports, nil
}
