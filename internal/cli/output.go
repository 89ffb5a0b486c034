// Package cli formats command results for the suisen CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/suisen/internal/catalog"
	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const descriptionWidth = 120

var (
	heading = color.New(color.FgCyan, color.Bold)
	dim     = color.New(color.Faint)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// write writes v as indented JSON when format is OutputJSON, else calls text.
func write(w io.Writer, format OutputFormat, v any, text func()) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

// WriteAddResult writes the outcome of an add.
func WriteAddResult(w io.Writer, res *models.AddResult, format OutputFormat) error {
	return write(w, format, res, func() {
		success.Fprintf(w, "Item %s: %s\n", res.Status, res.Item.ID)
		writeItem(w, &res.Item)
	})
}

// WriteItem writes one item's metadata.
func WriteItem(w io.Writer, item *models.ItemMetadata, format OutputFormat) error {
	return write(w, format, item, func() { writeItem(w, item) })
}

func writeItem(w io.Writer, item *models.ItemMetadata) {
	heading.Fprintf(w, "%s\n", item.Title)
	fmt.Fprintf(w, "ID: %s\n", item.ID)
	if item.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", item.Category)
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(item.Tags, ", "))
	}
	fmt.Fprintf(w, "%s\n", utils.Truncate(item.Description, descriptionWidth))
	dim.Fprintf(w, "dimensions %d, updated %s\n", item.Dimensions, item.UpdatedAt.Format("2006-01-02 15:04:05"))
}

// WriteRecommendations writes a recommendation response.
func WriteRecommendations(w io.Writer, res *models.RecommendResponse, format OutputFormat) error {
	return write(w, format, res, func() {
		fmt.Fprintf(w, "\nItems similar to %s (%s), top %d\n\n", res.Base.ID, res.Base.Title, res.TopK)
		writeScored(w, res.Recommendations)
	})
}

// WriteSearchResults writes a search response.
func WriteSearchResults(w io.Writer, res *models.SearchResponse, format OutputFormat) error {
	return write(w, format, res, func() {
		fmt.Fprintf(w, "\nFound %d results for %q in %dms", res.Count, res.Query, res.QueryTime)
		if res.Category != "" {
			fmt.Fprintf(w, " (category %q)", res.Category)
		}
		fmt.Fprint(w, "\n\n")
		writeScored(w, res.Results)
	})
}

func writeScored(w io.Writer, results []models.ScoredItem) {
	if len(results) == 0 {
		dim.Fprintln(w, "No results.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		heading.Fprintf(w, "Rank: %d | Similarity: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "ID: %s\n", r.Item.ID)
		fmt.Fprintf(w, "Title: %s\n", r.Item.Title)
		if r.Item.Category != "" {
			fmt.Fprintf(w, "Category: %s\n", r.Item.Category)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Item.Description, descriptionWidth))
	}
}

// WriteList writes one page of items as a table.
func WriteList(w io.Writer, res *models.ListResponse, format OutputFormat) error {
	return write(w, format, res, func() {
		fmt.Fprintf(w, "Showing %d of %d items (offset %d)\n\n", res.Count, res.Total, res.Offset)
		for _, item := range res.Items {
			category := item.Category
			if category == "" {
				category = "-"
			}
			fmt.Fprintf(w, "%-20s  %-20s  %s\n", utils.Truncate(item.ID, 20), utils.Truncate(category, 20), item.Title)
		}
	})
}

// WriteStats writes the store summary. Categories are listed by count, then name.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	return write(w, format, stats, func() {
		heading.Fprintln(w, "Suisen status")
		fmt.Fprintf(w, "Items:             %d\n", stats.TotalItems)
		fmt.Fprintf(w, "Dimensions:        %d\n", stats.Dimensions)
		fmt.Fprintf(w, "Index type:        %s\n", stats.IndexType)
		fmt.Fprintf(w, "Embedding backend: %s\n", stats.EmbeddingBackend)
		if len(stats.Categories) == 0 {
			return
		}
		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := stats.Categories[names[i]], stats.Categories[names[j]]
			if ci != cj {
				return ci > cj
			}
			return names[i] < names[j]
		})
		fmt.Fprintln(w, "Categories:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-24s %d\n", name, stats.Categories[name])
		}
	})
}

// WriteDeleteResult confirms a deletion.
func WriteDeleteResult(w io.Writer, res *models.DeleteResult, format OutputFormat) error {
	return write(w, format, res, func() {
		success.Fprintf(w, "Item deleted: %s\n", res.ID)
	})
}

// WriteReindexResult summarises a reindex.
func WriteReindexResult(w io.Writer, res *models.ReindexResult, format OutputFormat) error {
	return write(w, format, res, func() {
		success.Fprintf(w, "Reindexed %d items (%d dimensions) in %dms\n", res.Reindexed, res.Dimensions, res.Duration)
	})
}

// WriteImportReports summarises catalog imports, listing every rejected entry.
func WriteImportReports(w io.Writer, reports []*catalog.Report, format OutputFormat) error {
	return write(w, format, reports, func() {
		for _, r := range reports {
			fmt.Fprintf(w, "%s: %d added, %d updated", r.Path, r.Added, r.Updated)
			if r.Failed > 0 {
				failure.Fprintf(w, ", %d failed", r.Failed)
			}
			fmt.Fprintf(w, " (%dms)\n", r.Duration)
			for _, e := range r.Errors {
				failure.Fprintf(w, "  %s\n", e.Error())
			}
		}
	})
}
