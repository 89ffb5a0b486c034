package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/hyperjump/suisen/internal/catalog"
	"github.com/hyperjump/suisen/internal/models"
)

func init() {
	color.NoColor = true
}

func sampleItem(id, title, category string) models.ItemMetadata {
	return models.ItemMetadata{
		ID:          id,
		Title:       title,
		Description: "Apple device " + id,
		Category:    category,
		Dimensions:  384,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteRecommendations(t *testing.T) {
	res := &models.RecommendResponse{
		Base: sampleItem("a1", "iPhone 15 Pro", "Smartphones"),
		Recommendations: []models.ScoredItem{
			{Item: sampleItem("a3", "iPad Pro", "Tablets"), Score: 0.81234567, Rank: 1},
			{Item: sampleItem("a2", "MacBook Air", "Laptops"), Score: 0.5, Rank: 2},
		},
		TopK: 2,
	}

	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"similar to a1", "Rank: 1 | Similarity: 0.8123", "ID: a3", "Title: MacBook Air", "Category: Laptops"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteRecommendations(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if _, ok := decoded["base_item"]; !ok {
		t.Errorf("JSON missing base_item: %s", buf.String())
	}
	recs := decoded["recommendations"].([]any)
	if first := recs[0].(map[string]any); first["similarity"] == nil {
		t.Errorf("JSON result missing similarity: %v", first)
	}
}

func TestWriteSearchResults_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	res := &models.SearchResponse{Query: "nothing", Category: "Laptops"}
	if err := WriteSearchResults(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 0 results", `"nothing"`, `category "Laptops"`, "No results."} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteList(t *testing.T) {
	res := &models.ListResponse{
		Items:  []models.ItemMetadata{sampleItem("a1", "iPhone", ""), sampleItem("a2", "MacBook", "Laptops")},
		Count:  2,
		Total:  5,
		Limit:  2,
		Offset: 0,
	}
	var buf bytes.Buffer
	if err := WriteList(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Showing 2 of 5 items") || !strings.Contains(out, "Laptops") {
		t.Errorf("unexpected list output:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(lines[len(lines)-2], "-") {
		t.Errorf("uncategorized item should show '-': %q", lines[len(lines)-2])
	}
}

func TestWriteStats_categoryOrder(t *testing.T) {
	stats := &models.Stats{
		TotalItems:       4,
		Categories:       map[string]int{"Tablets": 1, "Laptops": 2, "Audio": 1},
		Dimensions:       384,
		IndexType:        "memory",
		EmbeddingBackend: "hash",
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	laptops := strings.Index(out, "Laptops")
	audio := strings.Index(out, "Audio")
	tablets := strings.Index(out, "Tablets")
	if !(laptops < audio && audio < tablets) {
		t.Errorf("categories not ordered by count then name:\n%s", out)
	}
	if !strings.Contains(out, "Embedding backend: hash") {
		t.Errorf("missing backend:\n%s", out)
	}
}

func TestWriteImportReports(t *testing.T) {
	reports := []*catalog.Report{{
		Path:    "products.yaml",
		Added:   2,
		Updated: 1,
		Failed:  1,
		Errors:  []catalog.EntryError{{Index: 3, Err: "id cannot be empty"}},
	}}
	var buf bytes.Buffer
	if err := WriteImportReports(&buf, reports, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"products.yaml: 2 added, 1 updated", "1 failed", "entry 3: id cannot be empty"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSmallResults(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteDeleteResult(&buf, &models.DeleteResult{ID: "a1", Deleted: true}, OutputText)
	_ = WriteReindexResult(&buf, &models.ReindexResult{Reindexed: 3, Dimensions: 64, Duration: 12}, OutputText)
	item := sampleItem("a1", "iPhone", "Smartphones")
	item.Tags = []string{"apple", "ios"}
	_ = WriteAddResult(&buf, &models.AddResult{Status: models.StatusAdded, Item: item}, OutputText)
	out := buf.String()
	for _, sub := range []string{"Item deleted: a1", "Reindexed 3 items (64 dimensions)", "Item added: a1", "Tags: apple, ios", "dimensions 384"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}
}
