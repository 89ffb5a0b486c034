// Package catalog loads item catalogs from YAML, JSON, CSV and Excel files and imports them into
// the recommendation service.
package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/pkg/errors"
	"github.com/hyperjump/suisen/pkg/utils"
)

// Extensions returns the catalog file extensions Load understands.
func Extensions() []string {
	return []string{".yaml", ".yml", ".json", ".csv", ".xlsx"}
}

// Supported reports whether path has a catalog extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// document is the keyed form of a YAML or JSON catalog: {"items": [...]}.
type document struct {
	Items []models.ItemInput `json:"items" yaml:"items"`
}

// Load reads the catalog at path. The format is chosen by extension.
func Load(path string) ([]models.ItemInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "read catalog", errors.Field("path", path))
	}
	entries, err := LoadBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "load catalog", errors.Field("path", path))
	}
	return entries, nil
}

// LoadBytes parses catalog content. ext includes the leading dot (e.g. ".csv").
// YAML and JSON catalogs are either a list of entries or a mapping with an "items" list.
// CSV and Excel catalogs need a header row naming at least id, title and description.
func LoadBytes(content []byte, ext string) ([]models.ItemInput, error) {
	switch ext {
	case ".yaml", ".yml":
		return loadYAML(content)
	case ".json":
		return loadJSON(content)
	case ".csv":
		return loadCSV(content)
	case ".xlsx":
		return loadExcel(content)
	default:
		return nil, errors.New(errors.CodeCatalogInvalidFormat, "unsupported catalog format", errors.Field("extension", ext))
	}
}

func loadYAML(content []byte) ([]models.ItemInput, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "parse YAML")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []models.ItemInput
		if err := node.Decode(&entries); err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "decode YAML entries")
		}
		return entries, nil
	case yaml.MappingNode:
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "decode YAML catalog")
		}
		return doc.Items, nil
	default:
		return nil, errors.New(errors.CodeCatalogInvalidFormat, "YAML catalog must be a list or a mapping with items")
	}
}

func loadJSON(content []byte) ([]models.ItemInput, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var entries []models.ItemInput
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "parse JSON entries")
		}
		return entries, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "parse JSON catalog")
	}
	return doc.Items, nil
}

func loadCSV(content []byte) ([]models.ItemInput, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "parse CSV")
	}
	return fromRows(rows)
}

func loadExcel(content []byte) ([]models.ItemInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "open Excel")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeCatalogInvalidFormat, "get rows for sheet %q", sheets[0])
	}
	return fromRows(rows)
}

// fromRows maps tabular rows to entries using the header row. Column names are matched
// case-insensitively; tags are split on commas, semicolons or pipes. Blank rows are skipped.
func fromRows(rows [][]string) ([]models.ItemInput, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns := make(map[string]int)
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "title", "description"} {
		if _, ok := columns[required]; !ok {
			return nil, errors.New(errors.CodeCatalogInvalidFormat, "catalog header is missing a column", errors.Field("column", required))
		}
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []models.ItemInput
	for _, row := range rows[1:] {
		if len(utils.CleanStrings(row)) == 0 {
			continue
		}
		entries = append(entries, models.ItemInput{
			ID:          cell(row, "id"),
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			Category:    cell(row, "category"),
			Tags:        splitTags(cell(row, "tags")),
		})
	}
	return entries, nil
}

func splitTags(s string) []string {
	return utils.CleanStrings(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	}))
}

// Files expands path into catalog files: a directory yields its catalog files (not recursive)
// in name order, a file yields itself.
func Files(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "stat catalog path", errors.Field("path", path))
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogInvalidFormat, "read catalog directory", errors.Field("path", path))
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
