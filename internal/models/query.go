package models

import (
	"strings"

	"github.com/hyperjump/suisen/pkg/errors"
)

const (
	DefaultTopK      = 5
	DefaultMaxTopK   = 100
	DefaultListLimit = 20
)

// RecommendRequest asks for items similar to a stored item.
// Nil TopK and ExcludeSelf take the defaults.
type RecommendRequest struct {
	ID          string `json:"id"`
	TopK        *int   `json:"top_k,omitempty"`
	ExcludeSelf *bool  `json:"exclude_self,omitempty"`
}

// ExcludeSelfOrDefault reports whether the base item is left out of the candidates (default true).
func (r *RecommendRequest) ExcludeSelfOrDefault() bool {
	if r.ExcludeSelf == nil {
		return true
	}
	return *r.ExcludeSelf
}

// SearchRequest ranks the store against free text, optionally restricted to a category.
type SearchRequest struct {
	Query    string `json:"query"`
	TopK     *int   `json:"top_k,omitempty"`
	Category string `json:"category,omitempty"`
}

// Validate trims the query and rejects an empty one.
func (r *SearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	r.Category = strings.TrimSpace(r.Category)
	if r.Query == "" {
		return errors.New(errors.CodeInvalidArgument, "query cannot be empty")
	}
	return nil
}

// ResolveTopK applies the default to a nil topK, rejects non-positive values,
// and caps the result at maxTopK when maxTopK is positive.
func ResolveTopK(topK *int, def, maxTopK int) (int, error) {
	k := def
	if topK != nil {
		k = *topK
	}
	if k <= 0 {
		return 0, errors.New(errors.CodeInvalidArgument, "top_k must be positive", errors.Field("top_k", k))
	}
	if maxTopK > 0 && k > maxTopK {
		k = maxTopK
	}
	return k, nil
}

// ListFilter selects and pages the item listing. Category matches case-insensitively as a substring.
type ListFilter struct {
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Validate rejects negative paging and applies the default limit when Limit is zero.
func (f *ListFilter) Validate(defaultLimit int) error {
	f.Category = strings.TrimSpace(f.Category)
	if f.Limit < 0 {
		return errors.New(errors.CodeInvalidArgument, "limit cannot be negative", errors.Field("limit", f.Limit))
	}
	if f.Offset < 0 {
		return errors.New(errors.CodeInvalidArgument, "offset cannot be negative", errors.Field("offset", f.Offset))
	}
	if f.Limit == 0 {
		f.Limit = defaultLimit
	}
	return nil
}

// IntPtr and BoolPtr build optional request fields.
func IntPtr(v int) *int { return &v }

func BoolPtr(v bool) *bool { return &v }
