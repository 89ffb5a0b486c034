// Package models defines core data structures for items, recommendation requests, and results.
package models

import (
	"strings"
	"time"

	"github.com/hyperjump/suisen/pkg/errors"
	"github.com/hyperjump/suisen/pkg/utils"
)

// Item is a stored record: caller-assigned id, display text, and the embedding computed from it.
type Item struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category,omitempty" db:"category"`
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	Embedding   []float32 `json:"-" db:"embedding"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ItemMetadata is an Item without its raw vector. Every outward-facing result carries this.
type ItemMetadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Dimensions  int       `json:"dimensions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Dimensions returns the length of the item's embedding.
func (i *Item) Dimensions() int {
	return len(i.Embedding)
}

// Metadata returns the outward-facing view of the item.
func (i *Item) Metadata() ItemMetadata {
	return ItemMetadata{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Category:    i.Category,
		Tags:        append([]string(nil), i.Tags...),
		Dimensions:  len(i.Embedding),
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// Clone returns a deep copy, so callers never share the store's slices.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Tags = append([]string(nil), i.Tags...)
	c.Embedding = append([]float32(nil), i.Embedding...)
	return &c
}

// EmbeddingText is the text an item's embedding is computed from.
func EmbeddingText(title, description string) string {
	return title + " " + description
}

// ItemInput is the input for adding or replacing an item.
type ItemInput struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate trims the input in place and rejects empty required fields.
func (in *ItemInput) Validate() error {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = utils.CleanStrings(in.Tags)
	switch {
	case in.ID == "":
		return errors.New(errors.CodeInvalidArgument, "id cannot be empty")
	case in.Title == "":
		return errors.New(errors.CodeInvalidArgument, "title cannot be empty", errors.FieldItemID(in.ID))
	case in.Description == "":
		return errors.New(errors.CodeInvalidArgument, "description cannot be empty", errors.FieldItemID(in.ID))
	}
	return nil
}

// AddStatus tells whether an add created a record or replaced one.
type AddStatus string

const (
	StatusAdded   AddStatus = "added"
	StatusUpdated AddStatus = "updated"
)

// AddResult is the response for an add.
type AddResult struct {
	Status AddStatus    `json:"status"`
	Item   ItemMetadata `json:"item"`
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
