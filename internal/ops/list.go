package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Collection string // optional, empty lists every note
	Limit      int    // default: 50, max: 500
	Offset     int    // default: 0
}

// NoteSummary is a note as shown in listings.
type NoteSummary struct {
	ID          string  `json:"id"`
	AuthorName  string  `json:"author_name"`
	Collection  string  `json:"collection"`
	Upvotes     int     `json:"upvotes"`
	SavedAt     int64   `json:"saved_at"`
	Preview     string  `json:"preview"`
	HasThoughts bool    `json:"has_thoughts"`
	Thoughts    *string `json:"thoughts,omitempty"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []NoteSummary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// Summarize builds the listing view of a note.
func Summarize(n note.Note) NoteSummary {
	return NoteSummary{
		ID:          n.ID,
		AuthorName:  note.DisplayName(n.Author),
		Collection:  n.Collection,
		Upvotes:     n.Upvotes,
		SavedAt:     n.SavedAt,
		Preview:     note.Preview(n.Event.Content, 100),
		HasThoughts: note.HasThoughts(n.Thoughts),
		Thoughts:    n.Thoughts,
	}
}

// List retrieves notes ranked by upvotes, newest first on ties.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	collection := strings.TrimSpace(input.Collection)
	if collection != "" {
		exists, err := db.CollectionExists(database, collection)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.NewCollectionNotFound(collection)
		}
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	notes, err := db.ListNotes(database, collection)
	if err != nil {
		return nil, err
	}
	total := len(notes)

	items := []NoteSummary{}
	if offset < total {
		end := min(offset+limit, total)
		for _, n := range notes[offset:end] {
			items = append(items, Summarize(n))
		}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "upvotes_desc,saved_at_desc",
	}, nil
}
