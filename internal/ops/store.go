package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	Event      note.Event    // required
	Metadata   note.Metadata // optional author profile
	Collection string        // default: "Default"
	Thoughts   *string       // optional, blank means none
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Replaced   bool   `json:"replaced"`
}

// Save files an event as a new note at the front of the store. A note with
// the same id is replaced and starts over with zero upvotes.
func Save(database *sql.DB, input SaveInput) (*SaveOutput, error) {
	if err := ValidateEvent(input.Event); err != nil {
		return nil, err
	}

	collection := strings.TrimSpace(input.Collection)
	if collection == "" {
		collection = note.DefaultCollection
	}

	metadata := input.Metadata
	if len(metadata) == 0 {
		metadata = nil
	}

	replaced := false
	if _, err := db.GetNote(database, input.Event.ID); err == nil {
		replaced = true
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	var thoughts *string
	if input.Thoughts != nil {
		thoughts = note.NormalizeThoughts(*input.Thoughts)
	}

	n := &note.Note{
		ID:    input.Event.ID,
		Event: input.Event,
		Author: note.Author{
			Pubkey:   input.Event.Pubkey,
			Metadata: metadata,
		},
		Collection: collection,
		Upvotes:    0,
		SavedAt:    nowMillis(),
		Thoughts:   thoughts,
	}
	if err := db.PrependNote(database, n); err != nil {
		return nil, err
	}

	return &SaveOutput{
		ID:         n.ID,
		Collection: collection,
		Replaced:   replaced,
	}, nil
}
