package ops

import (
	"database/sql"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/note"
)

// VoteOutput contains the result of Upvote and Downvote.
type VoteOutput struct {
	ID      string `json:"id"`
	Upvotes int    `json:"upvotes"`
}

// Upvote raises a note's rating by one.
func Upvote(database *sql.DB, id string) (*VoteOutput, error) {
	return vote(database, id, 1)
}

// Downvote lowers a note's rating by one, stopping at zero.
func Downvote(database *sql.DB, id string) (*VoteOutput, error) {
	return vote(database, id, -1)
}

func vote(database *sql.DB, id string, delta int) (*VoteOutput, error) {
	id, err := cleanID(id)
	if err != nil {
		return nil, err
	}
	upvotes, err := db.AdjustUpvotes(database, id, delta)
	if err != nil {
		return nil, err
	}
	return &VoteOutput{ID: id, Upvotes: upvotes}, nil
}

// MoveInput contains parameters for the Move operation.
type MoveInput struct {
	ID         string
	Collection string // required, registered if new
}

// MoveOutput contains the result of the Move operation.
type MoveOutput struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Collection string `json:"collection"`
}

// Move files a note under another collection.
func Move(database *sql.DB, input MoveInput) (*MoveOutput, error) {
	id, err := cleanID(input.ID)
	if err != nil {
		return nil, err
	}
	collection, err := cleanCollection("collection", input.Collection)
	if err != nil {
		return nil, err
	}

	existing, err := db.GetNote(database, id)
	if err != nil {
		return nil, err
	}
	if err := db.MoveNote(database, id, collection); err != nil {
		return nil, err
	}

	return &MoveOutput{
		ID:         id,
		From:       existing.Collection,
		Collection: collection,
	}, nil
}

// AnnotateInput contains parameters for the Annotate operation.
type AnnotateInput struct {
	ID       string
	Thoughts string // blank clears the annotation
}

// AnnotateOutput contains the result of the Annotate operation.
type AnnotateOutput struct {
	ID       string  `json:"id"`
	Thoughts *string `json:"thoughts"`
}

// Annotate sets or clears a note's thoughts.
func Annotate(database *sql.DB, input AnnotateInput) (*AnnotateOutput, error) {
	id, err := cleanID(input.ID)
	if err != nil {
		return nil, err
	}

	thoughts := note.NormalizeThoughts(input.Thoughts)
	if err := db.SetThoughts(database, id, thoughts); err != nil {
		return nil, err
	}

	return &AnnotateOutput{ID: id, Thoughts: thoughts}, nil
}
