package ops

import (
	"database/sql"

	"github.com/hpungsan/smn/internal/db"
)

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	Removed bool   `json:"removed"`
	ID      string `json:"id"`
}

// Remove deletes a note from the store.
func Remove(database *sql.DB, id string) (*RemoveOutput, error) {
	id, err := cleanID(id)
	if err != nil {
		return nil, err
	}
	if err := db.DeleteNote(database, id); err != nil {
		return nil, err
	}
	return &RemoveOutput{Removed: true, ID: id}, nil
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Removed int `json:"removed"`
}

// Clear drops every note and collection, leaving only Default.
func Clear(database *sql.DB) (*ClearOutput, error) {
	count, err := db.CountNotes(database, "")
	if err != nil {
		return nil, err
	}
	if err := db.ResetState(database); err != nil {
		return nil, err
	}
	return &ClearOutput{Removed: count}, nil
}
