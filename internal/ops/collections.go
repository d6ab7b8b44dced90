package ops

import (
	"database/sql"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// CollectionsOutput contains the result of ListCollections.
type CollectionsOutput struct {
	Items []db.CollectionInfo `json:"items"`
	Total int                 `json:"total"`
}

// ListCollections returns every registered collection with its note count.
func ListCollections(database *sql.DB) (*CollectionsOutput, error) {
	infos, err := db.ListCollections(database)
	if err != nil {
		return nil, err
	}
	return &CollectionsOutput{Items: infos, Total: len(infos)}, nil
}

// CreateCollectionOutput contains the result of CreateCollection.
type CreateCollectionOutput struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// CreateCollection registers a collection. Creating one that already exists
// is a no-op.
func CreateCollection(database *sql.DB, name string) (*CreateCollectionOutput, error) {
	name, err := cleanCollection("name", name)
	if err != nil {
		return nil, err
	}
	created, err := db.EnsureCollection(database, name)
	if err != nil {
		return nil, err
	}
	return &CreateCollectionOutput{Name: name, Created: created}, nil
}

// RenameCollectionInput contains parameters for RenameCollection.
type RenameCollectionInput struct {
	From string
	To   string
}

// RenameCollectionOutput contains the result of RenameCollection.
type RenameCollectionOutput struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Notes int    `json:"notes"`
}

// RenameCollection renames a collection; its notes follow. Default is
// reserved and the new name must not be taken.
func RenameCollection(database *sql.DB, input RenameCollectionInput) (*RenameCollectionOutput, error) {
	from, err := cleanCollection("from", input.From)
	if err != nil {
		return nil, err
	}
	to, err := cleanCollection("to", input.To)
	if err != nil {
		return nil, err
	}
	if from == note.DefaultCollection || to == note.DefaultCollection {
		return nil, errors.NewReservedCollection(note.DefaultCollection)
	}

	exists, err := db.CollectionExists(database, from)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewCollectionNotFound(from)
	}
	if from == to {
		return nil, errors.NewInvalidRequest("new name must differ from the current name")
	}
	taken, err := db.CollectionExists(database, to)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errors.NewCollectionExists(to)
	}

	if err := db.RenameCollection(database, from, to); err != nil {
		return nil, err
	}
	count, err := db.CountNotes(database, to)
	if err != nil {
		return nil, err
	}
	return &RenameCollectionOutput{From: from, To: to, Notes: count}, nil
}

// DeleteCollectionOutput contains the result of DeleteCollection.
type DeleteCollectionOutput struct {
	Name  string `json:"name"`
	Moved int    `json:"moved"`
}

// DeleteCollection unregisters a collection and refiles its notes under
// Default, which itself can never be deleted.
func DeleteCollection(database *sql.DB, name string) (*DeleteCollectionOutput, error) {
	name, err := cleanCollection("name", name)
	if err != nil {
		return nil, err
	}
	if name == note.DefaultCollection {
		return nil, errors.NewReservedCollection(name)
	}
	moved, err := db.DeleteCollection(database, name)
	if err != nil {
		return nil, err
	}
	return &DeleteCollectionOutput{Name: name, Moved: moved}, nil
}
