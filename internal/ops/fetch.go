package ops

import (
	"database/sql"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/note"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string
}

// GetOutput contains the result of the Get operation.
type GetOutput struct {
	note.Note         // embedded (copy, not pointer)
	AuthorName string `json:"author_name"`
}

// Get retrieves a note by its event id.
func Get(database *sql.DB, input GetInput) (*GetOutput, error) {
	id, err := cleanID(input.ID)
	if err != nil {
		return nil, err
	}

	n, err := db.GetNote(database, id)
	if err != nil {
		return nil, err
	}

	return &GetOutput{
		Note:       *n,
		AuthorName: note.DisplayName(n.Author),
	}, nil
}
