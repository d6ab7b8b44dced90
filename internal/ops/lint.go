package ops

import (
	"strings"

	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// LintInput contains parameters for the Lint operation.
type LintInput struct {
	Document string // required, one archive document
}

// Lint checks an archive document without storing anything.
func Lint(input LintInput) (*note.LintResult, error) {
	if strings.TrimSpace(input.Document) == "" {
		return nil, errors.NewInvalidRequest("document is required")
	}
	return note.Lint(input.Document), nil
}
