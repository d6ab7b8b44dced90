package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/smn/internal/archive"
	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/logger"
	"github.com/hpungsan/smn/internal/note"
)

// MaxArchiveSize caps how much of an archive file is read into memory.
const MaxArchiveSize = 256 * 1024 * 1024

// ImportInput contains parameters for the Import operation. Exactly one of
// Path and Data is set.
type ImportInput struct {
	Path   string // archive on disk, validated like export paths
	Data   []byte // archive already in memory (e.g. an upload)
	Source string // label stored with the run, default: Path or "upload"

	Overwrite bool // replace notes whose id already exists
	// MergeCollections registers the archive's collections. nil means true.
	MergeCollections *bool
	Include          []string // doublestar patterns over entry paths
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	RunID       string   `json:"run_id,omitempty"`
	Success     bool     `json:"success"`
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	ErrorCount  int      `json:"error_count"`
	Errors      []string `json:"errors"`
	Collections []string `json:"collections"`
}

// Import reads an archive and merges its notes into the store. The store is
// read once up front and written back in one transaction.
//
// When the archive can't be opened (ARCHIVE_CORRUPT) or holds no importable
// notes (NO_VALID_NOTES) the output is returned alongside the error with
// Success=false and nothing is written.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if (input.Path == "") == (input.Data == nil) {
		return nil, errors.NewInvalidRequest("exactly one of path or data is required")
	}

	data := input.Data
	source := input.Source
	if input.Path != "" {
		if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
			return nil, err
		}
		var err error
		data, err = readArchive(input.Path)
		if err != nil {
			return nil, err
		}
		if source == "" {
			source = input.Path
		}
	}
	if source == "" {
		source = "upload"
	}

	opts := archive.Options{
		OverwriteExisting: input.Overwrite,
		MergeCollections:  input.MergeCollections == nil || *input.MergeCollections,
		Include:           input.Include,
	}

	state, err := db.LoadState(database)
	if err != nil {
		return nil, err
	}

	log := logger.L().With().Str("source", source).Logger()

	res, err := archive.UnpackBytes(ctx, data, state, opts)
	if res != nil {
		for _, msg := range res.Errors {
			log.Warn().Msg(msg)
		}
	}
	if err != nil {
		if res == nil || errors.Is(err, errors.ErrInvalidRequest) || errors.Is(err, errors.ErrCancelled) {
			return nil, err
		}
		return toImportOutput(res, "", cfg.ErrorPreview), err
	}

	merged := note.Merge(state, res.Notes, opts.MergeOptions())
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("import")
	}
	if err := db.SaveState(database, merged); err != nil {
		return nil, err
	}

	run := &db.ImportRun{
		ID:        ulid.Make().String(),
		Source:    source,
		Imported:  res.Imported,
		Skipped:   res.Skipped,
		Errors:    len(res.Errors),
		CreatedAt: now().UnixMilli(),
	}
	if err := db.InsertImportRun(database, run); err != nil {
		return nil, err
	}

	res.Collections = landedCollections(res.Collections, merged)

	log.Info().
		Str("run_id", run.ID).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Strs("collections", res.Collections).
		Msg("import finished")

	return toImportOutput(res, run.ID, cfg.ErrorPreview), nil
}

func toImportOutput(res *archive.Result, runID string, preview int) *ImportOutput {
	return &ImportOutput{
		RunID:       runID,
		Success:     res.Success,
		Imported:    res.Imported,
		Skipped:     res.Skipped,
		ErrorCount:  len(res.Errors),
		Errors:      archive.SummarizeErrors(res.Errors, preview),
		Collections: res.Collections,
	}
}

// landedCollections maps the archive's collections to where their notes
// ended up. Unregistered names fold into Default when collections are not
// merged.
func landedCollections(names []string, merged note.State) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !merged.HasCollection(name) {
			name = note.DefaultCollection
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// readArchive reads an archive without following a symlinked final
// component.
func readArchive(path string) ([]byte, error) {
	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.SMNError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxArchiveSize+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxArchiveSize {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("archive exceeds %d bytes", MaxArchiveSize))
	}
	return data, nil
}

// HistoryOutput contains the result of History.
type HistoryOutput struct {
	Runs []db.ImportRun `json:"runs"`
}

// History lists recent import runs, newest first.
func History(database *sql.DB, limit int) (*HistoryOutput, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs, err := db.ListImportRuns(database, min(limit, MaxListLimit))
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{Runs: runs}, nil
}
