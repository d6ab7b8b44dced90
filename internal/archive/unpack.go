package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zip"

	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// MaxEntrySize caps how much of a single entry is read.
const MaxEntrySize = 10 * 1024 * 1024

// Options controls how an archive is classified against the current store.
type Options struct {
	OverwriteExisting bool `json:"overwrite_existing"`
	MergeCollections  bool `json:"merge_collections"`

	// Include restricts the walk to entries matching any of these
	// doublestar patterns (e.g. "Work/**"). Empty means every entry.
	Include []string `json:"include,omitempty"`
}

// MergeOptions returns the subset of o the merge step needs.
func (o Options) MergeOptions() note.MergeOptions {
	return note.MergeOptions{
		OverwriteExisting: o.OverwriteExisting,
		MergeCollections:  o.MergeCollections,
	}
}

// Result is the outcome of reading an archive. Notes is only set on success.
type Result struct {
	Success     bool        `json:"success"`
	Imported    int         `json:"imported"`
	Skipped     int         `json:"skipped"`
	Errors      []string    `json:"errors"`
	Collections []string    `json:"collections"`
	Notes       []note.Note `json:"-"`
}

// Unpack reads every note document in the archive at r. It never touches the
// store; existing is only consulted to count notes that would be skipped.
//
// A container that can't be opened returns ARCHIVE_CORRUPT. An archive with
// nothing importable returns NO_VALID_NOTES. In both cases the Result is still
// returned with Success=false so callers can show its errors. Entries are read
// one at a time and a bad entry never stops the walk; ctx is checked between
// entries.
func Unpack(ctx context.Context, r io.ReaderAt, size int64, existing note.State, opts Options) (*Result, error) {
	result := &Result{
		Errors:      []string{},
		Collections: []string{},
	}

	for _, pattern := range opts.Include {
		if !doublestar.ValidatePattern(pattern) {
			return result, errors.NewInvalidRequest(fmt.Sprintf("invalid include pattern: %q", pattern))
		}
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		corrupt := errors.NewArchiveCorrupt(err)
		result.Errors = append(result.Errors, corrupt.Message)
		return result, corrupt
	}

	known := make(map[string]bool, len(existing.Notes))
	for _, n := range existing.Notes {
		known[n.ID] = true
	}
	seenCollections := make(map[string]bool)

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return result, errors.NewCancelled("import")
		}

		path := f.Name
		if !isNoteEntry(f) || !included(path, opts.Include) {
			continue
		}

		markdown, err := readEntry(f)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing %s: %v", path, err))
			continue
		}

		collection := CollectionForPath(path)
		n, err := note.Decode(markdown, collection)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to parse note from %s: %s", path, errors.Message(err)))
			continue
		}

		if known[n.ID] && !opts.OverwriteExisting {
			result.Skipped++
			continue
		}

		result.Notes = append(result.Notes, *n)
		result.Imported++
		if !seenCollections[collection] {
			seenCollections[collection] = true
			result.Collections = append(result.Collections, collection)
		}
	}

	if len(result.Notes) == 0 {
		empty := errors.NewNoValidNotes()
		result.Errors = append(result.Errors, empty.Message)
		return result, empty
	}

	result.Success = true
	return result, nil
}

// UnpackBytes is Unpack over an in-memory archive.
func UnpackBytes(ctx context.Context, data []byte, existing note.State, opts Options) (*Result, error) {
	return Unpack(ctx, bytes.NewReader(data), int64(len(data)), existing, opts)
}

// CollectionForPath returns the first path segment of a nested entry, or
// Default for a top-level one or a blank segment.
func CollectionForPath(path string) string {
	i := strings.Index(path, "/")
	if i < 0 || strings.TrimSpace(path[:i]) == "" {
		return note.DefaultCollection
	}
	return path[:i]
}

// isNoteEntry drops directories, non-markdown entries and anything whose path
// mentions one of the aggregate documents.
func isNoteEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return false
	}
	if !strings.HasSuffix(f.Name, ".md") {
		return false
	}
	for _, skip := range []string{ReadmeName, SummaryName, CollectionSummaryName} {
		if strings.Contains(f.Name, skip) {
			return false
		}
	}
	return true
}

func included(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func readEntry(f *zip.File) (string, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return "", fmt.Errorf("entry exceeds %d bytes", MaxEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxEntrySize {
		return "", fmt.Errorf("entry exceeds %d bytes", MaxEntrySize)
	}
	return string(data), nil
}

// SummarizeErrors returns at most limit messages, followed by a
// "... and N more" line when some were cut.
func SummarizeErrors(errs []string, limit int) []string {
	if limit < 0 {
		limit = 0
	}
	if len(errs) <= limit {
		return errs
	}
	out := make([]string, 0, limit+1)
	out = append(out, errs[:limit]...)
	return append(out, fmt.Sprintf("... and %d more", len(errs)-limit))
}
