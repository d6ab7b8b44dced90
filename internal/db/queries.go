package db

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const noteColumns = `id, event_json, author_pubkey, author_metadata_json,
	collection, upvotes, saved_at, thoughts`

// LoadState reads the whole store: notes in their stored order and the
// collection registry in registry order.
func LoadState(db *sql.DB) (note.State, error) {
	notes, err := queryNotes(db, `SELECT `+noteColumns+` FROM notes ORDER BY position, rowid`)
	if err != nil {
		return note.State{}, err
	}
	collections, err := collectionNames(db)
	if err != nil {
		return note.State{}, err
	}
	return note.State{Notes: notes, Collections: collections}, nil
}

// SaveState replaces the stored notes and collections with state in a single
// transaction. Default is always kept registered.
func SaveState(db *sql.DB, state note.State) error {
	return withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM collections`); err != nil {
			return err
		}

		collections := state.Collections
		if !state.HasCollection(note.DefaultCollection) {
			collections = append([]string{note.DefaultCollection}, collections...)
		}
		for i, name := range collections {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO collections (name, position) VALUES (?, ?)`, name, i); err != nil {
				return err
			}
		}

		for i := range state.Notes {
			if err := insertNote(tx, &state.Notes[i], i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetState drops every note and leaves only the Default collection.
func ResetState(db *sql.DB) error {
	return SaveState(db, note.NewState())
}

// PrependNote stores n ahead of every other note, replacing any note with the
// same id, and registers its collection.
func PrependNote(db *sql.DB, n *note.Note) error {
	return withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, n.ID); err != nil {
			return err
		}
		var first int
		if err := tx.QueryRow(`SELECT COALESCE(MIN(position), 0) FROM notes`).Scan(&first); err != nil {
			return err
		}
		if err := insertNote(tx, n, first-1); err != nil {
			return err
		}
		_, err := ensureCollection(tx, n.Collection)
		return err
	})
}

// GetNote retrieves a note by its event id.
func GetNote(db *sql.DB, id string) (*note.Note, error) {
	row := db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return n, nil
}

// ListNotes returns the notes of one collection ranked by upvotes (desc),
// then saved time (newest first). An empty collection name lists every note.
func ListNotes(db *sql.DB, collection string) ([]note.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY upvotes DESC, saved_at DESC, position`
	return queryNotes(db, query, args...)
}

// CountNotes returns the number of notes in a collection, or in total when
// collection is empty.
func CountNotes(db *sql.DB, collection string) (int, error) {
	query := `SELECT COUNT(*) FROM notes`
	var args []any
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// AdjustUpvotes adds delta to a note's upvotes, never going below zero, and
// returns the new value.
func AdjustUpvotes(db *sql.DB, id string, delta int) (int, error) {
	if err := execOne(db, id, `UPDATE notes SET upvotes = MAX(0, upvotes + ?) WHERE id = ?`, delta, id); err != nil {
		return 0, err
	}
	var upvotes int
	if err := db.QueryRow(`SELECT upvotes FROM notes WHERE id = ?`, id).Scan(&upvotes); err != nil {
		return 0, errors.NewInternal(err)
	}
	return upvotes, nil
}

// SetThoughts replaces a note's annotation. nil clears it.
func SetThoughts(db *sql.DB, id string, thoughts *string) error {
	return execOne(db, id, `UPDATE notes SET thoughts = ? WHERE id = ?`, toNullString(thoughts), id)
}

// MoveNote files a note under collection, registering the collection.
func MoveNote(db *sql.DB, id, collection string) error {
	return withTx(db, func(tx *sql.Tx) error {
		if err := execOne(tx, id, `UPDATE notes SET collection = ? WHERE id = ?`, collection, id); err != nil {
			return err
		}
		_, err := ensureCollection(tx, collection)
		return err
	})
}

// DeleteNote removes a note.
func DeleteNote(db *sql.DB, id string) error {
	return execOne(db, id, `DELETE FROM notes WHERE id = ?`, id)
}

// CollectionInfo is a registered collection with its note count.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ListCollections returns every registered collection in registry order.
func ListCollections(db *sql.DB) ([]CollectionInfo, error) {
	rows, err := db.Query(`
		SELECT c.name, COUNT(n.id)
		FROM collections c
		LEFT JOIN notes n ON n.collection = c.name
		GROUP BY c.name, c.position
		ORDER BY c.position
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	infos := []CollectionInfo{}
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Count); err != nil {
			return nil, errors.NewInternal(err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return infos, nil
}

// CollectionExists reports whether name is registered.
func CollectionExists(db *sql.DB, name string) (bool, error) {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM collections WHERE name = ?`, name).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// EnsureCollection registers name at the end of the registry. It reports
// whether the collection was newly created.
func EnsureCollection(db *sql.DB, name string) (bool, error) {
	created, err := ensureCollection(db, name)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return created, nil
}

// RenameCollection renames a collection in place and moves its notes along.
func RenameCollection(db *sql.DB, oldName, newName string) error {
	return withTx(db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE collections SET name = ? WHERE name = ?`, newName, oldName)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errors.NewCollectionNotFound(oldName)
		}
		_, err = tx.Exec(`UPDATE notes SET collection = ? WHERE collection = ?`, newName, oldName)
		return err
	})
}

// DeleteCollection unregisters a collection and refiles its notes under
// Default. It returns how many notes were moved.
func DeleteCollection(db *sql.DB, name string) (int, error) {
	var moved int64
	err := withTx(db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM collections WHERE name = ?`, name)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errors.NewCollectionNotFound(name)
		}
		res, err = tx.Exec(`UPDATE notes SET collection = ? WHERE collection = ?`, note.DefaultCollection, name)
		if err != nil {
			return err
		}
		moved, err = res.RowsAffected()
		return err
	})
	return int(moved), err
}

// ImportRun records one completed import.
type ImportRun struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
	CreatedAt int64  `json:"created_at"`
}

// InsertImportRun stores an import run.
func InsertImportRun(db *sql.DB, run *ImportRun) error {
	_, err := db.Exec(`
		INSERT INTO import_runs (id, source, imported, skipped, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Imported, run.Skipped, run.Errors, run.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListImportRuns returns the most recent runs first. limit <= 0 means all.
func ListImportRuns(db *sql.DB, limit int) ([]ImportRun, error) {
	query := `SELECT id, source, imported, skipped, errors, created_at FROM import_runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []ImportRun{}
	for rows.Next() {
		var r ImportRun
		if err := rows.Scan(&r.ID, &r.Source, &r.Imported, &r.Skipped, &r.Errors, &r.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// withTx runs fn in a transaction. SMNErrors from fn pass through; anything
// else becomes INTERNAL.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		var smnErr *errors.SMNError
		if stderrors.As(err, &smnErr) {
			return smnErr
		}
		return errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// execOne runs a statement that must touch exactly the note id.
func execOne(q querier, id, query string, args ...any) error {
	res, err := q.Exec(query, args...)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

func ensureCollection(q querier, name string) (bool, error) {
	res, err := q.Exec(`
		INSERT OR IGNORE INTO collections (name, position)
		SELECT ?, COALESCE(MAX(position), -1) + 1 FROM collections
	`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func collectionNames(q querier) ([]string, error) {
	rows, err := q.Query(`SELECT name FROM collections ORDER BY position`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewInternal(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return names, nil
}

func insertNote(q querier, n *note.Note, position int) error {
	eventJSON, err := json.Marshal(n.Event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", n.ID, err)
	}
	var metaJSON sql.NullString
	if len(n.Author.Metadata) > 0 {
		data, err := json.Marshal(n.Author.Metadata)
		if err != nil {
			return fmt.Errorf("encode author metadata %s: %w", n.ID, err)
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = q.Exec(`
		INSERT INTO notes (
			id, position, event_json, author_pubkey, author_metadata_json,
			collection, upvotes, saved_at, thoughts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID, position, string(eventJSON), n.Author.Pubkey, metaJSON,
		n.Collection, max(n.Upvotes, 0), n.SavedAt, toNullString(n.Thoughts),
	)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func queryNotes(q querier, query string, args ...any) ([]note.Note, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	notes := []note.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return notes, nil
}

// scanNote scans a single row into a Note.
func scanNote(row rowScanner) (*note.Note, error) {
	var (
		n         note.Note
		eventJSON string
		metaJSON  sql.NullString
		thoughts  sql.NullString
	)

	err := row.Scan(
		&n.ID, &eventJSON, &n.Author.Pubkey, &metaJSON,
		&n.Collection, &n.Upvotes, &n.SavedAt, &thoughts,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventJSON), &n.Event); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", n.ID, err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &n.Author.Metadata); err != nil {
			return nil, fmt.Errorf("decode author metadata %s: %w", n.ID, err)
		}
	}
	n.Thoughts = fromNullString(thoughts)

	return &n, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
