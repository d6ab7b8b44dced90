package db

import (
	"database/sql"
	"testing"

	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestNote(id, collection string, upvotes int, savedAt int64) note.Note {
	return note.Note{
		ID: id,
		Event: note.Event{
			ID:        id,
			Pubkey:    "pk-" + id,
			CreatedAt: 1700000000,
			Kind:      1,
			Tags:      [][]string{{"t", "test"}},
			Content:   "content of " + id,
			Sig:       "sig",
		},
		Author:     note.Author{Pubkey: "pk-" + id},
		Collection: collection,
		Upvotes:    upvotes,
		SavedAt:    savedAt,
	}
}

func stringPtr(s string) *string {
	return &s
}

func seed(t *testing.T, db *sql.DB, state note.State) {
	t.Helper()
	if err := SaveState(db, state); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
}

func TestSaveAndLoadState(t *testing.T) {
	db := openTestDB(t)

	a := newTestNote("a", "Work", 2, 100)
	a.Author.Metadata = note.Metadata{"name": "alice"}
	a.Thoughts = stringPtr("keep this")
	b := newTestNote("b", "Default", 0, 200)

	seed(t, db, note.State{
		Notes:       []note.Note{a, b},
		Collections: []string{"Default", "Work", "Empty"},
	})

	state, err := LoadState(db)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	if len(state.Notes) != 2 || state.Notes[0].ID != "a" || state.Notes[1].ID != "b" {
		t.Fatalf("Notes order = %v, want [a b]", noteIDs(state.Notes))
	}
	got := state.Notes[0]
	if got.Event.Content != a.Event.Content || got.Event.Tags[0][1] != "test" {
		t.Errorf("Event = %+v, want %+v", got.Event, a.Event)
	}
	if got.Author.Metadata["name"] != "alice" {
		t.Errorf("Author.Metadata = %v", got.Author.Metadata)
	}
	if got.Thoughts == nil || *got.Thoughts != "keep this" {
		t.Errorf("Thoughts = %v, want 'keep this'", got.Thoughts)
	}
	if got.Upvotes != 2 || got.SavedAt != 100 || got.Collection != "Work" {
		t.Errorf("got %+v", got)
	}
	if state.Notes[1].Author.Metadata != nil {
		t.Errorf("empty metadata should load as nil, got %v", state.Notes[1].Author.Metadata)
	}

	want := []string{"Default", "Work", "Empty"}
	if len(state.Collections) != 3 {
		t.Fatalf("Collections = %v, want %v", state.Collections, want)
	}
	for i := range want {
		if state.Collections[i] != want[i] {
			t.Errorf("Collections[%d] = %q, want %q", i, state.Collections[i], want[i])
		}
	}
}

func TestSaveState_ReplacesPrevious(t *testing.T) {
	db := openTestDB(t)

	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 0, 1)}, Collections: []string{"Default", "Old"}})
	seed(t, db, note.State{Notes: []note.Note{newTestNote("b", "New", 0, 1)}, Collections: []string{"New"}})

	state, err := LoadState(db)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(state.Notes) != 1 || state.Notes[0].ID != "b" {
		t.Errorf("Notes = %v, want [b]", noteIDs(state.Notes))
	}
	if len(state.Collections) != 2 || state.Collections[0] != "Default" || state.Collections[1] != "New" {
		t.Errorf("Collections = %v, want [Default New] (Default kept)", state.Collections)
	}
}

func TestResetState(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Work", 0, 1)}, Collections: []string{"Default", "Work"}})

	if err := ResetState(db); err != nil {
		t.Fatalf("ResetState failed: %v", err)
	}

	state, err := LoadState(db)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(state.Notes) != 0 || len(state.Collections) != 1 {
		t.Errorf("state = %+v, want default state", state)
	}
}

func TestPrependNote(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{
		Notes:       []note.Note{newTestNote("a", "Default", 0, 1), newTestNote("b", "Default", 0, 2)},
		Collections: []string{"Default"},
	})

	if err := PrependNote(db, ptr(newTestNote("c", "Fresh", 0, 3))); err != nil {
		t.Fatalf("PrependNote failed: %v", err)
	}
	replacement := newTestNote("b", "Default", 0, 4)
	replacement.Event.Content = "replaced"
	if err := PrependNote(db, &replacement); err != nil {
		t.Fatalf("PrependNote failed: %v", err)
	}

	state, err := LoadState(db)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	ids := noteIDs(state.Notes)
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "c" || ids[2] != "a" {
		t.Errorf("order = %v, want [b c a]", ids)
	}
	if state.Notes[0].Event.Content != "replaced" {
		t.Errorf("Content = %q, want replaced", state.Notes[0].Event.Content)
	}
	if !state.HasCollection("Fresh") {
		t.Errorf("Collections = %v, want Fresh registered", state.Collections)
	}
}

func TestGetNote(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 3, 1)}, Collections: []string{"Default"}})

	n, err := GetNote(db, "a")
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if n.Upvotes != 3 {
		t.Errorf("Upvotes = %d, want 3", n.Upvotes)
	}

	_, err = GetNote(db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetNote should return ErrNotFound, got: %v", err)
	}
}

func TestListNotes_Ranked(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{
		Notes: []note.Note{
			newTestNote("three", "Work", 3, 100),
			newTestNote("five-old", "Work", 5, 200),
			newTestNote("five-new", "Work", 5, 300),
			newTestNote("one", "Work", 1, 400),
			newTestNote("other", "Default", 9, 1),
		},
		Collections: []string{"Default", "Work"},
	})

	notes, err := ListNotes(db, "Work")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	want := []string{"five-new", "five-old", "three", "one"}
	got := noteIDs(notes)
	if len(got) != len(want) {
		t.Fatalf("ListNotes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListNotes[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	all, err := ListNotes(db, "")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(all) != 5 || all[0].ID != "other" {
		t.Errorf("ListNotes(all) = %v", noteIDs(all))
	}

	count, err := CountNotes(db, "Work")
	if err != nil || count != 4 {
		t.Errorf("CountNotes = %d, %v; want 4", count, err)
	}
}

func TestAdjustUpvotes(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 1, 1)}, Collections: []string{"Default"}})

	if v, err := AdjustUpvotes(db, "a", 1); err != nil || v != 2 {
		t.Fatalf("AdjustUpvotes(+1) = %d, %v; want 2", v, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := AdjustUpvotes(db, "a", -1); err != nil {
			t.Fatalf("AdjustUpvotes(-1) failed: %v", err)
		}
	}
	n, _ := GetNote(db, "a")
	if n.Upvotes != 0 {
		t.Errorf("Upvotes = %d, want 0 (floored)", n.Upvotes)
	}

	if _, err := AdjustUpvotes(db, "missing", 1); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("AdjustUpvotes should return ErrNotFound, got: %v", err)
	}
}

func TestSetThoughts(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 0, 1)}, Collections: []string{"Default"}})

	if err := SetThoughts(db, "a", stringPtr("nice")); err != nil {
		t.Fatalf("SetThoughts failed: %v", err)
	}
	n, _ := GetNote(db, "a")
	if n.Thoughts == nil || *n.Thoughts != "nice" {
		t.Errorf("Thoughts = %v, want nice", n.Thoughts)
	}

	if err := SetThoughts(db, "a", nil); err != nil {
		t.Fatalf("SetThoughts(nil) failed: %v", err)
	}
	n, _ = GetNote(db, "a")
	if n.Thoughts != nil {
		t.Errorf("Thoughts = %q, want nil", *n.Thoughts)
	}

	if err := SetThoughts(db, "missing", nil); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetThoughts should return ErrNotFound, got: %v", err)
	}
}

func TestMoveNote(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 0, 1)}, Collections: []string{"Default"}})

	if err := MoveNote(db, "a", "Ideas"); err != nil {
		t.Fatalf("MoveNote failed: %v", err)
	}
	n, _ := GetNote(db, "a")
	if n.Collection != "Ideas" {
		t.Errorf("Collection = %q, want Ideas", n.Collection)
	}
	if ok, _ := CollectionExists(db, "Ideas"); !ok {
		t.Error("Ideas should be registered after move")
	}

	if err := MoveNote(db, "missing", "Ideas"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("MoveNote should return ErrNotFound, got: %v", err)
	}
}

func TestDeleteNote(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{Notes: []note.Note{newTestNote("a", "Default", 0, 1)}, Collections: []string{"Default"}})

	if err := DeleteNote(db, "a"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if _, err := GetNote(db, "a"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("deleted note still readable: %v", err)
	}
	if err := DeleteNote(db, "a"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteNote should return ErrNotFound, got: %v", err)
	}
}

func TestCollections(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{
		Notes:       []note.Note{newTestNote("a", "Work", 0, 1), newTestNote("b", "Work", 0, 2)},
		Collections: []string{"Default", "Work"},
	})

	created, err := EnsureCollection(db, "Ideas")
	if err != nil || !created {
		t.Fatalf("EnsureCollection(Ideas) = %v, %v; want created", created, err)
	}
	created, err = EnsureCollection(db, "Ideas")
	if err != nil || created {
		t.Fatalf("EnsureCollection(Ideas) again = %v, %v; want not created", created, err)
	}

	infos, err := ListCollections(db)
	if err != nil {
		t.Fatalf("ListCollections failed: %v", err)
	}
	want := []CollectionInfo{{"Default", 0}, {"Work", 2}, {"Ideas", 0}}
	if len(infos) != len(want) {
		t.Fatalf("ListCollections = %v, want %v", infos, want)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("ListCollections[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestRenameCollection(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{
		Notes:       []note.Note{newTestNote("a", "Work", 0, 1)},
		Collections: []string{"Default", "Work", "Ideas"},
	})

	if err := RenameCollection(db, "Work", "Job"); err != nil {
		t.Fatalf("RenameCollection failed: %v", err)
	}

	state, _ := LoadState(db)
	if state.Collections[1] != "Job" {
		t.Errorf("Collections = %v, want Job at position 1", state.Collections)
	}
	if state.Notes[0].Collection != "Job" {
		t.Errorf("note collection = %q, want Job", state.Notes[0].Collection)
	}

	if err := RenameCollection(db, "Nope", "X"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("RenameCollection should return ErrNotFound, got: %v", err)
	}
}

func TestDeleteCollection(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, note.State{
		Notes:       []note.Note{newTestNote("a", "Work", 0, 1), newTestNote("b", "Work", 0, 2), newTestNote("c", "Default", 0, 3)},
		Collections: []string{"Default", "Work"},
	})

	moved, err := DeleteCollection(db, "Work")
	if err != nil {
		t.Fatalf("DeleteCollection failed: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}
	if ok, _ := CollectionExists(db, "Work"); ok {
		t.Error("Work should be gone")
	}
	count, _ := CountNotes(db, "Default")
	if count != 3 {
		t.Errorf("Default count = %d, want 3", count)
	}

	if _, err := DeleteCollection(db, "Work"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteCollection should return ErrNotFound, got: %v", err)
	}
}

func TestImportRuns(t *testing.T) {
	db := openTestDB(t)

	runs := []ImportRun{
		{ID: "01A", Source: "one.zip", Imported: 3, Skipped: 1, Errors: 0, CreatedAt: 100},
		{ID: "01B", Source: "two.zip", Imported: 0, Skipped: 5, Errors: 2, CreatedAt: 200},
	}
	for i := range runs {
		if err := InsertImportRun(db, &runs[i]); err != nil {
			t.Fatalf("InsertImportRun failed: %v", err)
		}
	}

	got, err := ListImportRuns(db, 0)
	if err != nil {
		t.Fatalf("ListImportRuns failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "01B" || got[1] != runs[0] {
		t.Errorf("ListImportRuns = %+v", got)
	}

	limited, err := ListImportRuns(db, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("ListImportRuns(1) = %v, %v", limited, err)
	}
}

func noteIDs(notes []note.Note) []string {
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

func ptr[T any](v T) *T {
	return &v
}
