package ops

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

func TestCreateCollection_Idempotent(t *testing.T) {
	database := openTestDB(t)

	out, err := CreateCollection(database, " Reading ")
	require.NoError(t, err)
	require.Equal(t, "Reading", out.Name)
	require.True(t, out.Created)

	out, err = CreateCollection(database, "Reading")
	require.NoError(t, err)
	require.False(t, out.Created)

	_, err = CreateCollection(database, "")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	list, err := ListCollections(database)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	require.Equal(t, note.DefaultCollection, list.Items[0].Name)
	require.Equal(t, "Reading", list.Items[1].Name)
}

func TestListCollections_Counts(t *testing.T) {
	database := openTestDB(t)
	faker := gofakeit.New(11)
	saveEvent(t, database, testEvent(faker), "Work")
	saveEvent(t, database, testEvent(faker), "Work")
	saveEvent(t, database, testEvent(faker), "")
	_, err := CreateCollection(database, "Empty")
	require.NoError(t, err)

	list, err := ListCollections(database)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, c := range list.Items {
		counts[c.Name] = c.Count
	}
	require.Equal(t, map[string]int{note.DefaultCollection: 1, "Work": 2, "Empty": 0}, counts)
}

func TestRenameCollection(t *testing.T) {
	database := openTestDB(t)
	faker := gofakeit.New(12)
	e := testEvent(faker)
	saveEvent(t, database, e, "Work")
	_, err := CreateCollection(database, "Play")
	require.NoError(t, err)

	out, err := RenameCollection(database, RenameCollectionInput{From: "Work", To: "Job"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Notes)

	got, err := Get(database, GetInput{ID: e.ID})
	require.NoError(t, err)
	require.Equal(t, "Job", got.Collection)

	state, err := db.LoadState(database)
	require.NoError(t, err)
	require.Equal(t, []string{note.DefaultCollection, "Job", "Play"}, state.Collections)

	tests := []struct {
		name  string
		input RenameCollectionInput
		code  errors.ErrorCode
	}{
		{"rename default", RenameCollectionInput{From: note.DefaultCollection, To: "Main"}, errors.ErrReservedCollection},
		{"rename onto default", RenameCollectionInput{From: "Job", To: note.DefaultCollection}, errors.ErrReservedCollection},
		{"blank target", RenameCollectionInput{From: "Job", To: "  "}, errors.ErrInvalidRequest},
		{"same name", RenameCollectionInput{From: "Job", To: "Job"}, errors.ErrInvalidRequest},
		{"taken target", RenameCollectionInput{From: "Job", To: "Play"}, errors.ErrCollectionExists},
		{"missing source", RenameCollectionInput{From: "Ghost", To: "Spirit"}, errors.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RenameCollection(database, tc.input)
			require.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestDeleteCollection_MovesNotesToDefault(t *testing.T) {
	database := openTestDB(t)
	faker := gofakeit.New(13)
	a, b := testEvent(faker), testEvent(faker)
	saveEvent(t, database, a, "Work")
	saveEvent(t, database, b, "Work")

	out, err := DeleteCollection(database, "Work")
	require.NoError(t, err)
	require.Equal(t, 2, out.Moved)

	for _, id := range []string{a.ID, b.ID} {
		got, err := Get(database, GetInput{ID: id})
		require.NoError(t, err)
		require.Equal(t, note.DefaultCollection, got.Collection)
	}

	_, err = DeleteCollection(database, note.DefaultCollection)
	require.True(t, errors.Is(err, errors.ErrReservedCollection))

	_, err = DeleteCollection(database, "Work")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
