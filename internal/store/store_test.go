package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fred913/scadstudio/internal/diag"
	"github.com/fred913/scadstudio/internal/history"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sample(id, code string) history.Checkpoint {
	return history.Checkpoint{
		ID:         id,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Code:       code,
		ChangeType: history.ChangeUser,
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "cube(1);")))
	require.NoError(t, a.Close())

	// Reopening applies no schema twice and keeps the data.
	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveAndList_RoundTrip(t *testing.T) {
	a := openTestArchive(t)
	line := 7
	cp := history.Checkpoint{
		ID:        "cp-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Code:      "cube(x);",
		Diagnostics: []diag.Diagnostic{
			{Severity: diag.SeverityWarning, Line: &line, Message: "unknown variable x in line 7"},
		},
		Description: "initial load",
		ChangeType:  history.ChangeFileLoad,
	}
	require.NoError(t, a.SaveCheckpoint(cp))

	got, err := a.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cp.ID, got[0].ID)
	assert.Equal(t, cp.Code, got[0].Code)
	assert.Equal(t, cp.Description, got[0].Description)
	assert.Equal(t, history.ChangeFileLoad, got[0].ChangeType)
	assert.True(t, cp.Timestamp.Equal(got[0].Timestamp))
	require.Len(t, got[0].Diagnostics, 1)
	assert.Equal(t, diag.SeverityWarning, got[0].Diagnostics[0].Severity)
	require.NotNil(t, got[0].Diagnostics[0].Line)
	assert.Equal(t, 7, *got[0].Diagnostics[0].Line)
}

func TestSave_DuplicateIDIgnored(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "v1")))
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "v2")))

	got, err := a.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].Code, "first write wins")
}

func TestList_LimitKeepsNewest(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "one")))
	require.NoError(t, a.SaveCheckpoint(sample("cp-2", "two")))
	require.NoError(t, a.SaveCheckpoint(sample("cp-3", "three")))

	got, err := a.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Code, "bounded list keeps the newest, oldest first")
	assert.Equal(t, "three", got[1].Code)
}

func TestGet(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "cube(1);")))

	got, err := a.Get(context.Background(), "cp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cube(1);", got.Code)

	missing, err := a.Get(context.Background(), "cp-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPrune(t *testing.T) {
	a := openTestArchive(t)
	for _, id := range []string{"cp-1", "cp-2", "cp-3", "cp-4"} {
		require.NoError(t, a.SaveCheckpoint(sample(id, id)))
	}

	require.NoError(t, a.Prune(context.Background(), 2))

	got, err := a.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cp-3", got[0].ID)
	assert.Equal(t, "cp-4", got[1].ID)
}

func TestClear(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.SaveCheckpoint(sample("cp-1", "x")))
	require.NoError(t, a.Clear())

	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngineIntegration_ArchivePersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	a, err := Open(path)
	require.NoError(t, err)

	e := history.NewEngine(history.WithIDGenerator(&history.SeqGenerator{}), history.WithArchive(a))
	_, err = e.Create("cube(1);", nil, "first", history.ChangeUser)
	require.NoError(t, err)
	_, err = e.Create("cube(2);", nil, "second", history.ChangeAI)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// New session: seed a fresh engine from the archive.
	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	saved, err := a.List(context.Background(), history.DefaultLimit)
	require.NoError(t, err)

	e2 := history.NewEngine()
	e2.Seed(saved)
	all := e2.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "cube(1);", all[0].Code)
	assert.Equal(t, "cube(2);", all[1].Code)
	assert.True(t, e2.CanUndo())
}
