package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fred913/scadstudio/internal/history"
	"github.com/fred913/scadstudio/internal/store"
)

func seedArchive(t *testing.T, checkpoints ...history.Checkpoint) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	archive, err := store.Open(path)
	require.NoError(t, err)
	defer archive.Close()
	for _, cp := range checkpoints {
		require.NoError(t, archive.SaveCheckpoint(cp))
	}
	return path
}

func execHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryList(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	db := seedArchive(t,
		history.Checkpoint{ID: "cp-1", Timestamp: base, Code: "cube(1);", ChangeType: history.ChangeFileLoad, Description: "initial load"},
		history.Checkpoint{ID: "cp-2", Timestamp: base.Add(time.Minute), Code: "cube(2);", ChangeType: history.ChangeUser},
	)

	out, err := execHistory(t, "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cp-1")
	assert.Contains(t, out, "cp-2")
	assert.Contains(t, out, "fileload")
	assert.Contains(t, out, "initial load")
	assert.Less(t, strings.Index(out, "cp-1"), strings.Index(out, "cp-2"), "oldest first")
}

func TestHistoryListLimitKeepsNewest(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	db := seedArchive(t,
		history.Checkpoint{ID: "cp-1", Timestamp: base, Code: "a", ChangeType: history.ChangeUser},
		history.Checkpoint{ID: "cp-2", Timestamp: base.Add(time.Minute), Code: "b", ChangeType: history.ChangeUser},
		history.Checkpoint{ID: "cp-3", Timestamp: base.Add(2 * time.Minute), Code: "c", ChangeType: history.ChangeUser},
	)

	out, err := execHistory(t, "history", "list", "--db", db, "--limit", "2")
	require.NoError(t, err)
	assert.NotContains(t, out, "cp-1")
	assert.Contains(t, out, "cp-2")
	assert.Contains(t, out, "cp-3")
}

func TestHistoryListEmpty(t *testing.T) {
	db := seedArchive(t)
	out, err := execHistory(t, "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no checkpoints")
}

func TestHistoryListMissingDBFlag(t *testing.T) {
	_, err := execHistory(t, "history", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestHistoryShow(t *testing.T) {
	db := seedArchive(t, history.Checkpoint{
		ID:          "cp-1",
		Timestamp:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Code:        "cube(10);",
		ChangeType:  history.ChangeAI,
		Description: "assistant edit",
	})

	out, err := execHistory(t, "history", "show", "--db", db, "cp-1")
	require.NoError(t, err)
	assert.Contains(t, out, "cp-1")
	assert.Contains(t, out, "ai")
	assert.Contains(t, out, "assistant edit")
	assert.Contains(t, out, "cube(10);")
}

func TestHistoryShowCodeOnly(t *testing.T) {
	db := seedArchive(t, history.Checkpoint{
		ID: "cp-1", Timestamp: time.Now(), Code: "cube(10);", ChangeType: history.ChangeUser,
	})

	out, err := execHistory(t, "history", "show", "--db", db, "--code", "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "cube(10);", out)
}

func TestHistoryShowJSON(t *testing.T) {
	db := seedArchive(t, history.Checkpoint{
		ID: "cp-1", Timestamp: time.Now(), Code: "cube(10);", ChangeType: history.ChangeUndo,
	})

	out, err := execHistory(t, "--format", "json", "history", "show", "--db", db, "cp-1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cp-1", data["id"])
	assert.Equal(t, "undo", data["changeType"])
}

func TestHistoryShowNotFound(t *testing.T) {
	db := seedArchive(t)
	_, err := execHistory(t, "history", "show", "--db", db, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestHistoryDiff(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	db := seedArchive(t,
		history.Checkpoint{ID: "cp-1", Timestamp: base, Code: "a\nb\nc", ChangeType: history.ChangeUser},
		history.Checkpoint{ID: "cp-2", Timestamp: base.Add(time.Minute), Code: "a\nx\nc", ChangeType: history.ChangeUser},
	)

	out, err := execHistory(t, "history", "diff", "--db", db, "cp-1", "cp-2")
	require.NoError(t, err)
	assert.Contains(t, out, " a\n-b\n+x\n c")
	assert.Contains(t, out, "+1 -1")
}

func TestHistoryDiffJSON(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	db := seedArchive(t,
		history.Checkpoint{ID: "cp-1", Timestamp: base, Code: "a", ChangeType: history.ChangeUser},
		history.Checkpoint{ID: "cp-2", Timestamp: base.Add(time.Minute), Code: "a\nb", ChangeType: history.ChangeUser},
	)

	out, err := execHistory(t, "--format", "json", "history", "diff", "--db", db, "cp-1", "cp-2")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cp-1", data["fromId"])
	assert.Equal(t, "cp-2", data["toId"])
	assert.Equal(t, float64(1), data["addedLines"])
	assert.Equal(t, float64(0), data["removedLines"])
}

func TestHistoryDiffUnknownCheckpoint(t *testing.T) {
	db := seedArchive(t, history.Checkpoint{
		ID: "cp-1", Timestamp: time.Now(), Code: "a", ChangeType: history.ChangeUser,
	})
	_, err := execHistory(t, "history", "diff", "--db", db, "cp-1", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
