package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nerdbook/internal/kernel/jsk"
	"nerdbook/internal/notebook"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "a", CellID: 1, Code: "1", Output: "Return value: 1", Status: notebook.StatusOK, Duration: 3 * time.Millisecond, At: at}))
	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "a", CellID: 2, Code: "x", Output: "Error: Execution error: x is not defined", Status: notebook.StatusError, At: at.Add(time.Second)}))
	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "b", CellID: 1, Code: "2", Output: "Return value: 2", Status: notebook.StatusOK, At: at.Add(2 * time.Second)}))

	entries, err := s.Recent(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].CellID, "newest first")
	assert.Equal(t, "error", entries[0].Status)
	assert.Equal(t, 1, entries[1].CellID)
	assert.Equal(t, 3*time.Millisecond, entries[1].Duration)
	assert.True(t, entries[1].At.Equal(at))

	all, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].SessionID)
}

func TestSessions(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "a", CellID: 1, Status: notebook.StatusOK}))
	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "a", CellID: 2, Status: notebook.StatusError}))
	require.NoError(t, s.Record(ctx, notebook.Execution{SessionID: "b", CellID: 1, Status: notebook.StatusOK}))

	sessions, err = s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, "a", sessions[1].ID)
	assert.Equal(t, 2, sessions[1].Executions)
	assert.Equal(t, 1, sessions[1].Failures)
}

func TestNotebookRecordsIntoJournal(t *testing.T) {
	s := openMemory(t)
	nb := notebook.New(jsk.New(), notebook.WithoutExampleCell(), notebook.WithRecorder(s))
	c := nb.AddCell("console.log('hi'); 6 * 7")

	out, err := c.Execute(context.Background())
	require.NoError(t, err)

	entries, err := s.Recent(context.Background(), nb.SessionID(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, out, entries[0].Output)
	assert.Equal(t, "hi\n\nReturn value: 42", entries[0].Output)
	assert.Equal(t, "ok", entries[0].Status)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), notebook.Execution{SessionID: "s", CellID: 1, Status: notebook.StatusOK}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Recent(context.Background(), "s", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, path, reopened.Path())
}
