package sessionstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debughost.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStartAndEndSession(t *testing.T) {
	store := openTestStore(t)

	id, err := store.StartSession("localhost", 7777)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := store.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "localhost", rec.TargetHost)
	assert.Equal(t, 7777, rec.TargetPort)
	assert.Nil(t, rec.EndedAt)

	require.NoError(t, store.EndSession(id))

	rec, err = store.Session(id)
	require.NoError(t, err)
	require.NotNil(t, rec.EndedAt)
}

func TestRecordScriptIncrementsCount(t *testing.T) {
	store := openTestStore(t)
	id, err := store.StartSession("localhost", 7777)
	require.NoError(t, err)

	require.NoError(t, store.RecordScript(id, "script$1", "file:///a.js", "hash-a"))
	require.NoError(t, store.RecordScript(id, "script$2", "file:///b.js", "hash-b"))

	rec, err := store.Session(id)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ScriptCount)

	scripts, err := store.Scripts(id)
	require.NoError(t, err)
	assert.Len(t, scripts, 2)
}

func TestRecordBreakpointSetAndRemoved(t *testing.T) {
	store := openTestStore(t)
	id, err := store.StartSession("localhost", 7777)
	require.NoError(t, err)

	require.NoError(t, store.RecordBreakpointSet(id, "script$1", 10, 0))

	breakpoints, err := store.Breakpoints(id)
	require.NoError(t, err)
	require.Len(t, breakpoints, 1)
	assert.Nil(t, breakpoints[0].RemovedAt)

	require.NoError(t, store.RecordBreakpointRemoved(id, "script$1", 10, 0))

	breakpoints, err = store.Breakpoints(id)
	require.NoError(t, err)
	require.Len(t, breakpoints, 1)
	assert.NotNil(t, breakpoints[0].RemovedAt)
}

func TestScriptsAndBreakpointsAreSessionScoped(t *testing.T) {
	store := openTestStore(t)
	idA, err := store.StartSession("localhost", 7777)
	require.NoError(t, err)
	idB, err := store.StartSession("localhost", 7778)
	require.NoError(t, err)

	require.NoError(t, store.RecordScript(idA, "script$1", "file:///a.js", "hash-a"))
	require.NoError(t, store.RecordScript(idB, "script$1", "file:///a.js", "hash-a"))

	scriptsA, err := store.Scripts(idA)
	require.NoError(t, err)
	assert.Len(t, scriptsA, 1)

	scriptsB, err := store.Scripts(idB)
	require.NoError(t, err)
	assert.Len(t, scriptsB, 1)
}
