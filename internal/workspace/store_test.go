package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommyzliu/stickies/internal/persist"
)

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "workspaces.cbor"))

	reg, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, NewRegistry(), reg)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workspaces.cbor")
	store := NewFileStore(path)

	m, err := NewManager(NewRegistry(), Options{Saver: store, Logger: discardLogger()})
	require.NoError(t, err)
	m.Create("Work")
	m.Create("Home")
	require.NoError(t, m.AddAvatar("2", "media://local/avatar/2/card-a"))
	require.NoError(t, m.BeginTransition("2"))
	require.NoError(t, m.CommitTransition())
	require.NoError(t, m.BeginTransition("1"))

	reg, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "2", reg.CurrentID)
	assert.Equal(t, "2", reg.LastID)
	assert.Equal(t, None, reg.ChangingToID, "pending transitions are not persisted")
	assert.Equal(t, "Home", reg.Workspaces["2"].Name)
	assert.Equal(t, []string{"media://local/avatar/2/card-a"}, reg.Workspaces["2"].Avatars)
	assert.Equal(t, []string{}, reg.Workspaces["1"].Avatars)

	restarted, err := NewManager(reg, Options{Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "3", restarted.Create("Next"))

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreSaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := NewFileStore(filepath.Join(dir, "a.cbor"))
	b := NewFileStore(filepath.Join(dir, "b.cbor"))

	reg := NewRegistry()
	for _, id := range []string{"1", "2", "3"} {
		reg.Workspaces[id] = &Workspace{Name: "ws" + id, Avatars: []string{}}
	}
	reg.LastID = "3"

	require.NoError(t, a.Save(reg))
	require.NoError(t, b.Save(reg))

	dataA, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	dataB, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.Equal(t, dataA, dataB)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.cbor")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00}, 0644))

	_, _, err := NewFileStore(path).Load()
	assert.True(t, errors.Is(err, persist.ErrPersistence))
}

func TestBootstrap(t *testing.T) {
	m := newTestManager(t, Options{})

	require.NoError(t, Bootstrap(m, "Main"))
	ws, err := m.CurrentWorkspace()
	require.NoError(t, err)
	assert.Equal(t, "Main", ws.Name)
	assert.Equal(t, "1", m.CurrentID())

	// A second bootstrap leaves an existing registry alone.
	require.NoError(t, Bootstrap(m, "Other"))
	assert.Equal(t, "1", m.LastID())
}

func TestBootstrapRepairsDanglingCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.cbor")
	store := NewFileStore(path)

	// A first run that stopped after Create but before the switch.
	first, err := NewManager(NewRegistry(), Options{Saver: store, Logger: discardLogger()})
	require.NoError(t, err)
	first.Create("Main")

	reg, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "0", reg.CurrentID)

	m, err := NewManager(reg, Options{Saver: store, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, Bootstrap(m, "Other"))

	ws, err := m.CurrentWorkspace()
	require.NoError(t, err)
	assert.Equal(t, "Main", ws.Name)
	assert.Equal(t, "1", m.CurrentID())
	assert.Len(t, m.List(), 1, "no extra workspace is created")

	reg, _, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "1", reg.CurrentID)
}
