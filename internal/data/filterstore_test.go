package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"AvailGate/internal/bloom"
	"AvailGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreAt(t *testing.T, path string) *FilterStore {
	t.Helper()
	return NewFilterStore(&conf.Filter{SnapshotPath: path}, log.DefaultLogger)
}

func TestFilterStoreStartsUnloaded(t *testing.T) {
	store := newStoreAt(t, filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.MayContain("alice")
	assert.ErrorIs(t, err, bloom.ErrFilterNotLoaded)

	_, ok := store.Meta()
	assert.False(t, ok)

	// Add on an unloaded store is a no-op, not a panic.
	assert.NotPanics(t, func() { store.Add("alice") })
}

func TestFilterStoreInstallAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "handles.bloom.json")
	store := newStoreAt(t, path)

	f, err := bloom.BuildFromKeys(context.Background(), []string{"alice", "bob"}, 0.01)
	require.NoError(t, err)
	require.NoError(t, store.Install(f))

	may, err := store.MayContain("alice")
	require.NoError(t, err)
	assert.True(t, may)

	meta, ok := store.Meta()
	require.True(t, ok)
	assert.Equal(t, int64(2), meta.Keys)

	// A fresh store picks the snapshot up from disk.
	reloaded := newStoreAt(t, path)
	may, err = reloaded.MayContain("bob")
	require.NoError(t, err)
	assert.True(t, may)

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFilterStoreInstallReplacesServingFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handles.bloom.json")
	store := newStoreAt(t, path)

	first, err := bloom.BuildFromKeys(context.Background(), []string{"alice"}, 0.01)
	require.NoError(t, err)
	require.NoError(t, store.Install(first))

	second, err := bloom.BuildFromKeys(context.Background(), []string{"carol"}, 0.01)
	require.NoError(t, err)
	require.NoError(t, store.Install(second))

	may, err := store.MayContain("carol")
	require.NoError(t, err)
	assert.True(t, may)
}

func TestFilterStoreAddVisibleImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handles.bloom.json")
	store := newStoreAt(t, path)

	f, err := bloom.BuildFromKeys(context.Background(), []string{"alice"}, 0.01)
	require.NoError(t, err)
	require.NoError(t, store.Install(f))

	store.Add("dave")
	may, err := store.MayContain("dave")
	require.NoError(t, err)
	assert.True(t, may)

	// The in-memory Add is not persisted: a reload loses it.
	reloaded := newStoreAt(t, path)
	_, err = reloaded.MayContain("dave")
	assert.NoError(t, err)
}

func TestFilterStoreIgnoresCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handles.bloom.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := newStoreAt(t, path)
	_, err := store.MayContain("alice")
	assert.ErrorIs(t, err, bloom.ErrFilterNotLoaded)
}
