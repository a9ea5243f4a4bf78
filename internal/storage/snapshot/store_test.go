package snapshot_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, store snapshot.Store) {
	t.Helper()
	ctx := context.Background()

	data, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, data, "missing key must load as nil")

	require.NoError(t, store.Save(ctx, "k", []byte("v1")))
	data, err = store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), data)

	require.NoError(t, store.Save(ctx, "k", []byte("v2")))
	data, err = store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	require.Error(t, store.Save(ctx, "", []byte("x")))
	_, err = store.Load(ctx, "")
	require.Error(t, err)
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	testStoreContract(t, store)
}

func TestFileStore_RequiredDir(t *testing.T) {
	t.Parallel()
	_, err := snapshot.NewFileStore("")
	require.Error(t, err)
}

func TestBoltStore(t *testing.T) {
	t.Parallel()
	store, err := snapshot.NewBoltStore(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	defer store.Close()

	testStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.db")

	store, err := snapshot.NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "k", []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := snapshot.NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), data)
}
