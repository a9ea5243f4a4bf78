package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, snapshot.Write(ctx, path, []byte(`{"a":1}`)))

	data, err := snapshot.Read(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":1}`), data)
}

func TestWrite_ReplacesPrevious(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, snapshot.Write(ctx, path, []byte("old")))
	require.NoError(t, snapshot.Write(ctx, path, []byte("new")))

	data, err := snapshot.Read(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)
}

func TestWrite_EmptyPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, snapshot.Write(ctx, path, nil))
	data, err := snapshot.Read(ctx, path)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestWrite_CreatesParentDirs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deep", "nested", "state.json")

	require.NoError(t, snapshot.Write(ctx, path, []byte("x")))
	data, err := snapshot.Read(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), data)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, snapshot.Write(ctx, path, []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "state.json", entries[0].Name())
}

func TestWrite_CancelledContextLeavesDestination(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, snapshot.Write(context.Background(), path, []byte("keep")))

	ctx, canc := context.WithCancel(context.Background())
	canc()
	require.Error(t, snapshot.Write(ctx, path, []byte("lost")))

	data, err := snapshot.Read(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []byte("keep"), data)
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()
	data, err := snapshot.Read(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestWrite_RequiredPath(t *testing.T) {
	t.Parallel()
	require.Error(t, snapshot.Write(context.Background(), "", []byte("x")))
}
