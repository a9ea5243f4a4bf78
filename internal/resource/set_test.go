package resource_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/denyshon/tg-load/internal/resource"
	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFileStore(t *testing.T) snapshot.Store {
	t.Helper()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIDSet_AddDiscardContains(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resource.NewIDSet(ctx, newFileStore(t), "chats", zap.NewNop())
	defer s.Close()

	require.False(t, s.Contains(42))

	require.NoError(t, waitHandle(t, s.Add(42)))
	require.NoError(t, waitHandle(t, s.Add(7)))
	require.True(t, s.Contains(42))
	require.True(t, s.Contains(7))

	// adding twice is a no-op
	require.NoError(t, waitHandle(t, s.Add(42)))
	require.Equal(t, []int64{7, 42}, s.Snapshot())

	require.NoError(t, waitHandle(t, s.Discard(42)))
	require.False(t, s.Contains(42))

	// discarding an absent id still succeeds
	require.NoError(t, waitHandle(t, s.Discard(999)))
}

func TestIDSet_BackupAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	s := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	require.NoError(t, waitHandle(t, s.Add(3)))
	require.NoError(t, waitHandle(t, s.Add(-10)))
	require.NoError(t, waitHandle(t, s.Add(25)))
	require.NoError(t, waitHandle(t, s.Backup()))
	s.Close()

	data, err := store.Load(ctx, "chats")
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, json.Unmarshal(data, &ids))
	require.Equal(t, []int64{-10, 3, 25}, ids, "snapshot must be sorted")

	restored := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	defer restored.Close()
	require.Equal(t, []int64{-10, 3, 25}, restored.Snapshot())
}

func TestIDSet_EmptyBackupRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	s := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	require.NoError(t, waitHandle(t, s.Backup()))
	s.Close()

	restored := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	defer restored.Close()
	require.Empty(t, restored.Snapshot())
}

func TestIDSet_MalformedBackupStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, "chats", []byte("{not json")))

	s := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	defer s.Close()
	require.Empty(t, s.Snapshot())

	// the set still works after a failed load
	require.NoError(t, waitHandle(t, s.Add(1)))
	require.True(t, s.Contains(1))
}

func TestIDSet_BackupSeesEarlierMutations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	s := resource.NewIDSet(ctx, store, "chats", zap.NewNop())
	defer s.Close()

	// not awaited individually: the backup task runs after them anyway
	s.Add(1)
	s.Add(2)
	require.NoError(t, waitHandle(t, s.Backup()))

	data, err := store.Load(ctx, "chats")
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, json.Unmarshal(data, &ids))
	require.Equal(t, []int64{1, 2}, ids)
}
