package resource_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/resource"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	t.Parallel()
	f := resource.NewFeatureFlags(context.Background(), newFileStore(t), "features",
		core.DefaultFeatures(), zap.NewNop())
	defer f.Close()

	for name := range core.DefaultFeatures() {
		require.Truef(t, f.IsEnabled(name), "feature %s must default to enabled", name)
	}
	require.False(t, f.IsEnabled("never_heard_of_it"))
}

func TestFeatureFlags_MutationVisibleBeforeBackup(t *testing.T) {
	t.Parallel()
	f := resource.NewFeatureFlags(context.Background(), newFileStore(t), "features",
		core.DefaultFeatures(), zap.NewNop())
	defer f.Close()

	require.NoError(t, waitHandle(t, f.Set(core.FeatureInst, false)))
	backup := f.Backup()

	// the resolved mutation is readable whether or not the backup has run
	require.False(t, f.IsEnabled(core.FeatureInst))
	require.NoError(t, waitHandle(t, backup))
	require.False(t, f.IsEnabled(core.FeatureInst))
}

func TestFeatureFlags_BackupRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	f := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), zap.NewNop())
	for name := range core.DefaultFeatures() {
		require.NoError(t, waitHandle(t, f.Set(name, false)))
	}
	require.NoError(t, waitHandle(t, f.Backup()))
	f.Close()

	restored := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), zap.NewNop())
	defer restored.Close()
	for name := range core.DefaultFeatures() {
		require.Falsef(t, restored.IsEnabled(name), "feature %s must restore as disabled", name)
	}
}

func TestFeatureFlags_LoadIgnoresUnknownKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	data, err := json.Marshal(map[string]any{
		"inst":        false,
		"from_future": true,
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "features", data))

	f := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), zap.NewNop())
	defer f.Close()

	require.False(t, f.IsEnabled(core.FeatureInst))
	require.False(t, f.IsEnabled("from_future"), "unknown keys must not be adopted")
	require.True(t, f.IsEnabled(core.FeatureYTM))
}

func TestFeatureFlags_NonBoolValueKeepsDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Save(ctx, "features",
		[]byte(`{"inst":"yes","ytm":false}`)))

	f := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), zap.NewNop())
	defer f.Close()

	require.True(t, f.IsEnabled(core.FeatureInst), "non-bool value must keep the default")
	require.False(t, f.IsEnabled(core.FeatureYTM), "valid keys still apply")
}

func TestFeatureFlags_MalformedBackupUsesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, "features", []byte("[1,2,3]")))

	f := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), zap.NewNop())
	defer f.Close()
	for name := range core.DefaultFeatures() {
		require.True(t, f.IsEnabled(name))
	}
}
