package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"go.uber.org/zap"
)

// FeatureFlags is the persistent feature on/off map. Same contract as
// IDSet: serialized mutations, synchronous reads, explicit backup.
type FeatureFlags struct {
	q     *Queue
	store snapshot.Store
	key   string
	log   *zap.Logger

	mu    sync.RWMutex
	flags map[string]bool
}

// NewFeatureFlags starts from defaults and overlays the last backup on
// top. Unknown keys in the backup are ignored; a non-bool value for a
// known key keeps the default for that key and logs a load error. Load
// problems never reach callers.
func NewFeatureFlags(ctx context.Context, store snapshot.Store, key string, defaults map[string]bool, log *zap.Logger) *FeatureFlags {
	flags := make(map[string]bool, len(defaults))
	for name, on := range defaults {
		flags[name] = on
	}
	f := &FeatureFlags{
		q:     NewQueue(),
		store: store,
		key:   key,
		log:   log.Named("flags"),
		flags: flags,
	}
	f.load(ctx)
	return f
}

func (f *FeatureFlags) load(ctx context.Context) {
	data, err := f.store.Load(ctx, f.key)
	if err != nil {
		f.log.Warn("cant load backup, using defaults", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		f.log.Warn("malformed backup, using defaults", zap.Error(err))
		return
	}
	for name, val := range raw {
		if _, known := f.flags[name]; !known {
			continue
		}
		var on bool
		if err := json.Unmarshal(val, &on); err != nil {
			f.log.Warn("non-bool flag value in backup, keeping default",
				zap.String("flag", name), zap.Error(err))
			continue
		}
		f.flags[name] = on
	}
}

// Set enqueues setting the named flag. Setting an unknown name creates it.
func (f *FeatureFlags) Set(name string, on bool) *Handle {
	return f.q.Enqueue(func(context.Context) error {
		f.mu.Lock()
		f.flags[name] = on
		f.mu.Unlock()
		return nil
	})
}

// IsEnabled reports the flag state. Unknown names are disabled.
func (f *FeatureFlags) IsEnabled(name string) bool {
	f.mu.RLock()
	on := f.flags[name]
	f.mu.RUnlock()
	return on
}

// Snapshot returns a copy of the current map.
func (f *FeatureFlags) Snapshot() map[string]bool {
	f.mu.RLock()
	out := make(map[string]bool, len(f.flags))
	for name, on := range f.flags {
		out[name] = on
	}
	f.mu.RUnlock()
	return out
}

// Backup enqueues a snapshot save, capturing every mutation enqueued
// before it.
func (f *FeatureFlags) Backup() *Handle {
	return f.q.Enqueue(func(ctx context.Context) error {
		data, err := json.Marshal(f.Snapshot())
		if err != nil {
			return fmt.Errorf("resource: marshal flags: %w", err)
		}
		return f.store.Save(ctx, f.key, data)
	})
}

// Close stops the mutation queue.
func (f *FeatureFlags) Close() {
	f.q.Close()
}
