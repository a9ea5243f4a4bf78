package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"go.uber.org/zap"
)

// IDSet is a persistent set of chat or user ids. All mutations go through
// one serialized queue; reads are synchronous and reflect every mutation
// whose handle has resolved. Backup is a separate queued task, so a crash
// between a mutation and its backup loses the mutation. Restart state is
// whatever the last completed backup recorded.
type IDSet struct {
	q     *Queue
	store snapshot.Store
	key   string
	log   *zap.Logger

	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewIDSet restores the set from its last backup. Loading is best effort:
// a missing or malformed snapshot leaves the set empty and logs why.
func NewIDSet(ctx context.Context, store snapshot.Store, key string, log *zap.Logger) *IDSet {
	s := &IDSet{
		q:     NewQueue(),
		store: store,
		key:   key,
		log:   log.Named("idset." + key),
		ids:   make(map[int64]struct{}),
	}
	s.load(ctx)
	return s
}

func (s *IDSet) load(ctx context.Context) {
	data, err := s.store.Load(ctx, s.key)
	if err != nil {
		s.log.Warn("cant load backup, starting empty", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		s.log.Warn("malformed backup, starting empty", zap.Error(err))
		return
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Add enqueues insertion of id. Inserting an already present id is a no-op
// that still resolves successfully.
func (s *IDSet) Add(id int64) *Handle {
	return s.q.Enqueue(func(context.Context) error {
		s.mu.Lock()
		s.ids[id] = struct{}{}
		s.mu.Unlock()
		return nil
	})
}

// Discard enqueues removal of id. Removing an absent id is a no-op.
func (s *IDSet) Discard(id int64) *Handle {
	return s.q.Enqueue(func(context.Context) error {
		s.mu.Lock()
		delete(s.ids, id)
		s.mu.Unlock()
		return nil
	})
}

// Contains reports membership. It does not wait for queued mutations.
func (s *IDSet) Contains(id int64) bool {
	s.mu.RLock()
	_, ok := s.ids[id]
	s.mu.RUnlock()
	return ok
}

// Snapshot returns the current members sorted ascending.
func (s *IDSet) Snapshot() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Backup enqueues a snapshot save of the state as of when the task runs,
// so it captures every mutation enqueued before it.
func (s *IDSet) Backup() *Handle {
	return s.q.Enqueue(func(ctx context.Context) error {
		data, err := json.Marshal(s.Snapshot())
		if err != nil {
			return fmt.Errorf("resource: marshal id set: %w", err)
		}
		return s.store.Save(ctx, s.key, data)
	})
}

// Close stops the mutation queue. Queued-but-unstarted tasks are abandoned.
func (s *IDSet) Close() {
	s.q.Close()
}
