package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store persists named state snapshots. Implementations MUST replace the
// previous snapshot atomically: after a crash a reader sees either the old
// snapshot or the new one, never a mix.
type Store interface {
	// Save replaces the snapshot under key with data.
	Save(ctx context.Context, key string, data []byte) error
	// Load returns the snapshot under key, or (nil, nil) if none exists.
	Load(ctx context.Context, key string) ([]byte, error)

	Close() error
}

// FileStore keeps one file per key in a directory, written through the
// atomic writer above.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot: required dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.New("snapshot: required key")
	}
	return Write(ctx, filepath.Join(s.dir, key+".json"), data)
}

func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("snapshot: required key")
	}
	return Read(ctx, filepath.Join(s.dir, key+".json"))
}

func (s *FileStore) Close() error {
	return nil
}

// BoltStore keeps all snapshots in one bbolt bucket. Bolt commits each
// update transactionally, so a single Put gives the same old-or-new
// guarantee the file writer does.
type BoltStore struct {
	db *bolt.DB
}

const boltSnapshotsBucket = "tgload-snapshots"

func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("snapshot: required bolt path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600,
		&bolt.Options{Timeout: time.Second},
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: opening bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists([]byte(boltSnapshotsBucket))
		return berr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: cant init bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(ctx context.Context, key string, data []byte) error {
	if s.db == nil {
		return errors.New("snapshot: bolt not init")
	} else if key == "" {
		return errors.New("snapshot: required key")
	} else if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltSnapshotsBucket))
		if b == nil {
			return errors.New("snapshot: bucket miss")
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, errors.New("snapshot: bolt not init")
	} else if key == "" {
		return nil, errors.New("snapshot: required key")
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltSnapshotsBucket))
		if b == nil {
			return errors.New("snapshot: bucket miss")
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
