package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Write persists data to path atomically: no reader ever observes a
// partially written file. The content goes to a temp file co-located
// with the destination, is fsynced, renamed over the destination, and
// the containing directory is synced so the rename itself survives a
// crash (best effort; not every platform supports directory fsync).
// On any failure the temp file is removed and the destination is left
// untouched.
func Write(ctx context.Context, path string, data []byte) error {
	if path == "" {
		return errors.New("snapshot: required path")
	} else if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: open tmp: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: write tmp: %w", err)
	} else if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: fsync tmp: %w", err)
	} else if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: chmod tmp: %w", err)
	} else if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close tmp: %w", err)
	} else if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename tmp: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable on POSIX filesystems. Failures are
// ignored: some platforms cannot sync a directory handle.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Read loads a snapshot from disk. A missing file is not an error:
// it returns (nil, nil) and the caller keeps its compiled-in default.
func Read(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("snapshot: required path")
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	return data, nil
}
