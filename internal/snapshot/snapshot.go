package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"clinicware.com/callboard/internal/store"
)

// File persists the entity store image to a local JSON file. It is written
// after every mutation and read once at client start, so a restarted client
// recovers without waiting for the shared store.
type File struct {
	mu   sync.Mutex
	path string
}

// New returns a snapshot file at the given path.
func New(path string) *File {
	return &File{path: path}
}

// Save atomically replaces the snapshot on disk.
func (f *File) Save(snap store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot from disk. A missing file yields an empty
// snapshot, not an error, so a fresh client starts clean.
func (f *File) Load() (store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return store.Snapshot{}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
