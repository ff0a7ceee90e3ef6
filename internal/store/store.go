package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPersistenceFailed wraps any disk error raised by Save. Callers must
// surface it; a mutation whose save failed has not happened.
var ErrPersistenceFailed = errors.New("persistence failed")

// Store persists one collection of records as a JSON array in a single
// file. It has no domain knowledge; registries own one Store each.
type Store[T any] struct {
	path string
}

func New[T any](path string) (*Store[T], error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return &Store[T]{path: path}, nil
}

func (s *Store[T]) Path() string { return s.path }

// Load reads the full collection. A missing or empty file yields an empty
// slice; malformed content is an error.
func (s *Store[T]) Load() ([]T, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistenceFailed, s.path, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return []T{}, nil
	}
	var records []T
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// Save writes the full collection atomically: marshal, write a temp file
// in the same directory, fsync, rename over the target. A failed save
// leaves the previous file content intact.
func (s *Store[T]) Save(records []T) error {
	if records == nil {
		records = []T{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistenceFailed, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrPersistenceFailed, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrPersistenceFailed, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistenceFailed, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrPersistenceFailed, s.path, err)
	}
	return nil
}
