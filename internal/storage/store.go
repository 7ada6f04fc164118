package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store is a flat directory of recording artifacts. Names are always
// reduced to their basename before use, so a name arriving over the wire
// cannot escape the store.
type Store struct {
	dir string
}

// NewSessionStore creates a fresh session directory under root, named
// from the session start time, and returns a store rooted there.
func NewSessionStore(root string, start time.Time) (*Store, error) {
	dir := filepath.Join(root, start.Format("session_2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Open returns a store over an existing (or newly created) directory
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path for a name within the store
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Put writes data under name atomically: the file appears under its final
// name only once fully written, so a partially written artifact is never
// visible to readers of the store.
func (s *Store) Put(name string, data []byte) (string, error) {
	final := s.Path(name)

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", final, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to rename temp file to %s: %w", final, err)
	}

	return final, nil
}

// Create opens a file for incremental writing, as the serial receiver
// needs: received bytes are flushed as they arrive and a failed transfer
// deliberately leaves the partial file in place.
func (s *Store) Create(name string) (*os.File, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.Path(name), err)
	}
	return f, nil
}

// List returns the sorted names of files with the given extension
func (s *Store) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// Read returns the contents of a stored artifact
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path(name), err)
	}
	return data, nil
}

// ModTime returns an artifact's modification time, used as the recording
// timestamp when tagging transcripts.
func (s *Store) ModTime(name string) (time.Time, error) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", s.Path(name), err)
	}
	return info.ModTime(), nil
}

// Remove deletes a stored artifact
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.Path(name), err)
	}
	return nil
}
