package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the durable license table. Implementations own the collection
// exclusively; the engine and the asset gate never cache records across
// requests.
//
// Persist must be called after every mutation before the mutation is
// considered committed. A Persist error means in-memory and durable state
// may disagree; callers surface it as a failed operation.
type Store interface {
	Get(key string) (License, bool)
	Put(key string, lic License)
	Delete(key string)
	All() map[string]License
	Persist() error
}

// FileStore keeps the license table in memory and snapshots the whole table
// to a single JSON file on every Persist. Not safe for concurrent use on its
// own; the engine serializes access.
type FileStore struct {
	path     string
	licenses map[string]License
}

// OpenFileStore loads the license table from path. A missing file starts an
// empty table; an unreadable or corrupt file is an error so that startup
// halts instead of silently running empty against pre-existing data.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, licenses: make(map[string]License)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read license file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fs.licenses); err != nil {
		return nil, fmt.Errorf("parse license file %s: %w", path, err)
	}
	for key, lic := range fs.licenses {
		if lic.Key == "" {
			// Older snapshots stored the key only as the map key.
			lic.Key = key
			fs.licenses[key] = lic
		}
	}
	return fs, nil
}

// Get returns the license for key.
func (s *FileStore) Get(key string) (License, bool) {
	lic, ok := s.licenses[key]
	return lic, ok
}

// Put inserts or overwrites the license for key.
func (s *FileStore) Put(key string, lic License) {
	s.licenses[key] = lic
}

// Delete removes the license for key. Used by the engine to roll back an
// insert whose Persist failed.
func (s *FileStore) Delete(key string) {
	delete(s.licenses, key)
}

// All returns a copy of the license table for administrative listing.
func (s *FileStore) All() map[string]License {
	out := make(map[string]License, len(s.licenses))
	for k, v := range s.licenses {
		out[k] = v
	}
	return out
}

// Persist writes the whole table as an indented JSON snapshot. The write
// goes to a temp file first and is renamed into place so a crash mid-write
// never leaves a truncated license file behind.
func (s *FileStore) Persist() error {
	data, err := json.MarshalIndent(s.licenses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal license table: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create license dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write license snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit license snapshot: %w", err)
	}
	return nil
}

// CheckWritable verifies the snapshot location accepts writes by creating
// and removing a probe file next to it. Used by the health endpoint.
func (s *FileStore) CheckWritable() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("license dir not writable: %w", err)
	}
	probe := s.path + ".probe"
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return fmt.Errorf("license dir not writable: %w", err)
	}
	return os.Remove(probe)
}

// Path returns the backing file path. Diagnostics only.
func (s *FileStore) Path() string {
	return s.path
}
