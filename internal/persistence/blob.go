// Package persistence stores the plugin's single settings blob: user
// settings plus the embedding index snapshot under a reserved key. Writes
// are whole-object overwrites; a crash can only leave a stale previous
// snapshot, never a partially updated one.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Blob is the persisted document.
type Blob struct {
	Settings map[string]any  `json:"settings,omitempty"`
	Index    json.RawMessage `json:"index,omitempty"`
}

// Store loads and saves the blob.
type Store interface {
	// Load returns the stored blob, or (nil, nil) when none exists yet.
	Load() (*Blob, error)
	// Save overwrites the stored blob with b.
	Save(b *Blob) error
}

// FileStore persists the blob as a single JSON file on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blob %s: %w", s.path, err)
	}

	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", s.path, err)
	}
	return &b, nil
}

func (s *FileStore) Save(b *Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal blob: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", s.path, err)
	}
	return nil
}
