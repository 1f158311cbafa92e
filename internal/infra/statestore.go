// Package infra implements infrastructure concerns (storage, rules,
// history, process, registry).
package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// MaxStatePayload is the serialized-size ceiling for one Set. Writes
// that would push the namespace past it are rejected wholesale.
const MaxStatePayload = 5 << 20 // 5 MiB

const stateFileName = "state.json"

// FileStateStore implements domain.StateStore on a single JSON file.
// The whole namespace is one document; writes are atomic (tmp+rename)
// so a crash mid-write never leaves a torn file.
type FileStateStore struct {
	mu       sync.Mutex
	path     string
	defaults map[string]json.RawMessage
}

// NewFileStateStore creates a store under the given data directory.
func NewFileStateStore(dataDir string) (*FileStateStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStateStore{
		path:     filepath.Join(dataDir, stateFileName),
		defaults: domain.DefaultState(),
	}, nil
}

// Get returns the requested keys with absent values filled from the
// static defaults. A known key is never absent in the result.
func (s *FileStateStore) Get(keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = v
		} else if d, ok := s.defaults[k]; ok {
			out[k] = d
		}
	}
	return out, nil
}

// Set merges the partial record into the namespace. If the merged
// document serializes past MaxStatePayload the write is rejected with
// domain.ErrPayloadTooLarge and nothing changes on disk.
func (s *FileStateStore) Set(partial map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if len(data) > MaxStatePayload {
		return domain.ErrPayloadTooLarge
	}
	return s.atomicWrite(data)
}

func (s *FileStateStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt state file: %w", err)
	}
	return doc, nil
}

// atomicWrite writes state to file atomically (write + rename).
func (s *FileStateStore) atomicWrite(data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileStateStore implements domain.StateStore.
var _ domain.StateStore = (*FileStateStore)(nil)
