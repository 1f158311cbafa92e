package infra

import (
	"encoding/json"
	"sync"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// MemoryStateStore is an in-memory domain.StateStore with the same
// defaults and size-ceiling semantics as the file store. Used by tests
// and by anything that wants a throwaway engine.
type MemoryStateStore struct {
	mu       sync.Mutex
	doc      map[string]json.RawMessage
	defaults map[string]json.RawMessage

	// SetErr, when non-nil, is returned by every Set (for failure-path
	// tests).
	SetErr error
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		doc:      map[string]json.RawMessage{},
		defaults: domain.DefaultState(),
	}
}

// Get returns the requested keys, defaults filled in.
func (s *MemoryStateStore) Get(keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := s.doc[k]; ok {
			out[k] = v
		} else if d, ok := s.defaults[k]; ok {
			out[k] = d
		}
	}
	return out, nil
}

// Set merges the partial record, honoring the payload ceiling.
func (s *MemoryStateStore) Set(partial map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SetErr != nil {
		return s.SetErr
	}

	merged := make(map[string]json.RawMessage, len(s.doc)+len(partial))
	for k, v := range s.doc {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if len(data) > MaxStatePayload {
		return domain.ErrPayloadTooLarge
	}
	s.doc = merged
	return nil
}

// Ensure MemoryStateStore implements domain.StateStore.
var _ domain.StateStore = (*MemoryStateStore)(nil)
