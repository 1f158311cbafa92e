// Package usecase contains the focus-session and blocking-policy
// engine: session state machine, nuclear lock, rule synchronization,
// block decisions, overrides, and the message contract the UI
// collaborators speak.
package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// decode unmarshals one key out of a Get result. The store fills
// defaults, so a known key is always present.
func decode[T any](m map[string]json.RawMessage, key string) (T, error) {
	var v T
	raw, ok := m[key]
	if !ok {
		return v, fmt.Errorf("unknown state key %q", key)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("corrupt state under %q: %w", key, err)
	}
	return v, nil
}

// patch accumulates a multi-key write so composite updates (stats +
// streak + counters) land in a single Set.
type patch map[string]json.RawMessage

func (p patch) put(key string, v any) patch {
	raw, err := json.Marshal(v)
	if err != nil {
		// Engine values are plain structs; marshal cannot fail.
		panic(err)
	}
	p[key] = raw
	return p
}

func (p patch) apply(store domain.StateStore) error {
	return store.Set(p)
}
