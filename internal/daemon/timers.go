// Package daemon implements the background process: the run loop, the
// one-shot timer scheduler, and the unix-socket message server the UI
// surfaces talk to.
package daemon

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// TimerSet implements domain.Timers with time.AfterFunc. Arming an
// already-armed id replaces it; firing calls back with the id so the
// engine can route. Stale fires after Cancel are possible by nature of
// AfterFunc; the engine treats them as no-ops.
type TimerSet struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(id string)
}

// NewTimerSet creates a scheduler delivering fires to the given callback.
func NewTimerSet(fire func(id string)) *TimerSet {
	return &TimerSet{
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// Arm schedules (or reschedules) a one-shot fire for id after d.
func (t *TimerSet) Arm(id string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[id]; ok {
		existing.Stop()
	}
	t.timers[id] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		t.fire(id)
	})
}

// Cancel stops the timer for id if armed.
func (t *TimerSet) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[id]; ok {
		existing.Stop()
		delete(t.timers, id)
	}
}

// StopAll cancels everything (shutdown).
func (t *TimerSet) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Ensure TimerSet implements domain.Timers.
var _ domain.Timers = (*TimerSet)(nil)
