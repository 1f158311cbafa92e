package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/infra"
	"github.com/eliteGoblin/focusd/site_block/internal/policy"
)

// fakeClock implements domain.Clock with a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTimers records arm/cancel calls without real scheduling.
type fakeTimers struct {
	mu     sync.Mutex
	armed  map[string]time.Duration
	cancel []string
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{armed: map[string]time.Duration{}}
}

func (t *fakeTimers) Arm(id string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed[id] = d
}

func (t *fakeTimers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.armed, id)
	t.cancel = append(t.cancel, id)
}

func (t *fakeTimers) armedFor(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.armed[id]
	return d, ok
}

// memRules is an in-memory domain.RuleTable for assertions.
type memRules struct {
	mu       sync.Mutex
	domains  []string
	replaces int
	removed  []string
}

func (r *memRules) Replace(domains []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = append([]string(nil), domains...)
	r.replaces++
	return nil
}

func (r *memRules) RemoveDomain(d string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.domains[:0]
	for _, existing := range r.domains {
		if existing != d {
			kept = append(kept, existing)
		}
	}
	r.domains = kept
	r.removed = append(r.removed, d)
	return nil
}

func (r *memRules) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = nil
	return nil
}

func (r *memRules) Rules() ([]domain.BlockRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BlockRule, len(r.domains))
	for i, d := range r.domains {
		out[i] = domain.BlockRule{ID: i + 1, Domain: d}
	}
	return out, nil
}

func (r *memRules) current() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.domains...)
}

// memHistory is an in-memory domain.HistoryStore.
type memHistory struct {
	mu           sync.Mutex
	sessions     []domain.SessionRecord
	distractions []struct {
		domain string
		at     int64
	}
}

func (h *memHistory) AppendSession(rec domain.SessionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, rec)
	return nil
}

func (h *memHistory) RecentSessions(limit int) ([]domain.SessionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.sessions)
	if limit < n {
		n = limit
	}
	out := make([]domain.SessionRecord, 0, n)
	for i := len(h.sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.sessions[i])
	}
	return out, nil
}

func (h *memHistory) RecordDistraction(d string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.distractions = append(h.distractions, struct {
		domain string
		at     int64
	}{d, at.Unix()})
	return nil
}

func (h *memHistory) DistractionCount(d string, since time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.distractions {
		if e.domain == d && e.at >= since.Unix() {
			n++
		}
	}
	return n, nil
}

func (h *memHistory) TotalDistractions() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.distractions), nil
}

func (h *memHistory) Prune(before time.Time) error { return nil }
func (h *memHistory) Close() error                 { return nil }

var (
	_ domain.RuleTable    = (*memRules)(nil)
	_ domain.HistoryStore = (*memHistory)(nil)
	_ domain.Timers       = (*fakeTimers)(nil)
	_ domain.Clock        = (*fakeClock)(nil)
)

// testFixture bundles an engine with its fakes.
type testFixture struct {
	engine  *Engine
	store   *infra.MemoryStateStore
	rules   *memRules
	history *memHistory
	clock   *fakeClock
	timers  *fakeTimers
}

// A Tuesday morning, outside any default schedule.
var testStart = time.Date(2024, 6, 11, 9, 0, 0, 0, time.Local)

func newTestEngine(t *testing.T) *testFixture {
	t.Helper()

	store := infra.NewMemoryStateStore()
	rules := &memRules{}
	history := &memHistory{}
	clock := newFakeClock(testStart)
	timers := newFakeTimers()

	groups := policy.NewRegistryWithGroups(policy.Group{
		ID:      "social",
		Name:    "Social Media",
		Domains: []string{"facebook.com", "x.com"},
	})

	engine := NewEngine(store, rules, history, clock, timers, groups, policy.NewQuotes(), zap.NewNop())
	return &testFixture{
		engine:  engine,
		store:   store,
		rules:   rules,
		history: history,
		clock:   clock,
		timers:  timers,
	}
}

func (f *testFixture) mustSetBlocklist(t *testing.T, domains ...string) {
	t.Helper()
	require.NoError(t, f.engine.UpdateBlocklist(domains))
}
