package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// A Wednesday at 10:30 local time.
var wednesday = time.Date(2024, 6, 12, 10, 30, 0, 0, time.Local)

func liveNuclear(now time.Time) domain.NuclearLock {
	return domain.NuclearLock{Active: true, EndsAt: now.Add(time.Hour).Unix()}
}

func focusSession(now time.Time) domain.SessionState {
	return domain.SessionState{
		Status:          domain.StatusFocus,
		StartedAt:       now.Add(-time.Minute).Unix(),
		DurationSeconds: 1500,
		Cycle:           1,
	}
}

func activeSchedule() domain.Schedule {
	return domain.Schedule{
		Enabled:   true,
		Days:      []int{int(wednesday.Weekday())},
		StartTime: "09:00",
		EndTime:   "17:00",
	}
}

// All three sources on, then peeled off one at a time: nuclear wins,
// then focus session, then schedule, then none.
func TestEvaluate_Precedence(t *testing.T) {
	now := wednesday
	nuclear := liveNuclear(now)
	session := focusSession(now)
	sched := activeSchedule()

	got := Evaluate(now, nuclear, session, sched)
	assert.Equal(t, domain.Activation{Active: true, Reason: domain.ReasonNuclear}, got)

	got = Evaluate(now, domain.NuclearLock{}, session, sched)
	assert.Equal(t, domain.Activation{Active: true, Reason: domain.ReasonFocusSession}, got)

	got = Evaluate(now, domain.NuclearLock{}, domain.IdleSession(), sched)
	assert.Equal(t, domain.Activation{Active: true, Reason: domain.ReasonSchedule}, got)

	got = Evaluate(now, domain.NuclearLock{}, domain.IdleSession(), domain.Schedule{})
	assert.Equal(t, domain.Activation{Active: false, Reason: domain.ReasonNone}, got)
}

// An expired nuclear flag does not activate, even if still stored active.
func TestEvaluate_ExpiredNuclearDoesNotActivate(t *testing.T) {
	now := wednesday
	stale := domain.NuclearLock{Active: true, EndsAt: now.Add(-time.Minute).Unix()}

	got := Evaluate(now, stale, domain.IdleSession(), domain.Schedule{})
	assert.False(t, got.Active)
	assert.Equal(t, domain.ReasonNone, got.Reason)
}

// Breaks and long breaks contribute no activation on their own.
func TestEvaluate_BreaksDoNotActivate(t *testing.T) {
	now := wednesday
	for _, status := range []domain.SessionStatus{domain.StatusBreak, domain.StatusLongBreak} {
		s := domain.SessionState{Status: status, StartedAt: now.Unix(), DurationSeconds: 300, Cycle: 2}
		got := Evaluate(now, domain.NuclearLock{}, s, domain.Schedule{})
		assert.False(t, got.Active, string(status))
	}
}

func TestSchedule_ActiveAt(t *testing.T) {
	tests := []struct {
		name  string
		sched domain.Schedule
		at    time.Time
		want  bool
	}{
		{
			name:  "inside window",
			sched: activeSchedule(),
			at:    wednesday,
			want:  true,
		},
		{
			name:  "disabled",
			sched: domain.Schedule{Enabled: false, Days: []int{3}, StartTime: "09:00", EndTime: "17:00"},
			at:    wednesday,
			want:  false,
		},
		{
			name:  "wrong day",
			sched: domain.Schedule{Enabled: true, Days: []int{0, 6}, StartTime: "09:00", EndTime: "17:00"},
			at:    wednesday,
			want:  false,
		},
		{
			name:  "before window",
			sched: domain.Schedule{Enabled: true, Days: []int{3}, StartTime: "11:00", EndTime: "17:00"},
			at:    wednesday,
			want:  false,
		},
		{
			name:  "after window",
			sched: domain.Schedule{Enabled: true, Days: []int{3}, StartTime: "06:00", EndTime: "09:00"},
			at:    wednesday,
			want:  false,
		},
		{
			name:  "boundary start inclusive",
			sched: domain.Schedule{Enabled: true, Days: []int{3}, StartTime: "10:30", EndTime: "17:00"},
			at:    wednesday,
			want:  true,
		},
		{
			name:  "boundary end inclusive",
			sched: domain.Schedule{Enabled: true, Days: []int{3}, StartTime: "09:00", EndTime: "10:30"},
			at:    wednesday,
			want:  true,
		},
		{
			// Overnight windows never match under lexicographic
			// comparison; documented behavior.
			name:  "overnight window never active",
			sched: domain.Schedule{Enabled: true, Days: []int{3}, StartTime: "22:00", EndTime: "06:00"},
			at:    wednesday,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sched.ActiveAt(tt.at))
		})
	}
}

func TestRegistry_EmbeddedCatalog(t *testing.T) {
	r, err := NewRegistry()
	assert.NoError(t, err)

	ids := r.List()
	assert.NotEmpty(t, ids)
	assert.True(t, r.Has("social"))

	g, ok := r.Get("social")
	assert.True(t, ok)
	assert.NotEmpty(t, g.Domains)
	assert.Equal(t, "Social Media", g.Name)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestQuotes_PickCycles(t *testing.T) {
	q := NewQuotes()
	assert.NotEmpty(t, q.Pick(0))
	assert.Equal(t, q.Pick(0), q.Pick(0))
	assert.NotPanics(t, func() { q.Pick(-7) })
}
