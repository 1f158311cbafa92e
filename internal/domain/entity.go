// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle phase of the focus timer.
type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusFocus     SessionStatus = "focus"
	StatusBreak     SessionStatus = "break"
	StatusLongBreak SessionStatus = "longBreak"
)

// SessionState is the single active timer record. Status idle means no
// session exists; StartedAt is zero in that case.
//
// RemainingSeconds is a cache, not authoritative: the truth is
// StartedAt + DurationSeconds, and every read after a process gap must
// recompute it via Remaining().
type SessionState struct {
	Status           SessionStatus `json:"status"`
	StartedAt        int64         `json:"started_at,omitempty"` // unix seconds
	DurationSeconds  int           `json:"duration_seconds"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Cycle            int           `json:"cycle"`
}

// Running reports whether a timed phase is in progress.
func (s SessionState) Running() bool {
	return s.Status != StatusIdle && s.StartedAt > 0
}

// Remaining recomputes seconds left from the wall clock, clamped at zero.
func (s SessionState) Remaining(now time.Time) int {
	if !s.Running() {
		return 0
	}
	elapsed := int(now.Unix() - s.StartedAt)
	if elapsed >= s.DurationSeconds {
		return 0
	}
	return s.DurationSeconds - elapsed
}

// DisplayMinutes converts remaining seconds for UI display, rounding up
// so 24:01 left shows as 25 minutes, never 24.
func (s SessionState) DisplayMinutes(now time.Time) int {
	r := s.Remaining(now)
	return (r + 59) / 60
}

// ElapsedFocusedMinutes is whole minutes actually spent, rounded down so
// a session ending one second early never reports a full extra minute.
func (s SessionState) ElapsedFocusedMinutes(now time.Time) int {
	if !s.Running() {
		return 0
	}
	elapsed := now.Unix() - s.StartedAt
	if elapsed < 0 {
		return 0
	}
	capped := int64(s.DurationSeconds)
	if elapsed > capped {
		elapsed = capped
	}
	return int(elapsed / 60)
}

// NuclearLock is the hard-commitment override. While active the normal
// stop/modify paths are refused.
type NuclearLock struct {
	Active bool  `json:"active"`
	EndsAt int64 `json:"ends_at,omitempty"` // unix seconds, meaningful only if Active
}

// Expired reports whether the stored flag is stale. Callers that observe
// an expired lock must persist the correction (lazy expiry).
func (n NuclearLock) Expired(now time.Time) bool {
	return n.Active && now.Unix() >= n.EndsAt
}

// Live reports whether the lock is in force right now.
func (n NuclearLock) Live(now time.Time) bool {
	return n.Active && now.Unix() < n.EndsAt
}

// Schedule is a recurring blocking window in local time.
// StartTime/EndTime are zero-padded 24h "HH:MM" strings; they compare
// lexicographically, which is correct for that format. A schedule with
// EndTime <= StartTime never matches (overnight windows are not
// supported).
type Schedule struct {
	Enabled   bool   `json:"enabled"`
	Days      []int  `json:"days"` // 0=Sunday .. 6=Saturday
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ActiveAt reports whether the window covers the given local instant.
func (sc Schedule) ActiveAt(now time.Time) bool {
	if !sc.Enabled {
		return false
	}
	day := int(now.Weekday())
	match := false
	for _, d := range sc.Days {
		if d == day {
			match = true
			break
		}
	}
	if !match {
		return false
	}
	hm := fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())
	return sc.StartTime <= hm && hm <= sc.EndTime
}

// ActivationReason identifies which source demands blocking.
type ActivationReason string

const (
	ReasonNuclear      ActivationReason = "nuclear"
	ReasonFocusSession ActivationReason = "focusSession"
	ReasonSchedule     ActivationReason = "schedule"
	ReasonNone         ActivationReason = "none"
)

// Activation is the combined blocking decision across all sources.
type Activation struct {
	Active bool             `json:"active"`
	Reason ActivationReason `json:"reason"`
}

// BlockDecision answers "is this domain blocked right now, and why".
type BlockDecision struct {
	Blocked bool             `json:"blocked"`
	Reason  ActivationReason `json:"reason,omitempty"`
}

// BlockRule is one entry in the declarative rule table. A rule matches
// the domain and all its subdomains for top-level navigations and
// redirects to the block page carrying the domain as a parameter.
type BlockRule struct {
	ID       int    `json:"id"`
	Domain   string `json:"domain"`
	Redirect string `json:"redirect"`
}

// OverrideWindow is a time-boxed exception suppressing blocking for one
// domain. Keyed by domain; expiry re-arms the rule automatically.
type OverrideWindow struct {
	Domain    string `json:"domain"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

// SessionRecord is one finished (or aborted) focus session in history.
type SessionRecord struct {
	ID             string `json:"id"`
	StartedAt      int64  `json:"started_at"`
	EndedAt        int64  `json:"ended_at"`
	DurationSecs   int    `json:"duration_seconds"`
	FocusedMinutes int    `json:"focused_minutes"`
	Completed      bool   `json:"completed"`
}

// DailyStats accumulates per-day counters, reset at local-date rollover.
// Date is local "YYYY-MM-DD".
type DailyStats struct {
	Date              string `json:"date"`
	FocusMinutes      int    `json:"focus_minutes"`
	SessionsCompleted int    `json:"sessions_completed"`
	Distractions      int    `json:"distractions"`
}

// Streak counts consecutive days with at least one completed focus
// session. LastDate is the local date of the most recent completion.
type Streak struct {
	Count    int    `json:"count"`
	LastDate string `json:"last_date"`
}

// Settings are the user-tunable knobs, persisted as one nested object.
type Settings struct {
	FocusMinutes      int      `json:"focus_minutes"`
	BreakMinutes      int      `json:"break_minutes"`
	LongBreakMinutes  int      `json:"long_break_minutes"`
	CyclesToLongBreak int      `json:"cycles_to_long_break"`
	MaxBlocklistSize  int      `json:"max_blocklist_size"`
	NuclearMaxMinutes int      `json:"nuclear_max_minutes"` // quota cap on activation
	Schedule          Schedule `json:"schedule"`
}

// BlockPageInfo is what the block page renders when a navigation was
// intercepted.
type BlockPageInfo struct {
	Domain        string       `json:"domain"`
	Attempts      int          `json:"attempts"`       // attempts for this domain today
	TotalAttempts int          `json:"total_attempts"` // lifetime, all domains
	Streak        int          `json:"streak"`
	Score         int          `json:"score"`
	Quote         string       `json:"quote"`
	Session       SessionState `json:"session"`
}

// DaemonInfo is the pidfile registry record for the running daemon.
type DaemonInfo struct {
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	Version       string `json:"version"`
}
