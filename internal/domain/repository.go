package domain

import (
	"encoding/json"
	"time"
)

// Well-known StateStore keys. All durable engine state lives under these.
const (
	KeyBlocklist    = "blocklist"
	KeyActiveGroups = "active_groups"
	KeySession      = "session"
	KeyNuclear      = "nuclear"
	KeySettings     = "settings"
	KeyDailyStats   = "daily_stats"
	KeyStreak       = "streak"
	KeyLifetime     = "lifetime_sessions"
	KeyOverrides    = "overrides"
	KeyOnboarded    = "onboarding_complete"
	KeyInstallDate  = "install_date"
)

// StateStore is the durable key-value store backing all engine state.
// Get never returns an absent value for a known key: absence is filled
// from the static defaults. Set rejects oversized payloads wholesale
// with ErrPayloadTooLarge; a rejected write changes nothing.
//
// The store provides no transactions. Composite invariants spanning
// multiple keys are the caller's responsibility to read-modify-write
// within one handler turn.
type StateStore interface {
	// Get returns values for the requested keys, defaults filled in.
	Get(keys ...string) (map[string]json.RawMessage, error)

	// Set merges the partial record into the store atomically.
	Set(partial map[string]json.RawMessage) error
}

// RuleTable is the declarative block-rule table the engine reconciles.
// Replace has full-replace semantics: every previously installed rule is
// removed before the new set goes in. Small rule counts make diffing
// not worth the complexity.
type RuleTable interface {
	// Replace installs exactly one rule per domain, dropping all others.
	Replace(domains []string) error

	// RemoveDomain deletes the single rule matching the domain, leaving
	// the rest untouched (used by the override mechanism).
	RemoveDomain(domain string) error

	// Clear removes every installed rule.
	Clear() error

	// Rules returns the currently installed rules.
	Rules() ([]BlockRule, error)
}

// HistoryStore persists session history and distraction events.
// Implementation: SQLCipher-encrypted SQLite.
type HistoryStore interface {
	// AppendSession stores one finished or aborted session.
	AppendSession(rec SessionRecord) error

	// RecentSessions returns up to limit sessions, newest first.
	RecentSessions(limit int) ([]SessionRecord, error)

	// RecordDistraction stores one blocked-page hit / override event.
	RecordDistraction(domain string, at time.Time) error

	// DistractionCount counts events for a domain since the given time.
	DistractionCount(domain string, since time.Time) (int, error)

	// TotalDistractions counts all events ever recorded.
	TotalDistractions() (int, error)

	// Prune deletes sessions and events older than the cutoff.
	Prune(before time.Time) error

	// Close releases the database connection.
	Close() error
}

// Clock abstracts wall-clock time so the engine is testable without
// sleeping.
type Clock interface {
	Now() time.Time
}

// Timers schedules the engine's one-shot callbacks (session tick,
// nuclear expiry, override expiry). Arming an already-armed id resets
// it; cancelling an unknown id is a no-op. Firing after the owning
// state was cleared must be tolerated by the receiver.
type Timers interface {
	Arm(id string, d time.Duration)
	Cancel(id string)
}

// ProcessManager handles the OS process checks the CLI needs.
// Implementation: gopsutil.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// CurrentPID returns the current process PID.
	CurrentPID() int
}

// DaemonRegistry provides daemon discovery for the CLI (is the daemon
// up, since when). Implementation: hidden JSON pidfile.
type DaemonRegistry interface {
	Register(info DaemonInfo) error
	Heartbeat() error
	Get() (*DaemonInfo, error)
	Clear() error
}

// KeyProvider abstracts the source of the history database encryption
// key.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}
