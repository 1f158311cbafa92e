package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
)

func localDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// rolledOver resets daily stats when the local date has moved on.
func rolledOver(stats domain.DailyStats, now time.Time) domain.DailyStats {
	today := localDate(now)
	if stats.Date != today {
		return domain.DailyStats{Date: today}
	}
	return stats
}

// bumpStreak advances the consecutive-day counter: same day is a no-op,
// the day after extends, any gap restarts at one.
func bumpStreak(st domain.Streak, now time.Time) domain.Streak {
	today := localDate(now)
	if st.LastDate == today {
		return st
	}
	yesterday := localDate(now.AddDate(0, 0, -1))
	if st.LastDate == yesterday {
		st.Count++
	} else {
		st.Count = 1
	}
	st.LastDate = today
	return st
}

// scoreFor condenses today into one number for the block page:
// completed sessions and focused minutes earn, distractions cost.
func scoreFor(stats domain.DailyStats) int {
	s := stats.SessionsCompleted*10 + stats.FocusMinutes - 2*stats.Distractions
	if s < 0 {
		return 0
	}
	return s
}

// noteDistraction records one event in history and bumps today's
// counter, returning the updated stats. Callers must hold e.mu.
func (e *Engine) noteDistraction(d string, now time.Time) (domain.DailyStats, error) {
	vals, err := e.store.Get(domain.KeyDailyStats)
	if err != nil {
		return domain.DailyStats{}, err
	}
	stats, err := decode[domain.DailyStats](vals, domain.KeyDailyStats)
	if err != nil {
		return domain.DailyStats{}, err
	}

	stats = rolledOver(stats, now)
	stats.Distractions++
	if err := (patch{}).put(domain.KeyDailyStats, stats).apply(e.store); err != nil {
		return domain.DailyStats{}, err
	}

	if err := e.history.RecordDistraction(d, now); err != nil {
		// History is advisory; the counter already moved.
		e.logger.Warn("failed to record distraction event")
	}
	return stats, nil
}

// RecordDistraction counts one blocked-page hit against today's stats.
func (e *Engine) RecordDistraction(raw string) (domain.DailyStats, error) {
	d, ok := hostname.Normalize(raw)
	if !ok {
		return domain.DailyStats{}, domain.Invalid("domain", "not a valid domain")
	}
	d = hostname.Canonical(d)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noteDistraction(d, e.clock.Now())
}

// Session-history listing bounds.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RecentSessions lists finished and aborted sessions, newest first.
// A non-positive limit asks for the default page.
func (e *Engine) RecentSessions(limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.RecentSessions(limit)
}

// PruneHistory drops sessions and events older than the retention
// window.
func (e *Engine) PruneHistory(retention time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.clock.Now().Add(-retention)
	if err := e.history.Prune(cutoff); err != nil {
		e.logger.Warn("failed to prune history")
	}
}
