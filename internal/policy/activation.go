// Package policy holds the pure blocking-policy decisions: activation
// precedence across sources and the prebuilt domain-group registry.
package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// Evaluate combines the three activation sources into one decision.
//
// Precedence, highest first: nuclear > focus session > schedule.
// Nuclear is a hard commitment that must never be silently superseded; a
// manual focus session is an explicit user action and outranks the
// ambient schedule. While nuclear is live the schedule is not even
// consulted.
//
// Side-effect free: safe on every tick and on the decision hot path.
// Lazy expiry of a stale nuclear flag is the caller's job; an expired
// lock simply does not activate here.
func Evaluate(now time.Time, nuclear domain.NuclearLock, session domain.SessionState, sched domain.Schedule) domain.Activation {
	if nuclear.Live(now) {
		return domain.Activation{Active: true, Reason: domain.ReasonNuclear}
	}
	if session.Status == domain.StatusFocus {
		return domain.Activation{Active: true, Reason: domain.ReasonFocusSession}
	}
	if sched.ActiveAt(now) {
		return domain.Activation{Active: true, Reason: domain.ReasonSchedule}
	}
	return domain.Activation{Active: false, Reason: domain.ReasonNone}
}
