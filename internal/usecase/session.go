package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// Timing holds the session durations derived from settings.
type Timing struct {
	BreakSeconds      int
	LongBreakSeconds  int
	CyclesToLongBreak int
}

func timingFrom(s domain.Settings) Timing {
	return Timing{
		BreakSeconds:      s.BreakMinutes * 60,
		LongBreakSeconds:  s.LongBreakMinutes * 60,
		CyclesToLongBreak: s.CyclesToLongBreak,
	}
}

// EffectKind tags a side effect requested by a pure transition. The
// transitions never touch storage, rules, or timers themselves; the
// engine interprets the effect list afterwards. This keeps every
// transition testable without a backend.
type EffectKind int

const (
	// EffectPersist writes the new session state to the store.
	EffectPersist EffectKind = iota
	// EffectRecord appends a session record to history and bumps
	// daily stats, streak, and the lifetime counter as one unit.
	EffectRecord
	// EffectSyncRules re-derives activation and reconciles the rule
	// table.
	EffectSyncRules
	// EffectArmTick (re)arms the one-minute session tick.
	EffectArmTick
	// EffectCancelTick cancels the session tick.
	EffectCancelTick
	// EffectNotify signals UI surfaces that session state changed.
	EffectNotify
)

// Effect is one requested side effect; Record is set for EffectRecord.
type Effect struct {
	Kind   EffectKind
	Record *domain.SessionRecord
}

func effects(kinds ...EffectKind) []Effect {
	out := make([]Effect, len(kinds))
	for i, k := range kinds {
		out[i] = Effect{Kind: k}
	}
	return out
}

// beginFocus starts a focus period from any state. Cycle is preserved
// across idle gaps, initialized to 1 if unset.
func beginFocus(prev domain.SessionState, now time.Time, minutes int) (domain.SessionState, []Effect) {
	cycle := prev.Cycle
	if cycle < 1 {
		cycle = 1
	}
	next := domain.SessionState{
		Status:           domain.StatusFocus,
		StartedAt:        now.Unix(),
		DurationSeconds:  minutes * 60,
		RemainingSeconds: minutes * 60,
		Cycle:            cycle,
	}
	return next, effects(EffectPersist, EffectSyncRules, EffectArmTick, EffectNotify)
}

// beginBreak starts a break period explicitly (user command).
func beginBreak(prev domain.SessionState, now time.Time, isLong bool, t Timing) (domain.SessionState, []Effect) {
	status := domain.StatusBreak
	seconds := t.BreakSeconds
	if isLong {
		status = domain.StatusLongBreak
		seconds = t.LongBreakSeconds
	}
	cycle := prev.Cycle
	if cycle < 1 {
		cycle = 1
	}
	next := domain.SessionState{
		Status:           status,
		StartedAt:        now.Unix(),
		DurationSeconds:  seconds,
		RemainingSeconds: seconds,
		Cycle:            cycle,
	}
	return next, effects(EffectPersist, EffectSyncRules, EffectArmTick, EffectNotify)
}

// advance is the tick transition: recompute remaining from the wall
// clock and chain completions. A tick with no running session is a
// no-op (the alarm outlived its state).
func advance(s domain.SessionState, now time.Time, t Timing) (domain.SessionState, []Effect) {
	if !s.Running() {
		return s, nil
	}

	remaining := s.Remaining(now)
	if remaining > 0 {
		s.RemainingSeconds = remaining
		return s, effects(EffectPersist, EffectArmTick, EffectNotify)
	}

	switch s.Status {
	case domain.StatusFocus:
		return completeFocus(s, now, t)
	default:
		return completeBreak(s)
	}
}

// completeFocus records the finished session, picks the next break
// length by cycle count, and advances the cycle (reset to 1 after a
// long break, else +1).
func completeFocus(s domain.SessionState, now time.Time, t Timing) (domain.SessionState, []Effect) {
	rec := &domain.SessionRecord{
		StartedAt:      s.StartedAt,
		EndedAt:        s.StartedAt + int64(s.DurationSeconds),
		DurationSecs:   s.DurationSeconds,
		FocusedMinutes: s.DurationSeconds / 60,
		Completed:      true,
	}

	status := domain.StatusBreak
	seconds := t.BreakSeconds
	cycle := s.Cycle + 1
	if s.Cycle >= t.CyclesToLongBreak {
		status = domain.StatusLongBreak
		seconds = t.LongBreakSeconds
		cycle = 1
	}

	next := domain.SessionState{
		Status:           status,
		StartedAt:        now.Unix(),
		DurationSeconds:  seconds,
		RemainingSeconds: seconds,
		Cycle:            cycle,
	}

	out := []Effect{
		{Kind: EffectPersist},
		{Kind: EffectRecord, Record: rec},
		{Kind: EffectSyncRules},
		{Kind: EffectArmTick},
		{Kind: EffectNotify},
	}
	return next, out
}

// completeBreak transitions to idle, preserving the cycle counter.
func completeBreak(s domain.SessionState) (domain.SessionState, []Effect) {
	next := domain.SessionState{
		Status: domain.StatusIdle,
		Cycle:  s.Cycle,
	}
	return next, effects(EffectPersist, EffectSyncRules, EffectCancelTick, EffectNotify)
}

// endSession is the explicit stop transition. A focus session in flight
// is recorded as incomplete with floor elapsed minutes. The nuclear
// check is the engine's job, not the transition's.
func endSession(s domain.SessionState, now time.Time) (domain.SessionState, []Effect) {
	next := domain.SessionState{
		Status: domain.StatusIdle,
		Cycle:  s.Cycle,
	}
	if next.Cycle < 1 {
		next.Cycle = 1
	}

	out := []Effect{{Kind: EffectPersist}}
	if s.Status == domain.StatusFocus && s.Running() {
		rec := &domain.SessionRecord{
			StartedAt:      s.StartedAt,
			EndedAt:        now.Unix(),
			DurationSecs:   s.DurationSeconds,
			FocusedMinutes: s.ElapsedFocusedMinutes(now),
			Completed:      false,
		}
		out = append(out, Effect{Kind: EffectRecord, Record: rec})
	}
	out = append(out, effects(EffectSyncRules, EffectCancelTick, EffectNotify)...)
	return next, out
}
