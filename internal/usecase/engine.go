package usecase

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/policy"
)

// Timer ids the engine arms through domain.Timers.
const (
	TimerSessionTick   = "session-tick"
	TimerNuclear       = "nuclear"
	overrideTimerPfx   = "override:"
	sessionTickEvery   = time.Minute
	overrideWindowSecs = 5 * 60
)

// Focus and nuclear duration bounds (minutes).
const (
	MinFocusMinutes   = 1
	MaxFocusMinutes   = 480
	MinNuclearMinutes = 1
	MaxNuclearMinutes = 1440
)

// Engine owns all session, nuclear, schedule, blocklist, and override
// state and derives the authoritative block/allow decision. Every
// handler runs under one mutex: the platform this design came from had
// no ordering guarantees between interleaved handlers, which is a
// lost-update hazard; serializing handlers closes it.
type Engine struct {
	mu      sync.Mutex
	store   domain.StateStore
	rules   domain.RuleTable
	history domain.HistoryStore
	clock   domain.Clock
	timers  domain.Timers
	groups  *policy.Registry
	quotes  *policy.Quotes
	logger  *zap.Logger

	// OnChange, when set, is invoked after every session-state change
	// so a UI surface can repaint its indicator. Runs under the engine
	// mutex; must not call back into the engine.
	OnChange func(domain.SessionState)

	// lastActivation lets the schedule tick resync only on edges.
	lastActivation domain.Activation
}

// NewEngine wires the engine with injected dependencies.
func NewEngine(
	store domain.StateStore,
	rules domain.RuleTable,
	history domain.HistoryStore,
	clock domain.Clock,
	timers domain.Timers,
	groups *policy.Registry,
	quotes *policy.Quotes,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:   store,
		rules:   rules,
		history: history,
		clock:   clock,
		timers:  timers,
		groups:  groups,
		quotes:  quotes,
		logger:  logger,
	}
}

// TimerFired routes one-shot timer callbacks back into the engine.
// Unknown or stale ids are no-ops by design.
func (e *Engine) TimerFired(id string) {
	switch {
	case id == TimerSessionTick:
		e.Tick()
	case id == TimerNuclear:
		e.NuclearExpired()
	case strings.HasPrefix(id, overrideTimerPfx):
		e.OverrideExpired(strings.TrimPrefix(id, overrideTimerPfx))
	default:
		e.logger.Debug("ignoring unknown timer", zap.String("id", id))
	}
}

// materializeActivation is the single consolidated "what is active right
// now" read, run at the start of every handler. It lazily self-heals an
// expired nuclear flag and persists the correction so no caller ever
// observes a stale active lock. Callers must hold e.mu.
func (e *Engine) materializeActivation(now time.Time) (domain.Activation, error) {
	vals, err := e.store.Get(domain.KeyNuclear, domain.KeySession, domain.KeySettings)
	if err != nil {
		return domain.Activation{Reason: domain.ReasonNone}, err
	}
	nuclear, err := decode[domain.NuclearLock](vals, domain.KeyNuclear)
	if err != nil {
		return domain.Activation{Reason: domain.ReasonNone}, err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return domain.Activation{Reason: domain.ReasonNone}, err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return domain.Activation{Reason: domain.ReasonNone}, err
	}

	if nuclear.Expired(now) {
		nuclear = domain.NuclearLock{}
		if err := (patch{}).put(domain.KeyNuclear, nuclear).apply(e.store); err != nil {
			// Correction re-runs on the next read; carry on.
			e.logger.Warn("failed to persist nuclear expiry", zap.Error(err))
		} else {
			e.logger.Info("nuclear lock lazily expired")
		}
	}

	return policy.Evaluate(now, nuclear, session, settings.Schedule), nil
}

// nuclearLive reports whether the lock is in force, self-healing a
// stale flag. Callers must hold e.mu.
func (e *Engine) nuclearLive(now time.Time) (bool, error) {
	vals, err := e.store.Get(domain.KeyNuclear)
	if err != nil {
		return false, err
	}
	nuclear, err := decode[domain.NuclearLock](vals, domain.KeyNuclear)
	if err != nil {
		return false, err
	}
	if nuclear.Expired(now) {
		if err := (patch{}).put(domain.KeyNuclear, domain.NuclearLock{}).apply(e.store); err != nil {
			e.logger.Warn("failed to persist nuclear expiry", zap.Error(err))
		}
		return false, nil
	}
	return nuclear.Live(now), nil
}

// applyEffects interprets a transition's effect list: one store patch
// for session + stats, a history append, rule sync, and timer ops.
// Rule and timer failures are platform failures: logged and swallowed,
// the engine continues in last-known-good state.
func (e *Engine) applyEffects(session domain.SessionState, fx []Effect, now time.Time) error {
	p := patch{}
	persist := false
	var rec *domain.SessionRecord
	syncRules := false

	for _, f := range fx {
		switch f.Kind {
		case EffectPersist:
			persist = true
		case EffectRecord:
			rec = f.Record
		case EffectSyncRules:
			syncRules = true
		case EffectArmTick:
			e.timers.Arm(TimerSessionTick, sessionTickEvery)
		case EffectCancelTick:
			e.timers.Cancel(TimerSessionTick)
		case EffectNotify:
			if e.OnChange != nil {
				e.OnChange(session)
			}
		}
	}

	if persist {
		p.put(domain.KeySession, session)
	}
	if rec != nil {
		if err := e.accumulateRecord(p, rec, now); err != nil {
			return err
		}
	}
	if len(p) > 0 {
		if err := p.apply(e.store); err != nil {
			return err
		}
	}

	if rec != nil {
		rec.ID = uuid.NewString()
		if err := e.history.AppendSession(*rec); err != nil {
			e.logger.Warn("failed to append session history", zap.Error(err))
		}
	}

	if syncRules {
		e.reconcileRules(now)
	}
	return nil
}

// accumulateRecord folds a finished session into daily stats, streak,
// and the lifetime counter within the caller's patch so the composite
// update is one write.
func (e *Engine) accumulateRecord(p patch, rec *domain.SessionRecord, now time.Time) error {
	vals, err := e.store.Get(domain.KeyDailyStats, domain.KeyStreak, domain.KeyLifetime)
	if err != nil {
		return err
	}
	stats, err := decode[domain.DailyStats](vals, domain.KeyDailyStats)
	if err != nil {
		return err
	}
	streak, err := decode[domain.Streak](vals, domain.KeyStreak)
	if err != nil {
		return err
	}
	lifetime, err := decode[int](vals, domain.KeyLifetime)
	if err != nil {
		return err
	}

	stats = rolledOver(stats, now)
	stats.FocusMinutes += rec.FocusedMinutes
	if rec.Completed {
		stats.SessionsCompleted++
		lifetime++
		streak = bumpStreak(streak, now)
	}

	p.put(domain.KeyDailyStats, stats)
	p.put(domain.KeyStreak, streak)
	p.put(domain.KeyLifetime, lifetime)
	return nil
}

// reconcileRules makes the rule table match the current activation:
// the full effective domain set (minus live override windows) when any
// source is active, empty otherwise. Idempotent full replace.
// Failures are logged and swallowed; a failed rule write must not take
// down the session engine.
func (e *Engine) reconcileRules(now time.Time) {
	act, err := e.materializeActivation(now)
	if err != nil {
		e.logger.Warn("failed to derive activation for rule sync", zap.Error(err))
		return
	}

	if !act.Active {
		if err := e.rules.Clear(); err != nil {
			e.logger.Warn("failed to clear rules", zap.Error(err))
		}
		e.lastActivation = act
		return
	}

	domains, err := e.effectiveDomains(now)
	if err != nil {
		e.logger.Warn("failed to compute effective domains", zap.Error(err))
		return
	}
	if err := e.rules.Replace(domains); err != nil {
		e.logger.Warn("failed to replace rules", zap.Error(err))
		return
	}
	e.lastActivation = act
	e.logger.Info("rules synchronized",
		zap.String("reason", string(act.Reason)),
		zap.Int("rules", len(domains)))
}

// Tick is the periodic session timer handler.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeySettings)
	if err != nil {
		e.logger.Warn("tick: failed to read state", zap.Error(err))
		return
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		e.logger.Warn("tick: corrupt session state", zap.Error(err))
		return
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		e.logger.Warn("tick: corrupt settings", zap.Error(err))
		return
	}

	next, fx := advance(session, now, timingFrom(settings))
	if len(fx) == 0 {
		return
	}
	if err := e.applyEffects(next, fx, now); err != nil {
		e.logger.Warn("tick: failed to apply transition", zap.Error(err))
	}
}

// EvaluateSchedule is the periodic schedule-check handler: resyncs
// rules when the combined activation state changes edge-wise (a
// schedule window opening or closing).
func (e *Engine) EvaluateSchedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	act, err := e.materializeActivation(now)
	if err != nil {
		e.logger.Warn("schedule check failed", zap.Error(err))
		return
	}
	if act != e.lastActivation {
		e.logger.Info("activation changed",
			zap.Bool("active", act.Active),
			zap.String("reason", string(act.Reason)))
		e.reconcileRules(now)
	}
}

// Recover reconciles persisted state on cold start: completions that
// should have fired while the process was unloaded are run now, the
// nuclear expiry alarm is re-armed with its corrected remaining
// duration, override windows are re-armed or dropped, and rules are
// re-asserted from whatever is active.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeySettings, domain.KeyNuclear,
		domain.KeyOverrides, domain.KeyInstallDate)
	if err != nil {
		return err
	}
	installDate, err := decode[string](vals, domain.KeyInstallDate)
	if err != nil {
		return err
	}
	if installDate == "" {
		if err := (patch{}).put(domain.KeyInstallDate, localDate(now)).apply(e.store); err != nil {
			return err
		}
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return err
	}
	nuclear, err := decode[domain.NuclearLock](vals, domain.KeyNuclear)
	if err != nil {
		return err
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		return err
	}

	// Nuclear first: re-arm with remaining window, never the original
	// duration; run expiry immediately if it lapsed while unloaded.
	if nuclear.Active {
		if nuclear.Expired(now) {
			if err := (patch{}).put(domain.KeyNuclear, domain.NuclearLock{}).apply(e.store); err != nil {
				return err
			}
			e.logger.Info("nuclear lock expired during downtime")
		} else {
			remaining := time.Duration(nuclear.EndsAt-now.Unix()) * time.Second
			e.timers.Arm(TimerNuclear, remaining)
			e.logger.Info("nuclear lock recovered", zap.Duration("remaining", remaining))
		}
	}

	// Session: run the completion a missed tick would have run, or
	// resume ticking with recomputed remaining.
	if session.Running() {
		if session.Remaining(now) <= 0 {
			next, fx := advance(session, now, timingFrom(settings))
			if err := e.applyEffects(next, fx, now); err != nil {
				return err
			}
		} else {
			session.RemainingSeconds = session.Remaining(now)
			if err := (patch{}).put(domain.KeySession, session).apply(e.store); err != nil {
				return err
			}
			e.timers.Arm(TimerSessionTick, sessionTickEvery)
			e.logger.Info("session recovered",
				zap.String("status", string(session.Status)),
				zap.Int("remaining_seconds", session.RemainingSeconds))
		}
	}

	// Overrides: drop lapsed windows, re-arm live ones.
	changed := false
	for d, expiresAt := range overrides {
		if expiresAt <= now.Unix() {
			delete(overrides, d)
			changed = true
			continue
		}
		e.timers.Arm(overrideTimerPfx+d, time.Duration(expiresAt-now.Unix())*time.Second)
	}
	if changed {
		if err := (patch{}).put(domain.KeyOverrides, overrides).apply(e.store); err != nil {
			return err
		}
	}

	e.reconcileRules(now)
	return nil
}
