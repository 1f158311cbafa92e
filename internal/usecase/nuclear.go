package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// ActivateNuclear arms the hard-commitment lock. The requested duration
// is clamped to the settings quota before computing the end time;
// blocking is forced active immediately regardless of any other state,
// and a one-shot expiry alarm is armed.
func (e *Engine) ActivateNuclear(minutes int) error {
	if minutes < MinNuclearMinutes || minutes > MaxNuclearMinutes {
		return domain.Invalid("duration",
			fmt.Sprintf("must be between %d and %d minutes", MinNuclearMinutes, MaxNuclearMinutes))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySettings)
	if err != nil {
		return err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return err
	}
	if settings.NuclearMaxMinutes > 0 && minutes > settings.NuclearMaxMinutes {
		minutes = settings.NuclearMaxMinutes
	}

	lock := domain.NuclearLock{
		Active: true,
		EndsAt: now.Add(time.Duration(minutes) * time.Minute).Unix(),
	}
	if err := (patch{}).put(domain.KeyNuclear, lock).apply(e.store); err != nil {
		return err
	}

	e.timers.Arm(TimerNuclear, time.Duration(minutes)*time.Minute)
	e.reconcileRules(now)
	e.logger.Info("nuclear mode activated", zap.Int("minutes", minutes))
	return nil
}

// NuclearExpired is the expiry alarm handler. The lock is cleared only
// if it has actually lapsed: an alarm from a superseded activation can
// fire late, and must not erase a lock that is still in force. Blocking
// is re-derived from whatever else is active; a focus session still
// running keeps it on without interruption.
func (e *Engine) NuclearExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeyNuclear)
	if err != nil {
		e.logger.Warn("failed to read nuclear lock", zap.Error(err))
		return
	}
	nuclear, err := decode[domain.NuclearLock](vals, domain.KeyNuclear)
	if err != nil {
		e.logger.Warn("corrupt nuclear lock", zap.Error(err))
		return
	}
	if !nuclear.Expired(now) {
		e.logger.Debug("ignoring stale nuclear alarm",
			zap.Int64("ends_at", nuclear.EndsAt))
		return
	}

	if err := (patch{}).put(domain.KeyNuclear, domain.NuclearLock{}).apply(e.store); err != nil {
		e.logger.Warn("failed to clear nuclear lock", zap.Error(err))
		return
	}
	e.logger.Info("nuclear mode expired")
	e.reconcileRules(now)
}

// NuclearActive reports whether the lock is in force (lazy-expiring).
func (e *Engine) NuclearActive() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nuclearLive(e.clock.Now())
}
