package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
)

// Override suppresses blocking for one domain for a fixed five-minute
// window. Forbidden while nuclear mode is active. The bypass counts as
// a distraction, only the single matching rule is removed (no full
// resync), and a per-domain expiry timer re-arms blocking afterwards.
func (e *Engine) Override(raw string) error {
	d, ok := hostname.Normalize(raw)
	if !ok {
		return domain.Invalid("domain", "not a valid domain")
	}
	d = hostname.Canonical(d)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	locked, err := e.nuclearLive(now)
	if err != nil {
		return err
	}
	if locked {
		return domain.ErrNuclearLocked
	}

	if _, err := e.noteDistraction(d, now); err != nil {
		return err
	}

	vals, err := e.store.Get(domain.KeyOverrides)
	if err != nil {
		return err
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		return err
	}
	overrides[d] = now.Unix() + overrideWindowSecs
	if err := (patch{}).put(domain.KeyOverrides, overrides).apply(e.store); err != nil {
		return err
	}

	if err := e.rules.RemoveDomain(d); err != nil {
		e.logger.Warn("failed to remove rule for override",
			zap.String("domain", d), zap.Error(err))
	}
	e.timers.Arm(overrideTimerPfx+d, overrideWindowSecs*time.Second)
	e.logger.Info("override granted", zap.String("domain", d))
	return nil
}

// OverrideExpired is the per-domain expiry handler. If any activation
// source is still on, the full effective set is resynchronized; the
// single-rule removal left every other rule valid, so this re-arms just
// the overridden domain along with them.
func (e *Engine) OverrideExpired(d string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	d = hostname.Canonical(d)

	vals, err := e.store.Get(domain.KeyOverrides)
	if err != nil {
		e.logger.Warn("override expiry: failed to read state", zap.Error(err))
		return
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		e.logger.Warn("override expiry: corrupt state", zap.Error(err))
		return
	}
	if _, ok := overrides[d]; ok {
		delete(overrides, d)
		if err := (patch{}).put(domain.KeyOverrides, overrides).apply(e.store); err != nil {
			e.logger.Warn("override expiry: failed to persist", zap.Error(err))
			return
		}
	}

	act, err := e.materializeActivation(now)
	if err != nil {
		e.logger.Warn("override expiry: failed to derive activation", zap.Error(err))
		return
	}
	if act.Active {
		e.reconcileRules(now)
	}
	e.logger.Info("override window expired", zap.String("domain", d))
}

// liveOverride reports whether the domain has an unexpired override
// window. Callers must hold e.mu.
func (e *Engine) liveOverride(d string, now time.Time) (bool, error) {
	vals, err := e.store.Get(domain.KeyOverrides)
	if err != nil {
		return false, err
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		return false, err
	}
	expiresAt, ok := overrides[hostname.Canonical(d)]
	return ok && expiresAt > now.Unix(), nil
}
