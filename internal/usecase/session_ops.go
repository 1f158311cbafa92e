package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// StartFocus begins a focus session of the given length, activating
// blocking and the one-minute tick.
func (e *Engine) StartFocus(minutes int) error {
	if minutes < MinFocusMinutes || minutes > MaxFocusMinutes {
		return domain.Invalid("duration",
			fmt.Sprintf("must be between %d and %d minutes", MinFocusMinutes, MaxFocusMinutes))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeyOnboarded)
	if err != nil {
		return err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return err
	}
	onboarded, err := decode[bool](vals, domain.KeyOnboarded)
	if err != nil {
		return err
	}

	next, fx := beginFocus(session, now, minutes)
	if err := e.applyEffects(next, fx, now); err != nil {
		return err
	}
	// The first started session completes onboarding.
	if !onboarded {
		if err := (patch{}).put(domain.KeyOnboarded, true).apply(e.store); err != nil {
			return err
		}
	}
	e.logger.Info("focus session started",
		zap.Int("minutes", minutes),
		zap.Int("cycle", next.Cycle))
	return nil
}

// StartBreak begins a break explicitly (short or long).
func (e *Engine) StartBreak(isLong bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeySettings)
	if err != nil {
		return err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return err
	}

	next, fx := beginBreak(session, now, isLong, timingFrom(settings))
	if err := e.applyEffects(next, fx, now); err != nil {
		return err
	}
	e.logger.Info("break started", zap.Bool("long", isLong))
	return nil
}

// Stop ends the current session. Refused while nuclear mode is active;
// an in-flight focus session is recorded as incomplete first.
func (e *Engine) Stop() error {
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

	vals, err := e.store.Get(domain.KeySession)
	if err != nil {
		return err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return err
	}

	next, fx := endSession(session, now)
	if err := e.applyEffects(next, fx, now); err != nil {
		return err
	}
	e.logger.Info("session stopped", zap.String("was", string(session.Status)))
	return nil
}
