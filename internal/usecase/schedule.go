package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// UpdateSchedule replaces the recurring schedule (nil disables it) and
// immediately re-evaluates activation so an open window takes effect
// without waiting for the next periodic check.
func (e *Engine) UpdateSchedule(sched *domain.Schedule) error {
	if sched != nil && sched.Enabled {
		if err := validateSchedule(*sched); err != nil {
			return err
		}
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

	if sched == nil {
		settings.Schedule = domain.Schedule{Days: []int{}}
	} else {
		settings.Schedule = *sched
	}
	if err := (patch{}).put(domain.KeySettings, settings).apply(e.store); err != nil {
		return err
	}
	e.logger.Info("schedule updated", zap.Bool("enabled", settings.Schedule.Enabled))

	e.reconcileRules(now)
	return nil
}

func validateSchedule(sc domain.Schedule) error {
	for _, d := range sc.Days {
		if d < 0 || d > 6 {
			return domain.Invalid("schedule", "days must be 0-6")
		}
	}
	if !validHHMM(sc.StartTime) || !validHHMM(sc.EndTime) {
		return domain.Invalid("schedule", "times must be zero-padded HH:MM")
	}
	return nil
}

// validHHMM accepts zero-padded 24h "HH:MM" only, so lexicographic
// comparison stays correct.
func validHHMM(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour <= 23 && minute <= 59
}
