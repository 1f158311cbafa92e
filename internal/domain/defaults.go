package domain

import "encoding/json"

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	return Settings{
		FocusMinutes:      25,
		BreakMinutes:      5,
		LongBreakMinutes:  15,
		CyclesToLongBreak: 4,
		MaxBlocklistSize:  100,
		NuclearMaxMinutes: 480,
		Schedule:          Schedule{Days: []int{}},
	}
}

// IdleSession returns the canonical idle session record.
func IdleSession() SessionState {
	return SessionState{Status: StatusIdle, Cycle: 1}
}

// DefaultState returns the static default for every known store key.
// StateStore.Get fills absent keys from this map so known keys are
// never absent for readers.
func DefaultState() map[string]json.RawMessage {
	defaults := map[string]any{
		KeyBlocklist:    []string{},
		KeyActiveGroups: []string{},
		KeySession:      IdleSession(),
		KeyNuclear:      NuclearLock{},
		KeySettings:     DefaultSettings(),
		KeyDailyStats:   DailyStats{},
		KeyStreak:       Streak{},
		KeyLifetime:     0,
		KeyOverrides:    map[string]int64{},
		KeyOnboarded:    false,
		KeyInstallDate:  "",
	}

	out := make(map[string]json.RawMessage, len(defaults))
	for k, v := range defaults {
		raw, err := json.Marshal(v)
		if err != nil {
			// Static values above always marshal.
			panic(err)
		}
		out[k] = raw
	}
	return out
}
