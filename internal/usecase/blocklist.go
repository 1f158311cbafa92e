package usecase

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
)

// UpdateBlocklist replaces the manual blocklist wholesale. The first
// invalid domain rejects the whole update; so does exceeding the
// configured maximum. Refused while nuclear mode is active. Rules are
// resynced only if an activation source is already on.
func (e *Engine) UpdateBlocklist(domains []string) error {
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

	vals, err := e.store.Get(domain.KeySettings)
	if err != nil {
		return err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(domains))
	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		normalized, ok := hostname.Normalize(d)
		if !ok {
			return domain.Invalid("domain", fmt.Sprintf("%q is not a valid domain", d))
		}
		key := hostname.Canonical(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, normalized)
	}

	if len(cleaned) > settings.MaxBlocklistSize {
		return domain.ErrBlocklistFull
	}

	if err := (patch{}).put(domain.KeyBlocklist, cleaned).apply(e.store); err != nil {
		return err
	}
	e.logger.Info("blocklist updated", zap.Int("domains", len(cleaned)))

	e.resyncIfActive(now)
	return nil
}

// Blocklist returns the stored manual blocklist.
func (e *Engine) Blocklist() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vals, err := e.store.Get(domain.KeyBlocklist)
	if err != nil {
		return nil, err
	}
	return decode[[]string](vals, domain.KeyBlocklist)
}

// ToggleGroup flips one prebuilt group on or off and returns the new
// active-group list. Refused while nuclear mode is active; unknown ids
// are a validation error.
func (e *Engine) ToggleGroup(id string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	locked, err := e.nuclearLive(now)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, domain.ErrNuclearLocked
	}
	if !e.groups.Has(id) {
		return nil, domain.Invalid("group", fmt.Sprintf("unknown group %q", id))
	}

	vals, err := e.store.Get(domain.KeyActiveGroups)
	if err != nil {
		return nil, err
	}
	active, err := decode[[]string](vals, domain.KeyActiveGroups)
	if err != nil {
		return nil, err
	}

	next := make([]string, 0, len(active)+1)
	found := false
	for _, g := range active {
		if g == id {
			found = true
			continue
		}
		next = append(next, g)
	}
	if !found {
		next = append(next, id)
	}
	sort.Strings(next)

	if err := (patch{}).put(domain.KeyActiveGroups, next).apply(e.store); err != nil {
		return nil, err
	}
	e.logger.Info("prebuilt group toggled",
		zap.String("group", id),
		zap.Bool("enabled", !found))

	e.resyncIfActive(now)
	return next, nil
}

// ActiveGroups returns the enabled prebuilt group ids.
func (e *Engine) ActiveGroups() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vals, err := e.store.Get(domain.KeyActiveGroups)
	if err != nil {
		return nil, err
	}
	return decode[[]string](vals, domain.KeyActiveGroups)
}

// resyncIfActive reconciles rules only when an activation source is
// already on; changing the list while fully idle does not touch rules.
// Callers must hold e.mu.
func (e *Engine) resyncIfActive(now time.Time) {
	act, err := e.materializeActivation(now)
	if err != nil {
		e.logger.Warn("failed to derive activation", zap.Error(err))
		return
	}
	if act.Active {
		e.reconcileRules(now)
	}
}

// effectiveDomains is the deduplicated, normalized union of the manual
// blocklist and all enabled prebuilt groups, minus domains with a live
// override window. Sorted for deterministic rule ids. Callers must
// hold e.mu.
func (e *Engine) effectiveDomains(now time.Time) ([]string, error) {
	vals, err := e.store.Get(domain.KeyBlocklist, domain.KeyActiveGroups, domain.KeyOverrides)
	if err != nil {
		return nil, err
	}
	manual, err := decode[[]string](vals, domain.KeyBlocklist)
	if err != nil {
		return nil, err
	}
	groups, err := decode[[]string](vals, domain.KeyActiveGroups)
	if err != nil {
		return nil, err
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	add := func(raw string) {
		d, ok := hostname.Normalize(raw)
		if !ok {
			return
		}
		set[hostname.Canonical(d)] = true
	}
	for _, d := range manual {
		add(d)
	}
	for _, id := range groups {
		if g, ok := e.groups.Get(id); ok {
			for _, d := range g.Domains {
				add(d)
			}
		}
	}

	for d, expiresAt := range overrides {
		if expiresAt > now.Unix() {
			delete(set, hostname.Canonical(d))
		}
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}
