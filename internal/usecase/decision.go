package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
)

// CheckBlocked is the hot-path query the page-guard calls on every
// navigation: is this domain blocked right now, and why. It never
// mutates rules; membership is decided against the effective domain
// set, then activation precedence decides whether blocking is in
// force. A domain can be on the list yet not blocked (idle, no
// schedule, no nuclear).
func (e *Engine) CheckBlocked(raw string) (domain.BlockDecision, error) {
	d, ok := hostname.Normalize(raw)
	if !ok {
		// Unparseable input is simply not a blockable domain.
		return domain.BlockDecision{Blocked: false}, nil
	}
	d = hostname.Canonical(d)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	member, err := e.isEffectiveMember(d, now)
	if err != nil {
		return domain.BlockDecision{}, err
	}
	if !member {
		return domain.BlockDecision{Blocked: false}, nil
	}

	act, err := e.materializeActivation(now)
	if err != nil {
		return domain.BlockDecision{}, err
	}
	if !act.Active {
		return domain.BlockDecision{Blocked: false}, nil
	}
	return domain.BlockDecision{Blocked: true, Reason: act.Reason}, nil
}

// isEffectiveMember checks membership in blocklist ∪ enabled groups,
// honoring live override windows (an overridden domain is temporarily
// not a member). Matches subdomains: "old.reddit.com" is a member when
// "reddit.com" is listed. Callers must hold e.mu.
func (e *Engine) isEffectiveMember(d string, now time.Time) (bool, error) {
	live, err := e.liveOverride(d, now)
	if err != nil {
		return false, err
	}
	if live {
		return false, nil
	}

	domains, err := e.effectiveDomains(now)
	if err != nil {
		return false, err
	}
	for _, blocked := range domains {
		if d == blocked || isSubdomainOf(d, blocked) {
			return true, nil
		}
	}
	return false, nil
}

// isSubdomainOf reports whether child is strictly under parent
// (e.g. "old.reddit.com" under "reddit.com").
func isSubdomainOf(child, parent string) bool {
	if len(child) <= len(parent) {
		return false
	}
	return child[len(child)-len(parent):] == parent &&
		child[len(child)-len(parent)-1] == '.'
}

// BlockPageInfo assembles everything the block page renders after an
// intercepted navigation.
func (e *Engine) BlockPageInfo(raw string) (domain.BlockPageInfo, error) {
	d, ok := hostname.Normalize(raw)
	if !ok {
		return domain.BlockPageInfo{}, domain.Invalid("domain", "not a valid domain")
	}
	d = hostname.Canonical(d)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeyDailyStats, domain.KeyStreak)
	if err != nil {
		return domain.BlockPageInfo{}, err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return domain.BlockPageInfo{}, err
	}
	stats, err := decode[domain.DailyStats](vals, domain.KeyDailyStats)
	if err != nil {
		return domain.BlockPageInfo{}, err
	}
	streak, err := decode[domain.Streak](vals, domain.KeyStreak)
	if err != nil {
		return domain.BlockPageInfo{}, err
	}
	stats = rolledOver(stats, now)

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	attempts, err := e.history.DistractionCount(d, midnight)
	if err != nil {
		e.logger.Warn("failed to count attempts")
	}
	total, err := e.history.TotalDistractions()
	if err != nil {
		e.logger.Warn("failed to count total attempts")
	}

	session.RemainingSeconds = session.Remaining(now)
	return domain.BlockPageInfo{
		Domain:        d,
		Attempts:      attempts,
		TotalAttempts: total,
		Streak:        streak.Count,
		Score:         scoreFor(stats),
		Quote:         e.quotes.Pick(total),
		Session:       session,
	}, nil
}
