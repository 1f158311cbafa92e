package usecase

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// Message types of the request/response contract UI surfaces speak.
const (
	MsgStartFocus        = "startFocus"
	MsgStopSession       = "stopSession"
	MsgStartBreak        = "startBreak"
	MsgGetState          = "getState"
	MsgUpdateBlocklist   = "updateBlocklist"
	MsgToggleGroup       = "toggleGroup"
	MsgActivateNuclear   = "activateNuclear"
	MsgCheckBlocked      = "checkBlocked"
	MsgGetBlockPageInfo  = "getBlockPageInfo"
	MsgRecordDistraction = "recordDistraction"
	MsgOverrideBlock     = "overrideBlock"
	MsgUpdateSchedule    = "updateSchedule"
	MsgGetHistory        = "getHistory"
)

// Error kinds distinguish validation problems from policy violations
// and storage/internal faults, per the error taxonomy.
const (
	ErrKindValidation    = "validation"
	ErrKindNuclearLocked = "nuclear_locked"
	ErrKindStorage       = "storage"
	ErrKindInternal      = "internal"
)

// Request is one message on the bus.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the uniform reply shape. Exactly one of Error or Data is
// meaningful; Error is a single human-readable string.
type Response struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Payload shapes.
type (
	StartFocusRequest struct {
		Minutes int `json:"minutes"`
	}

	StartBreakRequest struct {
		IsLong bool `json:"is_long"`
	}

	UpdateBlocklistRequest struct {
		Domains []string `json:"domains"`
	}

	ToggleGroupRequest struct {
		GroupID string `json:"group_id"`
	}

	ActivateNuclearRequest struct {
		Minutes int `json:"minutes"`
	}

	DomainRequest struct {
		Domain string `json:"domain"`
	}

	CheckBlockedRequest struct {
		Domain   string `json:"domain,omitempty"`
		Hostname string `json:"hostname,omitempty"`
		URL      string `json:"url,omitempty"`
	}

	UpdateScheduleRequest struct {
		Schedule *domain.Schedule `json:"schedule"`
	}

	HistoryRequest struct {
		Limit int `json:"limit,omitempty"`
	}

	ToggleGroupResponse struct {
		ActiveGroups []string `json:"active_groups"`
	}
)

// FullState is the "get full state" snapshot: session time-adjusted,
// today's stats, streak, settings, blocklist, active groups, live
// override windows, and the nuclear flag.
type FullState struct {
	Session       domain.SessionState     `json:"session"`
	TodayStats    domain.DailyStats       `json:"today_stats"`
	Score         int                     `json:"score"`
	Streak        int                     `json:"streak"`
	Settings      domain.Settings         `json:"settings"`
	Blocklist     []string                `json:"blocklist"`
	ActiveGroups  []string                `json:"active_groups"`
	Overrides     []domain.OverrideWindow `json:"overrides,omitempty"`
	NuclearActive bool                    `json:"nuclear_active"`
	Onboarded     bool                    `json:"onboarded"`
}

// GetFullState assembles the snapshot UI surfaces render from.
func (e *Engine) GetFullState() (FullState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	vals, err := e.store.Get(domain.KeySession, domain.KeySettings, domain.KeyNuclear,
		domain.KeyDailyStats, domain.KeyStreak, domain.KeyBlocklist, domain.KeyActiveGroups,
		domain.KeyOverrides, domain.KeyOnboarded)
	if err != nil {
		return FullState{}, err
	}
	session, err := decode[domain.SessionState](vals, domain.KeySession)
	if err != nil {
		return FullState{}, err
	}
	settings, err := decode[domain.Settings](vals, domain.KeySettings)
	if err != nil {
		return FullState{}, err
	}
	nuclear, err := decode[domain.NuclearLock](vals, domain.KeyNuclear)
	if err != nil {
		return FullState{}, err
	}
	stats, err := decode[domain.DailyStats](vals, domain.KeyDailyStats)
	if err != nil {
		return FullState{}, err
	}
	streak, err := decode[domain.Streak](vals, domain.KeyStreak)
	if err != nil {
		return FullState{}, err
	}
	blocklist, err := decode[[]string](vals, domain.KeyBlocklist)
	if err != nil {
		return FullState{}, err
	}
	groups, err := decode[[]string](vals, domain.KeyActiveGroups)
	if err != nil {
		return FullState{}, err
	}
	overrides, err := decode[map[string]int64](vals, domain.KeyOverrides)
	if err != nil {
		return FullState{}, err
	}
	onboarded, err := decode[bool](vals, domain.KeyOnboarded)
	if err != nil {
		return FullState{}, err
	}

	session.RemainingSeconds = session.Remaining(now)
	today := rolledOver(stats, now)
	return FullState{
		Session:       session,
		TodayStats:    today,
		Score:         scoreFor(today),
		Streak:        streak.Count,
		Settings:      settings,
		Blocklist:     blocklist,
		ActiveGroups:  groups,
		Overrides:     liveWindows(overrides, now),
		NuclearActive: nuclear.Live(now),
		Onboarded:     onboarded,
	}, nil
}

// liveWindows converts the stored override map into a sorted slice,
// dropping windows that already lapsed.
func liveWindows(overrides map[string]int64, now time.Time) []domain.OverrideWindow {
	var out []domain.OverrideWindow
	for d, expiresAt := range overrides {
		if expiresAt > now.Unix() {
			out = append(out, domain.OverrideWindow{Domain: d, ExpiresAt: expiresAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Dispatch routes one bus message. Malformed messages come back as a
// generic format error; nothing propagates as a fault to the bus.
func (e *Engine) Dispatch(req Request) Response {
	switch req.Type {
	case MsgStartFocus:
		var p StartFocusRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.StartFocus(p.Minutes))

	case MsgStopSession:
		return result(nil, e.Stop())

	case MsgStartBreak:
		var p StartBreakRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.StartBreak(p.IsLong))

	case MsgGetState:
		st, err := e.GetFullState()
		return result(st, err)

	case MsgUpdateBlocklist:
		var p UpdateBlocklistRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.UpdateBlocklist(p.Domains))

	case MsgToggleGroup:
		var p ToggleGroupRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		active, err := e.ToggleGroup(p.GroupID)
		return result(ToggleGroupResponse{ActiveGroups: active}, err)

	case MsgActivateNuclear:
		var p ActivateNuclearRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.ActivateNuclear(p.Minutes))

	case MsgCheckBlocked:
		var p CheckBlockedRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		input := p.Domain
		if input == "" {
			input = p.Hostname
		}
		if input == "" {
			input = p.URL
		}
		decision, err := e.CheckBlocked(input)
		return result(decision, err)

	case MsgGetBlockPageInfo:
		var p DomainRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		info, err := e.BlockPageInfo(p.Domain)
		return result(info, err)

	case MsgRecordDistraction:
		var p DomainRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		stats, err := e.RecordDistraction(p.Domain)
		return result(stats, err)

	case MsgOverrideBlock:
		var p DomainRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.Override(p.Domain))

	case MsgUpdateSchedule:
		var p UpdateScheduleRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		return result(nil, e.UpdateSchedule(p.Schedule))

	case MsgGetHistory:
		var p HistoryRequest
		if !decodePayload(req.Payload, &p) {
			return formatError()
		}
		sessions, err := e.RecentSessions(p.Limit)
		return result(sessions, err)

	default:
		return formatError()
	}
}

func decodePayload(raw json.RawMessage, into any) bool {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return json.Unmarshal(raw, into) == nil
}

func formatError() Response {
	return Response{
		OK:        false,
		Error:     "malformed message",
		ErrorKind: ErrKindValidation,
	}
}

// result converts an operation outcome into the uniform response shape,
// classifying errors per the taxonomy.
func result(data any, err error) Response {
	if err != nil {
		kind := ErrKindInternal
		switch {
		case domain.IsValidation(err):
			kind = ErrKindValidation
		case errors.Is(err, domain.ErrNuclearLocked):
			kind = ErrKindNuclearLocked
		case errors.Is(err, domain.ErrBlocklistFull), errors.Is(err, domain.ErrPayloadTooLarge):
			kind = ErrKindStorage
		}
		return Response{OK: false, Error: err.Error(), ErrorKind: kind}
	}

	resp := Response{OK: true}
	if data != nil {
		raw, merr := json.Marshal(data)
		if merr != nil {
			return Response{OK: false, Error: "internal encoding failure", ErrorKind: ErrKindInternal}
		}
		resp.Data = raw
	}
	return resp
}
