package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// SystemClock implements domain.Clock with the real wall clock.
type SystemClock struct{}

// NewSystemClock returns the real clock.
func NewSystemClock() domain.Clock {
	return SystemClock{}
}

// Now returns the current local time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

var _ domain.Clock = SystemClock{}
