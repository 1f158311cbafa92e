package domain

import (
	"errors"
	"fmt"
)

// ErrNuclearLocked is returned when stop, blocklist mutation, group
// toggling, or overrides are attempted while nuclear mode is active.
// This is a commitment device, not a bug.
var ErrNuclearLocked = errors.New("cannot modify or stop during nuclear mode")

// ErrPayloadTooLarge is returned by StateStore.Set when the serialized
// namespace would exceed the write ceiling. The write is rejected
// wholesale; nothing is partially applied.
var ErrPayloadTooLarge = errors.New("state write exceeds size limit")

// ErrBlocklistFull is returned when a blocklist update exceeds the
// configured maximum. The update is rejected wholesale.
var ErrBlocklistFull = errors.New("blocklist exceeds maximum size")

// ValidationError reports malformed user input (bad duration, bad
// domain, malformed schedule or message). Never logged as exceptional,
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid constructs a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
