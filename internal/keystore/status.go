package keystore

import (
	"fmt"
	"strings"
)

// Status is the authorisation state of an API key.
type Status int

const (
	// StatusUnknown means no status has been received for the key.
	StatusUnknown Status = iota
	// StatusValid means the key may be used.
	StatusValid
	// StatusBlocked means the key has been revoked.
	StatusBlocked
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ParseStatus converts a backend status string. The backend sends "ok" for
// valid keys; "valid" is accepted as well.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ok", "valid":
		return StatusValid, nil
	case "blocked":
		return StatusBlocked, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}
