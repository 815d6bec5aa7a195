package authz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned by ParsePolicy for anything but "allow" or "deny".
var ErrInvalidPolicy = errors.New("authz: unknown-key policy must be \"allow\" or \"deny\"")

// Policy says what to do with keys the backend has never reported.
type Policy int

const (
	// PolicyUnset is the zero value. Check treats it as PolicyDeny, but
	// configuration validation rejects it.
	PolicyUnset Policy = iota
	// PolicyAllow lets unknown keys through.
	PolicyAllow
	// PolicyDeny rejects unknown keys.
	PolicyDeny
)

func (p Policy) String() string {
	switch p {
	case PolicyAllow:
		return "allow"
	case PolicyDeny:
		return "deny"
	default:
		return "unset"
	}
}

// ParsePolicy converts a configuration value.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return PolicyAllow, nil
	case "deny":
		return PolicyDeny, nil
	default:
		return PolicyUnset, fmt.Errorf("%w: got %q", ErrInvalidPolicy, s)
	}
}
