package authz

import (
	"errors"
	"fmt"

	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// ErrDenied is matched by every DeniedError.
var ErrDenied = errors.New("authz: access denied")

// Reason explains a denial.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonMissingKey Reason = "missing_api_key"
	ReasonBlocked    Reason = "key_blocked"
	ReasonUnknown    Reason = "key_unknown"
)

// KeyLookup is the read side of the key store.
type KeyLookup interface {
	Lookup(key string) keystore.Status
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Reason  Reason

	// APIKey is the extracted key. It is empty when the key was missing.
	// Callers must not log it; use keystore.Mask.
	APIKey string
}

// Err returns nil for an allowed decision and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason, MaskedKey: keystore.Mask(d.APIKey)}
}

// DeniedError is the error form of a denial. It only ever carries the masked key.
type DeniedError struct {
	Reason    Reason
	MaskedKey string
}

func (e *DeniedError) Error() string {
	if e.MaskedKey == "" {
		return fmt.Sprintf("authz: access denied: %s", e.Reason)
	}
	return fmt.Sprintf("authz: access denied: %s (key %s)", e.Reason, e.MaskedKey)
}

// Is lets errors.Is(err, ErrDenied) match.
func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// Check authorises a call.
//
// A missing key is denied without consulting keys. Blocked keys are always
// denied. Unknown keys follow policy; PolicyUnset behaves as PolicyDeny.
func Check(keys KeyLookup, policy Policy, md Metadata) Decision {
	key, ok := ExtractAPIKey(md)
	if !ok {
		return Decision{Reason: ReasonMissingKey}
	}

	switch keys.Lookup(key) {
	case keystore.StatusValid:
		return Decision{Allowed: true, APIKey: key}
	case keystore.StatusBlocked:
		return Decision{Reason: ReasonBlocked, APIKey: key}
	default:
		if policy == PolicyAllow {
			return Decision{Allowed: true, APIKey: key}
		}
		return Decision{Reason: ReasonUnknown, APIKey: key}
	}
}
