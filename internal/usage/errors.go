package usage

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel matched by every ValidationError.
var ErrValidation = errors.New("usage: invalid record")

// ValidationError reports which field of a Record is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("usage: invalid record: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
