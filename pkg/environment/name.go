package environment

import (
	"fmt"
)

// Name is a validated environment identifier. It is immutable after
// creation and doubles as the key for the persisted record and the
// per-environment lock.
//
// Valid names are non-empty, contain only lowercase ASCII letters, digits,
// and dashes, and neither start nor end with a dash.
type Name struct {
	value string
}

// NameError describes why a candidate environment name was rejected.
type NameError struct {
	// Attempted is the string that failed validation.
	Attempted string

	// Reason is a human-readable rejection reason.
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid environment name %q: %s (expected lowercase letters, digits, and dashes)", e.Attempted, e.Reason)
}

// NewName validates raw and returns it as a Name.
func NewName(raw string) (Name, error) {
	if raw == "" {
		return Name{}, &NameError{Attempted: raw, Reason: "name is empty"}
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return Name{}, &NameError{Attempted: raw, Reason: fmt.Sprintf("character %q is not allowed", r)}
		}
	}
	if raw[0] == '-' {
		return Name{}, &NameError{Attempted: raw, Reason: "name starts with a dash"}
	}
	if raw[len(raw)-1] == '-' {
		return Name{}, &NameError{Attempted: raw, Reason: "name ends with a dash"}
	}
	return Name{value: raw}, nil
}

// String returns the validated name.
func (n Name) String() string {
	return n.value
}

// IsZero reports whether the name is the zero value (never produced by
// NewName).
func (n Name) IsZero() bool {
	return n.value == ""
}
