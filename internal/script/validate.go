package script

import (
	"fmt"
)

// ErrorCode categorizes validation failures.
type ErrorCode string

const (
	// CodeEmptyField indicates a required metadata field is empty.
	CodeEmptyField ErrorCode = "EMPTY_FIELD"

	// CodeOutOfOrderTimestamp indicates an action's timestamp is less
	// than its predecessor's. Scripts violating chronological order are
	// invalid, not merely suspicious.
	CodeOutOfOrderTimestamp ErrorCode = "OUT_OF_ORDER_TIMESTAMP"
)

// ValidationError reports a structural problem in a script.
type ValidationError struct {
	Code  ErrorCode
	Field string // metadata field name, for CodeEmptyField
	Index int    // offending action index, for CodeOutOfOrderTimestamp
	Msg   string
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeEmptyField:
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Msg)
	case CodeOutOfOrderTimestamp:
		return fmt.Sprintf("%s: actions[%d]: %s", e.Code, e.Index, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Validate checks structural invariants. It is pure: no mutation, no
// I/O. It fails at the first violation so the caller gets a precise
// location rather than a pile of cascading errors.
func (s *Script) Validate() error {
	for _, m := range []struct {
		name, value string
	}{
		{"version", s.Version},
		{"core_type", s.Metadata.CoreType},
		{"platform", s.Metadata.Platform},
	} {
		if m.value == "" {
			return &ValidationError{
				Code:  CodeEmptyField,
				Field: m.name,
				Msg:   "required metadata field is empty",
			}
		}
	}

	for i := 1; i < len(s.Actions); i++ {
		prev, cur := s.Actions[i-1].Timestamp, s.Actions[i].Timestamp
		if cur < prev {
			return &ValidationError{
				Code:  CodeOutOfOrderTimestamp,
				Index: i,
				Msg:   fmt.Sprintf("timestamp %.6f precedes predecessor %.6f", cur, prev),
			}
		}
	}

	return nil
}
