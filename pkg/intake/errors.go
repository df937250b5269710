package intake

import (
	"errors"
	"fmt"
)

// ValidationError reports rejected caller input. It never echoes raw
// patient text.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SafetyOverrideError is returned when a caller tries to lower an
// emergency escalation outside the reviewed override path.
type SafetyOverrideError struct {
	SessionID string
}

func (e *SafetyOverrideError) Error() string {
	return fmt.Sprintf("session %s is escalated; lowering urgency requires a reviewer override", e.SessionID)
}

func IsSafetyOverrideError(err error) bool {
	var se *SafetyOverrideError
	return errors.As(err, &se)
}
