package clinical

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

// ErrRetrievalTimeout signals that guideline retrieval exceeded its budget.
// Callers degrade the recommendation instead of failing the request.
var ErrRetrievalTimeout = errors.New("guideline retrieval timed out")

// ErrNoRecommendation is returned when a session exists but no
// recommendation has been generated for it yet.
var ErrNoRecommendation = errors.New("no recommendation generated for this session")

// PreconditionError reports that a session is not ready for a
// recommendation: wrong state, or required intake fields still missing.
type PreconditionError struct {
	SessionID string
	State     models.IntakeState
	Missing   []string
}

func (e *PreconditionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("session %s not ready for recommendation: missing %s", e.SessionID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("session %s not ready for recommendation: state is %s", e.SessionID, e.State)
}

func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// EscalatedError is returned when a recommendation is requested for a
// session under emergency escalation. A reviewer override must lower the
// escalation first.
type EscalatedError struct {
	SessionID string
}

func (e *EscalatedError) Error() string {
	return fmt.Sprintf("session %s is under emergency escalation; recommendation refused", e.SessionID)
}

func IsEscalatedError(err error) bool {
	var ee *EscalatedError
	return errors.As(err, &ee)
}
