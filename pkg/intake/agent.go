package intake

import (
	"context"
	"strings"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/observability/metrics"
	"github.com/caremesh-ai/triage/pkg/redaction"
	"github.com/caremesh-ai/triage/pkg/redflag"
	"github.com/caremesh-ai/triage/pkg/session"
	"github.com/google/uuid"
)

const transcriptTailLen = 5

// EventPublisher decouples the agent from the broker so tests can run
// without one. A nil publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Agent runs the guided intake conversation. All mutation of a session
// happens under that session's lock, so concurrent turns for the same
// session serialize while distinct sessions proceed in parallel.
type Agent struct {
	store      session.Store
	locks      *session.LockRegistry
	filter     *redaction.Filter
	classifier *redflag.Classifier
	events     EventPublisher
}

// NewAgent builds the intake agent. The lock registry is shared with every
// component that mutates sessions; passing nil creates a private one.
func NewAgent(store session.Store, locks *session.LockRegistry, filter *redaction.Filter, classifier *redflag.Classifier, events EventPublisher) *Agent {
	if locks == nil {
		locks = session.NewLockRegistry()
	}
	return &Agent{
		store:      store,
		locks:      locks,
		filter:     filter,
		classifier: classifier,
		events:     events,
	}
}

// HandleTurn processes one patient message: redact, classify, capture
// structured fields, advance the state machine, and reply with the next
// question. Raw input never leaves this method unredacted.
func (a *Agent) HandleTurn(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	isNew := sessionID == ""
	if isNew {
		sessionID = uuid.New().String()
	}

	release := a.locks.Acquire(sessionID)
	defer release()

	now := time.Now().UTC()
	var sess *models.Session
	if isNew {
		sess = &models.Session{
			ID:        sessionID,
			State:     models.StateChiefComplaint,
			Record:    models.StructuredRecord{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		loaded, err := a.store.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		sess = loaded
	}

	if sess.State == models.StateClosed {
		return nil, NewValidationError("session_id", "session is closed")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		// Blank input re-asks the current question without recording a turn.
		if isNew {
			if err := a.store.Save(ctx, sess); err != nil {
				return nil, err
			}
		}
		return a.repromptResponse(sess), nil
	}

	metrics.IncIntakeTurns()

	masked, notes := a.filter.Redact(message)
	metrics.AddRedactions(len(notes))
	patientTurn := models.ConversationTurn{
		ID:           uuid.New().String(),
		Speaker:      models.SpeakerPatient,
		Type:         models.TurnMessage,
		RawText:      message,
		RedactedText: masked,
		Redactions:   notes,
		Timestamp:    now,
	}
	sess.Turns = append(sess.Turns, patientTurn)
	sess.UpdatedAt = now

	sess.Assessment = a.classifier.Assess(masked, sess.Assessment)

	if sess.Assessment.Urgency == models.UrgencyEmergency {
		return a.escalate(ctx, sess, notes)
	}

	prevState := sess.State
	a.captureFields(sess, patientTurn.ID, masked)
	sess.State = nextState(sess.Record)

	reply, q, complete := a.composeReply(prevState, sess)

	turnType := models.TurnQuestion
	if complete {
		turnType = models.TurnCompletion
	}
	sess.Turns = append(sess.Turns, models.ConversationTurn{
		ID:           uuid.New().String(),
		Speaker:      models.SpeakerAgent,
		Type:         turnType,
		RedactedText: reply,
		FieldKey:     q.FieldKey,
		Suggestions:  q.Suggestions,
		Hint:         q.Hint,
		Timestamp:    time.Now().UTC(),
	})

	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	a.publish(ctx, "intake-turn", map[string]interface{}{
		"session_id": sess.ID,
		"state":      string(sess.State),
		"urgency":    string(sess.Assessment.Urgency),
	})

	return &models.ChatResponse{
		SessionID:      sess.ID,
		Reply:          reply,
		NextField:      q.FieldKey,
		Suggestions:    q.Suggestions,
		Hint:           q.Hint,
		Redactions:     notes,
		Assessment:     sess.Assessment,
		TranscriptTail: transcriptTail(sess.Turns),
		State:          sess.State,
		Complete:       complete,
	}, nil
}

// escalate moves the session into emergency escalation on first trigger and
// answers every subsequent message with the same fixed safety instruction.
func (a *Agent) escalate(ctx context.Context, sess *models.Session, notes []string) (*models.ChatResponse, error) {
	if sess.State != models.StateEmergency {
		escalatedAt := time.Now().UTC()
		sess.State = models.StateEmergency
		sess.EscalatedAt = &escalatedAt
		metrics.IncEscalations()

		a.publish(ctx, "escalation", map[string]interface{}{
			"session_id":      sess.ID,
			"urgency":         string(sess.Assessment.Urgency),
			"triggered_terms": sess.Assessment.TriggeredTerms,
			"confidence":      sess.Assessment.Confidence,
		})

		logger.Log.WithFields(map[string]interface{}{
			"session_id": sess.ID,
			"terms":      sess.Assessment.TriggeredTerms,
		}).Warn("Session escalated to emergency")
	}

	sess.Turns = append(sess.Turns, models.ConversationTurn{
		ID:           uuid.New().String(),
		Speaker:      models.SpeakerAgent,
		Type:         models.TurnSafety,
		RedactedText: safetyReply,
		Timestamp:    time.Now().UTC(),
	})

	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		SessionID:  sess.ID,
		Reply:      safetyReply,
		Redactions: notes,
		Assessment: sess.Assessment,
		SafetyBanner: &models.SafetyBanner{
			Message: safetyBannerMessage,
			Terms:   sess.Assessment.TriggeredTerms,
		},
		TranscriptTail: transcriptTail(sess.Turns),
		State:          sess.State,
	}, nil
}

func (a *Agent) captureFields(sess *models.Session, turnID, masked string) {
	switch sess.State {
	case models.StateChiefComplaint:
		setField(sess.Record, FieldChiefComplaint, masked, turnID)
		if d := extractDuration(masked); d != "" {
			setField(sess.Record, FieldOnset, d, turnID)
		}
	case models.StateHistory:
		setField(sess.Record, FieldMedicalHistory, masked, turnID)
		if m := extractMedications(masked); m != "" {
			setField(sess.Record, FieldMedications, m, turnID)
		}
		if al := extractAllergies(masked); al != "" {
			setField(sess.Record, FieldAllergies, al, turnID)
		}
	case models.StateSeverityDuration:
		severity, duration := extractSeverityDuration(masked, sess.Record.Has(FieldSeverity))
		if severity != "" {
			setField(sess.Record, FieldSeverity, severity, turnID)
		}
		if duration != "" {
			setField(sess.Record, FieldDuration, duration, turnID)
		}
	case models.StateReady:
		// Late detail is kept as associated symptoms rather than discarded.
		existing := sess.Record[FieldAssociatedSymptoms].Value
		if existing != "" {
			masked = existing + "; " + masked
		}
		setField(sess.Record, FieldAssociatedSymptoms, masked, turnID)
	}
}

func (a *Agent) composeReply(prevState models.IntakeState, sess *models.Session) (string, question, bool) {
	if sess.State == models.StateReady {
		if prevState == models.StateReady {
			return "Noted, I've added that to your record. " + completionReply, question{}, true
		}
		return stateAcknowledgments[prevState] + " " + completionReply, question{}, true
	}

	q := stateQuestions[sess.State]

	if sess.State != prevState {
		return stateAcknowledgments[prevState] + " " + q.Prompt, q, false
	}

	// No progress this turn. For severity and duration, point at the half
	// that is still missing.
	if sess.State == models.StateSeverityDuration {
		switch {
		case sess.Record.Has(FieldSeverity) && !sess.Record.Has(FieldDuration):
			q.Hint = "Tell me how long it has lasted, for example '2 days' or 'since yesterday'."
			return "Thanks. How long has this been going on?", q, false
		case sess.Record.Has(FieldDuration) && !sess.Record.Has(FieldSeverity):
			q.Hint = "Give a number from 1 to 10, or say mild, moderate, or severe."
			return "Thanks. How severe is it on a scale of 1 to 10?", q, false
		}
	}
	return "I didn't quite catch that. " + q.Prompt, q, false
}

func (a *Agent) repromptResponse(sess *models.Session) *models.ChatResponse {
	var reply string
	var q question
	switch sess.State {
	case models.StateEmergency:
		reply = safetyReply
	case models.StateReady:
		reply = completionReply
	default:
		q = stateQuestions[sess.State]
		reply = q.Prompt
	}
	return &models.ChatResponse{
		SessionID:      sess.ID,
		Reply:          reply,
		NextField:      q.FieldKey,
		Suggestions:    q.Suggestions,
		Hint:           q.Hint,
		Assessment:     sess.Assessment,
		TranscriptTail: transcriptTail(sess.Turns),
		State:          sess.State,
		Complete:       sess.State == models.StateReady,
	}
}

// OverrideEscalation is the only path that lowers an emergency. It records
// who overrode and why, drops urgency to high, and resumes intake at the
// first incomplete step.
func (a *Agent) OverrideEscalation(ctx context.Context, sessionID string, req models.OverrideRequest) (*models.Session, error) {
	if strings.TrimSpace(req.Reviewer) == "" {
		return nil, NewValidationError("reviewer", "reviewer is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, NewValidationError("reason", "reason is required")
	}

	release := a.locks.Acquire(sessionID)
	defer release()

	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.StateEmergency {
		return nil, NewValidationError("session_id", "session is not escalated")
	}

	now := time.Now().UTC()
	sess.OverriddenBy = req.Reviewer
	sess.OverrideReason = req.Reason
	sess.Assessment.Urgency = models.UrgencyHigh
	sess.Assessment.RecommendedAction = redflag.ActionUrgent
	sess.Assessment.AssessedAt = now
	sess.State = nextState(sess.Record)
	sess.UpdatedAt = now

	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	metrics.IncOverrides()
	a.publish(ctx, "escalation-overridden", map[string]interface{}{
		"session_id": sess.ID,
		"reviewer":   req.Reviewer,
	})

	logger.Log.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"reviewer":   req.Reviewer,
	}).Info("Escalation overridden")

	return sess, nil
}

// Close ends a session. Escalated sessions must be overridden first so an
// emergency is never silently discarded.
func (a *Agent) Close(ctx context.Context, sessionID string) (*models.Session, error) {
	release := a.locks.Acquire(sessionID)
	defer release()

	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State == models.StateEmergency {
		return nil, &SafetyOverrideError{SessionID: sessionID}
	}
	if sess.State == models.StateClosed {
		return sess, nil
	}

	now := time.Now().UTC()
	sess.State = models.StateClosed
	sess.UpdatedAt = now
	sess.Turns = append(sess.Turns, models.ConversationTurn{
		ID:           uuid.New().String(),
		Speaker:      models.SpeakerAgent,
		Type:         models.TurnCompletion,
		RedactedText: closedReply,
		Timestamp:    now,
	})

	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (a *Agent) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishEvent(ctx, eventType, "triage-api", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Event publish failed")
	}
}

func nextState(record models.StructuredRecord) models.IntakeState {
	switch {
	case !record.Has(FieldChiefComplaint):
		return models.StateChiefComplaint
	case !record.Has(FieldMedicalHistory):
		return models.StateHistory
	case !record.Has(FieldSeverity) || !record.Has(FieldDuration):
		return models.StateSeverityDuration
	default:
		return models.StateReady
	}
}

func setField(record models.StructuredRecord, key, value, turnID string) {
	record[key] = models.FieldValue{Value: value, TurnID: turnID, UpdatedAt: time.Now().UTC()}
}

func transcriptTail(turns []models.ConversationTurn) []models.ConversationTurn {
	if len(turns) <= transcriptTailLen {
		return turns
	}
	return turns[len(turns)-transcriptTailLen:]
}
