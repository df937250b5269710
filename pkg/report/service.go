package report

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/intake"
	"github.com/caremesh-ai/triage/pkg/observability/metrics"
	"github.com/caremesh-ai/triage/pkg/redaction"
	"github.com/caremesh-ai/triage/pkg/redflag"
	"github.com/caremesh-ai/triage/pkg/session"
	"github.com/google/uuid"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service ingests uploaded medical reports into a session: the extracted
// text goes through the same redaction and red-flag path as typed input,
// so a report can escalate a session exactly like a message can.
type Service struct {
	store      session.Store
	locks      *session.LockRegistry
	filter     *redaction.Filter
	classifier *redflag.Classifier
	files      FileStore
	events     EventPublisher
}

func NewService(store session.Store, locks *session.LockRegistry, filter *redaction.Filter, classifier *redflag.Classifier, files FileStore, events EventPublisher) *Service {
	if locks == nil {
		locks = session.NewLockRegistry()
	}
	return &Service{
		store:      store,
		locks:      locks,
		filter:     filter,
		classifier: classifier,
		files:      files,
		events:     events,
	}
}

func (s *Service) Attach(ctx context.Context, req models.UploadReportRequest) (*models.UploadReportResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, intake.NewValidationError("session_id", "session_id is required")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, intake.NewValidationError("filename", "filename is required")
	}
	if strings.TrimSpace(req.ExtractedText) == "" {
		return nil, intake.NewValidationError("extracted_text", "extracted_text is required")
	}

	var content []byte
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return nil, intake.NewValidationError("content_base64", "content is not valid base64")
		}
		content = decoded
	}

	release := s.locks.Acquire(req.SessionID)
	defer release()

	sess, err := s.store.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.State == models.StateClosed {
		return nil, intake.NewValidationError("session_id", "session is closed")
	}

	var storagePath string
	if len(content) > 0 {
		storagePath, err = s.files.Save(sess.ID, req.Filename, content)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	masked, notes := s.filter.Redact(req.ExtractedText)
	turn := models.ConversationTurn{
		ID:           uuid.New().String(),
		Speaker:      models.SpeakerPatient,
		Type:         models.TurnReport,
		RawText:      req.ExtractedText,
		RedactedText: masked,
		Redactions:   notes,
		Timestamp:    now,
	}
	sess.Turns = append(sess.Turns, turn)
	sess.Reports = append(sess.Reports, models.ReportAttachment{
		Filename:    req.Filename,
		StoragePath: storagePath,
		TurnID:      turn.ID,
		UploadedAt:  now,
	})

	sess.Assessment = s.classifier.Assess(masked, sess.Assessment)
	if sess.Assessment.Urgency == models.UrgencyEmergency && sess.State != models.StateEmergency {
		sess.State = models.StateEmergency
		sess.EscalatedAt = &now
		metrics.IncEscalations()

		if s.events != nil {
			if err := s.events.PublishEvent(ctx, "escalation", "triage-api", map[string]interface{}{
				"session_id":      sess.ID,
				"urgency":         string(sess.Assessment.Urgency),
				"triggered_terms": sess.Assessment.TriggeredTerms,
				"confidence":      sess.Assessment.Confidence,
			}); err != nil {
				logger.Log.WithError(err).Warn("Event publish failed")
			}
		}

		logger.Log.WithFields(map[string]interface{}{
			"session_id": sess.ID,
			"filename":   req.Filename,
		}).Warn("Report escalated session to emergency")
	}

	sess.UpdatedAt = now
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	metrics.IncReportsAttached()

	return &models.UploadReportResponse{
		SessionID:   sess.ID,
		Filename:    req.Filename,
		StoragePath: storagePath,
		Assessment:  sess.Assessment,
	}, nil
}
