package review

import (
	"context"

	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
)

// Worker turns broker events into review queue entries. It is wired to the
// escalation topic consumer; unknown event types are acknowledged and
// skipped so the consumer keeps advancing.
type Worker struct {
	repo *Repository
}

func NewWorker(repo *Repository) *Worker {
	return &Worker{repo: repo}
}

func (w *Worker) HandleEvent(ctx context.Context, event models.Event) error {
	switch event.Type {
	case "escalation":
		esc := escalationFromEvent(event)
		if esc.SessionID == "" {
			logger.Log.WithField("event_id", event.ID).Warn("Escalation event without session id")
			return nil
		}
		if _, err := w.repo.Record(ctx, esc); err != nil {
			return err
		}
		logger.Log.WithFields(map[string]interface{}{
			"session_id": esc.SessionID,
			"urgency":    string(esc.Urgency),
		}).Info("Escalation queued for review")
		return w.repo.AppendAudit(ctx, esc.SessionID, "escalation-worker", "queued", event.Data)

	case "escalation-overridden":
		sessionID := stringField(event.Data, "session_id")
		if sessionID == "" {
			return nil
		}
		reviewer := stringField(event.Data, "reviewer")
		if err := w.repo.ResolveBySession(ctx, sessionID, models.EscalationOverridden, reviewer, "overridden via api"); err != nil {
			return err
		}
		return w.repo.AppendAudit(ctx, sessionID, reviewer, "overridden", event.Data)

	default:
		return nil
	}
}

func escalationFromEvent(event models.Event) models.Escalation {
	return models.Escalation{
		SessionID:      stringField(event.Data, "session_id"),
		Urgency:        models.UrgencyLevel(stringField(event.Data, "urgency")),
		TriggeredTerms: stringSliceField(event.Data, "triggered_terms"),
		Status:         models.EscalationPending,
		CreatedAt:      event.Timestamp,
	}
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(data map[string]interface{}, key string) []string {
	raw, ok := data[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
