package review

import (
	"testing"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

func TestEscalationFromEvent(t *testing.T) {
	now := time.Now().UTC()
	event := models.Event{
		ID:   "e-1",
		Type: "escalation",
		Data: map[string]interface{}{
			"session_id": "s-1",
			"urgency":    "emergency",
			// Decoded JSON delivers the slice as []interface{}.
			"triggered_terms": []interface{}{"chest pain", "shortness of breath"},
		},
		Timestamp: now,
	}

	esc := escalationFromEvent(event)
	if esc.SessionID != "s-1" {
		t.Fatalf("session id: %s", esc.SessionID)
	}
	if esc.Urgency != models.UrgencyEmergency {
		t.Fatalf("urgency: %s", esc.Urgency)
	}
	if len(esc.TriggeredTerms) != 2 || esc.TriggeredTerms[0] != "chest pain" {
		t.Fatalf("terms: %v", esc.TriggeredTerms)
	}
	if esc.Status != models.EscalationPending {
		t.Fatalf("status: %s", esc.Status)
	}
	if !esc.CreatedAt.Equal(now) {
		t.Fatal("timestamp not carried from event")
	}
}

func TestEscalationFromEventMissingFields(t *testing.T) {
	esc := escalationFromEvent(models.Event{Type: "escalation", Data: map[string]interface{}{}})
	if esc.SessionID != "" || esc.TriggeredTerms != nil {
		t.Fatalf("expected zero values, got %+v", esc)
	}
}
