package clinical

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/intake"
	"github.com/caremesh-ai/triage/pkg/ragindex"
	"github.com/caremesh-ai/triage/pkg/redaction"
	"github.com/caremesh-ai/triage/pkg/session"
)

type slowRetriever struct {
	delay time.Duration
	inner Retriever
}

func (s *slowRetriever) Query(text string, k int) []models.RetrievedDocument {
	time.Sleep(s.delay)
	return s.inner.Query(text, k)
}

type capturingRetriever struct {
	inner     Retriever
	lastQuery string
}

func (c *capturingRetriever) Query(text string, k int) []models.RetrievedDocument {
	c.lastQuery = text
	return c.inner.Query(text, k)
}

func seededIndex() *ragindex.Index {
	idx := ragindex.New()
	idx.Add(ragindex.DefaultCorpus().Documents...)
	return idx
}

func newTestAgent(t *testing.T, retriever Retriever, opts Options) (*Agent, session.Store) {
	t.Helper()
	filter, err := redaction.NewFilter(redaction.DefaultRules(), 0)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	store := session.NewMemoryStore()
	return NewAgent(store, nil, filter, retriever, DefaultPlaybook(), opts, nil), store
}

func saveSession(t *testing.T, store session.Store, sess *models.Session) {
	t.Helper()
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func readySession(id string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:    id,
		State: models.StateReady,
		Record: models.StructuredRecord{
			intake.FieldChiefComplaint: {Value: "throbbing headache behind the eyes", TurnID: "t-1", UpdatedAt: now},
			intake.FieldMedicalHistory: {Value: "no chronic conditions", TurnID: "t-2", UpdatedAt: now},
			intake.FieldSeverity:       {Value: "4 out of 10", TurnID: "t-3", UpdatedAt: now},
			intake.FieldDuration:       {Value: "2 days", TurnID: "t-3", UpdatedAt: now},
		},
		Assessment: models.RedFlagAssessment{Urgency: models.UrgencyNone, AssessedAt: now},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGenerateRecommendationHappyPath(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})
	saveSession(t, store, readySession("s-1"))

	rec, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if rec.Degraded {
		t.Fatal("unexpected degraded recommendation")
	}
	if len(rec.SupportingDocuments) == 0 || len(rec.SupportingDocuments) > 3 {
		t.Fatalf("expected 1..3 supporting documents, got %d", len(rec.SupportingDocuments))
	}
	for i := 1; i < len(rec.SupportingDocuments); i++ {
		if rec.SupportingDocuments[i].Score > rec.SupportingDocuments[i-1].Score {
			t.Fatal("supporting documents not in descending score order")
		}
	}
	if rec.Disclaimer == "" {
		t.Fatal("disclaimer missing")
	}
	if rec.Urgency != models.UrgencyNone {
		t.Fatalf("urgency not carried from assessment: %s", rec.Urgency)
	}

	var hasNeuro bool
	for _, c := range rec.Considerations {
		if strings.Contains(c, "headache") {
			hasNeuro = true
		}
	}
	if !hasNeuro {
		t.Fatalf("expected headache playbook considerations, got %v", rec.Considerations)
	}

	sess, _ := store.Load(context.Background(), "s-1")
	if len(sess.Recommendations) != 1 || sess.Recommendations[0].ID != rec.ID {
		t.Fatal("recommendation not appended to session")
	}
}

func TestGenerateRecommendationDeterministic(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})
	saveSession(t, store, readySession("s-2"))

	first, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-2"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	second, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-2"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(first.Considerations) != len(second.Considerations) {
		t.Fatal("considerations not deterministic")
	}
	for i := range first.Considerations {
		if first.Considerations[i] != second.Considerations[i] {
			t.Fatalf("consideration order changed at %d", i)
		}
	}
	if len(first.SupportingDocuments) != len(second.SupportingDocuments) {
		t.Fatal("document count not deterministic")
	}
	for i := range first.SupportingDocuments {
		if first.SupportingDocuments[i].DocID != second.SupportingDocuments[i].DocID {
			t.Fatalf("document order changed at %d", i)
		}
	}
}

func TestGenerateRecommendationPrecondition(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})

	sess := readySession("s-3")
	sess.State = models.StateSeverityDuration
	delete(sess.Record, intake.FieldSeverity)
	delete(sess.Record, intake.FieldDuration)
	saveSession(t, store, sess)

	_, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-3"})
	if !IsPreconditionError(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	var pe *PreconditionError
	if !strings.Contains(err.Error(), intake.FieldSeverity) {
		t.Fatalf("expected missing fields in error, got %v", pe)
	}
}

func TestGenerateRecommendationRefusesEscalated(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})

	sess := readySession("s-4")
	sess.State = models.StateEmergency
	sess.Assessment.Urgency = models.UrgencyEmergency
	saveSession(t, store, sess)

	_, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-4"})
	if !IsEscalatedError(err) {
		t.Fatalf("expected escalated error, got %v", err)
	}
}

func TestGenerateRecommendationUnknownSession(t *testing.T) {
	agent, _ := newTestAgent(t, seededIndex(), Options{})

	_, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "missing"})
	if !session.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateRecommendationDegradesOnSlowRetrieval(t *testing.T) {
	retriever := &slowRetriever{delay: 200 * time.Millisecond, inner: seededIndex()}
	agent, store := newTestAgent(t, retriever, Options{Timeout: 20 * time.Millisecond})
	saveSession(t, store, readySession("s-5"))

	rec, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-5"})
	if err != nil {
		t.Fatalf("degraded generation must not fail: %v", err)
	}
	if !rec.Degraded {
		t.Fatal("expected degraded recommendation")
	}
	if len(rec.SupportingDocuments) != 0 {
		t.Fatal("degraded recommendation must not cite documents")
	}
	if len(rec.Considerations) == 0 {
		t.Fatal("degraded recommendation still carries playbook considerations")
	}
	if rec.Disclaimer == "" {
		t.Fatal("disclaimer missing on degraded recommendation")
	}
	if !strings.Contains(rec.Summary, "playbook") {
		t.Fatalf("summary must note the degradation: %s", rec.Summary)
	}
}

func TestGenerateRecommendationRedactsNotes(t *testing.T) {
	retriever := &capturingRetriever{inner: seededIndex()}
	agent, store := newTestAgent(t, retriever, Options{})
	saveSession(t, store, readySession("s-6"))

	_, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{
		SessionID: "s-6",
		Notes:     "please call me back at 555-123-4567",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if strings.Contains(retriever.lastQuery, "555-123-4567") {
		t.Fatalf("raw identifier reached retrieval: %s", retriever.lastQuery)
	}
}

func TestTopKBounded(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})
	saveSession(t, store, readySession("s-7"))

	rec, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-7", TopK: 2})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(rec.SupportingDocuments) > 2 {
		t.Fatalf("top_k not honored: %d", len(rec.SupportingDocuments))
	}
}

func TestGetRecommendations(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})
	saveSession(t, store, readySession("s-8"))

	if _, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-8"}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	recs, err := agent.GetRecommendations(context.Background(), "s-8")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}

	if _, err := agent.GetRecommendations(context.Background(), "missing"); !session.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLatestRecommendation(t *testing.T) {
	agent, store := newTestAgent(t, seededIndex(), Options{})
	saveSession(t, store, readySession("s-9"))

	if _, err := agent.LatestRecommendation(context.Background(), "s-9"); err != ErrNoRecommendation {
		t.Fatalf("expected ErrNoRecommendation, got %v", err)
	}

	first, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-9"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	second, err := agent.GenerateRecommendation(context.Background(), models.RecommendRequest{SessionID: "s-9", Notes: "symptoms slightly worse today"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	latest, err := agent.LatestRecommendation(context.Background(), "s-9")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest recommendation %s, got %s", second.ID, latest.ID)
	}
	if latest.ID == first.ID {
		t.Fatal("latest returned the older recommendation")
	}

	if _, err := agent.LatestRecommendation(context.Background(), "missing"); !session.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
