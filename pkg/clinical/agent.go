package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/intake"
	"github.com/caremesh-ai/triage/pkg/observability/metrics"
	"github.com/caremesh-ai/triage/pkg/redaction"
	"github.com/caremesh-ai/triage/pkg/session"
	"github.com/google/uuid"
)

const (
	defaultTopK    = 3
	maxTopK        = 10
	defaultTimeout = 3 * time.Second
)

// Retriever is the read side of the guideline index. *ragindex.Index
// satisfies it; tests substitute slow or failing implementations.
type Retriever interface {
	Query(text string, k int) []models.RetrievedDocument
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Options struct {
	TopK    int
	Timeout time.Duration
}

// Agent produces guideline-backed recommendations for completed intake
// sessions. Generation is deterministic for an unchanged session and index:
// same considerations, same documents, same order.
type Agent struct {
	store     session.Store
	locks     *session.LockRegistry
	filter    *redaction.Filter
	retriever Retriever
	playbook  Playbook
	topK      int
	timeout   time.Duration
	events    EventPublisher
}

func NewAgent(store session.Store, locks *session.LockRegistry, filter *redaction.Filter, retriever Retriever, playbook Playbook, opts Options, events EventPublisher) *Agent {
	if locks == nil {
		locks = session.NewLockRegistry()
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Agent{
		store:     store,
		locks:     locks,
		filter:    filter,
		retriever: retriever,
		playbook:  playbook,
		topK:      opts.TopK,
		timeout:   opts.Timeout,
		events:    events,
	}
}

// GenerateRecommendation gates on the intake preconditions, retrieves
// supporting guideline excerpts, and appends the recommendation to the
// session. Retrieval overrunning its budget degrades the response instead
// of failing it.
func (a *Agent) GenerateRecommendation(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error) {
	release := a.locks.Acquire(req.SessionID)
	defer release()

	sess, err := a.store.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if sess.State == models.StateEmergency {
		return nil, &EscalatedError{SessionID: sess.ID}
	}
	if sess.State != models.StateReady {
		return nil, &PreconditionError{
			SessionID: sess.ID,
			State:     sess.State,
			Missing:   missingFields(sess.Record),
		}
	}

	notes := strings.TrimSpace(req.Notes)
	if notes != "" {
		notes, _ = a.filter.Redact(notes)
	}

	k := req.TopK
	if k <= 0 {
		k = a.topK
	}
	if k > maxTopK {
		k = maxTopK
	}

	query := buildQuery(sess, notes)

	degraded := false
	docs, err := a.retrieve(ctx, query, k)
	if err != nil {
		logger.Log.WithError(err).WithField("session_id", sess.ID).Warn("Retrieval failed, degrading recommendation")
		degraded = true
		docs = nil
	}

	rec := models.Recommendation{
		ID:                  uuid.New().String(),
		SessionID:           sess.ID,
		Summary:             buildSummary(sess, degraded),
		Considerations:      a.considerations(sess, notes),
		SupportingDocuments: docs,
		Urgency:             sess.Assessment.Urgency,
		Disclaimer:          a.playbook.Disclaimer,
		Degraded:            degraded,
		GeneratedAt:         time.Now().UTC(),
	}

	metrics.IncRecommendations(rec.Degraded)

	sess.Recommendations = append(sess.Recommendations, rec)
	sess.UpdatedAt = rec.GeneratedAt
	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	if a.events != nil {
		if err := a.events.PublishEvent(ctx, "recommendation", "triage-api", map[string]interface{}{
			"session_id":        sess.ID,
			"recommendation_id": rec.ID,
			"urgency":           string(rec.Urgency),
			"degraded":          rec.Degraded,
		}); err != nil {
			logger.Log.WithError(err).Warn("Event publish failed")
		}
	}

	return &rec, nil
}

// LatestRecommendation returns the most recently generated recommendation
// for a session, or ErrNoRecommendation when none exists yet.
func (a *Agent) LatestRecommendation(ctx context.Context, sessionID string) (*models.Recommendation, error) {
	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Recommendations) == 0 {
		return nil, ErrNoRecommendation
	}
	rec := sess.Recommendations[len(sess.Recommendations)-1]
	return &rec, nil
}

// GetRecommendations returns the recommendations already generated for a
// session, oldest first.
func (a *Agent) GetRecommendations(ctx context.Context, sessionID string) ([]models.Recommendation, error) {
	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Recommendations, nil
}

func (a *Agent) retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan []models.RetrievedDocument, 1)
	go func() {
		done <- a.retriever.Query(query, k)
	}()

	select {
	case docs := <-done:
		return docs, nil
	case <-ctx.Done():
		return nil, ErrRetrievalTimeout
	}
}

func buildQuery(sess *models.Session, notes string) string {
	parts := []string{
		sess.Record[intake.FieldChiefComplaint].Value,
		sess.Record[intake.FieldAssociatedSymptoms].Value,
		sess.Record[intake.FieldMedicalHistory].Value,
		notes,
	}
	parts = append(parts, sess.Assessment.TriggeredTerms...)

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func buildSummary(sess *models.Session, degraded bool) string {
	chief := sess.Record[intake.FieldChiefComplaint].Value
	severity := sess.Record[intake.FieldSeverity].Value
	duration := sess.Record[intake.FieldDuration].Value

	summary := fmt.Sprintf("Guidance for: %s (severity %s, duration %s, urgency %s).", chief, severity, duration, sess.Assessment.Urgency)
	if degraded {
		summary += " Reference guidelines were unavailable; this guidance is based on the care playbook alone."
	}
	return summary
}

// considerations collects the playbook entries triggered by the session
// text, in playbook order, deduplicated, with the base entries last.
func (a *Agent) considerations(sess *models.Session, notes string) []string {
	var corpus strings.Builder
	for _, fv := range []string{
		sess.Record[intake.FieldChiefComplaint].Value,
		sess.Record[intake.FieldAssociatedSymptoms].Value,
		sess.Record[intake.FieldMedicalHistory].Value,
		notes,
	} {
		corpus.WriteString(strings.ToLower(fv))
		corpus.WriteString(" ")
	}
	for _, term := range sess.Assessment.TriggeredTerms {
		corpus.WriteString(strings.ToLower(term))
		corpus.WriteString(" ")
	}
	text := corpus.String()

	seen := make(map[string]struct{})
	var out []string
	appendUnique := func(items []string) {
		for _, item := range items {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}

	for _, rule := range a.playbook.Rules {
		for _, term := range rule.Terms {
			if strings.Contains(text, strings.ToLower(term)) {
				appendUnique(rule.Considerations)
				break
			}
		}
	}
	appendUnique(a.playbook.BaseConsiderations)
	return out
}

func missingFields(record models.StructuredRecord) []string {
	var missing []string
	for _, key := range []string{intake.FieldChiefComplaint, intake.FieldMedicalHistory, intake.FieldSeverity, intake.FieldDuration} {
		if !record.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}
