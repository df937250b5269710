package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	intakeTurns             atomic.Int64
	redactionsApplied       atomic.Int64
	escalations             atomic.Int64
	overrides               atomic.Int64
	recommendations         atomic.Int64
	recommendationsDegraded atomic.Int64
	reportsAttached         atomic.Int64
)

func IncIntakeTurns()     { intakeTurns.Add(1) }
func IncEscalations()     { escalations.Add(1) }
func IncOverrides()       { overrides.Add(1) }
func IncReportsAttached() { reportsAttached.Add(1) }

func AddRedactions(n int) {
	if n > 0 {
		redactionsApplied.Add(int64(n))
	}
}

func IncRecommendations(degraded bool) {
	recommendations.Add(1)
	if degraded {
		recommendationsDegraded.Add(1)
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP caremesh_intake_turns_total Number of intake conversation turns processed.\n")
	fmt.Fprintf(w, "# TYPE caremesh_intake_turns_total counter\n")
	fmt.Fprintf(w, "caremesh_intake_turns_total %d\n", intakeTurns.Load())

	fmt.Fprintf(w, "# HELP caremesh_redactions_applied_total Number of redaction categories applied to inbound text.\n")
	fmt.Fprintf(w, "# TYPE caremesh_redactions_applied_total counter\n")
	fmt.Fprintf(w, "caremesh_redactions_applied_total %d\n", redactionsApplied.Load())

	fmt.Fprintf(w, "# HELP caremesh_escalations_total Number of sessions escalated to emergency.\n")
	fmt.Fprintf(w, "# TYPE caremesh_escalations_total counter\n")
	fmt.Fprintf(w, "caremesh_escalations_total %d\n", escalations.Load())

	fmt.Fprintf(w, "# HELP caremesh_escalation_overrides_total Number of reviewer overrides applied to escalated sessions.\n")
	fmt.Fprintf(w, "# TYPE caremesh_escalation_overrides_total counter\n")
	fmt.Fprintf(w, "caremesh_escalation_overrides_total %d\n", overrides.Load())

	fmt.Fprintf(w, "# HELP caremesh_recommendations_total Number of recommendations generated.\n")
	fmt.Fprintf(w, "# TYPE caremesh_recommendations_total counter\n")
	fmt.Fprintf(w, "caremesh_recommendations_total %d\n", recommendations.Load())

	fmt.Fprintf(w, "# HELP caremesh_recommendations_degraded_total Number of recommendations generated without guideline retrieval.\n")
	fmt.Fprintf(w, "# TYPE caremesh_recommendations_degraded_total counter\n")
	fmt.Fprintf(w, "caremesh_recommendations_degraded_total %d\n", recommendationsDegraded.Load())

	fmt.Fprintf(w, "# HELP caremesh_reports_attached_total Number of uploaded reports attached to sessions.\n")
	fmt.Fprintf(w, "# TYPE caremesh_reports_attached_total counter\n")
	fmt.Fprintf(w, "caremesh_reports_attached_total %d\n", reportsAttached.Load())
}
