package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/caremesh-ai/triage/pkg/clinical"
	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/intake"
	"github.com/caremesh-ai/triage/pkg/observability/metrics"
	"github.com/caremesh-ai/triage/pkg/report"
	"github.com/caremesh-ai/triage/pkg/review"
	"github.com/caremesh-ai/triage/pkg/session"
)

// Handler exposes the triage pipeline over HTTP. The review repository is
// optional; without it the escalation queue endpoints return 503.
type Handler struct {
	intake   *intake.Agent
	clinical *clinical.Agent
	reports  *report.Service
	store    session.Store
	reviews  *review.Repository
}

func NewHandler(intakeAgent *intake.Agent, clinicalAgent *clinical.Agent, reports *report.Service, store session.Store, reviews *review.Repository) *Handler {
	return &Handler{
		intake:   intakeAgent,
		clinical: clinicalAgent,
		reports:  reports,
		store:    store,
		reviews:  reviews,
	}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/chat", h.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/recommend", h.handleRecommend).Methods(http.MethodPost)
	r.HandleFunc("/recommendation", h.handleLatestRecommendation).Methods(http.MethodGet)
	r.HandleFunc("/recommendations", h.handleGetRecommendations).Methods(http.MethodGet)
	r.HandleFunc("/reports", h.handleUploadReport).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/close", h.handleCloseSession).Methods(http.MethodPost)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.handleMetrics).Methods(http.MethodGet)
}

// RegisterReviewer registers the routes that act on escalations. The caller
// decides which auth middleware guards them.
func (h *Handler) RegisterReviewer(r *mux.Router) {
	r.HandleFunc("/sessions/{id}/escalation/override", h.handleOverride).Methods(http.MethodPost)
	r.HandleFunc("/escalations", h.handleListEscalations).Methods(http.MethodGet)
	r.HandleFunc("/escalations/{id}", h.handleGetEscalation).Methods(http.MethodGet)
	r.HandleFunc("/escalations/{id}/review", h.handleReviewEscalation).Methods(http.MethodPost)
	r.HandleFunc("/escalations/{id}/audits", h.handleEscalationAudits).Methods(http.MethodGet)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	resp, err := h.intake.HandleTurn(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.clinical.GenerateRecommendation(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to generate recommendation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendation": rec})
}

func (h *Handler) handleLatestRecommendation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.clinical.LatestRecommendation(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err, "failed to load recommendation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendation": rec})
}

func (h *Handler) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	recs, err := h.clinical.GetRecommendations(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err, "failed to load recommendations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": recs})
}

func (h *Handler) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	var req models.UploadReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	resp, err := h.reports.Attach(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to attach report")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": sess})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.intake.Close(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err, "failed to close session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sess.ID, "state": sess.State})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req models.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	sess, err := h.intake.OverrideEscalation(r.Context(), sessionID, req)
	if err != nil {
		writeDomainError(w, err, "failed to override escalation")
		return
	}

	if h.reviews != nil {
		if err := h.reviews.ResolveBySession(r.Context(), sessionID, models.EscalationOverridden, req.Reviewer, req.Reason); err != nil {
			logger.Log.WithError(err).WithField("session_id", sessionID).Warn("Failed to resolve review queue entry")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"state":      sess.State,
		"assessment": sess.Assessment,
	})
}

func (h *Handler) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	if h.reviews == nil {
		http.Error(w, "review queue not configured", http.StatusServiceUnavailable)
		return
	}
	escalations, err := h.reviews.ListPending(r.Context(), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list escalations")
		http.Error(w, "failed to list escalations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": escalations})
}

func (h *Handler) handleGetEscalation(w http.ResponseWriter, r *http.Request) {
	if h.reviews == nil {
		http.Error(w, "review queue not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid escalation id", http.StatusBadRequest)
		return
	}
	esc, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load escalation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"escalation": esc})
}

func (h *Handler) handleReviewEscalation(w http.ResponseWriter, r *http.Request) {
	if h.reviews == nil {
		http.Error(w, "review queue not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid escalation id", http.StatusBadRequest)
		return
	}

	var req models.ReviewEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Reviewer == "" {
		http.Error(w, "reviewer is required", http.StatusBadRequest)
		return
	}
	if req.Status != models.EscalationConfirmed && req.Status != models.EscalationOverridden {
		http.Error(w, "status must be confirmed or overridden", http.StatusBadRequest)
		return
	}

	esc, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load escalation")
		return
	}
	if err := h.reviews.Review(r.Context(), id, req.Status, req.Reviewer, req.Notes); err != nil {
		writeDomainError(w, err, "failed to review escalation")
		return
	}
	if err := h.reviews.AppendAudit(r.Context(), esc.SessionID, req.Reviewer, "reviewed", map[string]interface{}{
		"escalation_id": id.String(),
		"status":        string(req.Status),
	}); err != nil {
		logger.Log.WithError(err).WithField("session_id", esc.SessionID).Warn("Failed to append review audit")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"escalation_id": id.String(),
		"status":        req.Status,
	})
}

func (h *Handler) handleEscalationAudits(w http.ResponseWriter, r *http.Request) {
	if h.reviews == nil {
		http.Error(w, "review queue not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid escalation id", http.StatusBadRequest)
		return
	}
	esc, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load escalation")
		return
	}
	audits, err := h.reviews.ListAudits(r.Context(), esc.SessionID, parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list audit entries")
		http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": audits})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w)
}

// writeDomainError maps the pipeline error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case intake.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case session.IsNotFound(err):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, clinical.ErrNoRecommendation):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, review.ErrNotFound):
		http.Error(w, "escalation not found", http.StatusNotFound)
	case clinical.IsPreconditionError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case clinical.IsEscalatedError(err), intake.IsSafetyOverrideError(err):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		logger.Log.WithError(err).Error(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
