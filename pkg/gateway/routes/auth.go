package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/common/models"
	gatewayauth "github.com/caremesh-ai/triage/pkg/gateway/auth"
)

const stateCookie = "oauth_state"

// AuthHandler drives reviewer login: the provider's authorization-code flow
// on the way in, a locally issued JWT on the way out.
type AuthHandler struct {
	oidc        *gatewayauth.OIDCAuthenticator
	tokenSigner *gatewayauth.JWTManager
}

func NewAuthHandler(oidc *gatewayauth.OIDCAuthenticator, tokenSigner *gatewayauth.JWTManager) *AuthHandler {
	return &AuthHandler{oidc: oidc, tokenSigner: tokenSigner}
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", h.handleCallback).Methods(http.MethodGet)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	token, err := h.oidc.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC code exchange failed")
		http.Error(w, "code exchange failed", http.StatusUnauthorized)
		return
	}

	info, err := h.oidc.UserInfo(r.Context(), token)
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC userinfo lookup failed")
		http.Error(w, "identity lookup failed", http.StatusUnauthorized)
		return
	}

	signed, err := h.tokenSigner.IssueToken(info.Subject, gatewayauth.RoleReviewer, info.Email)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, models.AuthResponse{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(h.tokenSigner.TTL().Seconds()),
		Subject:   info.Subject,
		Email:     info.Email,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
