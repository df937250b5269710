package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caremesh-ai/triage/pkg/gateway/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	m, err := auth.NewJWTManager("0123456789abcdef0123", "caremesh", "triage-api", time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	protected := Authenticate(m)(RequireRole(auth.RoleReviewer)(okHandler()))

	// No token.
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/escalations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Wrong role.
	patientToken, _ := m.IssueToken("p-1", auth.RolePatient, "")
	req := httptest.NewRequest(http.MethodGet, "/escalations", nil)
	req.Header.Set("Authorization", "Bearer "+patientToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Reviewer.
	reviewerToken, _ := m.IssueToken("dr.lee", auth.RoleReviewer, "")
	req = httptest.NewRequest(http.MethodGet, "/escalations", nil)
	req.Header.Set("Authorization", "Bearer "+reviewerToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	limited := RateLimit(1, 2)(okHandler())

	var tooMany bool
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
		if rec.Code == http.StatusTooManyRequests {
			tooMany = true
		}
	}
	if !tooMany {
		t.Fatal("burst overflow never rejected")
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS headers")
	}
}
