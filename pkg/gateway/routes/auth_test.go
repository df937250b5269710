package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/caremesh-ai/triage/pkg/common/models"
	gatewayauth "github.com/caremesh-ai/triage/pkg/gateway/auth"
)

// fakeProvider stands in for the identity provider: it answers the token
// exchange and the userinfo lookup.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	providerMux := http.NewServeMux()
	providerMux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`)
	})
	providerMux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "at-123") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sub":"reviewer-1","email":"reviewer@example.com"}`)
	})
	return httptest.NewServer(providerMux)
}

func newAuthRouter(t *testing.T, issuer string) (*mux.Router, *gatewayauth.JWTManager) {
	t.Helper()
	oidc, err := gatewayauth.NewOIDCAuthenticator(issuer, "client-id", "client-secret", "http://localhost/auth/callback")
	if err != nil {
		t.Fatalf("oidc: %v", err)
	}
	manager, err := gatewayauth.NewJWTManager("test-secret-0123456789", "caremesh", "triage-api", time.Hour)
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	r := mux.NewRouter()
	NewAuthHandler(oidc, manager).Register(r)
	return r, manager
}

func TestLoginRedirectsToProvider(t *testing.T) {
	router, _ := newAuthRouter(t, "https://idp.example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if !strings.HasPrefix(location.String(), "https://idp.example.com/authorize") {
		t.Fatalf("unexpected redirect target %s", location)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("redirect is missing the state parameter")
	}

	var cookieState string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "oauth_state" {
			cookieState = c.Value
		}
	}
	if cookieState != state {
		t.Fatalf("state cookie %q does not match redirect state %q", cookieState, state)
	}
}

func TestCallbackIssuesReviewerToken(t *testing.T) {
	provider := fakeProvider(t)
	defer provider.Close()

	router, manager := newAuthRouter(t, provider.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := manager.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims.Role != gatewayauth.RoleReviewer {
		t.Fatalf("expected reviewer role, got %s", claims.Role)
	}
	if claims.Subject != "reviewer-1" {
		t.Fatalf("expected subject reviewer-1, got %s", claims.Subject)
	}
	if resp.Email != "reviewer@example.com" {
		t.Fatalf("unexpected email %s", resp.Email)
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	provider := fakeProvider(t)
	defer provider.Close()

	router, _ := newAuthRouter(t, provider.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=other", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCallbackRejectsFailedExchange(t *testing.T) {
	providerMux := http.NewServeMux()
	providerMux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	})
	provider := httptest.NewServer(providerMux)
	defer provider.Close()

	router, _ := newAuthRouter(t, provider.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
