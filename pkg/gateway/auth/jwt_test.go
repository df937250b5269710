package auth

import (
	"strings"
	"testing"
	"time"
)

func newManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager("0123456789abcdef0123", "caremesh", "triage-api", time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndValidateToken(t *testing.T) {
	m := newManager(t)

	token, err := m.IssueToken("dr.lee", RoleReviewer, "lee@example.org")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("malformed token: %s", token)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "dr.lee" || claims.Role != RoleReviewer {
		t.Fatalf("claims wrong: %+v", claims)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	m := newManager(t)

	token, err := m.IssueToken("dr.lee", RoleReviewer, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := newManager(t)
	m.nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.IssueToken("dr.lee", RoleReviewer, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.nowFunc = time.Now
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	m := newManager(t)
	other, err := NewJWTManager("0123456789abcdef0123", "caremesh", "other-api", time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	token, err := other.IssueToken("dr.lee", RoleReviewer, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("token for another audience accepted")
	}
}

func TestShortSecretRejected(t *testing.T) {
	if _, err := NewJWTManager("short", "caremesh", "triage-api", time.Hour); err == nil {
		t.Fatal("short secret accepted")
	}
}
