package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	sharedauth "protected-docs/internal/shared/auth"
)

func newTestService(t *testing.T) (*GoogleService, *sharedauth.Signer) {
	t.Helper()
	signer, err := sharedauth.NewSigner("test-secret", "test")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	svc := NewGoogleService("id", "secret", "http://api/callback", "http://ui/login", signer, []string{" Admin@Example.com "})
	return svc, signer
}

func runIssue(svc *GoogleService, info googleUserInfo) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback", nil)
	svc.issue(c, info)
	return resp
}

func TestIssueSignsAdminTokenForAllowlistedEmail(t *testing.T) {
	svc, signer := newTestService(t)

	resp := runIssue(svc, googleUserInfo{Sub: "123", Email: "admin@example.com", VerifiedEmail: true, Name: "Admin"})
	if resp.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d: %s", resp.Code, resp.Body.String())
	}
	loc, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), "http://ui/login") {
		t.Fatalf("unexpected redirect %s", loc)
	}
	claims, err := signer.Verify(loc.Query().Get("token"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != sharedauth.RoleAdmin || claims.Subject != "google:123" || claims.Email != "admin@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestIssueRejectsNonAdmins(t *testing.T) {
	svc, _ := newTestService(t)

	for name, info := range map[string]googleUserInfo{
		"not allowlisted": {Sub: "1", Email: "visitor@example.com", VerifiedEmail: true},
		"unverified":      {Sub: "2", Email: "admin@example.com"},
	} {
		t.Run(name, func(t *testing.T) {
			if resp := runIssue(svc, info); resp.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", resp.Code)
			}
		})
	}
}

func TestStateIsSingleUse(t *testing.T) {
	store := newStateStore(time.Minute)
	store.put("s1", time.Now().Add(time.Minute))
	if !store.consume("s1") {
		t.Fatalf("expected first consume to succeed")
	}
	if store.consume("s1") {
		t.Fatalf("expected replayed state to fail")
	}
	store.put("s2", time.Now().Add(-time.Second))
	if store.consume("s2") {
		t.Fatalf("expected expired state to fail")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://ui/login?next=%2Fadmin", "abc")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "abc" || u.Query().Get("next") != "/admin" {
		t.Fatalf("unexpected url %s", got)
	}
	if _, err := appendToken("", "abc"); err == nil {
		t.Fatalf("expected error for empty redirect")
	}
}
