package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"protected-docs/internal/shared/auth"
)

func newAdminRouter(t *testing.T) (*gin.Engine, *auth.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("test-secret", "test")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	router := gin.New()
	router.Use(AdminAuth(signer))
	router.GET("/api/v1/admin/files/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": AdminEmailFromContext(c)})
	})
	router.OPTIONS("/api/v1/admin/files/status", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, signer
}

func TestAdminAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _ := newAdminRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/files/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	router, _ := newAdminRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAdminAuthRequiresAdminRole(t *testing.T) {
	router, signer := newAdminRouter(t)

	viewer, _ := signer.Sign(auth.Claims{Email: "viewer@example.com", Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{Subject: "viewer@example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/status", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.Code)
	}

	admin, _ := signer.Sign(auth.Claims{Email: "ops@example.com", Role: auth.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops@example.com"}})
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/status", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
}
