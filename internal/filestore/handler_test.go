package filestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc).RegisterAdminRoutes(router.Group("/api/v1/admin"))
	return router
}

func TestHandlerMigrateReturnsMultiStatusOnPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.seedLegacy(t, "ok.pdf", "ok body")
	f.seedLegacy(t, "missing.pdf", "")
	router := newTestRouter(f.svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/files/migrate", nil))
	if resp.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", resp.Code, resp.Body.String())
	}
	var report Report
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Migrated != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/status", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var st map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st["protectionActive"] != true || st["legacyPending"] != float64(1) {
		t.Fatalf("unexpected status %v", st)
	}
}

func TestHandlerMigrateConflictAndNotFound(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f.svc)

	release, err := f.locker.Acquire(context.Background(), migrationLockName, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release(context.Background())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/files/migrate", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/documents/nope/repair", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
