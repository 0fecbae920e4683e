package filestore

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/documents"
	"protected-docs/internal/shared/server/middleware"
	"protected-docs/internal/shared/server/respond"
)

// Handler exposes migration, status and repair to administrators.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterAdminRoutes attaches file management routes to the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/files/migrate", h.migrateAll)
	rg.GET("/files/status", h.status)
	rg.POST("/documents/:id/migrate", h.migrate)
	rg.POST("/documents/:id/repair", h.repair)
}

func (h *Handler) migrateAll(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))

	report, err := h.Svc.MigrateAll(c.Request.Context(), MigrateOptions{DryRun: dryRun})
	switch {
	case err == nil:
		respond.OK(c, report)
	case errors.Is(err, ErrPartialMigration):
		respond.JSON(c, http.StatusMultiStatus, report)
	case errors.Is(err, ErrMigrationInProgress):
		respond.Error(c, http.StatusConflict, "migration_in_progress", "another migration is running", nil)
	default:
		writeError(c, err, "failed to migrate files")
	}
}

func (h *Handler) migrate(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)

	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))

	res, err := h.Svc.Migrate(c.Request.Context(), id, MigrateOptions{DryRun: dryRun})
	if err != nil {
		if res.Outcome == OutcomeFailed {
			respond.Error(c, http.StatusInternalServerError, "storage_error", "failed to migrate file", res)
			return
		}
		writeError(c, err, "failed to migrate file")
		return
	}
	respond.OK(c, res)
}

func (h *Handler) status(c *gin.Context) {
	st, err := h.Svc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to read store status")
		return
	}
	respond.OK(c, st)
}

func (h *Handler) repair(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)

	res, err := h.Svc.Repair(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to repair file association")
		return
	}
	respond.OK(c, res)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusInternalServerError, "storage_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
