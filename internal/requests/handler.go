package requests

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/shared/server/middleware"
	"protected-docs/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the lifecycle service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the public submission route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/access-requests", h.submit)
}

// RegisterAdminRoutes attaches ledger and transition routes to the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/access-requests", h.list)
	rg.GET("/access-requests/:id", h.get)
	rg.POST("/access-requests/:id/accept", h.transition(StatusAccepted, h.Svc.Accept))
	rg.POST("/access-requests/:id/decline", h.transition(StatusDeclined, h.Svc.Decline))
	rg.POST("/access-requests/:id/deactivate", h.transition(StatusInactive, h.Svc.Deactivate))
}

type submitRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) submit(c *gin.Context) {
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req, err := h.Svc.Submit(c.Request.Context(), documentID, body.Name, body.Email)
	if err != nil {
		writeError(c, err, "failed to submit request")
		return
	}

	c.Set(middleware.AccessRequestIDKey, req.ID)
	c.Set(middleware.StatusTransitionKey, Transition("", StatusPending))
	respond.Created(c, SubmitResponse{RequestID: req.ID, Status: req.Status})
}

func (h *Handler) transition(to Status, fn func(context.Context, string) (TransitionResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		c.Set(middleware.AccessRequestIDKey, id)

		res, err := fn(c.Request.Context(), id)
		if err != nil {
			writeError(c, err, "failed to update request")
			return
		}

		c.Set(middleware.DocumentIDKey, res.Request.DocumentID)
		c.Set(middleware.StatusTransitionKey, Transition(res.PreviousStatus, to))
		respond.OK(c, toTransitionResponse(res))
	}
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.AccessRequestIDKey, id)

	req, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch request")
		return
	}
	respond.OK(c, toResponse(req))
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	filter := Filter{
		Status:     Status(c.Query("status")),
		DocumentID: c.Query("documentId"),
	}
	reqs, err := h.Svc.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeError(c, err, "failed to list requests")
		return
	}

	resp := make([]AccessRequestResponse, 0, len(reqs))
	for _, req := range reqs {
		resp = append(resp, toResponse(req))
	}
	respond.OK(c, resp)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "access request not found", nil)
	case errors.Is(err, ErrDocumentNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
