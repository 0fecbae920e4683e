package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry domain identifiers.
const (
	AccessRequestIDKey  = "accessRequestId"
	DocumentIDKey       = "documentId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		accessRequestID, _ := c.Get(AccessRequestIDKey)
		documentID, _ := c.Get(DocumentIDKey)
		statusTransition := ""
		if raw, ok := c.Get(StatusTransitionKey); ok {
			if s, ok := raw.(string); ok {
				statusTransition = s
			}
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"access_request_id": accessRequestID,
			"document_id":       documentID,
			"admin":             AdminSubjectFromContext(c),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
