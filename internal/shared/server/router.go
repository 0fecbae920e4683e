package server

import (
	"github.com/gin-gonic/gin"

	googleauth "protected-docs/internal/auth"
	"protected-docs/internal/documents"
	"protected-docs/internal/downloads"
	"protected-docs/internal/filestore"
	"protected-docs/internal/requests"
	"protected-docs/internal/services/health"
	"protected-docs/internal/shared/config"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/server/middleware"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	GoogleAuth      *googleauth.GoogleService
	DocumentHandler *documents.Handler
	RequestHandler  *requests.Handler
	DownloadHandler *downloads.Handler
	FileHandler     *filestore.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		metrics.Middleware(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if deps.Health != nil {
		deps.Health.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	deps.DocumentHandler.RegisterRoutes(api)
	deps.RequestHandler.RegisterRoutes(api)
	deps.DownloadHandler.RegisterRoutes(api)

	admin := api.Group("/admin", middleware.AdminAuth(deps.Verifier))
	registerMeRoutes(admin)
	deps.DocumentHandler.RegisterAdminRoutes(admin)
	deps.RequestHandler.RegisterAdminRoutes(admin)
	deps.FileHandler.RegisterAdminRoutes(admin)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
