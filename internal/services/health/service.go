package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/shared/server/respond"
	"protected-docs/internal/shared/storage/db"
	"protected-docs/internal/shared/storage/object"
)

// StoreInspector reports the protected root's state without writing to it.
type StoreInspector interface {
	Inspect(ctx context.Context) (object.Status, error)
}

// Service encapsulates health-related checks.
type Service struct {
	DB          *sql.DB
	Store       StoreInspector
	PingTimeout time.Duration
}

// StoreReport is the public view of the protected root.
type StoreReport struct {
	FolderExists     bool `json:"folderExists"`
	ProtectionActive bool `json:"protectionActive"`
}

// Report is the health payload. OK requires a reachable database and a protected root.
type Report struct {
	OK       bool        `json:"ok"`
	Store    StoreReport `json:"store"`
	Database string      `json:"database"`
}

// NewService constructs a new health service. A nil database means in-memory repositories.
func NewService(database *sql.DB, store StoreInspector) *Service {
	return &Service{DB: database, Store: store, PingTimeout: 2 * time.Second}
}

// Status checks the database and the protected store. The store check is read-only.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true, Database: "memory"}
	if s.DB != nil {
		report.Database = "ok"
		if err := db.Ping(ctx, s.DB, s.PingTimeout); err != nil {
			report.Database = "unavailable"
			report.OK = false
		}
	}
	if s.Store != nil {
		st, err := s.Store.Inspect(ctx)
		report.Store = StoreReport{FolderExists: st.FolderExists, ProtectionActive: st.ProtectionActive}
		if err != nil || !st.FolderExists || !st.ProtectionActive {
			report.OK = false
		}
	}
	return report
}

// RegisterRoutes attaches the health endpoint.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		report := s.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
}
