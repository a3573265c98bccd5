package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stmtrules/internal/domain"
	"stmtrules/internal/service"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	manager service.ProfileConfigService
}

// NewHealthHandler creates a new HealthHandler. db may be nil when
// persistence is disabled.
func NewHealthHandler(db Pinger, manager service.ProfileConfigService) *HealthHandler {
	return &HealthHandler{db: db, manager: manager}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: "database not reachable"})
			return
		}
	}
	report := h.manager.Health()
	if report.Status == domain.HealthError {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Issues: report.Issues})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Issues: report.Issues})
}
