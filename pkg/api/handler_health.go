package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supportbot/dispatcher/pkg/breaker"
	"github.com/supportbot/dispatcher/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Agents  map[string]string `json:"agents"`
	MCP     string            `json:"mcp"`
}

// healthHandler handles GET /health: per-agent circuit status plus a short,
// best-effort external tool server reachability check. An open circuit on
// any agent degrades the overall status; the external tool server being
// unreachable degrades it as well, but neither ever renders the process
// itself unhealthy — only HTTP 503 is used for "degraded", mirroring the
// distinction between this process's own health and its dependencies'.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := healthStatusHealthy

	agents := make(map[string]string, len(s.agentRegistry.IDs()))
	for _, id := range s.agentRegistry.IDs() {
		switch s.breakers.State(id).Status {
		case breaker.StatusOpen:
			agents[id] = "circuit_open"
			status = healthStatusDegraded
		case breaker.StatusHalfOpen:
			agents[id] = "half_open"
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
		default:
			agents[id] = healthStatusHealthy
		}
	}

	mcpStatus := "ok"
	if s.mcpServer != nil {
		if _, err := s.mcpServer.ListTools(reqCtx); err != nil {
			mcpStatus = "unavailable"
			status = healthStatusDegraded
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusDegraded {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:  status,
		Version: version.Full(),
		Agents:  agents,
		MCP:     mcpStatus,
	})
}
