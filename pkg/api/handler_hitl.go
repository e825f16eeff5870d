package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// PendingEscalationItem is one entry in GET /hitl/pending's response.
type PendingEscalationItem struct {
	SessionID string `json:"session_id"`
	TicketRef string `json:"ticket_ref"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// HITLPendingResponse is the response body for GET /hitl/pending.
type HITLPendingResponse struct {
	Pending []PendingEscalationItem `json:"pending"`
}

// hitlPendingHandler handles GET /hitl/pending, listing every escalation
// awaiting human action, per spec.md §4.7. Returns an empty list (not an
// error) when the configured HITL handler has no pending queue to list.
func (s *Server) hitlPendingHandler(c *gin.Context) {
	response := HITLPendingResponse{Pending: []PendingEscalationItem{}}

	if s.pendingHITL == nil {
		c.JSON(http.StatusOK, response)
		return
	}

	for _, pe := range s.pendingHITL.ListPending() {
		response.Pending = append(response.Pending, PendingEscalationItem{
			SessionID: pe.SessionID,
			TicketRef: pe.TicketRef,
			Reason:    pe.Reason,
			CreatedAt: pe.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, response)
}

// hitlClearHandler handles POST /hitl/pending/:session_id/clear.
func (s *Server) hitlClearHandler(c *gin.Context) {
	sessionID := c.Param("session_id")

	if s.pendingHITL == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "hitl pending queue is not configured"})
		return
	}

	if !s.pendingHITL.ClearPending(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending escalation for session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "cleared": true})
}
