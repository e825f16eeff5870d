package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supportbot/dispatcher/pkg/models"
	"github.com/supportbot/dispatcher/pkg/supervisor"
)

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	AgentID   string `json:"agent_id,omitempty"`
}

// chatHandler handles POST /api/v1/chat: route -> supervise -> persist, per
// spec.md §4.1/§4.2/§4.9. The whole turn is bounded by requestDeadline; an
// agent at capacity returns 503 rather than queuing indefinitely.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestDeadline)
	defer cancel()

	routed := s.router.Route(ctx, req.UserID, req.Message, req.SessionID)

	result, err := s.supervisor.RunTurn(ctx, supervisor.TurnInput{
		SessionID:         routed.SessionID,
		UserID:            req.UserID,
		Message:           req.Message,
		SuggestedAgentIDs: routed.SuggestedAgentPoolIDs,
	})
	if err != nil {
		if errors.Is(err, supervisor.ErrOverloaded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent is at capacity, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.appendToConversationStore(ctx, result.SessionID, req.Message, result.Reply)

	c.JSON(http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Reply:     result.Reply,
		AgentID:   result.AgentID,
	})
}

// appendToConversationStore writes the user turn before the assistant turn,
// per spec.md §4.9: only the frontend writes to the conversation store, and
// only after the supervisor has returned.
func (s *Server) appendToConversationStore(ctx context.Context, sessionID, userMessage, reply string) {
	if s.convStore == nil {
		return
	}

	if err := s.convStore.AppendTurn(ctx, sessionID, []models.Message{
		{Role: models.RoleUser, Content: userMessage},
	}); err != nil {
		slog.Error("conversation store append failed", "session_id", sessionID, "error", err)
		return
	}

	if err := s.convStore.AppendTurn(ctx, sessionID, []models.Message{
		{Role: models.RoleAssistant, Content: reply},
	}); err != nil {
		slog.Error("conversation store append failed", "session_id", sessionID, "error", err)
	}
}
