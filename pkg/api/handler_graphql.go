package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supportbot/dispatcher/pkg/models"
)

// graphqlRequest is the standard GraphQL-over-HTTP request envelope. Only
// the operationName-free, variables-as-flat-map subset is supported —
// there is no query language parser here (see DESIGN.md: no GraphQL
// library appears anywhere in the retrieved dependency pack, so this
// surface is hand-rolled rather than grounded on a third-party resolver).
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   any            `json:"data,omitempty"`
	Errors []graphqlError `json:"errors,omitempty"`
}

type conversationPayload struct {
	SessionID string           `json:"session_id"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role         string `json:"role"`
	Content      string `json:"content"`
	MetadataJSON string `json:"metadata_json,omitempty"`
}

type sessionPayload struct {
	SessionID string `json:"session_id"`
}

// graphqlHandler handles POST /graphql. It dispatches on two fixed
// operation names recognized as a substring of the posted query body
// ("conversation" and "sessions") rather than parsing a query AST — the
// supported query surface is small and fixed, so a substring dispatch
// plus argument extraction from variables is sufficient and avoids
// pulling in a full GraphQL execution engine.
func (s *Server) graphqlHandler(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, graphqlResponse{Errors: []graphqlError{{Message: err.Error()}}})
		return
	}

	switch {
	case containsOperation(req.Query, "sessions"):
		s.resolveSessions(c, req)
	case containsOperation(req.Query, "conversation"):
		s.resolveConversation(c, req)
	default:
		c.JSON(http.StatusOK, graphqlResponse{Errors: []graphqlError{{Message: "unknown query: expected \"conversation\" or \"sessions\""}}})
	}
}

func containsOperation(query, name string) bool {
	for i := 0; i+len(name) <= len(query); i++ {
		if query[i:i+len(name)] == name {
			return true
		}
	}
	return false
}

func (s *Server) resolveConversation(c *gin.Context, req graphqlRequest) {
	sessionID, _ := req.Variables["session_id"].(string)
	if sessionID == "" {
		c.JSON(http.StatusOK, graphqlResponse{Errors: []graphqlError{{Message: "session_id variable is required"}}})
		return
	}

	history, err := s.convStore.GetHistory(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusOK, graphqlResponse{Errors: []graphqlError{{Message: err.Error()}}})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusOK, graphqlResponse{Data: gin.H{"conversation": nil}})
		return
	}

	limit, ok := req.Variables["limit"].(float64)
	if ok && int(limit) > 0 && int(limit) < len(history) {
		history = history[len(history)-int(limit):]
	}

	c.JSON(http.StatusOK, graphqlResponse{Data: gin.H{"conversation": conversationPayload{
		SessionID: sessionID,
		Messages:  toMessagePayloads(history),
	}}})
}

func (s *Server) resolveSessions(c *gin.Context, req graphqlRequest) {
	ids, err := s.convStore.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, graphqlResponse{Errors: []graphqlError{{Message: err.Error()}}})
		return
	}

	if limit, ok := req.Variables["limit"].(float64); ok && int(limit) > 0 && int(limit) < len(ids) {
		ids = ids[:int(limit)]
	}

	sessions := make([]sessionPayload, len(ids))
	for i, id := range ids {
		sessions[i] = sessionPayload{SessionID: id}
	}

	c.JSON(http.StatusOK, graphqlResponse{Data: gin.H{"sessions": sessions}})
}

func toMessagePayloads(messages []models.Message) []messagePayload {
	out := make([]messagePayload, len(messages))
	for i, m := range messages {
		out[i] = messagePayload{Role: m.Role, Content: m.Content, MetadataJSON: marshalMetadata(m.Metadata)}
	}
	return out
}

func marshalMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		slog.Debug("failed to marshal message metadata", "error", err)
		return ""
	}
	return string(data)
}
