// Package convstore is the append-only conversation history: every turn's
// messages, across all sessions, surviving independently of the
// checkpointer's bounded in-state window. See spec.md §3 (Message) and §4.2
// ("user message ... happens-before the assistant message for the same
// turn").
package convstore

import (
	"context"

	"github.com/supportbot/dispatcher/pkg/models"
)

// Store appends and reads per-session conversation history.
type Store interface {
	// AppendTurn appends messages (in order) to sessionID's history.
	AppendTurn(ctx context.Context, sessionID string, messages []models.Message) error
	// GetHistory returns all messages recorded for sessionID, oldest first.
	GetHistory(ctx context.Context, sessionID string) ([]models.Message, error)
	// ListSessions returns every distinct session id with recorded history.
	ListSessions(ctx context.Context) ([]string, error)
}
