// Package hitl implements human-in-the-loop escalation dispatch, per
// spec.md §4.7.
package hitl

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EscalationContext carries everything a handler needs to act on an
// escalation.
type EscalationContext struct {
	SessionID        string
	UserID           string
	Reason           string
	LastUserMessage  string
	LastAgentMessage string
	Metadata         map[string]any
}

// PendingEscalation records a ticket-handler escalation awaiting human
// action, keyed by SessionID.
type PendingEscalation struct {
	SessionID string
	TicketRef string
	CreatedAt time.Time
	Reason    string
}

// Handler dispatches one escalation event. A returned error is logged by
// the supervisor and never fails the turn.
type Handler interface {
	OnEscalate(ctx context.Context, ec EscalationContext) error
}

// StubHandler does nothing — the default when hitl is disabled.
type StubHandler struct{}

func (StubHandler) OnEscalate(_ context.Context, _ EscalationContext) error { return nil }

// TicketTool is the narrow interface the ticket handler needs from a
// registered tool to open a support ticket.
type TicketTool interface {
	CreateTicket(ctx context.Context, sessionID, reason, summary string) (ticketRef string, err error)
}

// TicketHandler creates a support ticket via the registered ticket tool and
// records the ticket ref into a process-wide pending map keyed by session
// id, mirroring the teacher's mutex-protected session map.
type TicketHandler struct {
	tool TicketTool

	mu      sync.Mutex
	pending map[string]PendingEscalation
}

// NewTicketHandler creates a TicketHandler backed by tool.
func NewTicketHandler(tool TicketTool) *TicketHandler {
	return &TicketHandler{
		tool:    tool,
		pending: make(map[string]PendingEscalation),
	}
}

func (h *TicketHandler) OnEscalate(ctx context.Context, ec EscalationContext) error {
	ref, err := h.tool.CreateTicket(ctx, ec.SessionID, ec.Reason, ec.LastUserMessage)
	if err != nil {
		slog.Warn("hitl ticket creation failed", "session_id", ec.SessionID, "error", err)
		return err
	}

	h.mu.Lock()
	h.pending[ec.SessionID] = PendingEscalation{
		SessionID: ec.SessionID,
		TicketRef: ref,
		CreatedAt: time.Now(),
		Reason:    ec.Reason,
	}
	h.mu.Unlock()

	return nil
}

// ListPending returns all pending escalations, snapshot-copied under lock.
func (h *TicketHandler) ListPending() []PendingEscalation {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PendingEscalation, 0, len(h.pending))
	for _, pe := range h.pending {
		out = append(out, pe)
	}
	return out
}

// ClearPending removes the pending escalation for sessionID, reporting
// whether one existed.
func (h *TicketHandler) ClearPending(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pending[sessionID]; !ok {
		return false
	}
	delete(h.pending, sessionID)
	return true
}

// EmailHandler logs the escalation and, when an operator recipient is
// configured, notes who would have been notified. No real email transport
// is implemented — that is a Non-goal.
type EmailHandler struct {
	RecipientTo string
}

func NewEmailHandler(recipientTo string) *EmailHandler {
	return &EmailHandler{RecipientTo: recipientTo}
}

func (h *EmailHandler) OnEscalate(_ context.Context, ec EscalationContext) error {
	slog.Info("hitl escalation notified by email",
		"session_id", ec.SessionID,
		"user_id", ec.UserID,
		"reason", ec.Reason,
		"recipient", h.RecipientTo,
	)
	return nil
}
