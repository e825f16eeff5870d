package tools

import (
	"context"
	"fmt"

	"github.com/supportbot/dispatcher/pkg/models"
)

// InvoiceLookup is the narrow interface a built-in invoice/refund tool
// pair needs from a billing backend.
type InvoiceLookup interface {
	LookupInvoice(ctx context.Context, invoiceID string) (string, error)
	RefundStatus(ctx context.Context, invoiceID string) (string, error)
}

// BillingBuiltins returns the billing agent's built-in tools: look_up_invoice
// and get_refund_status.
func BillingBuiltins(backend InvoiceLookup) []*BuiltinTool {
	return []*BuiltinTool{
		{
			Descriptor: models.ToolDescriptor{
				Name:        "look_up_invoice",
				Description: "Look up an invoice by its id and return its line items and total.",
				JSONSchema:  `{"type":"object","properties":{"invoice_id":{"type":"string"}},"required":["invoice_id"]}`,
			},
			Handler: func(ctx context.Context, argsJSON string) (string, error) {
				id, err := argAsString(argsJSON, "invoice_id")
				if err != nil {
					return "", err
				}
				return backend.LookupInvoice(ctx, id)
			},
		},
		{
			Descriptor: models.ToolDescriptor{
				Name:        "get_refund_status",
				Description: "Return the refund status for an invoice id, if any refund was filed.",
				JSONSchema:  `{"type":"object","properties":{"invoice_id":{"type":"string"}},"required":["invoice_id"]}`,
			},
			Handler: func(ctx context.Context, argsJSON string) (string, error) {
				id, err := argAsString(argsJSON, "invoice_id")
				if err != nil {
					return "", err
				}
				return backend.RefundStatus(ctx, id)
			},
		},
	}
}

// TicketBackend is the narrow interface the create_ticket built-in and the
// HITL ticket handler share.
type TicketBackend interface {
	CreateTicket(ctx context.Context, sessionID, reason, summary string) (string, error)
}

// TicketBuiltin returns the create_ticket tool shared across agents that can
// open a support ticket directly (as opposed to escalating via HITL).
func TicketBuiltin(backend TicketBackend, sessionID string) *BuiltinTool {
	return &BuiltinTool{
		Descriptor: models.ToolDescriptor{
			Name:        "create_ticket",
			Description: "Open a support ticket summarizing the user's issue for manual follow-up.",
			JSONSchema:  `{"type":"object","properties":{"summary":{"type":"string"}},"required":["summary"]}`,
		},
		Handler: func(ctx context.Context, argsJSON string) (string, error) {
			summary, err := argAsString(argsJSON, "summary")
			if err != nil {
				return "", err
			}
			ref, err := backend.CreateTicket(ctx, sessionID, "agent_requested", summary)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ticket created: %s", ref), nil
		},
	}
}
