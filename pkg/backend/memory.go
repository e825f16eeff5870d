// Package backend provides the in-process billing/ticketing backends that
// the built-in tools (pkg/tools.BillingBuiltins, pkg/tools.TicketBuiltin)
// and the HITL ticket handler dispatch into. A real deployment would swap
// this for a client against the billing system and ticketing system; this
// in-memory implementation mirrors the teacher's mutex-protected map
// pattern (pkg/session/manager.go) so the wiring in cmd/dispatcher has a
// working default without any external dependency.
package backend

import (
	"context"
	"fmt"
	"sync"
)

// Invoice is one billing record.
type Invoice struct {
	ID           string
	LineItems    string
	Total        string
	RefundStatus string
}

// InvoiceBackend is an in-memory billing backend implementing
// tools.InvoiceLookup.
type InvoiceBackend struct {
	mu       sync.RWMutex
	invoices map[string]Invoice
}

// NewInvoiceBackend seeds a backend with the given invoices, keyed by id.
func NewInvoiceBackend(seed []Invoice) *InvoiceBackend {
	b := &InvoiceBackend{invoices: make(map[string]Invoice, len(seed))}
	for _, inv := range seed {
		b.invoices[inv.ID] = inv
	}
	return b
}

func (b *InvoiceBackend) LookupInvoice(_ context.Context, invoiceID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return "", fmt.Errorf("backend: no invoice found for id %q", invoiceID)
	}
	return fmt.Sprintf("invoice %s: %s (total %s)", inv.ID, inv.LineItems, inv.Total), nil
}

func (b *InvoiceBackend) RefundStatus(_ context.Context, invoiceID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return "", fmt.Errorf("backend: no invoice found for id %q", invoiceID)
	}
	if inv.RefundStatus == "" {
		return fmt.Sprintf("invoice %s: no refund on file", inv.ID), nil
	}
	return fmt.Sprintf("invoice %s: refund %s", inv.ID, inv.RefundStatus), nil
}

// TicketBackend is an in-memory ticketing backend implementing both
// tools.TicketBackend and hitl.TicketTool — the two interfaces have
// identical shapes by design, since both paths end at the same ticket
// queue.
type TicketBackend struct {
	mu      sync.Mutex
	nextRef int
	tickets map[string]string
}

// NewTicketBackend creates an empty ticket backend.
func NewTicketBackend() *TicketBackend {
	return &TicketBackend{tickets: make(map[string]string)}
}

func (b *TicketBackend) CreateTicket(_ context.Context, sessionID, reason, summary string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextRef++
	ref := fmt.Sprintf("TCK-%04d", b.nextRef)
	b.tickets[ref] = fmt.Sprintf("session=%s reason=%s summary=%s", sessionID, reason, summary)
	return ref, nil
}
