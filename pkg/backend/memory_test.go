package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceBackend_LookupAndRefundStatus(t *testing.T) {
	b := NewInvoiceBackend([]Invoice{{ID: "INV-1", LineItems: "widget x1", Total: "$10", RefundStatus: "approved"}})

	result, err := b.LookupInvoice(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.Contains(t, result, "widget x1")

	result, err = b.RefundStatus(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.Contains(t, result, "approved")
}

func TestInvoiceBackend_UnknownInvoiceErrors(t *testing.T) {
	b := NewInvoiceBackend(nil)
	_, err := b.LookupInvoice(context.Background(), "nope")
	assert.Error(t, err)
}

func TestInvoiceBackend_NoRefundOnFile(t *testing.T) {
	b := NewInvoiceBackend([]Invoice{{ID: "INV-2", LineItems: "gadget", Total: "$5"}})
	result, err := b.RefundStatus(context.Background(), "INV-2")
	require.NoError(t, err)
	assert.Contains(t, result, "no refund on file")
}

func TestTicketBackend_CreateTicketReturnsUniqueRefs(t *testing.T) {
	b := NewTicketBackend()

	ref1, err := b.CreateTicket(context.Background(), "s1", "agent_requested", "broken widget")
	require.NoError(t, err)
	ref2, err := b.CreateTicket(context.Background(), "s2", "low_faithfulness", "bad reply")
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
}
