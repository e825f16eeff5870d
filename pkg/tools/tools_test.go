package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot/dispatcher/pkg/models"
)

type fakeInvoiceLookup struct{}

func (fakeInvoiceLookup) LookupInvoice(_ context.Context, id string) (string, error) {
	return "invoice " + id + ": $100 total", nil
}

func (fakeInvoiceLookup) RefundStatus(_ context.Context, id string) (string, error) {
	return "refund for " + id + ": processed", nil
}

type fakeExternalServer struct {
	descriptors []models.ToolDescriptor
	err         error
	calls       int
}

func (f *fakeExternalServer) ListTools(_ context.Context) ([]models.ToolDescriptor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptors, nil
}

func (f *fakeExternalServer) CallTool(_ context.Context, name, _ string) (string, error) {
	return "external result for " + name, nil
}

func TestBuildSet_MergesBuiltinsAndExternal(t *testing.T) {
	builtins := BillingBuiltins(fakeInvoiceLookup{})
	external := &fakeExternalServer{descriptors: []models.ToolDescriptor{{Name: "send_sms"}}}

	set, err := BuildSet(context.Background(), builtins, external, NewRetryFetcher(0, time.Millisecond))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, d := range set.Descriptors() {
		names[d.Name] = true
	}
	assert.True(t, names["look_up_invoice"])
	assert.True(t, names["get_refund_status"])
	assert.True(t, names["send_sms"])
}

func TestBuildSet_BuiltinWinsOnNameCollision(t *testing.T) {
	builtins := BillingBuiltins(fakeInvoiceLookup{})
	external := &fakeExternalServer{descriptors: []models.ToolDescriptor{
		{Name: "look_up_invoice", Description: "external duplicate"},
	}}

	set, err := BuildSet(context.Background(), builtins, external, NewRetryFetcher(0, time.Millisecond))
	require.NoError(t, err)

	result, err := set.Execute(context.Background(), "look_up_invoice", `{"invoice_id":"INV-1"}`)
	require.NoError(t, err)
	assert.Contains(t, result, "invoice INV-1")

	count := 0
	for _, d := range set.Descriptors() {
		if d.Name == "look_up_invoice" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuildSet_FailsStartupAfterExhaustingRetries(t *testing.T) {
	external := &fakeExternalServer{err: errors.New("connection refused")}

	_, err := BuildSet(context.Background(), nil, external, NewRetryFetcher(2, time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, 3, external.calls)
}

func TestExecute_UnknownToolErrors(t *testing.T) {
	set, err := BuildSet(context.Background(), nil, &fakeExternalServer{}, NewRetryFetcher(0, time.Millisecond))
	require.NoError(t, err)

	_, err = set.Execute(context.Background(), "nonexistent", "{}")
	assert.Error(t, err)
}
