package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosedStaysClosedBelowThreshold(t *testing.T) {
	r := NewRegistry(3, 60*time.Second)
	r.RecordFailure("billing")
	r.RecordFailure("billing")
	assert.True(t, r.IsAvailable("billing"))
	assert.Equal(t, StatusClosed, r.State("billing").Status)
}

func TestNthFailureOpens(t *testing.T) {
	r := NewRegistry(3, 60*time.Second)
	r.RecordFailure("billing")
	r.RecordFailure("billing")
	r.RecordFailure("billing")
	require.False(t, r.IsAvailable("billing"))
	assert.Equal(t, StatusOpen, r.State("billing").Status)
}

func TestCooldownElapsedTransitionsToHalfOpen(t *testing.T) {
	r := NewRegistry(1, 10*time.Millisecond)
	r.RecordFailure("billing")
	require.Equal(t, StatusOpen, r.State("billing").Status)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, r.IsAvailable("billing"))
	assert.Equal(t, StatusHalfOpen, r.State("billing").Status)
}

func TestHalfOpenSuccessClosesCircuit(t *testing.T) {
	r := NewRegistry(1, 10*time.Millisecond)
	r.RecordFailure("billing")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StatusHalfOpen, r.State("billing").Status)

	r.RecordSuccess("billing")
	assert.Equal(t, StatusClosed, r.State("billing").Status)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	r := NewRegistry(1, 10*time.Millisecond)
	r.RecordFailure("billing")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StatusHalfOpen, r.State("billing").Status)

	r.RecordFailure("billing")
	assert.Equal(t, StatusOpen, r.State("billing").Status)
}

func TestCrossAgentIndependence(t *testing.T) {
	r := NewRegistry(1, time.Minute)
	r.RecordFailure("billing")
	assert.False(t, r.IsAvailable("billing"))
	assert.True(t, r.IsAvailable("tech"))
}

func TestNewAgentDefaultsToClosed(t *testing.T) {
	r := NewRegistry(3, time.Minute)
	assert.True(t, r.IsAvailable("new-agent"))
	assert.Equal(t, StatusClosed, r.State("new-agent").Status)
}
