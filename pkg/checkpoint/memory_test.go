package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot/dispatcher/pkg/models"
)

func TestMemoryStore_GetMissingReturnsFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_PutThenGetRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	state := models.SupervisorState{
		SessionID:    "s1",
		UserID:       "u1",
		CurrentAgent: "billing",
		Messages:     []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}

	require.NoError(t, s.Put(context.Background(), "s1", state))

	got, ok, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "billing", got.CurrentAgent)
	assert.Len(t, got.Messages, 1)
}

func TestMemoryStore_PutClonesState(t *testing.T) {
	s := NewMemoryStore()
	state := models.SupervisorState{SessionID: "s1", Messages: []models.Message{{Content: "a"}}}
	require.NoError(t, s.Put(context.Background(), "s1", state))

	state.Messages[0].Content = "mutated after put"

	got, _, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Messages[0].Content)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), "s1", models.SupervisorState{SessionID: "s1"}))

	require.NoError(t, s.Delete(context.Background(), "s1"))

	_, ok, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}
