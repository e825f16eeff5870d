package convstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot/dispatcher/pkg/models"
)

func TestMemoryStore_AppendAndGetHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, "s1", []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}))
	require.NoError(t, s.AppendTurn(ctx, "s1", []models.Message{
		{Role: models.RoleUser, Content: "bye"},
	}))

	history, err := s.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "bye", history[2].Content)
}

func TestMemoryStore_GetHistoryUnknownSessionIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	history, err := s.GetHistory(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStore_ListSessionsInFirstAppendOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, "s2", []models.Message{{Content: "a"}}))
	require.NoError(t, s.AppendTurn(ctx, "s1", []models.Message{{Content: "b"}}))
	require.NoError(t, s.AppendTurn(ctx, "s2", []models.Message{{Content: "c"}}))

	ids, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, ids)
}
