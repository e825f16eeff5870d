package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot/dispatcher/pkg/models"
)

func TestStubRetriever_TruncatesToTopK(t *testing.T) {
	s := NewStubRetriever([]models.Chunk{{Content: "a"}, {Content: "b"}, {Content: "c"}})

	chunks, err := s.Retrieve(context.Background(), "anything", 2, nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Content)
}

func TestStubRetriever_ZeroTopKReturnsAll(t *testing.T) {
	s := NewStubRetriever([]models.Chunk{{Content: "a"}, {Content: "b"}})

	chunks, err := s.Retrieve(context.Background(), "anything", 0, nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
