package faithfulness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supportbot/dispatcher/pkg/llm"
)

func TestNullScorer_AlwaysOne(t *testing.T) {
	var s NullScorer
	assert.Equal(t, 1.0, s.Score(context.Background(), "anything", "anything"))
}

func TestModelScorer_ParsesLastLineScore(t *testing.T) {
	client := llm.NewStubClient(&llm.ChatResponse{Content: "The response matches the context well.\n90"})
	s := NewModelScorer(client, "claude-sonnet-4-5")
	got := s.Score(context.Background(), "your payment was $100", "invoice shows $100")
	assert.Equal(t, 0.9, got)
}

func TestModelScorer_FallsBackToNullOnError(t *testing.T) {
	s := NewModelScorer(&erroringClient{}, "claude-sonnet-4-5")
	got := s.Score(context.Background(), "resp", "ctx")
	assert.Equal(t, 1.0, got)
}

func TestModelScorer_RetriesThenFallsBackOnUnparsable(t *testing.T) {
	client := llm.NewStubClient(
		&llm.ChatResponse{Content: "no number here"},
		&llm.ChatResponse{Content: "still nothing"},
		&llm.ChatResponse{Content: "nope"},
		&llm.ChatResponse{Content: "give up"},
	)
	s := NewModelScorer(client, "claude-sonnet-4-5")
	got := s.Score(context.Background(), "resp", "ctx")
	assert.Equal(t, 1.0, got)
}

type erroringClient struct{}

func (e *erroringClient) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, assert.AnError
}
