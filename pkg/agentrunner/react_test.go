package agentrunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
	"github.com/supportbot/dispatcher/pkg/retrieval"
	"github.com/supportbot/dispatcher/pkg/tools"
)

func TestReActRunner_GuardRejectsInput(t *testing.T) {
	client := llm.NewStubClient(&llm.ChatResponse{Content: "should not be called"})
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t), config.DefaultDefaults())

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: ""}}})
	require.NoError(t, err)
	require.Len(t, out.MessagesDelta, 1)
	assert.Equal(t, 0, client.Calls())
}

func TestReActRunner_FinalAnswerOnFirstStep(t *testing.T) {
	client := llm.NewStubClient(&llm.ChatResponse{Content: "Thought: I know the answer.\nFinal Answer: Your invoice is paid."})
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t), config.DefaultDefaults())

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: "is my invoice paid?"}}})
	require.NoError(t, err)
	require.Len(t, out.MessagesDelta, 2)
	assert.Contains(t, out.MessagesDelta[0].Content, "Final Answer")
	assert.Contains(t, out.MessagesDelta[1].Content, "invoice is paid")
	assert.True(t, out.Resolved)
}

func TestReActRunner_ExecutesActionThenConcludes(t *testing.T) {
	lookupTool := &tools.BuiltinTool{
		Descriptor: models.ToolDescriptor{Name: "invoice_lookup", Description: "look up an invoice"},
		Handler: func(_ context.Context, _ string) (string, error) {
			return "invoice #42: paid", nil
		},
	}
	client := llm.NewStubClient(
		&llm.ChatResponse{Content: "Thought: I should look it up.\nAction: invoice_lookup\nAction Input: {\"id\":\"42\"}"},
		&llm.ChatResponse{Content: "Thought: Now I know.\nFinal Answer: Invoice 42 is paid."},
	)
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t, lookupTool), config.DefaultDefaults())

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: "is invoice 42 paid?"}}})
	require.NoError(t, err)
	require.Len(t, out.MessagesDelta, 4)
	assert.Equal(t, models.RoleAssistant, out.MessagesDelta[0].Role)
	assert.Equal(t, models.RoleTool, out.MessagesDelta[1].Role)
	assert.Contains(t, out.MessagesDelta[1].Content, "Observation")
	assert.Equal(t, models.RoleAssistant, out.MessagesDelta[2].Role)
	assert.Contains(t, out.MessagesDelta[3].Content, "Invoice 42 is paid")
	assert.True(t, out.Resolved)
}

func TestReActRunner_ForcesConclusionOnMaxSteps(t *testing.T) {
	loopingCall := &llm.ChatResponse{Content: "Thought: still thinking, no action taken yet."}
	client := llm.NewStubClient(loopingCall, loopingCall, loopingCall)
	defaults := config.DefaultDefaults()
	defaults.ReactMaxSteps = 2
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t), defaults)

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: "keep thinking forever"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls())
	last := out.MessagesDelta[len(out.MessagesDelta)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
}

func TestReActRunner_ForcesConclusionOnMaxStepsWhileLoopingOnAction(t *testing.T) {
	lookupTool := &tools.BuiltinTool{
		Descriptor: models.ToolDescriptor{Name: "invoice_lookup", Description: "look up an invoice"},
		Handler: func(_ context.Context, _ string) (string, error) {
			return "invoice #42: paid", nil
		},
	}
	loopingCall := &llm.ChatResponse{Content: "Thought: let me check again.\nAction: invoice_lookup\nAction Input: {\"id\":\"42\"}"}
	client := llm.NewStubClient(loopingCall, loopingCall)
	defaults := config.DefaultDefaults()
	defaults.ReactMaxSteps = 2
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t, lookupTool), defaults)

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: "keep checking forever"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls())
	last := out.MessagesDelta[len(out.MessagesDelta)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.NotEmpty(t, last.Content)
}

func TestReActRunner_MalformedResponseGetsFeedbackThenRetries(t *testing.T) {
	client := llm.NewStubClient(
		&llm.ChatResponse{Content: "I am not following the format at all."},
		&llm.ChatResponse{Content: "Thought: sorry.\nFinal Answer: Here is my answer."},
	)
	runner := NewReActRunner(newTestAgentConfig(), client, newTestGuard(), retrieval.NewStubRetriever(nil), newTestToolSet(t), config.DefaultDefaults())

	out, err := runner.Run(context.Background(), Input{Messages: []models.Message{{Role: models.RoleUser, Content: "help me"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls())
	last := out.MessagesDelta[len(out.MessagesDelta)-1]
	assert.Contains(t, last.Content, "Here is my answer")
}

func TestParseReActResponse_ActionTakesPrecedenceOverFinalAnswerAbsence(t *testing.T) {
	parsed := parseReActResponse("Thought: checking\nAction: invoice_lookup\nAction Input: {\"id\":\"1\"}")
	assert.True(t, parsed.HasAction)
	assert.Equal(t, "invoice_lookup", parsed.Action)
	assert.Equal(t, `{"id":"1"}`, parsed.ActionInput)
	assert.False(t, parsed.IsFinalAnswer)
}

func TestParseReActResponse_FinalAnswerOnly(t *testing.T) {
	parsed := parseReActResponse("Thought: done\nFinal Answer: all set")
	assert.True(t, parsed.IsFinalAnswer)
	assert.Equal(t, "all set", parsed.FinalAnswer)
	assert.False(t, parsed.HasAction)
}

func TestParseReActResponse_NeitherIsMalformed(t *testing.T) {
	parsed := parseReActResponse("just rambling with no sections")
	assert.False(t, parsed.HasAction)
	assert.False(t, parsed.IsFinalAnswer)
}
