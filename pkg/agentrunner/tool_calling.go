package agentrunner

import (
	"context"

	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/guardrail"
	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
	"github.com/supportbot/dispatcher/pkg/retrieval"
	"github.com/supportbot/dispatcher/pkg/tools"
)

// historyWindow is N in format_last_n(messages, N=10), per spec.md §4.4 step 4.
const historyWindow = 10

// topKRetrieval is the retrieval top_k of spec.md §4.4 step 3.
const topKRetrieval = 3

// ToolCallingRunner implements the standard tool-calling variant of
// spec.md §4.4: one runner per registered agent, bounded tool loop.
type ToolCallingRunner struct{ deps deps }

// NewToolCallingRunner constructs a runner for one agent.
func NewToolCallingRunner(agentCfg config.AgentConfig, client llm.Client, guard *guardrail.Service, retriever retrieval.Service, toolSet *tools.Set, defaults config.Defaults) *ToolCallingRunner {
	return &ToolCallingRunner{deps: deps{
		agentCfg:  agentCfg,
		llmClient: client,
		guard:     guard,
		retriever: retriever,
		toolSet:   toolSet,
		defaults:  defaults,
		persona:   agentCfg.Persona,
	}}
}

func (r *ToolCallingRunner) Describe() AgentDescriptor {
	return AgentDescriptor{
		AgentID:      r.deps.agentCfg.AgentID,
		Capabilities: r.deps.agentCfg.Capabilities,
		ModelID:      r.deps.agentCfg.ModelID,
	}
}

func (r *ToolCallingRunner) Run(ctx context.Context, in Input) (Output, error) {
	d := r.deps

	query := lastUserMessage(in.Messages)

	guardResult := d.guard.GuardInput(query)
	if !guardResult.Passed {
		return Output{
			MessagesDelta:   []models.Message{{Role: models.RoleAssistant, Content: safeReply(guardResult.Reason)}},
			Resolved:        false,
			NeedsEscalation: false,
		}, nil
	}

	chunks, err := d.retriever.Retrieve(ctx, query, topKRetrieval, nil)
	if err != nil {
		return Output{}, err
	}
	docContext := joinChunks(chunks)

	historyContext := formatHistory(in.Messages, historyWindow)

	messages := []models.Message{
		buildSystemPrompt(d.persona),
		buildUserPrompt(historyContext, docContext, query),
	}

	var produced []models.Message
	maxIters := d.defaults.MaxToolIters
	if maxIters <= 0 {
		maxIters = 5
	}

	var finalText string
	for iter := 0; iter < maxIters; iter++ {
		resp, err := d.chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    d.toolSet.Descriptors(),
			Model:    d.agentCfg.ModelID,
		})
		if err != nil {
			return Output{}, err
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Content
			break
		}

		assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)
		produced = append(produced, assistantMsg)

		for _, call := range resp.ToolCalls {
			result, execErr := d.execute(ctx, call.Name, call.ArgumentsJSON)
			if execErr != nil {
				result = "tool execution failed: " + execErr.Error()
			}
			toolMsg := models.Message{
				Role:       models.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			}
			messages = append(messages, toolMsg)
			produced = append(produced, toolMsg)
		}

		if iter == maxIters-1 {
			finalText = resp.Content
		}
	}

	guardedOutput := d.guard.GuardOutput(finalText)
	resolved, needsEscalation := heuristicOutcome(guardedOutput.FilteredText)

	produced = append(produced, models.Message{Role: models.RoleAssistant, Content: guardedOutput.FilteredText})

	return Output{
		MessagesDelta:   produced,
		Resolved:        resolved,
		NeedsEscalation: needsEscalation,
		LastRAGContext:  docContext,
	}, nil
}

func lastUserMessage(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
