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

// ReActRunner implements the ReAct variant of spec.md §4.4: Thought/Action/
// Action Input/Observation parsing in place of bound-tool-calling, bounded
// at react_max_steps.
type ReActRunner struct{ deps deps }

// NewReActRunner constructs a ReAct runner for one agent.
func NewReActRunner(agentCfg config.AgentConfig, client llm.Client, guard *guardrail.Service, retriever retrieval.Service, toolSet *tools.Set, defaults config.Defaults) *ReActRunner {
	return &ReActRunner{deps: deps{
		agentCfg:  agentCfg,
		llmClient: client,
		guard:     guard,
		retriever: retriever,
		toolSet:   toolSet,
		defaults:  defaults,
		persona:   agentCfg.Persona,
	}}
}

func (r *ReActRunner) Describe() AgentDescriptor {
	return AgentDescriptor{
		AgentID:      r.deps.agentCfg.AgentID,
		Capabilities: r.deps.agentCfg.Capabilities,
		ModelID:      r.deps.agentCfg.ModelID,
	}
}

func (r *ReActRunner) Run(ctx context.Context, in Input) (Output, error) {
	d := r.deps

	query := lastUserMessage(in.Messages)

	guardResult := d.guard.GuardInput(query)
	if !guardResult.Passed {
		return Output{
			MessagesDelta: []models.Message{{Role: models.RoleAssistant, Content: safeReply(guardResult.Reason)}},
		}, nil
	}

	chunks, err := d.retriever.Retrieve(ctx, query, topKRetrieval, nil)
	if err != nil {
		return Output{}, err
	}
	docContext := joinChunks(chunks)

	historyContext := formatHistory(in.Messages, historyWindow)

	toolDescriptions := describeToolsForPrompt(d.toolSet)
	messages := []models.Message{
		buildSystemPrompt(d.persona + "\n\n" + reactInstructions(toolDescriptions)),
		buildUserPrompt(historyContext, docContext, query),
	}

	var produced []models.Message
	maxSteps := d.defaults.ReactMaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	var finalText string
	for step := 0; step < maxSteps; step++ {
		resp, err := d.chat(ctx, llm.ChatRequest{Messages: messages, Model: d.agentCfg.ModelID})
		if err != nil {
			return Output{}, err
		}

		assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Content}
		messages = append(messages, assistantMsg)
		produced = append(produced, assistantMsg)

		parsed := parseReActResponse(resp.Content)

		if parsed.IsFinalAnswer {
			finalText = parsed.FinalAnswer
			break
		}

		if parsed.HasAction {
			result, execErr := d.execute(ctx, parsed.Action, parsed.ActionInput)
			if execErr != nil {
				result = "tool execution failed: " + execErr.Error()
			}
			observation := models.Message{Role: models.RoleTool, Content: "Observation: " + result, ToolName: parsed.Action}
			messages = append(messages, observation)
			produced = append(produced, observation)
			if step == maxSteps-1 {
				finalText = resp.Content
			}
			continue
		}

		feedback := models.Message{Role: models.RoleUser, Content: "Please respond using Thought/Action/Action Input or Final Answer format."}
		messages = append(messages, feedback)
		produced = append(produced, feedback)

		if step == maxSteps-1 {
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

func describeToolsForPrompt(toolSet *tools.Set) string {
	var out string
	for _, d := range toolSet.Descriptors() {
		out += "- " + d.Name + ": " + d.Description + "\n"
	}
	return out
}

func reactInstructions(toolDescriptions string) string {
	return "Available tools:\n" + toolDescriptions +
		"\nRespond using this format:\nThought: <reasoning>\nAction: <tool name>\nAction Input: <JSON args>\n" +
		"Or, to conclude:\nThought: <reasoning>\nFinal Answer: <reply to the user>"
}
