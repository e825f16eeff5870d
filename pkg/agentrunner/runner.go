// Package agentrunner implements the Agent Runner of spec.md §4.4: one
// runner per registered agent, guarding input, retrieving context,
// building a prompt, and driving either a tool-calling loop or a ReAct
// loop to produce a reply.
package agentrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/guardrail"
	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
	"github.com/supportbot/dispatcher/pkg/retrieval"
	"github.com/supportbot/dispatcher/pkg/tools"
)

// Input is one runner invocation's slice: conversation so far plus the
// session/user identity, per spec.md §4.4.
type Input struct {
	Messages  []models.Message
	SessionID string
	UserID    string
}

// Output is the runner's slice merged back into supervisor state.
type Output struct {
	MessagesDelta   []models.Message
	Resolved        bool
	NeedsEscalation bool
	LastRAGContext  string
}

// AgentDescriptor is introspection metadata about a constructed runner —
// a small, low-risk enrichment consumed by a system introspection endpoint,
// not a new subsystem.
type AgentDescriptor struct {
	AgentID      string
	Capabilities []string
	ModelID      string
}

// Runner drives one agent's turn.
type Runner interface {
	Run(ctx context.Context, in Input) (Output, error)
	Describe() AgentDescriptor
}

// safeReplyPrefix is the canned reply returned when guard_input rejects the
// query, per spec.md §4.4 step 2.
const safeReplyPrefix = "I can only help with questions related to our product and support. "

// canned guard_input rejection reasons get slightly different copy, mirroring
// the reason value rather than a single generic sentence.
var safeReplyByReason = map[string]string{
	"empty":     safeReplyPrefix + "Could you tell me more about what you need?",
	"blocklist": safeReplyPrefix + "I'm not able to help with that request.",
	"too_long":  safeReplyPrefix + "Could you shorten your message?",
}

func safeReply(reason string) string {
	if msg, ok := safeReplyByReason[reason]; ok {
		return msg
	}
	return safeReplyPrefix
}

// deps bundles the collaborators every runner variant needs.
type deps struct {
	agentCfg  config.AgentConfig
	llmClient llm.Client
	guard     *guardrail.Service
	retriever retrieval.Service
	toolSet   *tools.Set
	defaults  config.Defaults
	persona   string
}

// chat calls llmClient.Chat bounded by LLMCallTimeout (<= 0 means
// unbounded) and retries once, per spec.md §6, if that single call times
// out. A second timeout is returned to the caller rather than retried
// again.
func (d deps) chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := d.chatOnce(ctx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		resp, err = d.chatOnce(ctx, req)
	}
	return resp, err
}

func (d deps) chatOnce(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	callCtx := ctx
	if d.defaults.LLMCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.defaults.LLMCallTimeout)
		defer cancel()
	}
	return d.llmClient.Chat(callCtx, req)
}

// execute calls toolSet.Execute bounded by ToolCallTimeout (<= 0 means
// unbounded), per spec.md §6.
func (d deps) execute(ctx context.Context, name, argsJSON string) (string, error) {
	callCtx := ctx
	if d.defaults.ToolCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.defaults.ToolCallTimeout)
		defer cancel()
	}
	return d.toolSet.Execute(callCtx, name, argsJSON)
}

// formatHistory renders the last n messages as role-prefixed lines, per
// spec.md §4.4 step 4.
func formatHistory(messages []models.Message, n int) string {
	start := 0
	if len(messages) > n {
		start = len(messages) - n
	}
	var sb strings.Builder
	for _, m := range messages[start:] {
		label := "User"
		switch m.Role {
		case models.RoleAssistant:
			label = "Agent"
		case models.RoleSystem:
			label = "System"
		case models.RoleTool:
			label = "Tool"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// joinChunks concatenates retrieved chunk content with newlines, building
// doc_context per spec.md §4.4 step 3.
func joinChunks(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n")
}

// buildSystemPrompt constructs the single system message carrying the
// agent persona, per spec.md §4.4 step 5.
func buildSystemPrompt(persona string) models.Message {
	return models.Message{Role: models.RoleSystem, Content: persona}
}

// buildUserPrompt labels and concatenates history, doc context, and the
// current user message into the single user message of spec.md §4.4 step 5.
func buildUserPrompt(historyContext, docContext, userMessage string) models.Message {
	return models.Message{
		Role: models.RoleUser,
		Content: fmt.Sprintf(
			"Conversation history:\n%s\n\nRetrieved context:\n%s\n\nCurrent message:\n%s",
			historyContext, docContext, userMessage,
		),
	}
}

// heuristicOutcome applies the substring heuristic of spec.md §4.4 step 8:
// resolved/needs_escalation from the final text.
func heuristicOutcome(text string) (resolved, needsEscalation bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "unsure") || strings.Contains(lower, "escalat") || strings.Contains(lower, "ticket") {
		return false, true
	}
	return true, false
}
