// Package llm defines the provider-agnostic LLM chat interface consumed by
// the intent classifier, faithfulness scorer, and agent runner, plus a
// concrete Anthropic-backed implementation.
package llm

import (
	"context"

	"github.com/supportbot/dispatcher/pkg/models"
)

// Client is the interface every LLM chat provider implements. A single
// synchronous call per turn-step — no streaming channel, since nothing in
// this system's loops needs partial tokens before the step completes.
type Client interface {
	// Chat sends a conversation (with optional tool definitions bound) and
	// returns the model's response. Implementations must respect ctx's
	// deadline and return promptly on cancellation.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one Client.Chat call's input.
type ChatRequest struct {
	Messages    []models.Message
	Tools       []models.ToolDescriptor
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ChatResponse is the model's reply: either plain text content, or one or
// more tool calls the caller must execute and feed back.
type ChatResponse struct {
	Content      string
	ToolCalls    []models.ToolCall
	FinishReason string
	Usage        UsageInfo
}

// UsageInfo reports token consumption for one Chat call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
