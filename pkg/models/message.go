// Package models holds the shared conversation types passed between the
// router, supervisor, agent runner, and the LLM/tool collaborators.
package models

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation. Role determines which optional
// fields are meaningful: ToolCalls is only set on assistant messages that
// request tool execution; ToolCallID/ToolName are only set on tool result
// messages.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolName   string
	ToolCalls  []ToolCall
	Metadata   map[string]any
}

// ToolCall is an LLM's request to invoke a named tool with JSON-encoded
// arguments. ArgumentsJSON is opaque to everything except the tool itself.
type ToolCall struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// ToolDescriptor describes a tool available to the LLM: its name, a
// natural-language description, and its parameter schema. Built-in tools
// and tools discovered from an external tool server are both represented
// this way so the agent runner's tool set is uniform.
type ToolDescriptor struct {
	Name        string
	Description string
	JSONSchema  string
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Chunk is one piece of retrieved context returned by the retrieval service.
type Chunk struct {
	Content string
	Source  string
	Score   float64
}
