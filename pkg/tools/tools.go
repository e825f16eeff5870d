// Package tools constructs each agent's bound tool set: built-ins plus
// descriptors fetched from an external tool server, per spec.md §4.4's
// "Tool set construction" paragraph.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supportbot/dispatcher/pkg/models"
)

// Executor runs one tool call and returns its textual result.
type Executor interface {
	Execute(ctx context.Context, name string, argsJSON string) (string, error)
}

// BuiltinTool is a tool implemented in-process (no network round-trip
// beyond whatever the handler itself performs).
type BuiltinTool struct {
	Descriptor models.ToolDescriptor
	Handler    func(ctx context.Context, argsJSON string) (string, error)
}

// ExternalToolServer fetches tool descriptors and executes calls against an
// out-of-process tool provider (the MCP server, concretely).
type ExternalToolServer interface {
	ListTools(ctx context.Context) ([]models.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, argsJSON string) (string, error)
}

// NopExternalToolServer is the ExternalToolServer used when a deployment
// configures no MCP server for an agent: it reports no tools and fails any
// call, so a mis-routed tool name still surfaces as an error rather than
// silently succeeding.
type NopExternalToolServer struct{}

func (NopExternalToolServer) ListTools(_ context.Context) ([]models.ToolDescriptor, error) {
	return nil, nil
}

func (NopExternalToolServer) CallTool(_ context.Context, name string, _ string) (string, error) {
	return "", fmt.Errorf("tools: no external tool server configured, cannot call %q", name)
}

// Set is one agent's complete, immutable tool set: built-ins plus
// deduplicated external descriptors, constructed once at startup and safe
// to share across concurrent invocations without locking.
type Set struct {
	descriptors []models.ToolDescriptor
	builtins    map[string]*BuiltinTool
	external    ExternalToolServer
	externalSet map[string]bool
}

// Descriptors returns the tool descriptors to bind to the LLM call.
func (s *Set) Descriptors() []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out
}

// Execute runs a tool by name: built-ins win on name conflicts (the
// external duplicate was already dropped at construction), so a named
// lookup never needs conflict resolution at call time.
func (s *Set) Execute(ctx context.Context, name string, argsJSON string) (string, error) {
	if bt, ok := s.builtins[name]; ok {
		return bt.Handler(ctx, argsJSON)
	}
	if s.externalSet[name] {
		return s.external.CallTool(ctx, name, argsJSON)
	}
	return "", fmt.Errorf("tools: unknown tool %q", name)
}

// BuildSet constructs the tool set for one agent: start with builtins,
// then fetch external descriptors through fetch, which applies its own
// retry-with-backoff policy (see NewRetryFetcher). A persistent fetch failure
// fails startup — external tools are a required collaborator, not optional.
// On a name collision, the builtin wins and the external duplicate is
// dropped silently (no renaming).
func BuildSet(ctx context.Context, builtins []*BuiltinTool, external ExternalToolServer, fetch RetryFetcher) (*Set, error) {
	builtinMap := make(map[string]*BuiltinTool, len(builtins))
	descriptors := make([]models.ToolDescriptor, 0, len(builtins))
	for _, bt := range builtins {
		builtinMap[bt.Descriptor.Name] = bt
		descriptors = append(descriptors, bt.Descriptor)
	}

	externalDescriptors, err := fetch(ctx, external)
	if err != nil {
		return nil, fmt.Errorf("tools: fetch external tool descriptors: %w", err)
	}

	externalSet := make(map[string]bool, len(externalDescriptors))
	for _, d := range externalDescriptors {
		if _, collides := builtinMap[d.Name]; collides {
			continue
		}
		externalSet[d.Name] = true
		descriptors = append(descriptors, d)
	}

	return &Set{
		descriptors: descriptors,
		builtins:    builtinMap,
		external:    external,
		externalSet: externalSet,
	}, nil
}

// argAsString extracts a single string field from a JSON-object argument
// payload, used by built-in tool handlers.
func argAsString(argsJSON, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &m); err != nil {
		return "", fmt.Errorf("tools: decode args: %w", err)
	}
	v, ok := m[field]
	if !ok {
		return "", fmt.Errorf("tools: missing field %q", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("tools: field %q is not a string", field)
	}
	return s, nil
}
