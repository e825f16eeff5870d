package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/models"
	"github.com/supportbot/dispatcher/pkg/version"
)

// NewTransport builds the mcpsdk.Transport cfg selects: a child process
// over stdio, or streamable HTTP against a configured endpoint.
func NewTransport(cfg config.MCPConfig) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case config.MCPTransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("tools: stdio transport requires a command")
		}
		return &mcpsdk.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}, nil
	case config.MCPTransportHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("tools: http transport requires a url")
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}, nil
	default:
		return nil, fmt.Errorf("tools: unsupported mcp transport: %s", cfg.Transport)
	}
}

// MCPToolServer implements ExternalToolServer against a single MCP server
// reached over a client-supplied transport (stdio, SSE, whatever the
// deployment configures).
type MCPToolServer struct {
	session *mcpsdk.ClientSession
}

// NewMCPToolServer connects to an MCP server over transport and returns a
// ready ExternalToolServer.
func NewMCPToolServer(ctx context.Context, transport mcpsdk.Transport) (*MCPToolServer, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("tools: connect mcp server: %w", err)
	}
	return &MCPToolServer{session: session}, nil
}

func (s *MCPToolServer) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tools: list tools: %w", err)
	}

	out := make([]models.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, models.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  marshalSchema(t.InputSchema),
		})
	}
	return out, nil
}

func (s *MCPToolServer) CallTool(ctx context.Context, name string, argsJSON string) (string, error) {
	var args map[string]any
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("tools: decode args for %q: %w", name, err)
		}
	}

	result, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("tools: call %q: %w", name, err)
	}

	return extractTextContent(result), nil
}

// Close releases the underlying session.
func (s *MCPToolServer) Close() error {
	return s.session.Close()
}

func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			slog.Debug("mcp tool returned non-text content, skipping", "content_type", fmt.Sprintf("%T", c))
		}
	}
	return strings.Join(parts, "\n")
}

func marshalSchema(schema any) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		slog.Debug("failed to marshal tool input schema", "error", err)
		return ""
	}
	return string(data)
}
