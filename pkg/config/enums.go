package config

// HitlHandlerKind selects which HITL dispatch implementation is wired at
// startup. Selection is static — read once from config, never switched at
// runtime.
type HitlHandlerKind string

const (
	HitlHandlerStub   HitlHandlerKind = "stub"
	HitlHandlerTicket HitlHandlerKind = "ticket"
	HitlHandlerEmail  HitlHandlerKind = "email"
)

// IsValid reports whether k is one of the known HITL handler kinds.
func (k HitlHandlerKind) IsValid() bool {
	switch k {
	case HitlHandlerStub, HitlHandlerTicket, HitlHandlerEmail:
		return true
	default:
		return false
	}
}

// MCPTransportType selects how the external tool server's MCP client
// connects: a child process over stdio, or streamable HTTP.
type MCPTransportType string

const (
	MCPTransportStdio MCPTransportType = "stdio"
	MCPTransportHTTP  MCPTransportType = "http"
)

// IsValid reports whether t is a known MCP transport type.
func (t MCPTransportType) IsValid() bool {
	return t == MCPTransportStdio || t == MCPTransportHTTP
}

// CheckpointBackend selects the Checkpointer/Conversation Store persistence
// implementation.
type CheckpointBackend string

const (
	CheckpointBackendMemory   CheckpointBackend = "memory"
	CheckpointBackendPostgres CheckpointBackend = "postgres"
)

// IsValid reports whether b is a known checkpoint backend.
func (b CheckpointBackend) IsValid() bool {
	return b == CheckpointBackendMemory || b == CheckpointBackendPostgres
}
