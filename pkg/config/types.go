package config

import "time"

// Config is the immutable, process-wide option set. Built once at startup
// by Initialize and never mutated afterward; safe for concurrent reads from
// every request goroutine.
type Config struct {
	Defaults      Defaults
	AgentRegistry *AgentRegistry
	IntentTable   []IntentRule

	Guardrail  GuardrailConfig
	Checkpoint CheckpointConfig
	HITL       HITLConfig
	LLM        LLMConfig
	MCP        MCPConfig
}

// Defaults holds the process-wide thresholds and feature flags of
// spec.md §6.
type Defaults struct {
	FaithfulnessThreshold float64 `yaml:"faithfulness_threshold"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`

	PlanningEnabled bool `yaml:"planning_enabled"`
	ReactEnabled    bool `yaml:"react_enabled"`
	ReactMaxSteps   int  `yaml:"react_max_steps"`
	MaxToolIters    int  `yaml:"max_tool_iters"`

	AgentOpsEnabled                bool          `yaml:"agent_ops_enabled"`
	CircuitBreakerFailureThreshold int           `yaml:"circuit_breaker_failure_threshold"`
	CircuitBreakerCooldown         time.Duration `yaml:"circuit_breaker_cooldown_seconds"`
	FailoverEnabled                bool          `yaml:"failover_enabled"`
	FailoverFallbackAgentID        string        `yaml:"failover_fallback_agent_id"`
	AgentInvocationTimeout         time.Duration `yaml:"agent_invocation_timeout_seconds"`

	UseModelIntentClassifier      bool `yaml:"use_model_intent_classifier"`
	UseModelFaithfulnessScorer    bool `yaml:"use_model_faithfulness_scorer"`

	MessagesMaxLen   int           `yaml:"messages_max_len"`
	SessionTTL       time.Duration `yaml:"session_ttl_seconds"`
	TopP             float64       `yaml:"top_p"`

	RequestDeadline  time.Duration `yaml:"request_deadline_seconds"`
	LLMCallTimeout   time.Duration `yaml:"llm_call_timeout_seconds"`
	ToolCallTimeout  time.Duration `yaml:"tool_call_timeout_seconds"`
}

// GuardrailConfig configures the Guardrail Service of spec.md §4.6.
type GuardrailConfig struct {
	Enabled      bool     `yaml:"enabled"`
	MaxInputLen  int      `yaml:"max_input_len"`
	MaxOutputLen int      `yaml:"max_output_len"`
	Blocklist    []string `yaml:"blocklist"`
	Sensitive    []string `yaml:"sensitive_patterns"`
}

// CheckpointConfig selects and configures the Checkpointer/Conversation
// Store backend.
type CheckpointConfig struct {
	Backend    CheckpointBackend `yaml:"backend"`
	PostgresDSNEnv string        `yaml:"postgres_dsn_env"`
}

// HITLConfig selects and configures the HITL Handler of spec.md §4.7.
type HITLConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Handler   HitlHandlerKind `yaml:"handler"`
	EmailTo   string          `yaml:"email_to"`
}

// LLMConfig configures the LLM chat provider collaborator.
type LLMConfig struct {
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// MCPConfig selects and configures the external tool server of spec.md §4.4/
// §7: a single MCP server reached over stdio or streamable HTTP. Disabled
// (the zero value) means every agent's tool set gets only its built-ins,
// via tools.NopExternalToolServer.
type MCPConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Transport MCPTransportType `yaml:"transport"`

	// stdio transport
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// http transport
	URL string `yaml:"url"`
}

// AgentConfig describes one constructible agent: its id, its declared
// capabilities (used loosely for documentation/introspection), its model
// id, and its concurrency bound.
type AgentConfig struct {
	AgentID       string   `yaml:"agent_id"`
	Capabilities  []string `yaml:"capabilities"`
	ModelID       string   `yaml:"model_id"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	Persona       string   `yaml:"persona"`
}

// IntentRule is one row of the keyword classifier's canonical table:
// message containing any of Keywords (case-insensitive substring) maps to
// AgentID.
type IntentRule struct {
	Keywords []string
	AgentID  string
}
