package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, failing fast at the first problem found.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates defaults, agents, guardrail, hitl, checkpoint, and
// mcp configuration in that order, returning the first section's error.
func (v *Validator) ValidateAll() error {
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateGuardrail(); err != nil {
		return fmt.Errorf("guardrail validation failed: %w", err)
	}
	if err := v.validateHITL(); err != nil {
		return fmt.Errorf("hitl validation failed: %w", err)
	}
	if err := v.validateCheckpoint(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	if err := v.validateMCP(); err != nil {
		return fmt.Errorf("mcp validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d.FaithfulnessThreshold < 0 || d.FaithfulnessThreshold > 1 {
		return NewValidationError("defaults", "", "faithfulness_threshold", fmt.Errorf("must be in [0,1]"))
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return NewValidationError("defaults", "", "confidence_threshold", fmt.Errorf("must be in [0,1]"))
	}
	if d.ReactMaxSteps < 1 {
		return NewValidationError("defaults", "", "react_max_steps", fmt.Errorf("must be at least 1"))
	}
	if d.MaxToolIters < 1 {
		return NewValidationError("defaults", "", "max_tool_iters", fmt.Errorf("must be at least 1"))
	}
	if d.CircuitBreakerFailureThreshold < 1 {
		return NewValidationError("defaults", "", "circuit_breaker_failure_threshold", fmt.Errorf("must be at least 1"))
	}
	if d.CircuitBreakerCooldown <= 0 {
		return NewValidationError("defaults", "", "circuit_breaker_cooldown_seconds", fmt.Errorf("must be positive"))
	}
	if d.FailoverFallbackAgentID == "" {
		return NewValidationError("defaults", "", "failover_fallback_agent_id", fmt.Errorf("required"))
	}
	if !v.cfg.AgentRegistry.Has(d.FailoverFallbackAgentID) {
		return NewValidationError("defaults", "", "failover_fallback_agent_id",
			fmt.Errorf("agent '%s' not found", d.FailoverFallbackAgentID))
	}
	if d.MessagesMaxLen < 1 {
		return NewValidationError("defaults", "", "messages_max_len", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *Validator) validateAgents() error {
	if !v.cfg.AgentRegistry.Has("support") {
		return NewValidationError("agent", "support", "", fmt.Errorf("the 'support' fallback agent must always be registered"))
	}
	for id, agent := range v.cfg.AgentRegistry.GetAll() {
		if agent.MaxConcurrent < 1 {
			return NewValidationError("agent", id, "max_concurrent", fmt.Errorf("must be at least 1"))
		}
	}
	return nil
}

func (v *Validator) validateGuardrail() error {
	g := v.cfg.Guardrail
	if g.MaxInputLen < 1 {
		return NewValidationError("guardrail", "", "max_input_len", fmt.Errorf("must be at least 1"))
	}
	if g.MaxOutputLen < 1 {
		return NewValidationError("guardrail", "", "max_output_len", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *Validator) validateHITL() error {
	h := v.cfg.HITL
	if !h.Enabled {
		return nil
	}
	if !h.Handler.IsValid() {
		return NewValidationError("hitl", "", "handler", fmt.Errorf("invalid handler: %s", h.Handler))
	}
	if h.Handler == HitlHandlerEmail && h.EmailTo == "" {
		return NewValidationError("hitl", "", "email_to", fmt.Errorf("required when handler is 'email'"))
	}
	return nil
}

func (v *Validator) validateCheckpoint() error {
	c := v.cfg.Checkpoint
	if !c.Backend.IsValid() {
		return NewValidationError("checkpoint", "", "backend", fmt.Errorf("invalid backend: %s", c.Backend))
	}
	if c.Backend == CheckpointBackendPostgres && c.PostgresDSNEnv == "" {
		return NewValidationError("checkpoint", "", "postgres_dsn_env", fmt.Errorf("required when backend is 'postgres'"))
	}
	return nil
}

func (v *Validator) validateMCP() error {
	m := v.cfg.MCP
	if !m.Enabled {
		return nil
	}
	if !m.Transport.IsValid() {
		return NewValidationError("mcp", "", "transport", fmt.Errorf("invalid transport: %s", m.Transport))
	}
	if m.Transport == MCPTransportStdio && m.Command == "" {
		return NewValidationError("mcp", "", "command", fmt.Errorf("required when transport is 'stdio'"))
	}
	if m.Transport == MCPTransportHTTP && m.URL == "" {
		return NewValidationError("mcp", "", "url", fmt.Errorf("required when transport is 'http'"))
	}
	return nil
}
