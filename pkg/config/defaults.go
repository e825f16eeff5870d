package config

import "time"

// BuiltinAgents is the built-in agent set. The loader always starts from
// it and lets configured agents add to or override it by id, so "support"
// always exists and route can always default to it per spec.md §4.2.
func BuiltinAgents() map[string]AgentConfig {
	return map[string]AgentConfig{
		"support": {
			AgentID:       "support",
			Capabilities:  []string{"general"},
			MaxConcurrent: 10,
			Persona:       "You are a friendly general customer support agent.",
		},
		"billing": {
			AgentID:       "billing",
			Capabilities:  []string{"invoices", "refunds", "payments"},
			MaxConcurrent: 10,
			Persona:       "You are a billing specialist who looks up invoices and refund status.",
		},
		"tech": {
			AgentID:       "tech",
			Capabilities:  []string{"troubleshooting", "bugs", "installation"},
			MaxConcurrent: 10,
			Persona:       "You are a technical support specialist who helps debug product issues.",
		},
	}
}

// BuiltinIntentTable is the canonical keyword table of spec.md §4.1.
// Order matters: *all* matching rows contribute their agent ids, in table
// order (the classifier appends, it does not stop at first match).
func BuiltinIntentTable() []IntentRule {
	return []IntentRule{
		{Keywords: []string{"invoice", "bill", "payment", "refund", "billing"}, AgentID: "billing"},
		{Keywords: []string{"tech", "error", "bug", "install", "troubleshoot"}, AgentID: "tech"},
		{Keywords: []string{"human", "agent", "escalate", "speak to someone"}, AgentID: "escalation"},
	}
}

// BuiltinBlocklist is the canonical guardrail input blocklist of spec.md §4.6.
func BuiltinBlocklist() []string {
	return []string{
		"hack",
		"exploit",
		"ddos",
		"password crack",
		"credential steal",
		"ignore previous instructions",
		"disregard your instructions",
	}
}

// DefaultDefaults returns the Defaults struct populated with the constants
// named throughout spec.md §6.
func DefaultDefaults() Defaults {
	return Defaults{
		FaithfulnessThreshold: 0.8,
		ConfidenceThreshold:   0.7,

		PlanningEnabled: false,
		ReactEnabled:    false,
		ReactMaxSteps:   10,
		MaxToolIters:    5,

		AgentOpsEnabled:                true,
		CircuitBreakerFailureThreshold: 3,
		CircuitBreakerCooldown:         60 * time.Second,
		FailoverEnabled:                true,
		FailoverFallbackAgentID:        "support",
		AgentInvocationTimeout:         30 * time.Second,

		MessagesMaxLen: 20,
		SessionTTL:     24 * time.Hour,
		TopP:           0.9,

		RequestDeadline: 60 * time.Second,
		LLMCallTimeout:  10 * time.Second,
		ToolCallTimeout: 10 * time.Second,
	}
}

// DefaultGuardrailConfig returns the guardrail defaults of spec.md §4.6/§6.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		Enabled:      true,
		MaxInputLen:  8000,
		MaxOutputLen: 4000,
		Blocklist:    BuiltinBlocklist(),
	}
}
