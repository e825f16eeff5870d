package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the on-disk dispatcher.yaml shape.
type yamlConfig struct {
	Defaults   *Defaults              `yaml:"defaults"`
	Agents     map[string]AgentConfig `yaml:"agents"`
	IntentTable []IntentRule          `yaml:"intent_table,omitempty"`
	Guardrail  *GuardrailConfig       `yaml:"guardrail"`
	Checkpoint *CheckpointConfig      `yaml:"checkpoint"`
	HITL       *HITLConfig            `yaml:"hitl"`
	LLM        *LLMConfig             `yaml:"llm"`
	MCP        *MCPConfig             `yaml:"mcp"`
}

// Initialize loads, merges, validates, and returns ready-to-use
// configuration. Primary entry point for configuration loading.
//
// Steps:
//  1. Load .env (best-effort; missing file is not an error).
//  2. Load dispatcher.yaml from configDir, expanding ${VAR} references.
//  3. Merge built-in agent/intent-table/defaults with user overrides.
//  4. Build the immutable AgentRegistry.
//  5. Validate all configuration (fail-fast).
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "error", err)
	}

	yc, err := loadYAML(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg, err := merge(yc)
	if err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "agents", len(cfg.AgentRegistry.GetAll()))
	return cfg, nil
}

func loadYAML(configDir string) (*yamlConfig, error) {
	path := filepath.Join(configDir, "dispatcher.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing config file is not fatal: built-in defaults are a
			// complete, valid configuration on their own.
			return &yamlConfig{}, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &yc, nil
}

// merge combines built-in defaults with the user's YAML overrides.
// User-provided non-zero values win (mergo.WithOverride); agents merge by
// key (user definitions add to or override built-ins by agent id).
func merge(yc *yamlConfig) (*Config, error) {
	defaults := DefaultDefaults()
	if yc.Defaults != nil {
		if err := mergo.Merge(&defaults, *yc.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge defaults: %w", err)
		}
	}

	agents := BuiltinAgents()
	for id, a := range yc.Agents {
		a.AgentID = id
		agents[id] = a
	}

	intentTable := BuiltinIntentTable()
	if len(yc.IntentTable) > 0 {
		intentTable = yc.IntentTable
	}

	guardrail := DefaultGuardrailConfig()
	if yc.Guardrail != nil {
		if err := mergo.Merge(&guardrail, *yc.Guardrail, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge guardrail config: %w", err)
		}
	}

	checkpoint := CheckpointConfig{Backend: CheckpointBackendMemory}
	if yc.Checkpoint != nil {
		if err := mergo.Merge(&checkpoint, *yc.Checkpoint, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge checkpoint config: %w", err)
		}
	}

	hitl := HITLConfig{Enabled: true, Handler: HitlHandlerStub}
	if yc.HITL != nil {
		if err := mergo.Merge(&hitl, *yc.HITL, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge hitl config: %w", err)
		}
	}

	llm := LLMConfig{APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-sonnet-4-5", Temperature: 0.2}
	if yc.LLM != nil {
		if err := mergo.Merge(&llm, *yc.LLM, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge llm config: %w", err)
		}
	}

	mcp := MCPConfig{}
	if yc.MCP != nil {
		if err := mergo.Merge(&mcp, *yc.MCP, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge mcp config: %w", err)
		}
	}

	return &Config{
		Defaults:      defaults,
		AgentRegistry: NewAgentRegistry(agents),
		IntentTable:   intentTable,
		Guardrail:     guardrail,
		Checkpoint:    checkpoint,
		HITL:          hitl,
		LLM:           llm,
		MCP:           mcp,
	}, nil
}
