// dispatcher runs the multi-agent support bot server: HTTP/GraphQL API,
// session routing, supervised agent turns, and human-in-the-loop
// escalation.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportbot/dispatcher/pkg/agentrunner"
	"github.com/supportbot/dispatcher/pkg/api"
	"github.com/supportbot/dispatcher/pkg/backend"
	"github.com/supportbot/dispatcher/pkg/breaker"
	"github.com/supportbot/dispatcher/pkg/checkpoint"
	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/convstore"
	"github.com/supportbot/dispatcher/pkg/faithfulness"
	"github.com/supportbot/dispatcher/pkg/guardrail"
	"github.com/supportbot/dispatcher/pkg/hitl"
	"github.com/supportbot/dispatcher/pkg/intent"
	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/retrieval"
	"github.com/supportbot/dispatcher/pkg/router"
	"github.com/supportbot/dispatcher/pkg/supervisor"
	"github.com/supportbot/dispatcher/pkg/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	httpAddr := ":" + getEnv("HTTP_PORT", "8080")

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration initialized", "agents", len(cfg.AgentRegistry.GetAll()))

	ctx := context.Background()

	llmClient := llm.NewAnthropicClient(os.Getenv(cfg.LLM.APIKeyEnv))

	checkpointStore, closeCheckpoint, err := buildCheckpointStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build checkpoint store", "error", err)
		os.Exit(1)
	}
	defer closeCheckpoint()

	convStore, closeConvStore, err := buildConversationStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build conversation store", "error", err)
		os.Exit(1)
	}
	defer closeConvStore()

	guard := guardrail.NewService(cfg.Guardrail.MaxInputLen, cfg.Guardrail.MaxOutputLen, cfg.Guardrail.Blocklist, cfg.Guardrail.Sensitive)
	breakers := breaker.NewRegistry(cfg.Defaults.CircuitBreakerFailureThreshold, cfg.Defaults.CircuitBreakerCooldown)

	var scorer faithfulness.Scorer = faithfulness.NullScorer{}
	if cfg.Defaults.UseModelFaithfulnessScorer {
		scorer = faithfulness.NewModelScorer(llmClient, cfg.LLM.Model)
	}

	keywordClassifier := intent.NewKeywordClassifier(cfg.IntentTable)
	var classifier intent.Classifier = keywordClassifier
	if cfg.Defaults.UseModelIntentClassifier {
		classifier = intent.NewModelClassifier(llmClient, cfg.LLM.Model, cfg.Defaults.ConfidenceThreshold, keywordClassifier)
	}
	sessionRouter := router.New(classifier)

	invoiceBackend := backend.NewInvoiceBackend([]backend.Invoice{
		{ID: "INV-1001", LineItems: "1x annual plan", Total: "$120.00", RefundStatus: ""},
	})
	ticketBackend := backend.NewTicketBackend()
	hitlHandler := buildHITLHandler(cfg, ticketBackend)

	mcpServer, err := buildMCPServer(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to configured mcp server", "error", err)
		os.Exit(1)
	}

	runners, err := buildRunners(ctx, cfg, llmClient, guard, ticketBackend, invoiceBackend, mcpServer)
	if err != nil {
		slog.Error("failed to build agent runners", "error", err)
		os.Exit(1)
	}

	var planner llm.Client
	if cfg.Defaults.PlanningEnabled {
		planner = llmClient
	}

	sup := supervisor.New(cfg.AgentRegistry, runners, breakers, checkpointStore, hitlHandler, scorer, planner, cfg.Defaults, 2*time.Second)

	var pendingHITL api.PendingHITL
	if th, ok := hitlHandler.(*hitl.TicketHandler); ok {
		pendingHITL = th
	}

	server := api.NewServer(sessionRouter, sup, convStore, breakers, cfg.AgentRegistry, runners, pendingHITL, mcpServer, cfg.Defaults.RequestDeadline)

	go func() {
		slog.Info("http server listening", "addr", httpAddr)
		if err := server.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func buildCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, func(), error) {
	if cfg.Checkpoint.Backend != config.CheckpointBackendPostgres {
		return checkpoint.NewMemoryStore(), func() {}, nil
	}

	connURL := os.Getenv(cfg.Checkpoint.PostgresDSNEnv)
	store, err := checkpoint.NewPostgresStore(ctx, connURL, "file://migrations")
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func buildConversationStore(ctx context.Context, cfg *config.Config) (convstore.Store, func(), error) {
	if cfg.Checkpoint.Backend != config.CheckpointBackendPostgres {
		return convstore.NewMemoryStore(), func() {}, nil
	}

	connURL := os.Getenv(cfg.Checkpoint.PostgresDSNEnv)
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, nil, err
	}
	return convstore.NewPostgresStore(pool), func() { pool.Close() }, nil
}

// buildMCPServer connects to the configured MCP server, if any. A connect
// failure here is fatal at startup, per spec.md §4.4: a configured external
// tool server is a required collaborator, not optional. When no MCP server
// is configured, every agent's tool set gets only its built-ins.
func buildMCPServer(ctx context.Context, cfg *config.Config) (tools.ExternalToolServer, error) {
	if !cfg.MCP.Enabled {
		return tools.NopExternalToolServer{}, nil
	}

	transport, err := tools.NewTransport(cfg.MCP)
	if err != nil {
		return nil, err
	}
	return tools.NewMCPToolServer(ctx, transport)
}

func buildHITLHandler(cfg *config.Config, ticketBackend *backend.TicketBackend) hitl.Handler {
	if !cfg.HITL.Enabled {
		return hitl.StubHandler{}
	}
	switch cfg.HITL.Handler {
	case config.HitlHandlerTicket:
		return hitl.NewTicketHandler(ticketBackend)
	case config.HitlHandlerEmail:
		return hitl.NewEmailHandler(cfg.HITL.EmailTo)
	default:
		return hitl.StubHandler{}
	}
}

func buildRunners(
	ctx context.Context,
	cfg *config.Config,
	llmClient llm.Client,
	guard *guardrail.Service,
	ticketBackend *backend.TicketBackend,
	invoiceBackend *backend.InvoiceBackend,
	mcpServer tools.ExternalToolServer,
) (map[string]agentrunner.Runner, error) {
	fetch := tools.NewRetryFetcher(tools.DefaultMaxFetchRetries, tools.DefaultFetchBackoff)
	retriever := retrieval.NewStubRetriever(nil)

	runners := make(map[string]agentrunner.Runner, len(cfg.AgentRegistry.GetAll()))
	for id, agentCfg := range cfg.AgentRegistry.GetAll() {
		builtins := builtinToolsFor(id, ticketBackend, invoiceBackend)

		toolSet, err := tools.BuildSet(ctx, builtins, mcpServer, fetch)
		if err != nil {
			return nil, err
		}

		var runner agentrunner.Runner
		if cfg.Defaults.ReactEnabled {
			runner = agentrunner.NewReActRunner(agentCfg, llmClient, guard, retriever, toolSet, cfg.Defaults)
		} else {
			runner = agentrunner.NewToolCallingRunner(agentCfg, llmClient, guard, retriever, toolSet, cfg.Defaults)
		}
		runners[id] = runner
	}
	return runners, nil
}

// builtinToolsFor binds each agent id to the tool set spec.md's built-in
// agent pool expects: billing gets invoice lookup, every agent can open a
// ticket directly.
func builtinToolsFor(agentID string, ticketBackend *backend.TicketBackend, invoiceBackend *backend.InvoiceBackend) []*tools.BuiltinTool {
	builtins := []*tools.BuiltinTool{tools.TicketBuiltin(ticketBackend, agentID)}
	if agentID == "billing" {
		builtins = append(builtins, tools.BillingBuiltins(invoiceBackend)...)
	}
	return builtins
}
