// Package api is the thin HTTP/GraphQL frontend of spec.md §6: it owns no
// orchestration logic, only request framing and dispatch into the Session
// Router / Supervisor / Conversation Store.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supportbot/dispatcher/pkg/agentrunner"
	"github.com/supportbot/dispatcher/pkg/breaker"
	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/convstore"
	"github.com/supportbot/dispatcher/pkg/hitl"
	"github.com/supportbot/dispatcher/pkg/router"
	"github.com/supportbot/dispatcher/pkg/supervisor"
	"github.com/supportbot/dispatcher/pkg/tools"
)

// PendingHITL is the subset of *hitl.TicketHandler the frontend needs; a
// narrow interface so the server doesn't require the ticket handler
// variant when HITL is running in stub or email mode.
type PendingHITL interface {
	ListPending() []hitl.PendingEscalation
	ClearPending(sessionID string) bool
}

// Server is the HTTP API server: a gin engine plus the collaborators every
// handler dispatches into. Admission backpressure (spec.md §5/§6) lives in
// the Supervisor, gated per agent id after routing rather than here — the
// server itself has no global concurrency cap.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	router        *router.Router
	supervisor    *supervisor.Supervisor
	convStore     convstore.Store
	breakers      *breaker.Registry
	agentRegistry *config.AgentRegistry
	runners       map[string]agentrunner.Runner
	pendingHITL   PendingHITL              // nil when the configured HITL handler has no pending queue
	mcpServer     tools.ExternalToolServer // nil when no external tool server is configured

	// requestDeadline bounds one chat turn end-to-end, per spec.md §5/§6.
	requestDeadline time.Duration
}

// NewServer wires routes onto a fresh gin engine. requestDeadline <= 0
// defaults to 60 seconds, per spec.md §6.
func NewServer(
	r *router.Router,
	sup *supervisor.Supervisor,
	convStore convstore.Store,
	breakers *breaker.Registry,
	agentRegistry *config.AgentRegistry,
	runners map[string]agentrunner.Runner,
	pendingHITL PendingHITL,
	mcpServer tools.ExternalToolServer,
	requestDeadline time.Duration,
) *Server {
	if requestDeadline <= 0 {
		requestDeadline = 60 * time.Second
	}

	s := &Server{
		engine:          gin.New(),
		router:          r,
		supervisor:      sup,
		convStore:       convStore,
		breakers:        breakers,
		agentRegistry:   agentRegistry,
		runners:         runners,
		pendingHITL:     pendingHITL,
		mcpServer:       mcpServer,
		requestDeadline: requestDeadline,
	}

	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.POST("/api/v1/chat", s.chatHandler)
	s.engine.GET("/health", s.healthHandler)
	s.engine.POST("/graphql", s.graphqlHandler)
	s.engine.GET("/hitl/pending", s.hitlPendingHandler)
	s.engine.POST("/hitl/pending/:session_id/clear", s.hitlClearHandler)
	s.engine.GET("/api/v1/system/default-tools", s.systemDefaultToolsHandler)
}

// Handler exposes the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Start starts the HTTP server on addr (blocking until it stops).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
