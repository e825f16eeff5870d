// Package supervisor implements the per-turn state machine of spec.md
// §4.2: entry -> plan -> route -> invoke -> aggregate -> {escalate|end} ->
// save, driven over a checkpointed SupervisorState.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/supportbot/dispatcher/pkg/agentrunner"
	"github.com/supportbot/dispatcher/pkg/breaker"
	"github.com/supportbot/dispatcher/pkg/checkpoint"
	"github.com/supportbot/dispatcher/pkg/config"
	"github.com/supportbot/dispatcher/pkg/faithfulness"
	"github.com/supportbot/dispatcher/pkg/hitl"
	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
)

// ErrOverloaded is returned by RunTurn when current_agent's bounded worker
// pool is full and stays full for longer than the configured queue wait —
// the HTTP layer turns this into a 503, per spec.md §5/§6.
var ErrOverloaded = errors.New("supervisor: agent is at capacity")

// escalationMessage is the fixed reply appended whenever a turn ends with
// needs_escalation=true, per spec.md §4.2 step 7.
const escalationMessage = "I'm connecting you with a human agent. Please hold."

// invocationFailedMessage is the fixed reply appended when an agent
// invocation (and any failover attempt) fails outright, per spec.md §4.2
// step 4 and §7.
const invocationFailedMessage = "Sorry, something went wrong on our end. I'm connecting you with a human agent."

// TurnInput is one supervisor invocation: the already-routed message plus
// the router's suggested candidates.
type TurnInput struct {
	SessionID         string
	UserID            string
	Message           string
	SuggestedAgentIDs []string
}

// TurnResult is what the frontend needs to build its HTTP response.
type TurnResult struct {
	SessionID string
	Reply     string
	AgentID   string
}

// Supervisor wires together the registries and collaborators the state
// machine drives: agent runners, the circuit breaker, the checkpointer,
// the faithfulness scorer, and the HITL handler.
type Supervisor struct {
	agentRegistry *config.AgentRegistry
	runners       map[string]agentrunner.Runner
	breakers      *breaker.Registry
	checkpoints   checkpoint.Store
	hitlHandler   hitl.Handler
	scorer        faithfulness.Scorer
	planner       llm.Client // nil when planning_enabled is false
	defaults      config.Defaults

	// locks serializes concurrent turns for the same session id, per
	// spec.md §5 ("the checkpointer's per-thread-id lock"). One mutex per
	// session id, created lazily — mirrors the per-key locking shape of
	// breaker.Registry.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// admission bounds concurrent in-flight invocations per agent id to
	// that agent's configured max_concurrent, per spec.md §5/§6. Sized once
	// at construction from the (immutable) agent registry.
	admission map[string]chan struct{}
	queueWait time.Duration
}

// New constructs a Supervisor. planner may be nil; when defaults.PlanningEnabled
// is true and planner is nil, the plan node is a silent no-op (same as any
// other plan failure). queueWait bounds how long a turn waits for its
// routed agent's worker pool to free a slot before RunTurn returns
// ErrOverloaded; <= 0 defaults to 2 seconds.
func New(
	agentRegistry *config.AgentRegistry,
	runners map[string]agentrunner.Runner,
	breakers *breaker.Registry,
	checkpoints checkpoint.Store,
	hitlHandler hitl.Handler,
	scorer faithfulness.Scorer,
	planner llm.Client,
	defaults config.Defaults,
	queueWait time.Duration,
) *Supervisor {
	if queueWait <= 0 {
		queueWait = 2 * time.Second
	}

	admission := make(map[string]chan struct{}, len(agentRegistry.GetAll()))
	for id, agentCfg := range agentRegistry.GetAll() {
		n := agentCfg.MaxConcurrent
		if n <= 0 {
			n = 1
		}
		admission[id] = make(chan struct{}, n)
	}

	return &Supervisor{
		agentRegistry: agentRegistry,
		runners:       runners,
		breakers:      breakers,
		checkpoints:   checkpoints,
		hitlHandler:   hitlHandler,
		scorer:        scorer,
		planner:       planner,
		defaults:      defaults,
		locks:         make(map[string]*sync.Mutex),
		admission:     admission,
		queueWait:     queueWait,
	}
}

// acquireAgentSlot reserves a worker slot in agentID's bounded pool,
// waiting up to queueWait before giving up. Every candidate current_agent
// is guaranteed a registered, sized channel: route() only ever picks a
// registered agent id or the registered fallback id.
func (s *Supervisor) acquireAgentSlot(ctx context.Context, agentID string) bool {
	pool := s.admission[agentID]

	select {
	case pool <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case pool <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Supervisor) releaseAgentSlot(agentID string) {
	<-s.admission[agentID]
}

func (s *Supervisor) threadLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// RunTurn drives one full turn for in.SessionID: load -> plan -> route ->
// invoke -> aggregate -> {escalate|end} -> save. Concurrent calls for the
// same session id are serialized; calls for different session ids proceed
// independently.
func (s *Supervisor) RunTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	lock := s.threadLock(in.SessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.load(ctx, in)
	if err != nil {
		return TurnResult{}, err
	}

	s.plan(ctx, &state)
	s.route(&state)

	if !s.acquireAgentSlot(ctx, state.CurrentAgent) {
		return TurnResult{}, ErrOverloaded
	}
	defer s.releaseAgentSlot(state.CurrentAgent)

	s.invoke(ctx, &state)
	s.aggregate(ctx, &state)

	if state.NeedsEscalation {
		s.escalate(ctx, &state)
	}

	state.TrimMessages(s.defaults.MessagesMaxLen)
	if err := s.checkpoints.Put(ctx, in.SessionID, state); err != nil {
		slog.Error("checkpoint save failed", "session_id", in.SessionID, "error", err)
	}

	return TurnResult{
		SessionID: state.SessionID,
		Reply:     lastAssistantContent(state.Messages),
		AgentID:   state.CurrentAgent,
	}, nil
}

// load fetches persisted state (or starts fresh) and merges in the new
// turn's inputs, per spec.md §4.2 step 1.
func (s *Supervisor) load(ctx context.Context, in TurnInput) (models.SupervisorState, error) {
	state, found, err := s.checkpoints.Get(ctx, in.SessionID)
	if err != nil {
		// Checkpointer failure degrades to in-memory state for this turn
		// rather than failing it, per spec.md §7.
		slog.Error("checkpoint load failed, proceeding with fresh state", "session_id", in.SessionID, "error", err)
		found = false
	}
	if !found {
		state = models.SupervisorState{SessionID: in.SessionID, UserID: in.UserID}
	}

	state.Messages = append(state.Messages, models.Message{Role: models.RoleUser, Content: in.Message})
	state.SuggestedAgentIDs = in.SuggestedAgentIDs
	state.PlannedAgentIDs = nil
	state.CurrentAgent = ""
	state.LastRAGContext = ""
	state.NeedsEscalation = false
	state.EscalationReason = models.EscalationNone

	return state, nil
}

// plan asks the LLM to pick one known agent id when planning is enabled.
// Any failure (including no planner configured) leaves planned_agent_ids
// empty and never blocks the turn, per spec.md §4.2 step 2.
func (s *Supervisor) plan(ctx context.Context, state *models.SupervisorState) {
	if !s.defaults.PlanningEnabled || s.planner == nil {
		return
	}

	ids := s.agentRegistry.IDs()
	prompt := fmt.Sprintf(
		"Pick exactly one agent id from this list that best handles the user's message, and reply with only that id: %s\n\nUser message: %s",
		strings.Join(ids, ", "), lastUserContent(state.Messages),
	)
	resp, err := s.planner.Chat(ctx, llm.ChatRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: prompt}},
	})
	if err != nil {
		slog.Warn("plan node failed, falling back to router suggestion", "session_id", state.SessionID, "error", err)
		return
	}

	picked := strings.TrimSpace(resp.Content)
	if s.agentRegistry.Has(picked) {
		state.PlannedAgentIDs = []string{picked}
	}
}

// route selects current_agent from planned (if any) else suggested
// candidates, filtering open circuits without ever starving the turn, per
// spec.md §4.2 step 3.
func (s *Supervisor) route(state *models.SupervisorState) {
	candidates := state.PlannedAgentIDs
	if len(candidates) == 0 {
		candidates = state.SuggestedAgentIDs
	}
	if len(candidates) == 0 {
		candidates = []string{s.fallbackAgentID()}
	}

	filtered := candidates
	if s.defaults.AgentOpsEnabled {
		available := make([]string, 0, len(candidates))
		for _, id := range candidates {
			if s.breakers.IsAvailable(id) {
				available = append(available, id)
			}
		}
		if len(available) > 0 {
			filtered = available
		}
		// else: every candidate's circuit is open — keep the original list so
		// the turn is never starved of a candidate entirely.
	}

	for _, id := range filtered {
		if s.agentRegistry.Has(id) {
			state.CurrentAgent = id
			return
		}
	}
	state.CurrentAgent = s.fallbackAgentID()
}

func (s *Supervisor) fallbackAgentID() string {
	if s.defaults.FailoverFallbackAgentID != "" {
		return s.defaults.FailoverFallbackAgentID
	}
	return "support"
}

// invoke runs the Agent Runner for current_agent, failing over to the
// fallback agent at most once per turn on error, per spec.md §4.2 step 4.
func (s *Supervisor) invoke(ctx context.Context, state *models.SupervisorState) {
	agentID := state.CurrentAgent
	runCtx := ctx
	var cancel context.CancelFunc
	if s.defaults.AgentInvocationTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.defaults.AgentInvocationTimeout)
		defer cancel()
	}

	out, err := s.runOne(runCtx, agentID, *state)
	if err == nil {
		s.breakers.RecordSuccess(agentID)
		applyRunnerOutput(state, agentID, out)
		return
	}

	s.breakers.RecordFailure(agentID)
	slog.Warn("agent invocation failed", "agent_id", agentID, "session_id", state.SessionID, "error", err)

	fallback := s.fallbackAgentID()
	if s.defaults.FailoverEnabled && agentID != fallback {
		// Failover runs ungated by the fallback agent's own admission pool:
		// this is already a degraded-path retry after current_agent failed,
		// and making it wait on (or fail due to) capacity would turn one
		// agent's outage into a second, unrelated overload.
		out, ferr := s.runOne(runCtx, fallback, *state)
		if ferr == nil {
			s.breakers.RecordSuccess(fallback)
			applyRunnerOutput(state, fallback, out)
			return
		}
		s.breakers.RecordFailure(fallback)
		slog.Warn("failover agent invocation also failed", "agent_id", fallback, "session_id", state.SessionID, "error", ferr)
	}

	state.Messages = append(state.Messages, models.Message{Role: models.RoleAssistant, Content: invocationFailedMessage})
	state.NeedsEscalation = true
	state.EscalationReason = models.EscalationInvocationFailed
}

func (s *Supervisor) runOne(ctx context.Context, agentID string, state models.SupervisorState) (agentrunner.Output, error) {
	runner, ok := s.runners[agentID]
	if !ok {
		return agentrunner.Output{}, fmt.Errorf("supervisor: no runner registered for agent %q", agentID)
	}
	return runner.Run(ctx, agentrunner.Input{
		Messages:  state.Messages,
		SessionID: state.SessionID,
		UserID:    state.UserID,
	})
}

// applyRunnerOutput merges a successful invocation's output into state,
// per spec.md §3's last_rag_context overwrite rule and the agent_requested
// escalation reason.
func applyRunnerOutput(state *models.SupervisorState, agentID string, out agentrunner.Output) {
	state.CurrentAgent = agentID
	state.Messages = append(state.Messages, out.MessagesDelta...)
	state.LastRAGContext = out.LastRAGContext
	state.Resolved = out.Resolved
	if out.NeedsEscalation {
		state.NeedsEscalation = true
		state.EscalationReason = models.EscalationAgentRequested
	}
}

// aggregate scores the latest assistant reply for faithfulness and escalates
// on a below-threshold score, per spec.md §4.2 step 5. An agent-requested
// or invocation-failed escalation is never downgraded or overwritten by this
// step — it only ever adds an escalation, never removes or relabels one.
func (s *Supervisor) aggregate(ctx context.Context, state *models.SupervisorState) {
	if state.EscalationReason != models.EscalationNone {
		return
	}

	reply := lastAssistantContent(state.Messages)
	score := s.scorer.Score(ctx, reply, state.LastRAGContext)
	if score < s.defaults.FaithfulnessThreshold {
		state.NeedsEscalation = true
		state.EscalationReason = models.EscalationLowFaithfulness
	}
}

// escalate builds an EscalationContext and dispatches it to the HITL
// handler inside a supervised boundary: handler failure is logged but
// never fails the turn, per spec.md §4.2 step 7 / §4.7.
func (s *Supervisor) escalate(ctx context.Context, state *models.SupervisorState) {
	ec := hitl.EscalationContext{
		SessionID:        state.SessionID,
		UserID:           state.UserID,
		Reason:           state.EscalationReason,
		LastUserMessage:  lastUserContent(state.Messages),
		LastAgentMessage: lastAssistantContent(state.Messages),
		Metadata:         state.Metadata,
	}

	if err := s.hitlHandler.OnEscalate(ctx, ec); err != nil {
		slog.Error("hitl handler failed", "session_id", state.SessionID, "error", err)
	}

	state.Messages = append(state.Messages, models.Message{Role: models.RoleAssistant, Content: escalationMessage})
}

func lastAssistantContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}

func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
