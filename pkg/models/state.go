package models

// Escalation reason enum values, per spec.md §3.
const (
	EscalationNone             = "none"
	EscalationLowFaithfulness  = "low_faithfulness"
	EscalationAgentRequested   = "agent_requested"
	EscalationInvocationFailed = "invocation_failed"
)

// SupervisorState is the single checkpointed entity per session.
type SupervisorState struct {
	Messages          []Message
	SessionID         string
	UserID            string
	SuggestedAgentIDs []string
	PlannedAgentIDs   []string
	CurrentAgent      string
	LastRAGContext    string
	NeedsEscalation   bool
	EscalationReason  string
	Resolved          bool
	Metadata          map[string]any
}

// Clone returns a deep-enough copy safe to mutate independently of the
// original (slices and the map are copied; Message values are copied by
// value since Message itself holds no mutable shared state beyond slices
// that are not mutated in place).
func (s SupervisorState) Clone() SupervisorState {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.SuggestedAgentIDs = append([]string(nil), s.SuggestedAgentIDs...)
	out.PlannedAgentIDs = append([]string(nil), s.PlannedAgentIDs...)
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// TrimMessages keeps only the last maxLen entries. maxLen <= 0 is a no-op,
// since a non-positive messages_max_len would otherwise discard everything.
func (s *SupervisorState) TrimMessages(maxLen int) {
	if maxLen <= 0 {
		return
	}
	if len(s.Messages) > maxLen {
		s.Messages = s.Messages[len(s.Messages)-maxLen:]
	}
}
