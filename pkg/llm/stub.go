package llm

import "context"

// StubClient returns a scripted sequence of responses, one per call, and is
// used by tests that exercise the agent runner's tool loop / ReAct loop
// without a real network call. The last response repeats once the script is
// exhausted.
type StubClient struct {
	responses []*ChatResponse
	calls     int
}

// NewStubClient creates a stub that returns responses in order.
func NewStubClient(responses ...*ChatResponse) *StubClient {
	return &StubClient{responses: responses}
}

func (s *StubClient) Chat(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	idx := s.calls
	s.calls++
	if len(s.responses) == 0 {
		return &ChatResponse{Content: ""}, nil
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

// Calls reports how many times Chat has been invoked.
func (s *StubClient) Calls() int { return s.calls }
