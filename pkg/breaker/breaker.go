// Package breaker implements the per-agent reactive circuit breaker of
// spec.md §4.3: closed/open/half_open state transitions driven only by
// invoke outcomes, never by background probing.
package breaker

import (
	"sync"
	"time"
)

// Status is one of the three circuit states.
type Status string

const (
	StatusClosed   Status = "closed"
	StatusOpen     Status = "open"
	StatusHalfOpen Status = "half_open"
)

// CircuitState is the externally observable snapshot of one agent's circuit.
type CircuitState struct {
	Status              Status
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// circuit is the internal, mutex-guarded per-agent state.
type circuit struct {
	mu                  sync.Mutex
	status              Status
	consecutiveFailures int
	openedAt            time.Time
}

// Registry holds one circuit per agent id, created lazily on first
// reference. Cross-agent updates are independent — each circuit carries
// its own mutex so a failure recorded for "billing" never blocks a read for
// "tech".
type Registry struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex // guards the circuits map itself, not circuit contents
	circuits map[string]*circuit
}

// NewRegistry creates a circuit breaker registry with the given failure
// threshold and open-state cooldown.
func NewRegistry(threshold int, cooldown time.Duration) *Registry {
	return &Registry{
		threshold: threshold,
		cooldown:  cooldown,
		circuits:  make(map[string]*circuit),
	}
}

func (r *Registry) get(agentID string) *circuit {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[agentID]
	if !ok {
		c = &circuit{status: StatusClosed}
		r.circuits[agentID] = c
	}
	return c
}

// IsAvailable reports whether agentID may be invoked: true for closed and
// half_open, false for open. If the circuit is open and the cooldown has
// elapsed, it transitions to half_open before returning — the half_open
// transition is observed lazily on read, exactly as spec.md §4.3 specifies.
func (r *Registry) IsAvailable(agentID string) bool {
	c := r.get(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusOpen && time.Since(c.openedAt) >= r.cooldown {
		c.status = StatusHalfOpen
	}
	return c.status != StatusOpen
}

// State returns a snapshot of agentID's circuit state, applying the same
// lazy open->half_open transition as IsAvailable.
func (r *Registry) State(agentID string) CircuitState {
	c := r.get(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusOpen && time.Since(c.openedAt) >= r.cooldown {
		c.status = StatusHalfOpen
	}
	return CircuitState{Status: c.status, ConsecutiveFailures: c.consecutiveFailures, OpenedAt: c.openedAt}
}

// RecordSuccess resets the failure count and moves half_open -> closed (a
// closed circuit simply stays closed with its counter reset).
func (r *Registry) RecordSuccess(agentID string) {
	c := r.get(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	c.status = StatusClosed
}

// RecordFailure increments the failure count. From closed, threshold
// consecutive failures opens the circuit. From half_open, any single
// failure reopens it immediately, with the count pinned at threshold.
func (r *Registry) RecordFailure(agentID string) {
	c := r.get(agentID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusHalfOpen:
		c.status = StatusOpen
		c.openedAt = time.Now()
		c.consecutiveFailures = r.threshold
	case StatusClosed:
		c.consecutiveFailures++
		if c.consecutiveFailures >= r.threshold {
			c.status = StatusOpen
			c.openedAt = time.Now()
		}
	case StatusOpen:
		// Already open; a failure here (e.g. a late-arriving concurrent
		// invoke) just refreshes the failure count, not the timer — the
		// cooldown clock started at the original trip.
		c.consecutiveFailures++
	}
}
