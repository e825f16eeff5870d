package checkpoint

import (
	"context"
	"sync"

	"github.com/supportbot/dispatcher/pkg/models"
)

// MemoryStore is an in-process checkpoint store, mirroring the teacher's
// mutex-protected session map. Suitable for single-instance deployments and
// tests; state is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	state map[string]models.SupervisorState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: make(map[string]models.SupervisorState)}
}

func (m *MemoryStore) Get(_ context.Context, threadID string) (models.SupervisorState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.state[threadID]
	if !ok {
		return models.SupervisorState{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStore) Put(_ context.Context, threadID string, state models.SupervisorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state[threadID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.state, threadID)
	return nil
}
