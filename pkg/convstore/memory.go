package convstore

import (
	"context"
	"sync"

	"github.com/supportbot/dispatcher/pkg/models"
)

// MemoryStore is an in-process conversation store, mirroring the teacher's
// mutex-protected session map.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]models.Message
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string][]models.Message)}
}

func (m *MemoryStore) AppendTurn(_ context.Context, sessionID string, messages []models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.history[sessionID]; !exists {
		m.order = append(m.order, sessionID)
	}
	m.history[sessionID] = append(m.history[sessionID], messages...)
	return nil
}

func (m *MemoryStore) GetHistory(_ context.Context, sessionID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.history[sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}
