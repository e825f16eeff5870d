// Package checkpoint persists SupervisorState per thread (session) id, per
// spec.md §3/§4.2. The supervisor serializes access per thread id; stores
// only need to be safe for concurrent use.
package checkpoint

import (
	"context"

	"github.com/supportbot/dispatcher/pkg/models"
)

// Store loads and saves SupervisorState keyed by thread (session) id.
type Store interface {
	// Get returns the stored state and true, or a zero state and false if
	// nothing has been checkpointed yet for threadID.
	Get(ctx context.Context, threadID string) (models.SupervisorState, bool, error)
	Put(ctx context.Context, threadID string, state models.SupervisorState) error
	Delete(ctx context.Context, threadID string) error
}
