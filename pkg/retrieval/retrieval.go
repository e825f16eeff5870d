// Package retrieval is the document-retrieval collaborator the agent runner
// calls before building its prompt. Real vector search is a Non-goal per
// spec.md §1 — this package defines the interface and a stub double; a
// production deployment supplies its own Service wrapping an external
// vector store.
package retrieval

import (
	"context"

	"github.com/supportbot/dispatcher/pkg/models"
)

// Service retrieves the top-k most relevant chunks for query, optionally
// narrowed by agent-specific filters.
type Service interface {
	Retrieve(ctx context.Context, query string, topK int, filters map[string]string) ([]models.Chunk, error)
}

// StubRetriever returns canned chunks regardless of query, for tests and
// for deployments that have not wired a real vector store yet.
type StubRetriever struct {
	chunks []models.Chunk
}

// NewStubRetriever creates a StubRetriever returning chunks (truncated to
// topK) on every call.
func NewStubRetriever(chunks []models.Chunk) *StubRetriever {
	return &StubRetriever{chunks: chunks}
}

func (s *StubRetriever) Retrieve(_ context.Context, _ string, topK int, _ map[string]string) ([]models.Chunk, error) {
	if topK <= 0 || topK >= len(s.chunks) {
		out := make([]models.Chunk, len(s.chunks))
		copy(out, s.chunks)
		return out, nil
	}
	out := make([]models.Chunk, topK)
	copy(out, s.chunks[:topK])
	return out, nil
}
