// Package router implements the Session Router: the entry point that binds
// an inbound message to a session id and runs it through the intent
// classifier, per spec.md §4.1.
package router

import (
	"context"

	"github.com/google/uuid"

	"github.com/supportbot/dispatcher/pkg/intent"
)

// Result is the Session Router's output.
type Result struct {
	SessionID             string
	SuggestedAgentPoolIDs []string
}

// Router binds a message to a session id and classifies its intent.
type Router struct {
	classifier intent.Classifier
}

// New creates a Router backed by classifier.
func New(classifier intent.Classifier) *Router {
	return &Router{classifier: classifier}
}

// Route generates a fresh cryptographically random session id when
// sessionID is empty, classifies message, and returns the classifier's
// ordered agent id list unchanged. userID is accepted for symmetry with the
// rest of the turn pipeline, which threads it through unmodified.
func (r *Router) Route(ctx context.Context, userID, message, sessionID string) Result {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	agentIDs := r.classifier.Classify(ctx, message)

	return Result{SessionID: sessionID, SuggestedAgentPoolIDs: agentIDs}
}
