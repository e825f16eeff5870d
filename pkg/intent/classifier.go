// Package intent maps user text to an ordered list of candidate agent ids.
package intent

import (
	"context"
	"strings"

	"github.com/supportbot/dispatcher/pkg/config"
)

// Classifier maps a user message to an ordered list of candidate agent ids.
// Implementations must be safe for concurrent use after construction —
// callers treat a Classifier as immutable, shared state.
type Classifier interface {
	Classify(ctx context.Context, message string) []string
}

// KeywordClassifier implements the canonical keyword table of spec.md §4.1:
// lowercase the input, walk a fixed ordered table of (keywords, agent_id)
// rows, and append the row's agent id whenever any of its keywords is a
// substring of the message. Every matching row contributes — this is not a
// first-match-wins dispatch table.
type KeywordClassifier struct {
	table []config.IntentRule
}

// NewKeywordClassifier builds a classifier over the given ordered rule
// table. Pass config.BuiltinIntentTable() for the canonical table.
func NewKeywordClassifier(table []config.IntentRule) *KeywordClassifier {
	return &KeywordClassifier{table: table}
}

// Classify returns every agent id whose row matched, in table order,
// falling back to []string{"support"} when nothing matched.
func (c *KeywordClassifier) Classify(_ context.Context, message string) []string {
	lower := strings.ToLower(message)

	var matches []string
	for _, rule := range c.table {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, rule.AgentID)
				break
			}
		}
	}

	if len(matches) == 0 {
		return []string{"support"}
	}
	return matches
}
