// Package faithfulness scores (response, retrieved-context) pairs to decide
// whether a reply is grounded, per spec.md §4.5.
package faithfulness

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
)

// Scorer scores a (response, context) pair in [0,1]. Higher is more
// grounded. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, response, retrievedContext string) float64
}

// NullScorer always returns 1.0 — the no-op gate used when scoring is
// disabled.
type NullScorer struct{}

func (NullScorer) Score(_ context.Context, _, _ string) float64 { return 1.0 }

// scoreRegex extracts a standalone integer from the last line of the LLM's
// reply, mirroring the teacher's extractScore technique.
var scoreRegex = regexp.MustCompile(`([+-]?\d+)\s*$`)

const maxExtractionRetries = 3

// outputSchemaPrompt instructs the scoring LLM to end its reply with a
// 0-100 integer on its own line.
const outputSchemaPrompt = `End your response with a single integer from 0 to 100 on its own last line, where 100 means the response is fully grounded in the given context and 0 means it is entirely unsupported.`

// ModelScorer wraps an llm.Client to produce a model-based faithfulness
// score. On any load/inference failure (including repeated failure to
// extract a parseable score) it transparently delegates to NullScorer —
// a scoring failure must never itself escalate or fail the turn.
type ModelScorer struct {
	client llm.Client
	model  string
	null   NullScorer
}

// NewModelScorer creates a model-based scorer backed by client.
func NewModelScorer(client llm.Client, model string) *ModelScorer {
	return &ModelScorer{client: client, model: model}
}

// Score formats the input as "[RESPONSE] ... [CONTEXT] ..." (truncated to
// 500 chars each, per spec.md §4.5), asks the LLM for a 0-100 score ending
// the reply, and returns it divided by 100 as a sigmoid-style [0,1] value.
func (s *ModelScorer) Score(ctx context.Context, response, retrievedContext string) float64 {
	prompt := formatScoringInput(response, retrievedContext)

	messages := []models.Message{
		{Role: models.RoleSystem, Content: "You evaluate whether a support agent's reply is faithfully grounded in the given context. " + outputSchemaPrompt},
		{Role: models.RoleUser, Content: prompt},
	}

	var score float64
	var err error
	for attempt := 0; attempt <= maxExtractionRetries; attempt++ {
		var resp *llm.ChatResponse
		resp, err = s.client.Chat(ctx, llm.ChatRequest{Messages: messages, Model: s.model})
		if err != nil {
			slog.Warn("faithfulness scoring LLM call failed, falling back to null scorer", "error", err)
			return s.null.Score(ctx, response, retrievedContext)
		}

		score, err = extractScore(resp.Content)
		if err == nil {
			return score
		}

		messages = append(messages,
			models.Message{Role: models.RoleAssistant, Content: resp.Content},
			models.Message{Role: models.RoleUser, Content: "Please answer again, making sure to follow the format: " + outputSchemaPrompt},
		)
	}

	slog.Warn("failed to extract faithfulness score after retries, falling back to null scorer", "error", err)
	return s.null.Score(ctx, response, retrievedContext)
}

func formatScoringInput(response, retrievedContext string) string {
	return fmt.Sprintf("[RESPONSE] %s [CONTEXT] %s", truncate(response, 500), truncate(retrievedContext, 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// extractScore parses a 0-100 integer from the last line of text and
// returns it scaled to [0,1].
func extractScore(text string) (float64, error) {
	text = strings.TrimRight(text, "\n\r ")
	if text == "" {
		return 0, fmt.Errorf("empty response text")
	}

	lastLine := text
	if idx := strings.LastIndex(text, "\n"); idx != -1 {
		lastLine = text[idx+1:]
	}

	match := scoreRegex.FindStringSubmatch(lastLine)
	if match == nil {
		return 0, fmt.Errorf("no numeric score found on last line: %q", lastLine)
	}

	raw, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("failed to parse score %q: %w", match[1], err)
	}
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return float64(raw) / 100.0, nil
}
