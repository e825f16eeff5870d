package intent

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/supportbot/dispatcher/pkg/llm"
	"github.com/supportbot/dispatcher/pkg/models"
)

// labels are the fixed single-label classification targets.
var labels = []string{"support", "billing", "tech", "escalation"}

// ModelClassifier wraps an llm.Client to perform single-label classification
// over the fixed label set. It falls back to a wrapped KeywordClassifier
// when the LLM call itself fails; a low-confidence or unparseable reply
// yields ["support"] without consulting the fallback.
type ModelClassifier struct {
	client              llm.Client
	model               string
	confidenceThreshold float64
	fallback            *KeywordClassifier
}

// NewModelClassifier creates a model-based classifier backed by client,
// falling back to fallback when the Chat call fails.
func NewModelClassifier(client llm.Client, model string, confidenceThreshold float64, fallback *KeywordClassifier) *ModelClassifier {
	return &ModelClassifier{
		client:              client,
		model:               model,
		confidenceThreshold: confidenceThreshold,
		fallback:            fallback,
	}
}

// Classify asks the LLM to pick one label and a confidence score. The
// expected reply format is "<label> <confidence>" on the last non-empty
// line, e.g. "billing 0.92". A load/inference failure falls back to the
// keyword classifier; a malformed reply or confidence below the threshold
// instead returns the fixed ["support"] label — the model answered, it just
// wasn't sure enough to trust, which is a different failure than the model
// being unreachable.
func (c *ModelClassifier) Classify(ctx context.Context, message string) []string {
	resp, err := c.client.Chat(ctx, llm.ChatRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "Classify the user's message into exactly one of: support, billing, tech, escalation. Reply with only the label and a confidence between 0 and 1, e.g. \"billing 0.92\"."},
			{Role: models.RoleUser, Content: message},
		},
		Model: c.model,
	})
	if err != nil {
		slog.Warn("intent model classification failed, falling back to keyword classifier", "error", err)
		return c.fallback.Classify(ctx, message)
	}

	label, confidence, ok := parseLabelConfidence(resp.Content)
	if !ok || confidence < c.confidenceThreshold {
		return []string{"support"}
	}
	return []string{label}
}

func parseLabelConfidence(content string) (label string, confidence float64, ok bool) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) == 0 {
		return "", 0, false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	fields := strings.Fields(last)
	if len(fields) < 2 {
		return "", 0, false
	}
	candidate := strings.ToLower(fields[0])
	var found bool
	for _, l := range labels {
		if l == candidate {
			found = true
			break
		}
	}
	if !found {
		return "", 0, false
	}
	conf, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, false
	}
	return candidate, conf, true
}
