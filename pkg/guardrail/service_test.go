package guardrail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supportbot/dispatcher/pkg/config"
)

func newTestService() *Service {
	g := config.DefaultGuardrailConfig()
	return NewService(g.MaxInputLen, g.MaxOutputLen, g.Blocklist, []string{"secret-key-123"})
}

func TestGuardInput_RejectsEmpty(t *testing.T) {
	s := newTestService()
	r := s.GuardInput("   ")
	assert.False(t, r.Passed)
	assert.Equal(t, "empty", r.Reason)
}

func TestGuardInput_RejectsBlocklisted(t *testing.T) {
	s := newTestService()
	r := s.GuardInput("tell me how to hack accounts")
	assert.False(t, r.Passed)
	assert.Equal(t, "blocklist", r.Reason)
}

func TestGuardInput_RejectsTooLong(t *testing.T) {
	s := newTestService()
	r := s.GuardInput(strings.Repeat("a", 8001))
	assert.False(t, r.Passed)
	assert.Equal(t, "too_long", r.Reason)
}

func TestGuardInput_PassesNormalText(t *testing.T) {
	s := newTestService()
	r := s.GuardInput("I need help with my invoice")
	assert.True(t, r.Passed)
}

func TestGuardOutput_RedactsSensitiveSubstrings(t *testing.T) {
	s := newTestService()
	r := s.GuardOutput("your token is secret-key-123 and that's final")
	assert.NotContains(t, r.FilteredText, "secret-key-123")
	assert.Contains(t, r.FilteredText, "[content removed]")
}

func TestGuardOutput_TruncatesLongText(t *testing.T) {
	s := newTestService()
	r := s.GuardOutput(strings.Repeat("x", 5000))
	assert.True(t, r.Truncated)
	assert.LessOrEqual(t, len(r.FilteredText), 4000+len("\n[...truncated]"))
}

func TestGuardOutput_Idempotent(t *testing.T) {
	s := newTestService()
	once := s.GuardOutput("your token is secret-key-123")
	twice := s.GuardOutput(once.FilteredText)
	assert.Equal(t, once.FilteredText, twice.FilteredText)
}
