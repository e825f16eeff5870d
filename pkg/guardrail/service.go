// Package guardrail implements input admission and output sanitization for
// agent turns, per spec.md §4.6.
package guardrail

import (
	"fmt"
	"strings"
)

// InputResult is the outcome of GuardInput.
type InputResult struct {
	Passed       bool
	FilteredText string
	Reason       string
}

// OutputResult is the outcome of GuardOutput.
type OutputResult struct {
	FilteredText string
	Truncated    bool
}

// Service admits input text and sanitizes output text against a compiled
// blocklist/sensitive-pattern table built once at construction, mirroring
// the teacher's masking service's "compile eagerly, apply on every call"
// shape. Safe for concurrent use after construction — nothing here mutates
// after NewService returns.
type Service struct {
	maxInputLen  int
	maxOutputLen int
	blocklist    []string // lowercase, for case-insensitive substring matching
	sensitive    []string // lowercase substrings redacted from output
}

// NewService compiles the blocklist/sensitive tables and returns a ready
// Service.
func NewService(maxInputLen, maxOutputLen int, blocklist, sensitive []string) *Service {
	return &Service{
		maxInputLen:  maxInputLen,
		maxOutputLen: maxOutputLen,
		blocklist:    toLower(blocklist),
		sensitive:    toLower(sensitive),
	}
}

func toLower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// GuardInput rejects empty/whitespace-only text, text containing a
// blocklisted substring (case-insensitive), or text exceeding maxInputLen.
// This is the fail-closed side: a rejection means the agent runner never
// invokes retrieval or the LLM for this turn.
func (s *Service) GuardInput(text string) InputResult {
	if strings.TrimSpace(text) == "" {
		return InputResult{Passed: false, Reason: "empty"}
	}

	lower := strings.ToLower(text)
	for _, blocked := range s.blocklist {
		if strings.Contains(lower, blocked) {
			return InputResult{Passed: false, Reason: "blocklist"}
		}
	}

	if len(text) > s.maxInputLen {
		return InputResult{Passed: false, Reason: "too_long"}
	}

	return InputResult{Passed: true, FilteredText: text}
}

// GuardOutput never rejects: it redacts sensitive substrings (replacing
// every occurrence with "[content removed]", case-insensitive, repeated
// until none remain) and then truncates to maxOutputLen, appending a
// truncation marker if truncation occurred. This is the fail-open side —
// output always reaches the user in some form.
func (s *Service) GuardOutput(text string) OutputResult {
	redacted := redactAll(text, s.sensitive)

	if len(redacted) <= s.maxOutputLen {
		return OutputResult{FilteredText: redacted}
	}

	truncated := redacted[:s.maxOutputLen] + "\n[...truncated]"
	return OutputResult{FilteredText: truncated, Truncated: true}
}

const redactionMarker = "[content removed]"

// redactAll replaces every case-insensitive occurrence of each pattern with
// redactionMarker. Each pattern's scan resumes just past the marker it
// inserted, so it terminates even when a pattern occurs inside the marker
// text itself.
func redactAll(text string, patterns []string) string {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(strings.ToLower(text[from:]), pattern)
			if idx < 0 {
				break
			}
			idx += from
			text = text[:idx] + redactionMarker + text[idx+len(pattern):]
			from = idx + len(redactionMarker)
		}
	}
	return text
}

// String renders an InputResult for logging.
func (r InputResult) String() string {
	return fmt.Sprintf("passed=%v reason=%q", r.Passed, r.Reason)
}
