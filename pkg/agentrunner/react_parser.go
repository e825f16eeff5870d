package agentrunner

import "strings"

// parsedReActResponse is the result of parsing one LLM turn in ReAct format.
type parsedReActResponse struct {
	Thought string

	HasAction   bool
	Action      string
	ActionInput string

	IsFinalAnswer bool
	FinalAnswer   string
}

// parseReActResponse extracts Thought/Action/Action Input/Final Answer
// sections from raw LLM text using a simple line-by-line state machine.
// Tool names here are the flat names registered in the agent's tool set
// (no "server.tool" namespacing), so — unlike a dotted-name format — any
// non-empty Action line is accepted here and left to toolSet.Execute to
// reject as unknown; rejecting early would require duplicating the tool
// name set into the parser.
func parseReActResponse(text string) parsedReActResponse {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var thought, action, actionInput, finalAnswer strings.Builder
	section := ""

lines:
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Thought:"):
			section = "thought"
			writeSectionLine(&thought, line, "Thought:")
		case strings.HasPrefix(line, "Action Input:"):
			section = "action_input"
			writeSectionLine(&actionInput, line, "Action Input:")
		case strings.HasPrefix(line, "Action:"):
			section = "action"
			writeSectionLine(&action, line, "Action:")
		case strings.HasPrefix(line, "Final Answer:"):
			section = "final_answer"
			writeSectionLine(&finalAnswer, line, "Final Answer:")
		case strings.HasPrefix(line, "Observation:"):
			// The model hallucinated its own observation; stop reading further.
			break lines
		case line == "":
			// blank lines don't continue a section
		default:
			switch section {
			case "thought":
				appendLine(&thought, line)
			case "action":
				appendLine(&action, line)
			case "action_input":
				appendLine(&actionInput, line)
			case "final_answer":
				appendLine(&finalAnswer, line)
			}
		}
	}

	parsed := parsedReActResponse{Thought: strings.TrimSpace(thought.String())}

	actionStr := strings.TrimSpace(action.String())
	if actionStr != "" {
		parsed.HasAction = true
		parsed.Action = actionStr
		parsed.ActionInput = strings.TrimSpace(actionInput.String())
		return parsed
	}

	finalStr := strings.TrimSpace(finalAnswer.String())
	if finalStr != "" {
		parsed.IsFinalAnswer = true
		parsed.FinalAnswer = finalStr
		return parsed
	}

	return parsed
}

func writeSectionLine(b *strings.Builder, line, prefix string) {
	content := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if content != "" {
		b.WriteString(content)
	}
}

func appendLine(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(line)
}
