package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
)

// taskTypeHints adds a short focus line per task type. This is the only
// place task_type influences behavior: it is a prompt hint, not a dispatch
// key, and unknown types simply get no hint.
//
//nolint:gochecknoglobals // Read-only lookup table
var taskTypeHints = map[constants.TaskType]string{
	constants.TaskTypeScheduleMeeting: "Focus on finding a time that works for all attendees and getting the event on the calendar.",
	constants.TaskTypeComposeEmail:    "Focus on drafting and sending clear, well-targeted email on the user's behalf.",
	constants.TaskTypeResearch:        "Focus on gathering relevant information and summarizing findings with sources.",
	constants.TaskTypeDataAnalysis:    "Focus on examining the available data and reporting concrete conclusions.",
}

// buildSystemPrompt parameterizes the engine's standing instructions by the
// task at hand.
func buildSystemPrompt(t *domain.Task) string {
	var sb strings.Builder

	sb.WriteString("You are Steward, an assistant that completes multi-step tasks for a user.\n")
	sb.WriteString("You advance the task exactly one step per reply.\n\n")
	sb.WriteString(fmt.Sprintf("Task type: %s\n", t.TaskType))
	sb.WriteString(fmt.Sprintf("Task title: %s\n", t.Title))
	if t.Description != "" {
		sb.WriteString(fmt.Sprintf("Task description: %s\n", t.Description))
	}
	if hint, ok := taskTypeHints[t.TaskType]; ok {
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	sb.WriteString("\nEach reply must do exactly one of the following:\n")
	sb.WriteString("1. Invoke one of the provided tools when the task needs an action taken.\n")
	sb.WriteString("2. Ask the user a question when you are missing information, by replying with JSON: ")
	sb.WriteString(`{"action": "request_input", "question": "..."}` + "\n")
	sb.WriteString("3. Finish the task when it is done, by replying with JSON: ")
	sb.WriteString(`{"action": "complete", "result": {...}}` + "\n")
	sb.WriteString("Reply with the JSON object only, no surrounding prose.\n")

	return sb.String()
}

// buildContextMessage renders the task's working context document for the
// model. Returns "" when there is no context to show.
func buildContextMessage(t *domain.Task) string {
	if len(t.Context) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(t.Context, "", "  ")
	if err != nil {
		return ""
	}
	return "Current task context:\n" + string(data)
}
