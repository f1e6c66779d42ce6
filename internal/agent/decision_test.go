package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/llm"
)

func TestParseDecision_StructuredToolCallWins(t *testing.T) {
	resp := &llm.Response{
		// Content that would parse as a complete decision is ignored when a
		// structured tool call is present.
		Content:   `{"action": "complete", "result": {}}`,
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "send_email", ArgumentsJSON: `{"to": "a@b.test"}`}},
	}

	d := parseDecision(resp)
	assert.Equal(t, DecisionUseTool, d.Kind)
	assert.Equal(t, "send_email", d.Tool)
	assert.JSONEq(t, `{"to": "a@b.test"}`, d.ArgsJSON)
}

func TestParseDecision_TextProtocol(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Decision
	}{
		{
			name:    "use_tool",
			content: `{"action": "use_tool", "tool": "check_calendar", "args": {"day": "tuesday"}}`,
			want:    Decision{Kind: DecisionUseTool, Tool: "check_calendar", ArgsJSON: `{"day": "tuesday"}`},
		},
		{
			name:    "use_tool without args defaults to empty object",
			content: `{"action": "use_tool", "tool": "check_calendar"}`,
			want:    Decision{Kind: DecisionUseTool, Tool: "check_calendar", ArgsJSON: `{}`},
		},
		{
			name:    "request_input",
			content: `{"action": "request_input", "question": "Which Dana?"}`,
			want:    Decision{Kind: DecisionRequestInput, Question: "Which Dana?"},
		},
		{
			name:    "complete with result",
			content: `{"action": "complete", "result": {"ok": true}}`,
			want:    Decision{Kind: DecisionComplete, Result: domain.Document{"ok": true}},
		},
		{
			name:    "complete without result defaults to empty document",
			content: `{"action": "complete"}`,
			want:    Decision{Kind: DecisionComplete, Result: domain.Document{}},
		},
		{
			name: "json inside markdown fence",
			content: "Here is my decision:\n```json\n" +
				`{"action": "request_input", "question": "What time?"}` + "\n```",
			want: Decision{Kind: DecisionRequestInput, Question: "What time?"},
		},
		{
			name: "trailing comma and comment tolerated",
			content: `{
				"action": "request_input", // asking the user
				"question": "Morning or afternoon?",
			}`,
			want: Decision{Kind: DecisionRequestInput, Question: "Morning or afternoon?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseDecision(&llm.Response{Content: tt.content})
			require.Equal(t, tt.want.Kind, d.Kind)
			switch tt.want.Kind {
			case DecisionUseTool:
				assert.Equal(t, tt.want.Tool, d.Tool)
				assert.JSONEq(t, tt.want.ArgsJSON, d.ArgsJSON)
			case DecisionRequestInput:
				assert.Equal(t, tt.want.Question, d.Question)
			case DecisionComplete:
				assert.Equal(t, tt.want.Result, d.Result)
			}
		})
	}
}

func TestParseDecision_DegradesToRequestInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain prose", content: "  I'm not sure what to do next.  "},
		{name: "broken json", content: `{"action": "use_tool", "tool":`},
		{name: "unknown action", content: `{"action": "dance"}`},
		{name: "use_tool missing tool", content: `{"action": "use_tool"}`},
		{name: "request_input missing question", content: `{"action": "request_input"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseDecision(&llm.Response{Content: tt.content})
			assert.Equal(t, DecisionRequestInput, d.Kind)
			// The raw reply surfaces to the user as the question, trimmed.
			assert.NotEmpty(t, d.Question)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare object",
			content: `{"a": 1}`,
			want:    `{"a": 1}`,
		},
		{
			name:    "fenced block",
			content: "```json\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "url in string survives comment stripping",
			content: `{"link": "https://example.com/x"} // note`,
			want:    `{"link": "https://example.com/x"}`,
		},
		{
			name:    "no object",
			content: "just words",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.content))
		})
	}
}
