package agent

import (
	"encoding/json"
	"strings"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/llm"
)

// DecisionKind classifies the model's next-step output.
type DecisionKind string

// The three decision branches.
const (
	// DecisionUseTool runs one tool and continues the step loop.
	DecisionUseTool DecisionKind = "use_tool"

	// DecisionRequestInput pauses the task until the user answers.
	DecisionRequestInput DecisionKind = "request_input"

	// DecisionComplete finishes the task with a result document.
	DecisionComplete DecisionKind = "complete"
)

// Decision is the typed interpretation of one model response.
type Decision struct {
	Kind DecisionKind

	// Tool and ArgsJSON are set for DecisionUseTool.
	Tool     string
	ArgsJSON string

	// Question is set for DecisionRequestInput.
	Question string

	// Result is set for DecisionComplete.
	Result domain.Document
}

// decisionPayload is the free-text JSON protocol the model is prompted to
// follow when it does not use structured tool calling.
type decisionPayload struct {
	Action   string          `json:"action"`
	Tool     string          `json:"tool"`
	Args     json.RawMessage `json:"args"`
	Question string          `json:"question"`
	Result   domain.Document `json:"result"`
}

// parseDecision maps a model response onto a Decision via a three-tier
// fallback chain:
//
//  1. A structured tool invocation wins outright and bypasses text parsing.
//  2. Otherwise the text is parsed as tolerant JSON {action: ...}.
//  3. Anything unparseable degrades to a question to the user. A malformed
//     model reply must surface as a question, never as a task failure.
func parseDecision(resp *llm.Response) Decision {
	if len(resp.ToolCalls) > 0 {
		call := resp.ToolCalls[0]
		return Decision{
			Kind:     DecisionUseTool,
			Tool:     call.Name,
			ArgsJSON: call.ArgumentsJSON,
		}
	}

	if d, ok := parseTextDecision(resp.Content); ok {
		return d
	}

	return Decision{
		Kind:     DecisionRequestInput,
		Question: strings.TrimSpace(resp.Content),
	}
}

// parseTextDecision attempts tier 2: the {action: ...} JSON protocol.
func parseTextDecision(content string) (Decision, bool) {
	raw := extractJSON(content)
	if raw == "" {
		return Decision{}, false
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Decision{}, false
	}

	switch payload.Action {
	case string(DecisionUseTool):
		if payload.Tool == "" {
			return Decision{}, false
		}
		args := "{}"
		if len(payload.Args) > 0 {
			args = string(payload.Args)
		}
		return Decision{Kind: DecisionUseTool, Tool: payload.Tool, ArgsJSON: args}, true

	case string(DecisionRequestInput):
		if payload.Question == "" {
			return Decision{}, false
		}
		return Decision{Kind: DecisionRequestInput, Question: payload.Question}, true

	case string(DecisionComplete):
		result := payload.Result
		if result == nil {
			result = domain.Document{}
		}
		return Decision{Kind: DecisionComplete, Result: result}, true

	default:
		return Decision{}, false
	}
}
