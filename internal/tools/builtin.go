package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
)

// RegisterBuiltins installs the stock tool set. These handlers simulate
// their side effects; deployments replace them by re-registering the same
// names with real integrations.
func RegisterBuiltins(r *Registry) {
	r.Register(llm.ToolSpec{
		Name:        "send_email",
		Description: "Send an email on the user's behalf",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "description": "Recipient address"},
				"subject": map[string]any{"type": "string", "description": "Subject line"},
				"body":    map[string]any{"type": "string", "description": "Message body"},
			},
			"required": []string{"to", "subject", "body"},
		},
	}, sendEmail)

	r.Register(llm.ToolSpec{
		Name:        "check_calendar",
		Description: "List the user's calendar availability for a date",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{"type": "string", "description": "Date to check, YYYY-MM-DD"},
			},
			"required": []string{"date"},
		},
	}, checkCalendar)

	r.Register(llm.ToolSpec{
		Name:        "create_event",
		Description: "Create a calendar event",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":     map[string]any{"type": "string", "description": "Event title"},
				"start":     map[string]any{"type": "string", "description": "Start time, RFC 3339"},
				"attendees": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"title", "start"},
		},
	}, createEvent)

	r.Register(llm.ToolSpec{
		Name:        "web_search",
		Description: "Search the web and return result snippets",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
			},
			"required": []string{"query"},
		},
	}, webSearch)
}

func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing required argument %q", stewarderrors.ErrValidation, key)
	}
	return v, nil
}

func sendEmail(_ context.Context, args map[string]any, tc Context) (domain.Document, error) {
	to, err := requireString(args, "to")
	if err != nil {
		return nil, err
	}
	subject, err := requireString(args, "subject")
	if err != nil {
		return nil, err
	}
	if _, err := requireString(args, "body"); err != nil {
		return nil, err
	}

	return domain.Document{
		"message_id": uuid.NewString(),
		"to":         to,
		"subject":    subject,
		"sent_by":    tc.UserID,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func checkCalendar(_ context.Context, args map[string]any, _ Context) (domain.Document, error) {
	date, err := requireString(args, "date")
	if err != nil {
		return nil, err
	}

	return domain.Document{
		"date": date,
		"free_slots": []any{
			map[string]any{"start": "09:00", "end": "10:30"},
			map[string]any{"start": "14:00", "end": "16:00"},
		},
	}, nil
}

func createEvent(_ context.Context, args map[string]any, _ Context) (domain.Document, error) {
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	start, err := requireString(args, "start")
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse(time.RFC3339, start); err != nil {
		return nil, fmt.Errorf("%w: start must be RFC 3339: %s", stewarderrors.ErrValidation, start)
	}

	return domain.Document{
		"event_id": uuid.NewString(),
		"title":    title,
		"start":    start,
	}, nil
}

func webSearch(_ context.Context, args map[string]any, _ Context) (domain.Document, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	return domain.Document{
		"query":   query,
		"results": []any{},
		"note":    "web search is not connected in this deployment",
	}, nil
}
