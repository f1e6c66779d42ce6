package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
	"github.com/stewardhq/steward/internal/store"
	"github.com/stewardhq/steward/internal/tools"
)

// scriptedClient replays canned responses in order and records the requests
// it saw.
type scriptedClient struct {
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		panic("scripted client ran out of responses")
	}
	return c.responses[i], nil
}

func textResponse(content string) *llm.Response {
	return &llm.Response{Content: content, StopReason: "end_turn"}
}

func toolResponse(name, argsJSON string) *llm.Response {
	return &llm.Response{
		StopReason: "tool_use",
		ToolCalls:  []llm.ToolCall{{ID: "call-1", Name: name, ArgumentsJSON: argsJSON}},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "agent.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := store.New(db, zerolog.Nop())
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func newTestAgent(t *testing.T, s *store.Store, client llm.Client, opts ...Option) (*Agent, *tools.Registry) {
	t.Helper()

	registry := tools.NewRegistry(zerolog.Nop(), tools.WithToolTimeout(time.Second))
	a := New(s, client, registry, zerolog.Nop(), opts...)
	return a, registry
}

func createTask(t *testing.T, s *store.Store) *domain.Task {
	t.Helper()

	tk, err := s.CreateTask(context.Background(), store.CreateTaskParams{
		UserID:   "user-1",
		Title:    "Schedule demo with Dana",
		TaskType: constants.TaskTypeScheduleMeeting,
		Context:  domain.Document{"attendee": "dana@acme.test"},
	})
	require.NoError(t, err)
	return tk
}

func TestExecuteStep_Complete(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		textResponse(`{"action": "complete", "result": {"event_id": "evt-9", "scheduled_for": "2026-09-01T15:00:00Z"}}`),
	}}
	a, _ := newTestAgent(t, s, client)
	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "evt-9", res.Result["event_id"])

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCompleted, stored.Status)
	assert.Equal(t, "evt-9", stored.Result["event_id"])
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 1, stored.StepCount)

	// The completion summary lands in the ledger as an agent message.
	msgs, err := s.ListMessages(context.Background(), tk.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, constants.MessageRoleAgent, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "evt-9")
}

func TestExecuteStep_RequestInput(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		textResponse(`{"action": "request_input", "question": "What time works for you?"}`),
	}}
	a, _ := newTestAgent(t, s, client)
	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaitingForInput, res.Outcome)
	assert.Equal(t, "What time works for you?", res.Question)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusWaitingForInput, stored.Status)
	assert.Nil(t, stored.CompletedAt)

	msgs, err := s.ListMessages(context.Background(), tk.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, constants.MessageRoleAgent, msgs[0].Role)
	assert.Equal(t, "What time works for you?", msgs[0].Content)
}

func TestExecuteStep_ToolCall(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("send_email", `{"to": "dana@acme.test", "subject": "Demo"}`),
	}}
	a, registry := newTestAgent(t, s, client)

	var gotArgs map[string]any
	var gotCtx tools.Context
	registry.Register(llm.ToolSpec{Name: "send_email", Description: "Send an email"},
		func(_ context.Context, args map[string]any, tc tools.Context) (domain.Document, error) {
			gotArgs = args
			gotCtx = tc
			return domain.Document{"message_id": "m-42"}, nil
		})

	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, res.Outcome)

	assert.Equal(t, "dana@acme.test", gotArgs["to"])
	assert.Equal(t, tk.ID, gotCtx.TaskID)
	assert.Equal(t, "user-1", gotCtx.UserID)

	// Task stays in_progress; the tool call is recorded in the ledger.
	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusInProgress, stored.Status)

	msgs, err := s.ListMessages(context.Background(), tk.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, constants.MessageRoleTool, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "send_email")
	assert.Equal(t, "send_email", msgs[0].Metadata["tool"])
}

func TestExecuteStep_ToolFailure(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("send_email", `{}`),
	}}
	a, registry := newTestAgent(t, s, client)
	registry.Register(llm.ToolSpec{Name: "send_email"},
		func(context.Context, map[string]any, tools.Context) (domain.Document, error) {
			return nil, errors.New("smtp unreachable")
		})

	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, stewarderrors.ErrToolExecutionFailed)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "smtp unreachable")
	require.NotNil(t, stored.CompletedAt)
}

func TestExecuteStep_UnknownToolFailsTask(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("teleport", `{}`),
	}}
	a, _ := newTestAgent(t, s, client)
	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, stewarderrors.ErrUnknownTool)
}

func TestExecuteStep_ModelErrorFailsTask(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{errs: []error{errors.New("model unavailable")}}
	a, _ := newTestAgent(t, s, client)
	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "model unavailable")
}

func TestExecuteStep_MalformedReplyDegradesToQuestion(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		textResponse("I think we should probably talk to Dana first?"),
	}}
	a, _ := newTestAgent(t, s, client)
	tk := createTask(t, s)

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaitingForInput, res.Outcome)
	assert.Equal(t, "I think we should probably talk to Dana first?", res.Question)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusWaitingForInput, stored.Status)
}

func TestExecuteStep_TerminalTaskIsNoOp(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{}
	a, _ := newTestAgent(t, s, client)

	tk := createTask(t, s)
	tk.Status = constants.TaskStatusCancelled
	now := time.Now().UTC()
	tk.CompletedAt = &now
	require.NoError(t, s.SaveTask(context.Background(), tk))

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, stewarderrors.ErrInvalidTransition)

	// The model was never consulted and the task row is untouched.
	assert.Zero(t, client.calls)
	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCancelled, stored.Status)
	assert.Equal(t, 0, stored.StepCount)
}

func TestExecuteStep_ResumesMidLoopTask(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		textResponse(`{"action": "complete", "result": {}}`),
	}}
	a, _ := newTestAgent(t, s, client)

	tk := createTask(t, s)
	tk.Status = constants.TaskStatusInProgress
	tk.StepCount = 2
	require.NoError(t, s.SaveTask(context.Background(), tk))

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.StepCount)
}

func TestExecuteStep_StepBudget(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{}
	a, _ := newTestAgent(t, s, client, WithMaxSteps(2))

	tk := createTask(t, s)
	tk.Status = constants.TaskStatusInProgress
	tk.StepCount = 2
	require.NoError(t, s.SaveTask(context.Background(), tk))

	res, err := a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, stewarderrors.ErrMaxStepsExceeded)
	assert.Zero(t, client.calls)

	stored, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, stored.Status)
}

func TestExecuteStep_StaleVersionReturnsConflict(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{}
	a, _ := newTestAgent(t, s, client)

	tk := createTask(t, s)

	// Another worker advances the row after our read.
	other, err := s.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	other.Status = constants.TaskStatusInProgress
	require.NoError(t, s.SaveTask(context.Background(), other))

	_, err = a.ExecuteStep(context.Background(), tk)
	assert.ErrorIs(t, err, stewarderrors.ErrTaskConflict)
	assert.Zero(t, client.calls)
}

func TestExecuteStep_PromptIncludesLedgerAndContext(t *testing.T) {
	s := newTestStore(t)
	client := &scriptedClient{responses: []*llm.Response{
		textResponse(`{"action": "complete", "result": {}}`),
	}}
	a, registry := newTestAgent(t, s, client)
	registry.Register(llm.ToolSpec{Name: "check_calendar"},
		func(context.Context, map[string]any, tools.Context) (domain.Document, error) {
			return nil, nil
		})

	tk := createTask(t, s)
	_, err := s.AppendMessage(context.Background(), tk.ID, constants.MessageRoleUser, "make it Tuesday", nil)
	require.NoError(t, err)

	_, err = a.ExecuteStep(context.Background(), tk)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]

	require.GreaterOrEqual(t, len(req.Messages), 3)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Schedule demo with Dana")
	assert.Contains(t, req.Messages[1].Content, "dana@acme.test")
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "make it Tuesday", last.Content)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "check_calendar", req.Tools[0].Name)
}

func TestHandleUserInput(t *testing.T) {
	s := newTestStore(t)
	a, _ := newTestAgent(t, s, &scriptedClient{})
	ctx := context.Background()

	t.Run("resumes waiting task", func(t *testing.T) {
		tk := createTask(t, s)
		tk.Status = constants.TaskStatusInProgress
		require.NoError(t, s.SaveTask(ctx, tk))
		tk.Status = constants.TaskStatusWaitingForInput
		require.NoError(t, s.SaveTask(ctx, tk))

		require.NoError(t, a.HandleUserInput(ctx, tk, "3pm works"))

		stored, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusInProgress, stored.Status)

		msgs, err := s.ListMessages(ctx, tk.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, constants.MessageRoleUser, msgs[0].Role)
		assert.Equal(t, "3pm works", msgs[0].Content)
	})

	t.Run("rejects input on non-waiting task", func(t *testing.T) {
		tk := createTask(t, s)

		err := a.HandleUserInput(ctx, tk, "hello?")
		assert.ErrorIs(t, err, stewarderrors.ErrNotWaitingForInput)

		// No message recorded, status unchanged.
		msgs, err := s.ListMessages(ctx, tk.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		stored, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusPending, stored.Status)
	})

	t.Run("rejects oversized input without truncating", func(t *testing.T) {
		tk := createTask(t, s)
		tk.Status = constants.TaskStatusInProgress
		require.NoError(t, s.SaveTask(ctx, tk))
		tk.Status = constants.TaskStatusWaitingForInput
		require.NoError(t, s.SaveTask(ctx, tk))

		err := a.HandleUserInput(ctx, tk, strings.Repeat("x", constants.MessageContentMaxLength+1))
		assert.ErrorIs(t, err, stewarderrors.ErrValidation)

		// Nothing appended, task still waiting.
		msgs, err := s.ListMessages(ctx, tk.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		stored, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusWaitingForInput, stored.Status)
	})

	t.Run("stores input at the limit verbatim", func(t *testing.T) {
		tk := createTask(t, s)
		tk.Status = constants.TaskStatusInProgress
		require.NoError(t, s.SaveTask(ctx, tk))
		tk.Status = constants.TaskStatusWaitingForInput
		require.NoError(t, s.SaveTask(ctx, tk))

		text := strings.Repeat("y", constants.MessageContentMaxLength)
		require.NoError(t, a.HandleUserInput(ctx, tk, text))

		msgs, err := s.ListMessages(ctx, tk.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, text, msgs[0].Content)
	})
}

func TestClampContent(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		assert.Equal(t, "hello", clampContent("hello"))
	})

	t.Run("multibyte text at the character limit passes through", func(t *testing.T) {
		s := strings.Repeat("é", constants.MessageContentMaxLength)
		assert.Equal(t, s, clampContent(s))
	})

	t.Run("truncation never splits a rune", func(t *testing.T) {
		s := strings.Repeat("x", constants.MessageContentMaxLength-1) +
			strings.Repeat("é", 10)
		got := clampContent(s)

		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, constants.MessageContentMaxLength, utf8.RuneCountInString(got))
		assert.Equal(t, s[:len(got)], got)
	})
}
