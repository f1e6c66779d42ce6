// Package agent implements the decision engine: given a task and its
// conversation ledger it builds a prompt, invokes the chat model, parses the
// response into a typed decision, and applies that decision to the task.
//
// Each ExecuteStep call advances the task by exactly one model call and, if
// applicable, one tool call. The worker drives the loop by re-enqueuing a
// job after every Continue outcome.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/task, internal/store, internal/tools, internal/llm, std lib
//   - MUST NOT import: internal/worker, internal/queue, internal/cli
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
	"github.com/stewardhq/steward/internal/store"
	"github.com/stewardhq/steward/internal/task"
	"github.com/stewardhq/steward/internal/tools"
)

// Outcome classifies the result of one step.
type Outcome string

// Step outcomes.
const (
	// OutcomeCompleted means the task reached completed status.
	OutcomeCompleted Outcome = "completed"

	// OutcomeWaitingForInput means the task paused on a question.
	OutcomeWaitingForInput Outcome = "waiting_for_input"

	// OutcomeContinue means a sub-step (tool call) finished and the caller
	// should schedule another step.
	OutcomeContinue Outcome = "continue"

	// OutcomeFailed means the task failed or the step was an illegal no-op.
	OutcomeFailed Outcome = "failed"
)

// StepResult reports what one ExecuteStep invocation did.
type StepResult struct {
	Outcome Outcome

	// Question is set for OutcomeWaitingForInput.
	Question string

	// Result is set for OutcomeCompleted.
	Result domain.Document

	// Err carries the failure reason for OutcomeFailed.
	Err error
}

// Agent is the decision engine. All collaborators are injected at
// construction so tests can substitute fake catalogs and fake model clients
// without process-global mutation.
type Agent struct {
	store        *store.Store
	client       llm.Client
	registry     *tools.Registry
	logger       zerolog.Logger
	maxSteps     int
	modelTimeout time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSteps overrides the per-task step budget.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		a.maxSteps = n
	}
}

// WithModelTimeout bounds each chat completion call.
func WithModelTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.modelTimeout = d
	}
}

// New creates an Agent with the given dependencies.
func New(s *store.Store, client llm.Client, registry *tools.Registry, logger zerolog.Logger, opts ...Option) *Agent {
	a := &Agent{
		store:        s,
		client:       client,
		registry:     registry,
		logger:       logger,
		maxSteps:     constants.DefaultMaxSteps,
		modelTimeout: constants.DefaultModelTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExecuteStep advances the task exactly one step.
//
// A non-nil error means infrastructure failed in a way that left no outcome
// recorded (database write lost, optimistic conflict); the caller should let
// the queue retry. A StepResult with OutcomeFailed and a nil error means the
// outcome IS recorded (or the step was an illegal no-op on a terminal task)
// and the job must be acknowledged.
func (a *Agent) ExecuteStep(ctx context.Context, t *domain.Task) (*StepResult, error) {
	log := a.logger.With().
		Str("task_id", t.ID).
		Str("status", string(t.Status)).
		Int("step", t.StepCount).
		Logger()

	// Gate the step on the state machine. A task mid-loop is already
	// in_progress and needs no transition; anything else must be able to
	// legally reach in_progress.
	if t.Status != constants.TaskStatusInProgress {
		if err := task.ValidateTransition(t, constants.TaskStatusInProgress); err != nil {
			log.Warn().Err(err).Msg("step on non-startable task ignored")
			return &StepResult{Outcome: OutcomeFailed, Err: err}, nil
		}
		if err := task.Transition(t, constants.TaskStatusInProgress, "step started"); err != nil {
			return &StepResult{Outcome: OutcomeFailed, Err: err}, nil
		}
	} else {
		t.UpdatedAt = time.Now().UTC()
	}

	// Claim the step: bumping step_count through the versioned write gives
	// per-task single-flight. A concurrent worker loses the version race
	// and backs off.
	t.StepCount++
	if err := a.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	if t.StepCount > a.maxSteps {
		log.Error().Int("max_steps", a.maxSteps).Msg("step budget exhausted")
		return a.failTask(ctx, t, fmt.Errorf("%w: %d steps", stewarderrors.ErrMaxStepsExceeded, a.maxSteps))
	}

	// Everything from here down follows the rule: a recorded failure beats
	// a crashed step.
	resp, err := a.invokeModel(ctx, t)
	if err != nil {
		return a.failTask(ctx, t, err)
	}

	decision := parseDecision(resp)
	log.Debug().Str("decision", string(decision.Kind)).Msg("model decision parsed")

	switch decision.Kind {
	case DecisionUseTool:
		return a.applyToolDecision(ctx, t, decision)
	case DecisionRequestInput:
		return a.applyInputDecision(ctx, t, decision)
	case DecisionComplete:
		return a.applyCompleteDecision(ctx, t, decision)
	default:
		return a.failTask(ctx, t, fmt.Errorf("unknown decision kind %q", decision.Kind))
	}
}

// HandleUserInput is the sole re-entry point from outside the step loop.
// Only legal while the task is waiting_for_input: it appends the user's text
// to the ledger verbatim and moves the task back to in_progress. Text outside
// the ledger's content limits fails with ErrValidation and leaves the task
// untouched. The caller is responsible for enqueuing the next step.
func (a *Agent) HandleUserInput(ctx context.Context, t *domain.Task, text string) error {
	if t.Status != constants.TaskStatusWaitingForInput {
		return fmt.Errorf("%w: status is %s", stewarderrors.ErrNotWaitingForInput, t.Status)
	}

	if _, err := a.store.AppendMessage(ctx, t.ID, constants.MessageRoleUser, text, nil); err != nil {
		return err
	}

	if err := task.Transition(t, constants.TaskStatusInProgress, "user input received"); err != nil {
		return err
	}
	if err := a.store.SaveTask(ctx, t); err != nil {
		return err
	}

	a.logger.Info().Str("task_id", t.ID).Msg("user input accepted, task resumed")
	return nil
}

// invokeModel builds the prompt and calls the chat client under the bounded
// model timeout. The prompt is [system, task-context] ++ projected ledger.
func (a *Agent) invokeModel(ctx context.Context, t *domain.Task) (*llm.Response, error) {
	history, err := a.store.ProjectForModel(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: buildSystemPrompt(t)})
	if ctxMsg := buildContextMessage(t); ctxMsg != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: ctxMsg})
	}
	messages = append(messages, history...)

	callCtx, cancel := context.WithTimeout(ctx, a.modelTimeout)
	defer cancel()

	return a.client.Complete(callCtx, llm.Request{
		Messages: messages,
		Tools:    a.registry.Specs(),
	})
}

// applyToolDecision dispatches the tool and records the call in the ledger.
// Tool failures are propagated as a task-level failure, never swallowed.
func (a *Agent) applyToolDecision(ctx context.Context, t *domain.Task, d Decision) (*StepResult, error) {
	result, err := a.registry.Execute(ctx, d.Tool, d.ArgsJSON, tools.Context{
		UserID: t.UserID,
		TaskID: t.ID,
	})
	if err != nil {
		return a.failTask(ctx, t, err)
	}

	summary := fmt.Sprintf("Executed tool %s: %s", d.Tool, documentSummary(result))
	metadata := domain.Document{
		"tool": d.Tool,
		"args": json.RawMessage(rawOrEmptyObject(d.ArgsJSON)),
	}
	if result != nil {
		metadata["result"] = result
	}

	if _, err := a.store.AppendMessage(ctx, t.ID, constants.MessageRoleTool, clampContent(summary), metadata); err != nil {
		return a.failTask(ctx, t, err)
	}

	return &StepResult{Outcome: OutcomeContinue}, nil
}

// applyInputDecision appends the agent's question and pauses the task.
func (a *Agent) applyInputDecision(ctx context.Context, t *domain.Task, d Decision) (*StepResult, error) {
	question := clampContent(d.Question)
	if question == "" {
		question = "Could you clarify how you would like me to proceed?"
	}

	if _, err := a.store.AppendMessage(ctx, t.ID, constants.MessageRoleAgent, question, nil); err != nil {
		return a.failTask(ctx, t, err)
	}

	if err := task.Transition(t, constants.TaskStatusWaitingForInput, "agent requested input"); err != nil {
		return a.failTask(ctx, t, err)
	}
	if err := a.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	return &StepResult{Outcome: OutcomeWaitingForInput, Question: question}, nil
}

// applyCompleteDecision finishes the task with the model's result document.
func (a *Agent) applyCompleteDecision(ctx context.Context, t *domain.Task, d Decision) (*StepResult, error) {
	t.Result = d.Result
	if err := task.Transition(t, constants.TaskStatusCompleted, "task completed"); err != nil {
		return a.failTask(ctx, t, err)
	}
	if err := a.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	summary := "Task completed: " + documentSummary(d.Result)
	if _, err := a.store.AppendMessage(ctx, t.ID, constants.MessageRoleAgent, clampContent(summary), nil); err != nil {
		// The terminal status is already durable; a lost summary message is
		// logged, not escalated.
		a.logger.Warn().Err(err).Str("task_id", t.ID).Msg("failed to append completion message")
	}

	a.logger.Info().Str("task_id", t.ID).Msg("task completed")
	return &StepResult{Outcome: OutcomeCompleted, Result: d.Result}, nil
}

// failTask records a step failure: status → failed with the reason in the
// error field. If the current status cannot legally reach failed the task is
// left as-is rather than corrupting state, and the failure is only logged.
func (a *Agent) failTask(ctx context.Context, t *domain.Task, reason error) (*StepResult, error) {
	log := a.logger.With().Str("task_id", t.ID).Logger()
	log.Error().Err(reason).Msg("step failed")

	t.Error = reason.Error()
	if err := task.Transition(t, constants.TaskStatusFailed, "step failed"); err != nil {
		log.Error().Err(err).Msg("cannot record failure, leaving task untouched")
		return &StepResult{Outcome: OutcomeFailed, Err: reason}, nil
	}
	if err := a.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	return &StepResult{Outcome: OutcomeFailed, Err: reason}, nil
}

// documentSummary renders a result document compactly for ledger messages.
func documentSummary(doc domain.Document) string {
	if len(doc) == 0 {
		return "(no result)"
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "(unrenderable result)"
	}
	return string(data)
}

// rawOrEmptyObject normalizes possibly-empty argument JSON for metadata.
func rawOrEmptyObject(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}

// clampContent truncates engine-generated text to the ledger's content
// limit. The limit counts characters, and truncation never splits a rune.
func clampContent(s string) string {
	if len(s) <= constants.MessageContentMaxLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= constants.MessageContentMaxLength {
		return s
	}
	return string(runes[:constants.MessageContentMaxLength])
}
