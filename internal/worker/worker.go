// Package worker drives the task step loop: it receives step jobs from the
// queue, runs the decision engine, and schedules follow-up steps. It is also
// the entry point for the lifecycle operations that originate outside the
// loop (start, user input, cancel, retry).
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stewardhq/steward/internal/agent"
	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/queue"
	"github.com/stewardhq/steward/internal/store"
	"github.com/stewardhq/steward/internal/task"
)

// Enqueuer is the queue surface the worker needs. *queue.Queue satisfies it;
// tests substitute a recorder.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskID string, step int, delay time.Duration) error
}

// Worker executes step jobs and manages task lifecycle operations.
type Worker struct {
	store     *store.Store
	agent     *agent.Agent
	enqueuer  Enqueuer
	logger    zerolog.Logger
	stepDelay time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithStepDelay sets the pause between consecutive steps of one task.
func WithStepDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.stepDelay = d
	}
}

// New creates a Worker.
func New(s *store.Store, a *agent.Agent, e Enqueuer, logger zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:     s,
		agent:     a,
		enqueuer:  e,
		logger:    logger,
		stepDelay: constants.DefaultStepDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Perform processes one step job. A nil return acks the job; an error NAKs
// it for queue-level redelivery.
//
// At-least-once delivery means a job can arrive for a task whose step
// already ran, or for a task that was deleted or reached a terminal status
// in the meantime. Those cases resolve to a logged ack, never an error: the
// durable task row is the source of truth and the job is just a hint to look
// at it.
func (w *Worker) Perform(ctx context.Context, job queue.StepJob) error {
	log := w.logger.With().Str("task_id", job.TaskID).Int("step", job.Step).Logger()

	t, err := w.store.GetTask(ctx, job.TaskID)
	if err != nil {
		if errors.Is(err, stewarderrors.ErrTaskNotFound) {
			log.Warn().Msg("step job for missing task dropped")
			return nil
		}
		return err
	}

	res, err := w.agent.ExecuteStep(ctx, t)
	if err != nil {
		if errors.Is(err, stewarderrors.ErrTaskConflict) {
			// Another worker holds this step; it will re-enqueue as needed.
			log.Info().Msg("lost step race, dropping job")
			return nil
		}
		return err
	}

	switch res.Outcome {
	case agent.OutcomeContinue:
		return w.enqueuer.Enqueue(ctx, t.ID, t.StepCount, w.stepDelay)
	case agent.OutcomeCompleted:
		log.Info().Msg("task finished")
	case agent.OutcomeWaitingForInput:
		log.Info().Str("question", res.Question).Msg("task paused for input")
	case agent.OutcomeFailed:
		log.Warn().Err(res.Err).Msg("task step did not proceed")
	}
	return nil
}

// EnqueueTask schedules the first step of a pending task.
func (w *Worker) EnqueueTask(ctx context.Context, t *domain.Task) error {
	if t.Status != constants.TaskStatusPending {
		return fmt.Errorf("%w: cannot enqueue task in status %s",
			stewarderrors.ErrInvalidTransition, t.Status)
	}
	return w.enqueuer.Enqueue(ctx, t.ID, t.StepCount, 0)
}

// ContinueAfterInput records the user's answer on a waiting task and
// schedules the next step.
func (w *Worker) ContinueAfterInput(ctx context.Context, taskID, text string) (*domain.Task, error) {
	t, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := w.agent.HandleUserInput(ctx, t, text); err != nil {
		return nil, err
	}

	if err := w.enqueuer.Enqueue(ctx, t.ID, t.StepCount, 0); err != nil {
		return nil, err
	}
	return t, nil
}

// Cancel moves an active task to cancelled. Cancelling an already-terminal
// task is a no-op that reports the illegal transition.
func (w *Worker) Cancel(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := task.Transition(t, constants.TaskStatusCancelled, "cancelled by user"); err != nil {
		return nil, err
	}
	if err := w.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	// In-flight step jobs for this task resolve as no-ops against the
	// terminal status.
	w.logger.Info().Str("task_id", t.ID).Msg("task cancelled")
	return t, nil
}

// Retry resets a failed task to pending and schedules a fresh step. The
// conversation ledger is preserved, so the next step sees the full history
// including the failure context.
func (w *Worker) Retry(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := w.store.ResetForRetry(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := w.enqueuer.Enqueue(ctx, t.ID, t.StepCount, 0); err != nil {
		return nil, err
	}

	w.logger.Info().Str("task_id", t.ID).Msg("task re-enqueued after retry")
	return t, nil
}
