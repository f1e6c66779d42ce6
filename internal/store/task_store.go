package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
)

// CreateTaskParams are the caller-supplied fields for a new task.
type CreateTaskParams struct {
	UserID        string
	InstructionID *string
	Title         string
	Description   string
	TaskType      constants.TaskType
	Context       domain.Document
}

// CreateTask validates and persists a new task in pending status.
// Status is never caller-supplied: every task starts pending.
func (s *Store) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	if err := validateCreateTask(params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.Task{
		ID:            uuid.NewString(),
		UserID:        params.UserID,
		InstructionID: params.InstructionID,
		Title:         strings.TrimSpace(params.Title),
		Description:   params.Description,
		TaskType:      params.TaskType,
		Status:        constants.TaskStatusPending,
		Context:       params.Context,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", params.UserID).Msg("task create failed")
		return nil, stewarderrors.Wrap(err, "create task")
	}

	s.logger.Info().
		Str("task_id", t.ID).
		Str("user_id", t.UserID).
		Str("task_type", t.TaskType.String()).
		Msg("task created")

	return t, nil
}

// GetTask loads one task by ID. Returns ErrTaskNotFound if it does not exist.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var t domain.Task
	err := s.db.WithContext(ctx).First(&t, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", stewarderrors.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, stewarderrors.Wrap(err, "get task")
	}
	return &t, nil
}

// ListTasks returns a user's tasks, newest first, optionally filtered to the
// given statuses.
func (s *Store) ListTasks(ctx context.Context, userID string, statuses ...constants.TaskStatus) ([]domain.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var tasks []domain.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, stewarderrors.Wrap(err, "list tasks")
	}
	return tasks, nil
}

// SaveTask persists a task whose status was changed in memory via the state
// machine. The write is conditional on the version the caller read; if the
// row moved underneath, ErrTaskConflict is returned and the caller should
// reload. On success the task's version is advanced in place.
func (s *Store) SaveTask(ctx context.Context, t *domain.Task) error {
	readVersion := t.Version

	result := s.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ? AND version = ?", t.ID, readVersion).
		Updates(map[string]any{
			"status":       t.Status,
			"context":      t.Context,
			"result":       t.Result,
			"error":        t.Error,
			"step_count":   t.StepCount,
			"transitions":  t.Transitions,
			"updated_at":   t.UpdatedAt,
			"completed_at": t.CompletedAt,
			"version":      readVersion + 1,
		})
	if result.Error != nil {
		return stewarderrors.Wrap(result.Error, "save task")
	}
	if result.RowsAffected == 0 {
		// Either the task is gone or another writer advanced the version.
		if _, err := s.GetTask(ctx, t.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", stewarderrors.ErrTaskConflict, t.ID)
	}

	t.Version = readVersion + 1
	return nil
}

// ResetForRetry moves a failed task back to pending so it can be re-enqueued.
// This is the single deliberate bypass of the transition table: failed is
// terminal in the state machine, and retry is an explicit operator/user
// action rather than part of the step loop. The reset is still recorded in
// the audit trail and clears error and completed_at.
func (s *Store) ResetForRetry(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != constants.TaskStatusFailed {
		return nil, fmt.Errorf("%w: status is %s", stewarderrors.ErrNotRetryable, t.Status)
	}

	now := time.Now().UTC()
	t.Transitions = append(t.Transitions, domain.Transition{
		FromStatus: constants.TaskStatusFailed,
		ToStatus:   constants.TaskStatusPending,
		Timestamp:  now,
		Reason:     "retry requested",
	})
	t.Status = constants.TaskStatusPending
	t.Error = ""
	t.CompletedAt = nil
	t.UpdatedAt = now

	if err := s.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().Str("task_id", t.ID).Msg("task reset for retry")
	return t, nil
}

// DeleteTask removes a task and, by cascade, its messages.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit message delete keeps behavior identical on engines
		// where the FK cascade is not enforced.
		if err := tx.Where("task_id = ?", taskID).Delete(&domain.TaskMessage{}).Error; err != nil {
			return stewarderrors.Wrap(err, "delete task messages")
		}

		result := tx.Delete(&domain.Task{}, "id = ?", taskID)
		if result.Error != nil {
			return stewarderrors.Wrap(result.Error, "delete task")
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", stewarderrors.ErrTaskNotFound, taskID)
		}
		return nil
	})
}

// validateCreateTask enforces the field constraints from the data model.
func validateCreateTask(params CreateTaskParams) error {
	title := strings.TrimSpace(params.Title)
	if len(title) < constants.TitleMinLength || len(title) > constants.TitleMaxLength {
		return fmt.Errorf("%w: title must be %d-%d characters",
			stewarderrors.ErrValidation, constants.TitleMinLength, constants.TitleMaxLength)
	}
	if len(params.Description) > constants.DescriptionMaxLength {
		return fmt.Errorf("%w: description exceeds %d characters",
			stewarderrors.ErrValidation, constants.DescriptionMaxLength)
	}
	if params.TaskType == "" {
		return fmt.Errorf("%w: task_type is required", stewarderrors.ErrValidation)
	}
	if params.UserID == "" {
		return fmt.Errorf("%w: user_id is required", stewarderrors.ErrValidation)
	}
	return nil
}
