package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/task"
)

// newTestStore opens a file-backed SQLite database in a temp dir and
// migrates the schema. Production runs Postgres; the store only uses
// portable GORM operations so the tests exercise identical code paths.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "steward.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := New(db, zerolog.Nop())
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func createTask(t *testing.T, s *Store) *domain.Task {
	t.Helper()
	tk, err := s.CreateTask(context.Background(), CreateTaskParams{
		UserID:   "u1",
		Title:    "Schedule demo",
		TaskType: constants.TaskTypeScheduleMeeting,
	})
	require.NoError(t, err)
	return tk
}

func TestCreateTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("creates pending task", func(t *testing.T) {
		tk, err := s.CreateTask(ctx, CreateTaskParams{
			UserID:      "u1",
			Title:       "Schedule demo",
			Description: "Find a slot next week",
			TaskType:    constants.TaskTypeScheduleMeeting,
			Context:     domain.Document{"attendees": []any{"dana@acme.test"}},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, tk.ID)
		assert.Equal(t, constants.TaskStatusPending, tk.Status)
		assert.Nil(t, tk.CompletedAt)
		assert.Zero(t, tk.Version)

		loaded, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, "Schedule demo", loaded.Title)
		assert.Equal(t, domain.Document{"attendees": []any{"dana@acme.test"}}, loaded.Context)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name   string
			params CreateTaskParams
		}{
			{"title too short", CreateTaskParams{UserID: "u1", Title: "ab", TaskType: constants.TaskTypeCustom}},
			{"title too long", CreateTaskParams{UserID: "u1", Title: strings.Repeat("x", 256), TaskType: constants.TaskTypeCustom}},
			{"description too long", CreateTaskParams{UserID: "u1", Title: "valid", Description: strings.Repeat("x", 5001), TaskType: constants.TaskTypeCustom}},
			{"missing task type", CreateTaskParams{UserID: "u1", Title: "valid"}},
			{"missing user", CreateTaskParams{Title: "valid", TaskType: constants.TaskTypeCustom}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.CreateTask(ctx, tt.params)
				assert.ErrorIs(t, err, stewarderrors.ErrValidation)
			})
		}
	})
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, stewarderrors.ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := createTask(t, s)
	second := createTask(t, s)
	require.NoError(t, task.Transition(second, constants.TaskStatusInProgress, ""))
	require.NoError(t, s.SaveTask(ctx, second))

	other, err := s.CreateTask(ctx, CreateTaskParams{
		UserID: "u2", Title: "Other user's task", TaskType: constants.TaskTypeResearch,
	})
	require.NoError(t, err)

	t.Run("scoped to user", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		for _, tk := range tasks {
			assert.NotEqual(t, other.ID, tk.ID)
		}
	})

	t.Run("status filtered", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, "u1", constants.TaskStatusPending)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, first.ID, tasks[0].ID)
	})
}

func TestSaveTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("persists transition and bumps version", func(t *testing.T) {
		tk := createTask(t, s)
		require.NoError(t, task.Transition(tk, constants.TaskStatusInProgress, "step started"))

		require.NoError(t, s.SaveTask(ctx, tk))
		assert.Equal(t, 1, tk.Version)

		loaded, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusInProgress, loaded.Status)
		assert.Equal(t, 1, loaded.Version)
		require.Len(t, loaded.Transitions, 1)
		assert.Equal(t, "step started", loaded.Transitions[0].Reason)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		tk := createTask(t, s)

		stale, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)

		require.NoError(t, task.Transition(tk, constants.TaskStatusInProgress, ""))
		require.NoError(t, s.SaveTask(ctx, tk))

		require.NoError(t, task.Transition(stale, constants.TaskStatusCancelled, ""))
		err = s.SaveTask(ctx, stale)
		assert.ErrorIs(t, err, stewarderrors.ErrTaskConflict)

		loaded, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusInProgress, loaded.Status)
	})

	t.Run("deleted task reports not found", func(t *testing.T) {
		tk := createTask(t, s)
		require.NoError(t, s.DeleteTask(ctx, tk.ID))

		require.NoError(t, task.Transition(tk, constants.TaskStatusInProgress, ""))
		err := s.SaveTask(ctx, tk)
		assert.ErrorIs(t, err, stewarderrors.ErrTaskNotFound)
	})
}

func TestResetForRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("failed task returns to pending", func(t *testing.T) {
		tk := createTask(t, s)
		require.NoError(t, task.Transition(tk, constants.TaskStatusInProgress, ""))
		require.NoError(t, task.Transition(tk, constants.TaskStatusFailed, "tool exploded"))
		tk.Error = "tool exploded"
		require.NoError(t, s.SaveTask(ctx, tk))

		reset, err := s.ResetForRetry(ctx, tk.ID)
		require.NoError(t, err)

		assert.Equal(t, constants.TaskStatusPending, reset.Status)
		assert.Empty(t, reset.Error)
		assert.Nil(t, reset.CompletedAt)
		// The bypass is still auditable.
		last := reset.Transitions[len(reset.Transitions)-1]
		assert.Equal(t, constants.TaskStatusFailed, last.FromStatus)
		assert.Equal(t, constants.TaskStatusPending, last.ToStatus)
	})

	t.Run("non-failed task is rejected", func(t *testing.T) {
		tk := createTask(t, s)
		_, err := s.ResetForRetry(ctx, tk.ID)
		assert.ErrorIs(t, err, stewarderrors.ErrNotRetryable)
	})
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("cascades to messages", func(t *testing.T) {
		tk := createTask(t, s)
		_, err := s.AppendMessage(ctx, tk.ID, constants.MessageRoleUser, "hello", nil)
		require.NoError(t, err)

		require.NoError(t, s.DeleteTask(ctx, tk.ID))

		_, err = s.GetTask(ctx, tk.ID)
		assert.ErrorIs(t, err, stewarderrors.ErrTaskNotFound)

		msgs, err := s.ListMessages(ctx, tk.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("missing task", func(t *testing.T) {
		err := s.DeleteTask(ctx, "missing")
		assert.ErrorIs(t, err, stewarderrors.ErrTaskNotFound)
	})
}
