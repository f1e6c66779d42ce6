package store

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
)

// AppendMessage validates and appends one immutable entry to a task's
// conversation ledger. Fails with ErrTaskNotFound if the task does not
// exist and ErrValidation for a bad role or out-of-range content.
func (s *Store) AppendMessage(ctx context.Context, taskID string, role constants.MessageRole, content string, metadata domain.Document) (*domain.TaskMessage, error) {
	if !constants.IsValidMessageRole(role) {
		return nil, fmt.Errorf("%w: invalid message role %q", stewarderrors.ErrValidation, role)
	}
	if n := utf8.RuneCountInString(content); n < constants.MessageContentMinLength || n > constants.MessageContentMaxLength {
		return nil, fmt.Errorf("%w: content must be %d-%d characters",
			stewarderrors.ErrValidation, constants.MessageContentMinLength, constants.MessageContentMaxLength)
	}

	// Explicit existence check: portable stand-in for the foreign key on
	// engines that do not enforce it.
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	msg := &domain.TaskMessage{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		Role:       role,
		Content:    content,
		Metadata:   metadata,
		InsertedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("message append failed")
		return nil, stewarderrors.Wrap(err, "append message")
	}

	return msg, nil
}

// ListMessages returns a task's ledger in insertion order: ascending
// inserted_at, ties broken by insertion sequence.
func (s *Store) ListMessages(ctx context.Context, taskID string) ([]domain.TaskMessage, error) {
	var msgs []domain.TaskMessage
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("inserted_at ASC, seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, stewarderrors.Wrap(err, "list messages")
	}
	return msgs, nil
}

// ProjectForModel returns the ledger as LLM-ready role/content pairs,
// stripping metadata and timestamps. Ledger roles map onto chat roles:
// agent becomes assistant, and tool results are presented as user-side
// observations since the next model call consumes them as inputs.
func (s *Store) ProjectForModel(ctx context.Context, taskID string) ([]llm.Message, error) {
	msgs, err := s.ListMessages(ctx, taskID)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}
	return out, nil
}

// chatRole maps a ledger role to the chat API role vocabulary.
func chatRole(role constants.MessageRole) string {
	switch role {
	case constants.MessageRoleAgent:
		return llm.RoleAssistant
	case constants.MessageRoleSystem:
		return llm.RoleSystem
	case constants.MessageRoleUser, constants.MessageRoleTool:
		return llm.RoleUser
	default:
		return llm.RoleUser
	}
}
