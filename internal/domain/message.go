package domain

import (
	"time"

	"github.com/stewardhq/steward/internal/constants"
)

// TaskMessage is one immutable entry in a task's conversation ledger.
// Messages are append-only: once inserted they are never updated or
// reordered. Ordering is by insertion time, ties broken by insertion order.
type TaskMessage struct {
	// ID is the unique identifier for the message (UUID).
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// Seq is a monotonically increasing insertion counter used as the
	// tie-breaker when two messages share a timestamp.
	Seq int64 `gorm:"autoIncrement;uniqueIndex" json:"-"`

	// TaskID is the owning task. Messages are cascade-deleted with it.
	TaskID string `gorm:"size:36;not null;index;constraint:OnDelete:CASCADE" json:"task_id"`

	// Role identifies the author: user, agent, system, or tool.
	Role constants.MessageRole `gorm:"size:16;not null" json:"role"`

	// Content is the message text (1-10000 chars, required).
	Content string `gorm:"size:10000;not null" json:"content"`

	// Metadata is an open document, e.g. which tool ran and its raw result.
	Metadata Document `gorm:"type:text" json:"metadata,omitempty"`

	// InsertedAt is set at creation and never changes.
	InsertedAt time.Time `gorm:"not null;index" json:"inserted_at"`
}

// TableName overrides the GORM default pluralization.
func (TaskMessage) TableName() string { return "task_messages" }
