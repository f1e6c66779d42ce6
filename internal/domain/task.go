// Package domain provides shared domain types for the Steward task engine.
// These types are used across all internal packages to ensure consistent
// data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/stewardhq/steward/internal/constants"
)

// Task represents one durable, multi-step, LLM-orchestrated unit of work.
// A task is created in pending status, stepped forward one model call at a
// time by the decision engine, and driven to a terminal status by the worker.
//
// Example JSON representation:
//
//	{
//	    "id": "6e1f6c2a-...",
//	    "user_id": "u_01H...",
//	    "title": "Schedule demo with Acme",
//	    "task_type": "schedule_meeting",
//	    "status": "in_progress",
//	    "context": {"attendees": ["dana@acme.test"]},
//	    "created_at": "2026-08-28T10:00:00Z"
//	}
type Task struct {
	// ID is the unique identifier for the task (UUID).
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// UserID is the exclusive owner. A task belongs to exactly one user.
	UserID string `gorm:"index;size:64;not null" json:"user_id"`

	// InstructionID optionally back-references the instruction that spawned
	// this task. Weak reference: nullified, never cascaded, when the
	// instruction is deleted.
	InstructionID *string `gorm:"size:36" json:"instruction_id,omitempty"`

	// Title is a short human-readable summary (3-255 chars).
	Title string `gorm:"size:255;not null" json:"title"`

	// Description is optional free text (max 5000 chars).
	Description string `gorm:"size:5000" json:"description,omitempty"`

	// TaskType classifies the workflow for prompting purposes only.
	TaskType constants.TaskType `gorm:"size:64;not null" json:"task_type"`

	// Status is the current state in the task lifecycle. Mutated only
	// through state-machine-validated transitions.
	Status constants.TaskStatus `gorm:"size:32;not null;index" json:"status"`

	// Context is an open document the workflow reads and writes across steps.
	// The engine itself does not interpret it.
	Context Document `gorm:"type:text" json:"context,omitempty"`

	// Result is set exactly once, when the task completes.
	Result Document `gorm:"type:text" json:"result,omitempty"`

	// Error is a human-readable failure reason, set only on failure.
	Error string `gorm:"type:text" json:"error,omitempty"`

	// StepCount is the number of decision-engine steps taken so far. It keys
	// queue deduplication and enforces the per-task step budget.
	StepCount int `gorm:"not null;default:0" json:"step_count"`

	// Version is the optimistic-concurrency counter. Every status write is
	// conditional on the version read, so two workers racing on the same
	// task cannot both win.
	Version int `gorm:"not null;default:0" json:"version"`

	// Transitions is the audit trail of all status changes.
	Transitions TransitionList `gorm:"type:text" json:"transitions,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// CompletedAt is set exactly when the task enters a terminal status
	// (completed, failed, cancelled); nil otherwise.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName overrides the GORM default pluralization.
func (Task) TableName() string { return "tasks" }

// Transition records one status change in the task's audit trail.
type Transition struct {
	// FromStatus is the status before the transition.
	FromStatus constants.TaskStatus `json:"from_status"`

	// ToStatus is the status after the transition.
	ToStatus constants.TaskStatus `json:"to_status"`

	// Timestamp is when the transition was applied.
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}
