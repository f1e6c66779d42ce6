// Package task implements the task state machine for Steward.
//
// The state machine enforces valid status transitions and maintains an audit
// trail of all status changes. It is pure: nothing here touches storage.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/store, internal/agent, internal/worker
package task

import (
	"fmt"
	"time"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the task lifecycle.
// Format: from_status -> []to_statuses
//
// The state machine follows this flow:
//
//	Pending → InProgress, Cancelled
//	InProgress → WaitingForInput, Completed, Failed, Cancelled
//	WaitingForInput → InProgress, Cancelled
//
// Completed, Failed, and Cancelled are terminal: they do not appear as keys.
// This table is the single source of truth; no other component may write a
// task status without going through ValidateTransition or Transition.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusPending: {
		constants.TaskStatusInProgress,
		constants.TaskStatusCancelled,
	},
	constants.TaskStatusInProgress: {
		constants.TaskStatusWaitingForInput,
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusCancelled,
	},
	constants.TaskStatusWaitingForInput: {
		constants.TaskStatusInProgress,
		constants.TaskStatusCancelled,
	},
}

// terminalStatuses defines states where no further transitions are allowed.
// Terminal states are those NOT present as keys in ValidTransitions.
// MAINTENANCE: When adding new statuses, update both ValidTransitions and this map.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusCompleted: true,
	constants.TaskStatusFailed:    true,
	constants.TaskStatusCancelled: true,
}

// activeStatuses defines states in which a task can still make progress.
//
//nolint:gochecknoglobals // Read-only lookup table for active state checks
var activeStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusPending:         true,
	constants.TaskStatusInProgress:      true,
	constants.TaskStatusWaitingForInput: true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
// Returns false for transitions from terminal or unknown states and for
// same-state transitions.
func IsValidTransition(from, to constants.TaskStatus) bool {
	if from == to {
		return false
	}

	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false // Terminal state or unknown state
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks whether the task's current status may legally
// move to the target status. Returns a wrapped ErrInvalidTransition when it
// may not, so callers can branch with errors.Is().
func ValidateTransition(t *domain.Task, to constants.TaskStatus) error {
	if t == nil {
		return fmt.Errorf("%w: task is nil", stewarderrors.ErrInvalidTransition)
	}
	if !IsValidTransition(t.Status, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			stewarderrors.ErrInvalidTransition, t.Status, to)
	}
	return nil
}

// IsTerminalStatus returns true for states where no further transitions are
// allowed. Terminal states: Completed, Failed, Cancelled.
func IsTerminalStatus(status constants.TaskStatus) bool {
	return terminalStatuses[status]
}

// IsActiveStatus returns true for states in which the task can still make
// progress. Active states: Pending, InProgress, WaitingForInput.
func IsActiveStatus(status constants.TaskStatus) bool {
	return activeStatuses[status]
}

// NextStatuses returns all valid target statuses for a given status.
// Returns nil for terminal states or unknown statuses.
func NextStatuses(from constants.TaskStatus) []constants.TaskStatus {
	targets, exists := ValidTransitions[from]
	if !exists {
		return nil
	}
	// Return a copy to prevent modification of the original slice
	result := make([]constants.TaskStatus, len(targets))
	copy(result, targets)
	return result
}

// Transition validates and applies a state transition to the task.
// It records the transition in the task's audit trail, updates timestamps,
// and sets CompletedAt when entering a terminal state. The caller is
// responsible for persisting the updated task.
//
// Returns a wrapped ErrInvalidTransition if the transition is not permitted.
func Transition(t *domain.Task, to constants.TaskStatus, reason string) error {
	if err := ValidateTransition(t, to); err != nil {
		return err
	}

	now := time.Now().UTC()

	t.Transitions = append(t.Transitions, domain.Transition{
		FromStatus: t.Status,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})

	t.Status = to
	t.UpdatedAt = now

	if IsTerminalStatus(to) {
		t.CompletedAt = &now
	}

	return nil
}
