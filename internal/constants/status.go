package constants

// TaskStatus represents the state of a task in the Steward state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// These follow the state machine defined in the architecture:
//
//	Pending → InProgress, Cancelled
//	InProgress → WaitingForInput, Completed, Failed, Cancelled
//	WaitingForInput → InProgress, Cancelled
//	Completed / Failed / Cancelled → (terminal)
const (
	// TaskStatusPending indicates a task is queued but not yet started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates the agent is actively stepping the task.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusWaitingForInput indicates the agent asked the user a question
	// and the task is dormant until input arrives.
	TaskStatusWaitingForInput TaskStatus = "waiting_for_input"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed; the error field explains why.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusCancelled indicates the task was cancelled by the user.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// String returns the string representation of the TaskStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s TaskStatus) String() string {
	return string(s)
}

// AllTaskStatuses lists every valid task status.
//
//nolint:gochecknoglobals // Read-only lookup table
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusWaitingForInput,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// MessageRole identifies the author of a conversation ledger entry.
type MessageRole string

// Message role constants. The ledger only ever contains these four roles.
const (
	// MessageRoleUser is input submitted by the owning user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAgent is output produced by the decision engine.
	MessageRoleAgent MessageRole = "agent"

	// MessageRoleSystem is engine bookkeeping visible to the model.
	MessageRoleSystem MessageRole = "system"

	// MessageRoleTool records a tool invocation and its result.
	MessageRoleTool MessageRole = "tool"
)

// String returns the string representation of the MessageRole.
func (r MessageRole) String() string {
	return string(r)
}

// IsValidMessageRole reports whether role is one of the four ledger roles.
func IsValidMessageRole(role MessageRole) bool {
	switch role {
	case MessageRoleUser, MessageRoleAgent, MessageRoleSystem, MessageRoleTool:
		return true
	default:
		return false
	}
}

// TaskType is an open, string-keyed classification of a task. It is a prompt
// hint only: the engine never dispatches on it. New types can be added by
// configuration without touching the state machine.
type TaskType string

// Built-in task types.
const (
	TaskTypeScheduleMeeting TaskType = "schedule_meeting"
	TaskTypeComposeEmail    TaskType = "compose_email"
	TaskTypeResearch        TaskType = "research"
	TaskTypeDataAnalysis    TaskType = "data_analysis"
	TaskTypeCustom          TaskType = "custom"
)

// String returns the string representation of the TaskType.
func (t TaskType) String() string {
	return string(t)
}

// IsValidTaskType reports whether t is one of the built-in task types.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeScheduleMeeting, TaskTypeComposeEmail, TaskTypeResearch,
		TaskTypeDataAnalysis, TaskTypeCustom:
		return true
	default:
		return false
	}
}
