// Package errors provides centralized error handling for Steward.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrValidation indicates bad input to a CRUD operation: a missing
	// required field, a value out of range, or an invalid enum member.
	// Surfaced directly to the caller and never retried.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition indicates an attempted status change not permitted
	// by the state machine. Defensive call sites (double job delivery for a
	// terminal task) log and ignore it; user-facing call sites treat it as a
	// hard error.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskConflict indicates an optimistic-concurrency conflict: the task
	// row changed between read and write. The caller should reload and
	// re-evaluate rather than retry the write blindly.
	ErrTaskConflict = errors.New("task modified concurrently")

	// ErrNotWaitingForInput indicates user input was submitted to a task that
	// is not in the waiting_for_input status.
	ErrNotWaitingForInput = errors.New("task is not waiting for input")

	// ErrUnknownTool indicates a dispatched tool name has no registered handler.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolExecutionFailed indicates a dispatched tool handler returned an
	// error. Propagated up through the step loop, never silently swallowed.
	ErrToolExecutionFailed = errors.New("tool execution failed")

	// ErrToolTimeout indicates a tool handler exceeded its bounded timeout.
	ErrToolTimeout = errors.New("tool execution timeout")

	// ErrModelEmptyResponse indicates the chat model returned no content and
	// no tool calls.
	ErrModelEmptyResponse = errors.New("model returned empty response")

	// ErrMaxStepsExceeded indicates a task ran past its step budget.
	ErrMaxStepsExceeded = errors.New("maximum step count exceeded")

	// ErrCatalogInvalid indicates the tool catalog file failed to parse or
	// validate.
	ErrCatalogInvalid = errors.New("invalid tool catalog")

	// ErrConfigNil indicates a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrQueueClosed indicates an operation on a queue that has been drained
	// and closed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNotRetryable indicates a retry was requested for a task that is not
	// in the failed status.
	ErrNotRetryable = errors.New("task is not in a retryable status")
)
