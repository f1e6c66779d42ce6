// Package constants defines shared constants for the Steward task engine.
//
// This package MUST NOT import any other internal packages.
package constants

import "time"

// Field length limits enforced by the store on create/append.
const (
	// TitleMinLength is the minimum task title length.
	TitleMinLength = 3

	// TitleMaxLength is the maximum task title length.
	TitleMaxLength = 255

	// DescriptionMaxLength is the maximum task description length.
	DescriptionMaxLength = 5000

	// MessageContentMinLength is the minimum ledger message content length.
	MessageContentMinLength = 1

	// MessageContentMaxLength is the maximum ledger message content length.
	MessageContentMaxLength = 10000
)

// Worker and queue defaults.
const (
	// DefaultStepDelay is how long the worker waits before re-enqueuing a
	// task after a Continue result. Each step runs in its own job so the
	// queue can retry steps independently.
	DefaultStepDelay = 1 * time.Second

	// DefaultToolTimeout bounds a single tool handler invocation.
	DefaultToolTimeout = 30 * time.Second

	// DefaultModelTimeout bounds a single chat completion call.
	DefaultModelTimeout = 120 * time.Second

	// DefaultWorkerConcurrency is the number of concurrent job consumers.
	DefaultWorkerConcurrency = 4

	// DefaultMaxSteps is the per-task step budget. A task that exceeds it
	// is failed rather than allowed to loop forever.
	DefaultMaxSteps = 50

	// DefaultMaxDeliver is the queue's bounded retry attempt count.
	DefaultMaxDeliver = 5
)

// Queue naming. One durable work-queue stream carries all step jobs.
const (
	// StreamName is the JetStream stream holding step jobs.
	StreamName = "STEWARD_TASKS"

	// SubjectSteps is the subject step jobs are published to.
	SubjectSteps = "steward.tasks.step"

	// ConsumerName is the durable consumer shared by the worker pool.
	ConsumerName = "steward-workers"

	// DedupWindow is the JetStream duplicate-suppression window keyed by
	// Nats-Msg-Id. Enqueues of the same task step inside this window
	// collapse into one delivery.
	DedupWindow = 2 * time.Minute
)
