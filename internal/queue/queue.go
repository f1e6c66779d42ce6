// Package queue provides the durable job transport for task steps on NATS
// JetStream.
//
// One work-queue stream holds step jobs. Delivery is at-least-once: the
// consumer acks only after the handler reports the outcome is recorded, and
// redelivery is bounded by MaxDeliver with backoff. Publish-side dedup uses
// the message ID header keyed by task and step, so a crashed producer that
// retries inside the duplicate window cannot double-enqueue the same step.
//
// JetStream has no native delayed publish. Delayed jobs carry their due time
// in a header; a consumer that receives one early NAKs it back with the
// remaining delay.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stewardhq/steward/internal/constants"
	stewarderrors "github.com/stewardhq/steward/internal/errors"
)

// Header names on step job messages.
const (
	headerMsgID       = "Nats-Msg-Id"
	headerScheduledAt = "Steward-Scheduled-At"
)

// StepJob is the wire payload for one step of one task.
type StepJob struct {
	TaskID string `json:"task_id"`

	// Step is the step count at enqueue time. It keys dedup: re-enqueuing
	// the same task at the same step inside the duplicate window is a no-op.
	Step int `json:"step"`
}

// Handler processes one step job. Returning nil acks the message; returning
// an error NAKs it for redelivery.
type Handler func(ctx context.Context, job StepJob) error

// Queue is the JetStream-backed step job queue.
type Queue struct {
	js       jetstream.JetStream
	stream   jetstream.Stream
	logger   zerolog.Logger
	subject  string
	consumer string
	closed   bool

	maxDeliver  int
	backoff     []time.Duration
	concurrency int

	// workers is the bounded job pool; the subscription delivers messages
	// one at a time, so parallelism lives here, not in the callback.
	workers *errgroup.Group
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxDeliver bounds redelivery attempts per job.
func WithMaxDeliver(n int) Option {
	return func(q *Queue) {
		q.maxDeliver = n
	}
}

// WithBackoff sets the redelivery backoff schedule. Its length must be less
// than or equal to the max deliver count.
func WithBackoff(schedule []time.Duration) Option {
	return func(q *Queue) {
		q.backoff = schedule
	}
}

// WithConcurrency bounds how many jobs one consumer processes in parallel.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		q.concurrency = n
	}
}

// New connects the queue to JetStream, creating or updating the step stream.
func New(ctx context.Context, nc *nats.Conn, logger zerolog.Logger, opts ...Option) (*Queue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, stewarderrors.Wrap(err, "create jetstream context")
	}

	q := &Queue{
		js:          js,
		logger:      logger,
		subject:     constants.SubjectSteps,
		consumer:    constants.ConsumerName,
		maxDeliver:  constants.DefaultMaxDeliver,
		backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute},
		concurrency: constants.DefaultWorkerConcurrency,
	}
	for _, opt := range opts {
		opt(q)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       constants.StreamName,
		Subjects:   []string{constants.SubjectSteps},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: constants.DedupWindow,
	})
	if err != nil {
		return nil, stewarderrors.Wrap(err, "create step stream")
	}
	q.stream = stream

	return q, nil
}

// Enqueue publishes a step job for the task, optionally delayed. The message
// ID is task_id:step, so duplicate publishes inside the dedup window collapse
// into one delivery.
func (q *Queue) Enqueue(ctx context.Context, taskID string, step int, delay time.Duration) error {
	if q.closed {
		return stewarderrors.ErrQueueClosed
	}

	data, err := json.Marshal(StepJob{TaskID: taskID, Step: step})
	if err != nil {
		return stewarderrors.Wrap(err, "encode step job")
	}

	msg := &nats.Msg{
		Subject: q.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(headerMsgID, fmt.Sprintf("%s:%d", taskID, step))
	if delay > 0 {
		due := time.Now().UTC().Add(delay)
		msg.Header.Set(headerScheduledAt, strconv.FormatInt(due.UnixNano(), 10))
	}

	ack, err := q.js.PublishMsg(ctx, msg)
	if err != nil {
		return stewarderrors.Wrap(err, "enqueue step job")
	}

	q.logger.Debug().
		Str("task_id", taskID).
		Int("step", step).
		Dur("delay", delay).
		Bool("duplicate", ack.Duplicate).
		Msg("step job enqueued")

	return nil
}

// Consume starts the durable consumer and dispatches jobs to the handler
// until Stop is called on the returned ConsumeContext or the connection
// closes. Up to Concurrency jobs run at once; a full pool holds back further
// deliveries until a worker frees up. Jobs that arrive before their scheduled
// time are NAKed back with the remaining delay.
func (q *Queue) Consume(ctx context.Context, handler Handler) (jetstream.ConsumeContext, error) {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       q.consumer,
		FilterSubject: q.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    q.maxDeliver,
		BackOff:       q.backoff,
	})
	if err != nil {
		return nil, stewarderrors.Wrap(err, "create step consumer")
	}

	q.startWorkers()

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		q.submit(ctx, msg, handler)
	}, jetstream.PullMaxMessages(q.concurrency))
	if err != nil {
		return nil, stewarderrors.Wrap(err, "start consume loop")
	}

	q.logger.Info().
		Str("stream", constants.StreamName).
		Str("consumer", q.consumer).
		Int("concurrency", q.concurrency).
		Msg("step consumer started")

	return cc, nil
}

// startWorkers creates the bounded job pool.
func (q *Queue) startWorkers() {
	q.workers = &errgroup.Group{}
	q.workers.SetLimit(q.concurrency)
}

// submit hands one delivery to the pool. Blocks the caller while all workers
// are busy, which pauses the subscription until a slot opens.
func (q *Queue) submit(ctx context.Context, msg jetstream.Msg, handler Handler) {
	q.workers.Go(func() error {
		q.dispatch(ctx, msg, handler)
		return nil
	})
}

// dispatch handles one delivery: scheduling check, payload decode, handler
// invocation, ack/nak.
func (q *Queue) dispatch(ctx context.Context, msg jetstream.Msg, handler Handler) {
	if remaining := timeUntilDue(msg); remaining > 0 {
		if err := msg.NakWithDelay(remaining); err != nil {
			q.logger.Warn().Err(err).Msg("nak of early job failed")
		}
		return
	}

	job, err := decodeJob(msg.Data())
	if err != nil {
		// A payload that cannot decode will never succeed; drop it.
		q.logger.Error().Err(err).Str("data", string(msg.Data())).Msg("dropping undecodable step job")
		if termErr := msg.Term(); termErr != nil {
			q.logger.Warn().Err(termErr).Msg("term of bad job failed")
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		q.logger.Warn().Err(err).Str("task_id", job.TaskID).Int("step", job.Step).Msg("step job failed, redelivering")
		if nakErr := msg.Nak(); nakErr != nil {
			q.logger.Warn().Err(nakErr).Msg("nak failed")
		}
		return
	}

	if err := msg.Ack(); err != nil {
		q.logger.Warn().Err(err).Str("task_id", job.TaskID).Msg("ack failed")
	}
}

// Close marks the queue closed for publishing and waits for in-flight jobs
// to drain. The caller owns the NATS connection lifecycle and must stop the
// ConsumeContext first.
func (q *Queue) Close() {
	q.closed = true
	if q.workers != nil {
		_ = q.workers.Wait()
	}
}

// decodeJob parses a step job payload.
func decodeJob(data []byte) (StepJob, error) {
	var job StepJob
	if err := json.Unmarshal(data, &job); err != nil {
		return StepJob{}, stewarderrors.Wrap(err, "decode step job")
	}
	if job.TaskID == "" {
		return StepJob{}, fmt.Errorf("%w: step job missing task_id", stewarderrors.ErrValidation)
	}
	return job, nil
}

// timeUntilDue reads the scheduling header. Zero means due now.
func timeUntilDue(msg jetstream.Msg) time.Duration {
	raw := msg.Headers().Get(headerScheduledAt)
	if raw == "" {
		return 0
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return time.Until(time.Unix(0, nanos))
}
