package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/petrijr/taskgraph/pkg/api"
)

// ErrQueueFull is returned by TryEnqueue when the queue has no free slot.
var ErrQueueFull = errors.New("queue full")

// JobType identifies what the worker should do.
type JobType string

const (
	JobTypePath JobType = "path"
)

// Job is a unit of background work requested by a leaf task.
type Job struct {
	ID   string
	Type JobType

	// Entity is the requesting entity, for logging.
	Entity api.EntityID

	// For path jobs.
	Start api.Vector3
	Goal  api.Vector3

	// Payload carries the handle the result is published to. It is set by
	// the submitter and only read by the worker that dequeues the job.
	Payload any

	EnqueuedAt time.Time

	// NotBefore is the earliest time this job should be processed. Zero
	// means immediately.
	NotBefore time.Time
}

// Queue is a simple async job queue interface.
type Queue interface {
	// Enqueue adds a job to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, j Job) error

	// TryEnqueue adds a job without blocking, or returns ErrQueueFull.
	TryEnqueue(j Job) error

	// Dequeue removes and returns the next job, blocking until one is
	// available or the context is cancelled.
	Dequeue(ctx context.Context) (*Job, error)

	// Len returns the approximate number of jobs queued.
	Len() int
}
