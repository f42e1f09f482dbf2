package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/taskgraph/internal/taskqueue"
	"github.com/petrijr/taskgraph/pkg/api"
)

// Planner computes a route between two world positions.
type Planner interface {
	FindPath(ctx context.Context, start, goal api.Vector3) ([]api.Vector3, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, start, goal api.Vector3) ([]api.Vector3, error)

func (f PlannerFunc) FindPath(ctx context.Context, start, goal api.Vector3) ([]api.Vector3, error) {
	return f(ctx, start, goal)
}

// StraightLine is the Planner used when no navigation data is configured:
// the path is the goal itself.
var StraightLine = PlannerFunc(func(_ context.Context, _, goal api.Vector3) ([]api.Vector3, error) {
	return []api.Vector3{goal}, nil
})

// Worker pulls jobs from a Queue and publishes results to their tickets.
type Worker struct {
	queue   taskqueue.Queue
	planner Planner
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new Worker. A nil planner selects StraightLine.
func New(queue taskqueue.Queue, planner Planner, logger *slog.Logger) *Worker {
	if planner == nil {
		planner = StraightLine
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:   queue,
		planner: planner,
		logger:  logger,
		now:     time.Now,
	}
}

// EnqueuePath submits a path request and returns its ticket. It never
// blocks: a full queue is reported as taskqueue.ErrQueueFull. A positive
// delay keeps the job out of the queue for at least that long, so no
// worker is held while it waits; if the queue is full once the delay
// elapses, the ticket fails with taskqueue.ErrQueueFull.
func (w *Worker) EnqueuePath(entity api.EntityID, start, goal api.Vector3, delay time.Duration) (*Ticket, error) {
	now := w.now()
	ticket := newTicket(uuid.NewString())
	j := taskqueue.Job{
		ID:         ticket.ID(),
		Type:       taskqueue.JobTypePath,
		Entity:     entity,
		Start:      start,
		Goal:       goal,
		Payload:    ticket,
		EnqueuedAt: now,
	}
	if delay <= 0 {
		if err := w.queue.TryEnqueue(j); err != nil {
			return nil, err
		}
		return ticket, nil
	}

	j.NotBefore = now.Add(delay)
	ticket.hold(time.AfterFunc(delay, func() { w.release(j, ticket) }))
	return ticket, nil
}

// release queues a delayed job once it is due.
func (w *Worker) release(j taskqueue.Job, ticket *Ticket) {
	if ticket.State() != TicketPending {
		return
	}
	if err := w.queue.TryEnqueue(j); err != nil {
		ticket.publish(nil, fmt.Errorf("path for entity %d: %w", j.Entity, err))
		w.logger.Warn("delayed path job dropped", slog.String("job", j.ID), slog.Any("error", err))
	}
}

// ProcessOne pulls a single job from the queue and processes it.
// Returns (processed, error):
//   - processed == false: no job was obtained (ctx cancelled or dequeue failed)
//   - processed == true: a job was taken off the queue; err reports a
//     malformed job. Planning failures are published to the ticket instead.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	j, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, nil
	}

	switch j.Type {
	case taskqueue.JobTypePath:
		ticket, ok := j.Payload.(*Ticket)
		if !ok {
			return true, errors.New("invalid payload type for path job")
		}
		w.runPath(ctx, j, ticket)
		return true, nil
	default:
		return true, errors.New("unknown job type: " + string(j.Type))
	}
}

func (w *Worker) runPath(ctx context.Context, j *taskqueue.Job, ticket *Ticket) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !ticket.begin(cancel) {
		w.logger.Debug("path job skipped", slog.String("job", j.ID), slog.String("state", ticket.State().String()))
		return
	}

	path, err := w.planner.FindPath(jobCtx, j.Start, j.Goal)
	if err != nil {
		err = fmt.Errorf("path for entity %d: %w", j.Entity, err)
	}
	if !ticket.publish(path, err) {
		w.logger.Debug("path result dropped", slog.String("job", j.ID))
		return
	}
	if err != nil {
		w.logger.Info("path request failed", slog.String("job", j.ID), slog.Any("error", err))
	}
}
