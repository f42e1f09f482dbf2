package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petrijr/taskgraph/internal/taskqueue"
	"github.com/petrijr/taskgraph/pkg/api"
)

// PoolConfig describes how to construct a Pool.
type PoolConfig struct {
	// Workers is the number of goroutines processing jobs. Defaults to 1.
	Workers int

	// QueueCapacity bounds the number of pending jobs. Defaults to 1024.
	QueueCapacity int

	Planner Planner
	Logger  *slog.Logger
}

// Pool runs Workers over a shared in-memory queue.
type Pool struct {
	worker  *Worker
	queue   *taskqueue.InMemoryQueue
	workers int
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates a stopped Pool.
func NewPool(cfg PoolConfig) *Pool {
	n := cfg.Workers
	if n <= 0 {
		n = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	q := taskqueue.NewInMemoryQueue(cfg.QueueCapacity)
	return &Pool{
		worker:  New(q, cfg.Planner, logger),
		queue:   q,
		workers: n,
		logger:  logger,
	}
}

// Start launches the worker goroutines. They run until Stop is called or
// ctx is cancelled. Starting a running pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				_, err := p.worker.ProcessOne(gctx)
				if err == nil {
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				p.logger.Error("worker job failed", slog.Any("error", err))
			}
		})
	}
	p.cancel = cancel
	p.group = g
	p.logger.Debug("worker pool started", slog.Int("workers", p.workers))
}

// Stop cancels the workers and waits for them to exit. Jobs still queued
// stay pending.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel, g := p.cancel, p.group
	p.cancel, p.group = nil, nil
	p.mu.Unlock()

	if g == nil {
		return
	}
	cancel()
	_ = g.Wait()
}

// RequestPath submits a path request. See Worker.EnqueuePath.
func (p *Pool) RequestPath(entity api.EntityID, start, goal api.Vector3, delay time.Duration) (*Ticket, error) {
	return p.worker.EnqueuePath(entity, start, goal, delay)
}

// ProcessOne processes a single job on the calling goroutine. It is meant
// for hosts that drive background work themselves, and for tests.
func (p *Pool) ProcessOne(ctx context.Context) (bool, error) {
	return p.worker.ProcessOne(ctx)
}

// Pending returns the number of queued jobs. Delayed requests that are not
// yet due are not counted.
func (p *Pool) Pending() int {
	return p.queue.Len()
}
