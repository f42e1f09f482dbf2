package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petrijr/taskgraph/pkg/api"
)

// TicketState is the lifecycle of a background request.
type TicketState int32

const (
	TicketPending TicketState = iota
	TicketDone
	TicketFailed
	TicketCancelled
)

func (s TicketState) String() string {
	switch s {
	case TicketPending:
		return "pending"
	case TicketDone:
		return "done"
	case TicketFailed:
		return "failed"
	case TicketCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Ticket is the submitter's handle on one background request. The leaf that
// submitted it polls it from the tick thread; a worker publishes into it.
// A ticket leaves the pending state exactly once, and a cancelled ticket
// never receives a result.
type Ticket struct {
	id    string
	state atomic.Int32

	mu     sync.Mutex
	path   []api.Vector3
	err    error
	cancel context.CancelFunc
	timer  *time.Timer
}

func newTicket(id string) *Ticket {
	return &Ticket{id: id}
}

// ID returns the job id the ticket tracks.
func (t *Ticket) ID() string { return t.id }

// State returns the current state without synchronising on the result.
func (t *Ticket) State() TicketState {
	return TicketState(t.state.Load())
}

// Poll returns the state and, once it is no longer pending, the result.
func (t *Ticket) Poll() (TicketState, []api.Vector3, error) {
	st := t.State()
	if st == TicketPending || st == TicketCancelled {
		return st, nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return st, t.path, t.err
}

// Cancel withdraws the request. A delayed request is never queued; work
// already in flight is interrupted through its context. Cancelling a
// finished ticket is a no-op.
func (t *Ticket) Cancel() {
	if !t.state.CompareAndSwap(int32(TicketPending), int32(TicketCancelled)) {
		return
	}
	t.mu.Lock()
	cancel, timer := t.cancel, t.timer
	t.cancel, t.timer = nil, nil
	t.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// hold attaches the timer that releases a delayed request into the queue.
func (t *Ticket) hold(timer *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State() == TicketCancelled {
		timer.Stop()
		return
	}
	t.timer = timer
}

// begin attaches the context cancel of the worker processing the ticket.
// It returns false when the ticket was cancelled before work started.
func (t *Ticket) begin(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State() != TicketPending {
		return false
	}
	t.cancel = cancel
	return true
}

// publish stores the result unless the ticket was cancelled meanwhile.
func (t *Ticket) publish(path []api.Vector3, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := TicketDone
	if err != nil {
		next = TicketFailed
	}
	if !t.state.CompareAndSwap(int32(TicketPending), int32(next)) {
		return false
	}
	t.path = path
	t.err = err
	t.cancel, t.timer = nil, nil
	return true
}
