package tasks

import (
	"time"

	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/worker"
)

// RequestPathTask plans a path to Target on the worker pool without
// blocking the tick. The first execution submits the request and every
// later one polls it. When the path arrives it is written to ResultKey
// (default "Path") in api.FormatPath form.
//
// Start defaults to the entity position. Delay holds the request back for
// that many seconds.
type RequestPathTask struct {
	paths  *worker.Pool
	ticket *worker.Ticket
}

func (t *RequestPathTask) Execute(api.Params) api.TaskStatus {
	return api.StatusFailure
}

func (t *RequestPathTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	if t.ticket == nil {
		return t.submit(tc, params)
	}

	state, path, err := t.ticket.Poll()
	switch state {
	case worker.TicketPending:
		return api.StatusRunning
	case worker.TicketDone:
		t.ticket = nil
		return t.publish(tc, params, path)
	default:
		t.ticket = nil
		debug(tc, "path request failed", "error", err)
		return api.StatusFailure
	}
}

func (t *RequestPathTask) submit(tc *api.TaskContext, params api.Params) api.TaskStatus {
	if t.paths == nil {
		debug(tc, "path request: no worker pool configured")
		return api.StatusFailure
	}
	goal, ok := params.Vector3("Target")
	if !ok {
		debug(tc, "path request: missing Target")
		return api.StatusFailure
	}
	start, ok := params.Vector3("Start")
	if !ok {
		if start, ok = readPosition(tc); !ok {
			debug(tc, "path request: no start position")
			return api.StatusFailure
		}
	}
	delay := time.Duration(numberOr(params, "Delay", 0) * float64(time.Second))

	ticket, err := t.paths.RequestPath(tc.Entity, start, goal, delay)
	if err != nil {
		debug(tc, "path request rejected", "error", err)
		return api.StatusFailure
	}
	t.ticket = ticket
	return api.StatusRunning
}

func (t *RequestPathTask) publish(tc *api.TaskContext, params api.Params, path []api.Vector3) api.TaskStatus {
	if len(path) == 0 {
		return api.StatusFailure
	}
	if tc.Blackboard == nil {
		return api.StatusFailure
	}
	key, ok := params.String("ResultKey")
	if !ok || key == "" {
		key = "Path"
	}
	if err := tc.Blackboard.SetValue(key, api.StringValue(api.FormatPath(path))); err != nil {
		debug(tc, "path request: cannot store result", "key", key, "error", err)
		return api.StatusFailure
	}
	return api.StatusSuccess
}

// Abort cancels the outstanding request so a late result is dropped.
func (t *RequestPathTask) Abort() {
	if t.ticket != nil {
		t.ticket.Cancel()
		t.ticket = nil
	}
}
