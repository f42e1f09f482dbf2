package tasks

import (
	"github.com/petrijr/taskgraph/pkg/api"
)

// WaitTask runs until Duration seconds of tick time have accumulated.
type WaitTask struct {
	api.NoAbort
	elapsed float64
}

func (t *WaitTask) Execute(api.Params) api.TaskStatus {
	return api.StatusFailure
}

func (t *WaitTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	duration, ok := params.Number("Duration")
	if !ok {
		debug(tc, "wait: missing Duration")
		return api.StatusFailure
	}
	t.elapsed += tc.DeltaTime
	if t.elapsed >= duration {
		t.elapsed = 0
		return api.StatusSuccess
	}
	return api.StatusRunning
}
