package tasks

import (
	"github.com/petrijr/taskgraph/pkg/api"
)

// SetVariableTask writes Value into the blackboard variable named by
// Variable. Ints are widened to Float variables and integral Floats
// narrowed to Int ones.
type SetVariableTask struct {
	api.NoAbort
}

func (t *SetVariableTask) Execute(api.Params) api.TaskStatus {
	return api.StatusFailure
}

func (t *SetVariableTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	if tc.Blackboard == nil {
		return api.StatusFailure
	}
	name, ok := params.String("Variable")
	if !ok || name == "" {
		debug(tc, "set variable: missing Variable")
		return api.StatusFailure
	}
	value, ok := params.Get("Value")
	if !ok || !value.IsValid() {
		debug(tc, "set variable: missing Value", "variable", name)
		return api.StatusFailure
	}

	current, err := tc.Blackboard.GetValue(name)
	if err != nil {
		debug(tc, "set variable failed", "variable", name, "error", err)
		return api.StatusFailure
	}
	if conv, ok := value.Convert(current.Type()); ok {
		value = conv
	}
	if err := tc.Blackboard.SetValue(name, value); err != nil {
		debug(tc, "set variable failed", "variable", name, "error", err)
		return api.StatusFailure
	}
	return api.StatusSuccess
}
