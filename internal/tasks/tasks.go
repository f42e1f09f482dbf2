// Package tasks provides the built-in leaves and the registration pass that
// installs them.
package tasks

import (
	"log/slog"

	"github.com/petrijr/taskgraph/internal/engine"
	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/worker"
)

const (
	MoveToLocationID    = "MoveToLocationTask"
	WaitID              = "WaitTask"
	SetVariableID       = "SetVariableTask"
	RequestPathID       = "RequestPathTask"
	LogMessageID        = "LogMessageTask"
	EvaluateConditionID = "EvaluateConditionTask"
)

// PositionVariable is the blackboard variable headless leaves read and
// write the entity position through.
const PositionVariable = "Position"

// Deps are the services built-in leaves may use. Every field is optional.
type Deps struct {
	// Paths serves RequestPathTask. Without it the leaf fails.
	Paths *worker.Pool

	Logger *slog.Logger
}

// RegisterBuiltins installs every built-in leaf in reg, together with a
// few short aliases. Later registrations under the same ids replace them.
func RegisterBuiltins(reg *engine.TaskRegistry, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg.Register(MoveToLocationID, func() api.AtomicTask { return &MoveToLocationTask{} })
	reg.Register(WaitID, func() api.AtomicTask { return &WaitTask{} })
	reg.Register(SetVariableID, func() api.AtomicTask { return &SetVariableTask{} })
	reg.Register(RequestPathID, func() api.AtomicTask { return &RequestPathTask{paths: deps.Paths} })
	reg.Register(LogMessageID, func() api.AtomicTask { return &LogMessageTask{logger: logger} })
	reg.Register(EvaluateConditionID, func() api.AtomicTask { return &EvaluateConditionTask{} })

	reg.RegisterAlias("MoveTo", MoveToLocationID)
	reg.RegisterAlias("FindPath", RequestPathID)
	reg.RegisterAlias("Log", LogMessageID)
	reg.RegisterAlias("Condition", EvaluateConditionID)
}

// readPosition returns the entity position from the component facade, or
// from the blackboard when running headless.
func readPosition(tc *api.TaskContext) (api.Vector3, bool) {
	if tc.Components != nil {
		if tc.Components.Position == nil {
			return api.Vector3{}, false
		}
		return *tc.Components.Position, true
	}
	if tc.Blackboard == nil || !tc.Blackboard.HasVariable(PositionVariable) {
		return api.Vector3{}, false
	}
	v, err := tc.Blackboard.GetValue(PositionVariable)
	if err != nil || v.Type() != api.TypeVector3 {
		return api.Vector3{}, false
	}
	return v.AsVector3(), true
}

func numberOr(params api.Params, name string, def float64) float64 {
	if f, ok := params.Number(name); ok {
		return f
	}
	return def
}

func debug(tc *api.TaskContext, msg string, args ...any) {
	if tc.Logger != nil {
		tc.Logger.Debug(msg, append(args, slog.Uint64("entity", uint64(tc.Entity)))...)
	}
}
