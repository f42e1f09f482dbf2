package tasks

import (
	"math"

	"github.com/petrijr/taskgraph/pkg/api"
)

// MoveToLocationTask steers the entity towards Target at Speed units per
// second and succeeds once it is within AcceptanceRadius.
//
// With a component facade it writes the velocity and leaves integration to
// the host, falling back to moving the position itself when the entity has
// no velocity component. Headless, it advances the Position blackboard
// variable directly.
type MoveToLocationTask struct {
	api.NoAbort
}

func (t *MoveToLocationTask) Execute(api.Params) api.TaskStatus {
	return api.StatusFailure
}

func (t *MoveToLocationTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	target, ok := params.Vector3("Target")
	if !ok {
		debug(tc, "move: missing Target")
		return api.StatusFailure
	}
	speed := numberOr(params, "Speed", 1)
	radius := numberOr(params, "AcceptanceRadius", 0.1)

	pos, ok := readPosition(tc)
	if !ok {
		debug(tc, "move: no position available")
		return api.StatusFailure
	}

	offset := target.Sub(pos)
	dist := offset.Length()
	if dist <= radius {
		if tc.Components != nil && tc.Components.Velocity != nil {
			*tc.Components.Velocity = api.Vector3{}
		}
		return api.StatusSuccess
	}

	dir := offset.Scale(1 / dist)
	if tc.Components != nil {
		if tc.Components.Velocity != nil {
			*tc.Components.Velocity = dir.Scale(speed)
			return api.StatusRunning
		}
		*tc.Components.Position = pos.Add(dir.Scale(math.Min(speed*tc.DeltaTime, dist)))
		return api.StatusRunning
	}

	next := pos.Add(dir.Scale(math.Min(speed*tc.DeltaTime, dist)))
	if err := tc.Blackboard.SetValue(PositionVariable, api.Vector3Value(next)); err != nil {
		debug(tc, "move: cannot write position", "error", err)
		return api.StatusFailure
	}
	return api.StatusRunning
}
