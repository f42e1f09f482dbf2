package tasks

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskgraph/internal/engine"
	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/blackboard"
	"github.com/petrijr/taskgraph/pkg/worker"
)

const dt = 0.016

func lit(v api.Value) api.ParameterBinding { return api.Literal(v) }

func leaf(id int, task string, params map[string]api.ParameterBinding) graph.NodeDef {
	return graph.NodeDef{ID: id, Name: task, Type: graph.NodeAtomicTask, TaskID: task, Params: params}
}

func newSystem(t *testing.T, deps Deps, world api.World) *engine.System {
	t.Helper()
	reg := engine.NewTaskRegistry()
	RegisterBuiltins(reg, deps)
	return engine.NewSystem(engine.Config{Registry: reg, World: world})
}

func compile(t *testing.T, def *graph.Definition) *graph.Template {
	t.Helper()
	tmpl, err := graph.Compile(def)
	require.NoError(t, err)
	return tmpl
}

func board(t *testing.T, tmpl *graph.Template, runner *engine.Runner) *blackboard.LocalBlackboard {
	t.Helper()
	bb := blackboard.New(tmpl.Variables())
	require.NoError(t, bb.Deserialize(runner.Blackboard))
	return bb
}

func TestMoveWaitSet_EndToEnd(t *testing.T) {
	tmpl := compile(t, &graph.Definition{
		Name: "move-wait-set",
		Variables: []api.VariableDefinition{
			{Name: PositionVariable, Type: api.TypeVector3, Default: api.Vector3Value(api.Vector3{})},
			{Name: "Done", Type: api.TypeBool, Default: api.BoolValue(false)},
		},
		RootID: 1,
		Nodes: []graph.NodeDef{
			{ID: 1, Name: "root", Type: graph.NodeSequence, Children: []int{2, 3, 4}},
			leaf(2, "MoveToLocation", map[string]api.ParameterBinding{
				"Target": lit(api.Vector3Value(api.Vec3(5, 0, 0))),
				"Speed":  lit(api.FloatValue(200)),
			}),
			leaf(3, "Wait", map[string]api.ParameterBinding{
				"Duration": lit(api.FloatValue(0.05)),
			}),
			leaf(4, "SetVariable", map[string]api.ParameterBinding{
				"Variable": lit(api.StringValue("Done")),
				"Value":    lit(api.BoolValue(true)),
			}),
		},
	})

	sys := newSystem(t, Deps{}, nil)
	runner := sys.Bind(1, 1, tmpl)
	require.Empty(t, sys.MissingTasks(tmpl))

	visits := []int{runner.CurrentNode}
	for i := 0; i < 60 && !runner.Finished(); i++ {
		require.NoError(t, sys.ExecuteNode(context.Background(), 1, runner, tmpl, dt))
		if runner.CurrentNode != visits[len(visits)-1] {
			visits = append(visits, runner.CurrentNode)
		}
	}

	assert.Equal(t, []int{0, 1, 2, graph.None}, visits)
	assert.Equal(t, api.StatusSuccess, runner.LastStatus)

	bb := board(t, tmpl, runner)
	done, err := bb.GetValue("Done")
	require.NoError(t, err)
	assert.True(t, done.AsBool())
	pos, err := bb.GetValue(PositionVariable)
	require.NoError(t, err)
	assert.InDelta(t, 5, pos.AsVector3().X, 1e-9)
}

func TestMoveToLocation_MissingTargetFails(t *testing.T) {
	tmpl := compile(t, &graph.Definition{
		Name: "no-target",
		Variables: []api.VariableDefinition{
			{Name: PositionVariable, Type: api.TypeVector3, Default: api.Vector3Value(api.Vector3{})},
		},
		RootID: 1,
		Nodes:  []graph.NodeDef{leaf(1, MoveToLocationID, nil)},
	})
	sys := newSystem(t, Deps{}, nil)
	runner := sys.Bind(1, 1, tmpl)

	require.NoError(t, sys.ExecuteNode(context.Background(), 1, runner, tmpl, dt))
	assert.Equal(t, api.StatusFailure, runner.LastStatus)
	assert.True(t, runner.Finished())
}

func TestMoveToLocation_NoPositionSourceFails(t *testing.T) {
	task := &MoveToLocationTask{}
	params := api.Params{"Target": api.Vector3Value(api.Vec3(1, 0, 0))}

	assert.Equal(t, api.StatusFailure, task.ExecuteWithContext(&api.TaskContext{DeltaTime: dt}, params))

	nilPos := &api.TaskContext{DeltaTime: dt, Components: &api.Components{}}
	assert.Equal(t, api.StatusFailure, task.ExecuteWithContext(nilPos, params))
}

type oneEntity struct {
	comps *api.Components
}

func (w oneEntity) Components(api.EntityID) *api.Components { return w.comps }

func TestMoveToLocation_WritesVelocityThroughComponents(t *testing.T) {
	pos := api.Vec3(0, 0, 0)
	vel := api.Vec3(0, 0, 0)
	world := oneEntity{comps: &api.Components{Position: &pos, Velocity: &vel}}

	tmpl := compile(t, &graph.Definition{
		Name:   "ecs-move",
		RootID: 1,
		Nodes: []graph.NodeDef{leaf(1, MoveToLocationID, map[string]api.ParameterBinding{
			"Target": lit(api.Vector3Value(api.Vec3(0, 0, 2))),
			"Speed":  lit(api.IntValue(10)),
		})},
	})
	sys := newSystem(t, Deps{}, world)
	runner := sys.Bind(7, 1, tmpl)

	require.NoError(t, sys.ExecuteNode(context.Background(), 7, runner, tmpl, 0.1))
	assert.Equal(t, api.Vec3(0, 0, 10), vel)
	assert.True(t, runner.HasActiveTask())

	// The host integrates velocity between ticks.
	for i := 0; i < 10 && !runner.Finished(); i++ {
		pos = pos.Add(vel.Scale(0.1))
		if pos.Z > 2 {
			pos.Z = 2
		}
		require.NoError(t, sys.ExecuteNode(context.Background(), 7, runner, tmpl, 0.1))
	}
	assert.Equal(t, api.StatusSuccess, runner.LastStatus)
	assert.Equal(t, api.Vector3{}, vel)
}

func TestWait(t *testing.T) {
	task := &WaitTask{}
	tc := &api.TaskContext{DeltaTime: 0.5}
	params := api.Params{"Duration": api.FloatValue(1)}

	assert.Equal(t, api.StatusRunning, task.ExecuteWithContext(tc, params))
	assert.Equal(t, api.StatusSuccess, task.ExecuteWithContext(tc, params))

	assert.Equal(t, api.StatusFailure, (&WaitTask{}).ExecuteWithContext(tc, api.Params{}))
	assert.Equal(t, api.StatusSuccess, (&WaitTask{}).ExecuteWithContext(tc, api.Params{"Duration": api.IntValue(0)}))
}

func TestSetVariable(t *testing.T) {
	bb := blackboard.New([]api.VariableDefinition{
		{Name: "Speed", Type: api.TypeFloat, Default: api.FloatValue(0)},
		{Name: "Label", Type: api.TypeString, Default: api.StringValue("")},
	})
	tc := &api.TaskContext{Blackboard: bb}
	task := &SetVariableTask{}

	status := task.ExecuteWithContext(tc, api.Params{"Variable": api.StringValue("Speed"), "Value": api.IntValue(3)})
	assert.Equal(t, api.StatusSuccess, status)
	v, _ := bb.GetValue("Speed")
	assert.Equal(t, api.FloatValue(3), v)

	cases := map[string]struct {
		tc     *api.TaskContext
		params api.Params
	}{
		"no blackboard":    {&api.TaskContext{}, api.Params{"Variable": api.StringValue("Speed"), "Value": api.FloatValue(1)}},
		"missing variable": {tc, api.Params{"Value": api.FloatValue(1)}},
		"missing value":    {tc, api.Params{"Variable": api.StringValue("Speed")}},
		"unknown variable": {tc, api.Params{"Variable": api.StringValue("speed"), "Value": api.FloatValue(1)}},
		"type mismatch":    {tc, api.Params{"Variable": api.StringValue("Label"), "Value": api.BoolValue(true)}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, api.StatusFailure, task.ExecuteWithContext(c.tc, c.params))
		})
	}
	label, _ := bb.GetValue("Label")
	assert.Equal(t, "", label.AsString())
}

func TestLogMessage_DefaultsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	task := &LogMessageTask{logger: logger}

	assert.Equal(t, api.StatusSuccess, task.Execute(api.Params{}))
	assert.Contains(t, buf.String(), defaultLogMessage)

	buf.Reset()
	assert.Equal(t, api.StatusSuccess, task.Execute(api.Params{
		"Message": api.StringValue("arrived"),
		"Level":   api.StringValue("warn"),
	}))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "arrived")
}

func TestEvaluateCondition(t *testing.T) {
	bb := blackboard.New([]api.VariableDefinition{
		{Name: "Counter", Type: api.TypeInt, Default: api.IntValue(3)},
		{Name: "Position", Type: api.TypeVector3, Default: api.Vector3Value(api.Vec3(1, 2, 3))},
		{Name: "Target", Type: api.TypeEntityRef, Default: api.EntityRefValue(42)},
	})
	tc := &api.TaskContext{Blackboard: bb}
	task := &EvaluateConditionTask{}

	run := func(expression string, extra api.Params) api.TaskStatus {
		params := api.Params{graph.ConditionExpressionParam: api.StringValue(expression)}
		for k, v := range extra {
			params[k] = v
		}
		return task.ExecuteWithContext(tc, params)
	}

	assert.Equal(t, api.StatusSuccess, run("Counter >= 3", nil))
	assert.Equal(t, api.StatusFailure, run("Counter > 3", nil))
	assert.Equal(t, api.StatusSuccess, run("Position.Z == 3.0 && Target == 42", nil))
	assert.Equal(t, api.StatusSuccess, run("Counter < Limit", api.Params{"Limit": api.IntValue(10)}))
	assert.Equal(t, api.StatusFailure, run("Counter + 1", nil))
	assert.Equal(t, api.StatusFailure, run("Counter >=", nil))
	assert.Equal(t, api.StatusFailure, task.ExecuteWithContext(tc, api.Params{}))
}

func TestEvaluateCondition_BacksConditionNodes(t *testing.T) {
	tmpl, err := graph.LoadFromJSON([]byte(`{
		"schemaVersion": 1,
		"name": "guarded",
		"variables": [{"name": "Ammo", "type": "Int", "default": 0}],
		"data": {
			"rootNodeId": 1,
			"nodes": [
				{"id": 1, "name": "root", "type": "Selector", "children": [2, 3]},
				{"id": 2, "name": "HasAmmo?", "type": "Condition", "condition": "Ammo > 0"},
				{"id": 3, "name": "reload", "type": "AtomicTask", "task": "SetVariable",
				 "parameters": {"Variable": "Ammo", "Value": 6}}
			]
		}
	}`))
	require.NoError(t, err)

	sys := newSystem(t, Deps{}, nil)
	runner := sys.Bind(1, 1, tmpl)
	for i := 0; i < 5 && !runner.Finished(); i++ {
		require.NoError(t, sys.ExecuteNode(context.Background(), 1, runner, tmpl, dt))
	}
	require.True(t, runner.Finished())
	assert.Equal(t, api.StatusSuccess, runner.LastStatus)
	ammo, _ := board(t, tmpl, runner).GetValue("Ammo")
	assert.Equal(t, int64(6), ammo.AsInt())
}

func pathGraph(t *testing.T, delay float64) *graph.Template {
	return compile(t, &graph.Definition{
		Name: "path",
		Variables: []api.VariableDefinition{
			{Name: "Path", Type: api.TypeString, Default: api.StringValue("")},
		},
		RootID: 1,
		Nodes: []graph.NodeDef{leaf(1, RequestPathID, map[string]api.ParameterBinding{
			"Start":  lit(api.Vector3Value(api.Vec3(0, 0, 0))),
			"Target": lit(api.Vector3Value(api.Vec3(3, 0, 4))),
			"Delay":  lit(api.FloatValue(delay)),
		})},
	})
}

func TestRequestPath_CompletesWithinBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := worker.NewPool(worker.PoolConfig{Workers: 2})
	pool.Start(ctx)
	defer pool.Stop()

	tmpl := pathGraph(t, 0)
	sys := newSystem(t, Deps{Paths: pool}, nil)
	runner := sys.Bind(1, 1, tmpl)

	for i := 0; i < 200 && !runner.Finished(); i++ {
		require.NoError(t, sys.ExecuteNode(ctx, 1, runner, tmpl, dt))
		time.Sleep(time.Millisecond)
	}

	require.True(t, runner.Finished())
	assert.Equal(t, api.StatusSuccess, runner.LastStatus)
	raw, _ := board(t, tmpl, runner).GetValue("Path")
	path, err := api.ParsePath(raw.AsString())
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, api.Vec3(3, 0, 4), path[len(path)-1])
}

func TestRequestPath_DelayedRequestRunsAndAbortCancels(t *testing.T) {
	pool := worker.NewPool(worker.PoolConfig{})
	tmpl := pathGraph(t, 0.5)
	sys := newSystem(t, Deps{Paths: pool}, nil)
	runner := sys.Bind(1, 1, tmpl)

	require.NoError(t, sys.ExecuteNode(context.Background(), 1, runner, tmpl, dt))
	assert.Equal(t, 0, runner.CurrentNode)
	require.True(t, runner.HasActiveTask())
	ticket := runner.ActiveTask().(*RequestPathTask).ticket
	require.NotNil(t, ticket)
	assert.Equal(t, worker.TicketPending, ticket.State())
	assert.Equal(t, 0, pool.Pending())

	sys.Unbind(context.Background(), 1, runner, tmpl)
	assert.Equal(t, worker.TicketCancelled, ticket.State())

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	processed, err := pool.ProcessOne(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, processed)
	assert.Equal(t, worker.TicketCancelled, ticket.State())
	raw, _ := board(t, tmpl, runner).GetValue("Path")
	assert.Equal(t, "", raw.AsString())
}

func TestRequestPath_WithoutPoolFails(t *testing.T) {
	tmpl := pathGraph(t, 0)
	sys := newSystem(t, Deps{}, nil)
	runner := sys.Bind(1, 1, tmpl)

	require.NoError(t, sys.ExecuteNode(context.Background(), 1, runner, tmpl, dt))
	assert.Equal(t, api.StatusFailure, runner.LastStatus)
}
