package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/blackboard"
)

// probe counts what happens to the leaves one factory hands out.
type probe struct {
	need    int
	result  api.TaskStatus
	created int
	execs   int
	aborts  int
}

type probeTask struct {
	p *probe
	n int
}

func (t *probeTask) Execute(api.Params) api.TaskStatus {
	t.p.execs++
	t.n++
	if t.n >= t.p.need {
		return t.p.result
	}
	return api.StatusRunning
}

func (t *probeTask) Abort() { t.p.aborts++ }

func (p *probe) factory() api.TaskFactory {
	return func() api.AtomicTask {
		p.created++
		return &probeTask{p: p}
	}
}

// counterTask increments the Counter variable and keeps running.
type counterTask struct {
	api.NoAbort
	seen *api.Params
}

func (c *counterTask) Execute(api.Params) api.TaskStatus { return api.StatusFailure }

func (c *counterTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	if c.seen != nil {
		*c.seen = params
	}
	v, err := tc.Blackboard.GetValue("Counter")
	if err != nil {
		return api.StatusFailure
	}
	if err := tc.Blackboard.SetValue("Counter", api.IntValue(v.AsInt()+1)); err != nil {
		return api.StatusFailure
	}
	return api.StatusRunning
}

func leaf(id int, task string, params map[string]api.ParameterBinding) graph.NodeDef {
	return graph.NodeDef{ID: id, Name: task, Type: graph.NodeAtomicTask, TaskID: task, Params: params}
}

func compile(t *testing.T, def *graph.Definition) *graph.Template {
	t.Helper()
	tmpl, err := graph.Compile(def)
	require.NoError(t, err)
	return tmpl
}

func sequence(t *testing.T, vars []api.VariableDefinition, leaves ...graph.NodeDef) *graph.Template {
	t.Helper()
	root := graph.NodeDef{ID: 0, Name: "Root", Type: graph.NodeSequence}
	for _, l := range leaves {
		root.Children = append(root.Children, l.ID)
	}
	return compile(t, &graph.Definition{
		Name:      "test",
		Variables: vars,
		RootID:    0,
		Nodes:     append([]graph.NodeDef{root}, leaves...),
	})
}

func TestExecuteNode_RunningPersistsAcrossTicks(t *testing.T) {
	p := &probe{need: 4, result: api.StatusSuccess}
	reg := NewTaskRegistry()
	reg.Register("Slow", p.factory())
	reg.Register("Next", constFactory(api.StatusSuccess))

	sys := NewSystem(Config{Registry: reg})
	tmpl := sequence(t, nil, leaf(1, "Slow", nil), leaf(2, "Next", nil))
	r := sys.Bind(1, 7, tmpl)
	ctx := context.Background()

	var first api.AtomicTask
	for i := 0; i < 3; i++ {
		require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.1))
		assert.True(t, r.HasActiveTask())
		assert.Equal(t, 0, r.CurrentNode)
		if first == nil {
			first = r.ActiveTask()
		}
		assert.Same(t, first, r.ActiveTask())
	}
	assert.InDelta(t, 0.3, r.StateTimer, 1e-9)
	assert.Equal(t, api.TaskStatus(""), r.LastStatus)

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.1))
	assert.False(t, r.HasActiveTask())
	assert.Equal(t, api.StatusSuccess, r.LastStatus)
	assert.Equal(t, 1, r.CurrentNode)
	assert.Zero(t, r.StateTimer)
	assert.Equal(t, 1, p.created)
	assert.Equal(t, 4, p.execs)
	assert.Zero(t, p.aborts)
}

func TestExecuteNode_InterruptAbortsOnce(t *testing.T) {
	p := &probe{need: 100, result: api.StatusSuccess}
	reg := NewTaskRegistry()
	reg.Register("Slow", p.factory())

	metrics := &api.BasicMetrics{}
	sys := NewSystem(Config{Registry: reg, Observer: metrics})
	tmpl := sequence(t, nil, leaf(1, "Slow", nil))
	r := sys.Bind(1, 7, tmpl)
	ctx := context.Background()

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	require.True(t, r.HasActiveTask())

	r.Interrupt()
	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	assert.Equal(t, 1, p.aborts)
	assert.Equal(t, 2, p.execs)
	assert.False(t, r.HasActiveTask())
	assert.True(t, r.Finished())

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	assert.Equal(t, 1, p.aborts)
	assert.Equal(t, 2, p.execs)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.NodesStarted)
	assert.Equal(t, int64(1), snap.TasksAborted)
}

func TestExecuteNode_UnregisteredFailsIntoSelectorFallback(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register("Fallback", constFactory(api.StatusSuccess))
	sys := NewSystem(Config{Registry: reg})

	tmpl := compile(t, &graph.Definition{
		Name:   "fallback",
		RootID: 0,
		Nodes: []graph.NodeDef{
			{ID: 0, Name: "Root", Type: graph.NodeSelector, Children: []int{1, 2}},
			leaf(1, "Missing", nil),
			leaf(2, "Fallback", nil),
		},
	})
	assert.Equal(t, []string{"Missing"}, sys.MissingTasks(tmpl))

	r := sys.Bind(3, 1, tmpl)
	ctx := context.Background()

	require.NoError(t, sys.ExecuteNode(ctx, 3, r, tmpl, 0.016))
	assert.Equal(t, 1, r.CurrentNode)
	assert.Equal(t, api.StatusFailure, r.LastStatus)

	require.NoError(t, sys.ExecuteNode(ctx, 3, r, tmpl, 0.016))
	assert.True(t, r.Finished())
	assert.Equal(t, api.StatusSuccess, r.LastStatus)
}

func TestExecuteNode_ResolvesParametersAndPersistsBlackboard(t *testing.T) {
	vars := []api.VariableDefinition{
		{Name: "Counter", Type: api.TypeInt, Default: api.IntValue(0)},
		{Name: "Goal", Type: api.TypeVector3, Default: api.Vector3Value(api.Vec3(1, 2, 3))},
	}
	var seen api.Params
	reg := NewTaskRegistry()
	reg.Register("Count", func() api.AtomicTask { return &counterTask{seen: &seen} })
	sys := NewSystem(Config{Registry: reg})

	tmpl := sequence(t, vars, leaf(1, "Count", map[string]api.ParameterBinding{
		"Target": api.Ref("Goal"),
		"Speed":  api.Literal(api.FloatValue(2)),
	}))
	r := sys.Bind(1, 1, tmpl)

	for i := 0; i < 3; i++ {
		require.NoError(t, sys.ExecuteNode(context.Background(), 1, r, tmpl, 0.016))
	}

	require.NotNil(t, seen)
	assert.Equal(t, api.Vec3(1, 2, 3), seen["Target"].AsVector3())
	assert.Equal(t, 2.0, seen["Speed"].AsFloat())

	bb := blackboard.New(vars)
	require.NoError(t, bb.Deserialize(r.Blackboard))
	v, err := bb.GetValue("Counter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestExecuteNode_CorruptBlackboardAbortsResumedTask(t *testing.T) {
	p := &probe{need: 100, result: api.StatusSuccess}
	reg := NewTaskRegistry()
	reg.Register("Slow", p.factory())
	reg.Register("Next", constFactory(api.StatusSuccess))
	sys := NewSystem(Config{Registry: reg})

	tmpl := compile(t, &graph.Definition{
		Name:   "recover",
		RootID: 0,
		Nodes: []graph.NodeDef{
			{ID: 0, Name: "Root", Type: graph.NodeSelector, Children: []int{1, 2}},
			leaf(1, "Slow", nil),
			leaf(2, "Next", nil),
		},
	})
	r := sys.Bind(1, 1, tmpl)
	ctx := context.Background()

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	require.True(t, r.HasActiveTask())

	r.Blackboard = []byte{0xde, 0xad}
	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))

	assert.Equal(t, 1, p.aborts)
	assert.Equal(t, 1, p.execs)
	assert.False(t, r.HasActiveTask())
	assert.Equal(t, api.StatusFailure, r.LastStatus)
	assert.Equal(t, 1, r.CurrentNode)
}

func TestExecuteNode_CursorMovedAbortsStaleTask(t *testing.T) {
	p := &probe{need: 100, result: api.StatusSuccess}
	reg := NewTaskRegistry()
	reg.Register("Slow", p.factory())
	reg.Register("Next", constFactory(api.StatusSuccess))
	sys := NewSystem(Config{Registry: reg})

	tmpl := sequence(t, nil, leaf(1, "Slow", nil), leaf(2, "Next", nil))
	r := sys.Bind(1, 1, tmpl)
	ctx := context.Background()

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	r.CurrentNode = 1
	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))

	assert.Equal(t, 1, p.aborts)
	assert.True(t, r.Finished())
	assert.Equal(t, api.StatusSuccess, r.LastStatus)
}

func TestExecuteNode_EngineDefects(t *testing.T) {
	reg := NewTaskRegistry()
	sys := NewSystem(Config{Registry: reg})
	tmpl := sequence(t, nil, leaf(1, "A", nil))
	r := sys.Bind(1, 1, tmpl)

	assert.ErrorIs(t, sys.ExecuteNode(context.Background(), 1, r, nil, 0.016), ErrNilTemplate)
	assert.ErrorIs(t, sys.ExecuteNode(context.Background(), 1, nil, tmpl, 0.016), ErrNilRunner)

	r.CurrentNode = 42
	err := sys.ExecuteNode(context.Background(), 1, r, tmpl, 0.016)
	assert.True(t, errors.Is(err, ErrNodeOutOfRange))
}

type fixedWorld struct {
	comps map[api.EntityID]*api.Components
}

func (w fixedWorld) Components(e api.EntityID) *api.Components { return w.comps[e] }

type componentTask struct {
	api.NoAbort
}

func (componentTask) Execute(api.Params) api.TaskStatus { return api.StatusFailure }

func (componentTask) ExecuteWithContext(tc *api.TaskContext, _ api.Params) api.TaskStatus {
	if tc.Components == nil || tc.Components.Position == nil {
		return api.StatusFailure
	}
	tc.Components.Position.X += tc.DeltaTime
	return api.StatusSuccess
}

func TestExecuteNode_PassesComponentFacade(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register("Nudge", func() api.AtomicTask { return componentTask{} })

	pos := api.Vec3(0, 0, 0)
	world := fixedWorld{comps: map[api.EntityID]*api.Components{5: {Position: &pos}}}
	sys := NewSystem(Config{Registry: reg, World: world})
	tmpl := sequence(t, nil, leaf(1, "Nudge", nil))

	withFacade := sys.Bind(5, 1, tmpl)
	require.NoError(t, sys.ExecuteNode(context.Background(), 5, withFacade, tmpl, 0.5))
	assert.Equal(t, api.StatusSuccess, withFacade.LastStatus)
	assert.Equal(t, 0.5, pos.X)

	without := sys.Bind(6, 1, tmpl)
	require.NoError(t, sys.ExecuteNode(context.Background(), 6, without, tmpl, 0.5))
	assert.Equal(t, api.StatusFailure, without.LastStatus)
}

func TestSystem_ResetAndUnbind(t *testing.T) {
	p := &probe{need: 100, result: api.StatusSuccess}
	reg := NewTaskRegistry()
	reg.Register("Slow", p.factory())
	sys := NewSystem(Config{Registry: reg})

	vars := []api.VariableDefinition{{Name: "Counter", Type: api.TypeInt, Default: api.IntValue(5)}}
	tmpl := sequence(t, vars, leaf(1, "Slow", nil))
	r := sys.Bind(1, 1, tmpl)
	ctx := context.Background()

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	r.Blackboard = nil
	sys.Reset(ctx, 1, r, tmpl)
	assert.Equal(t, 1, p.aborts)
	assert.Equal(t, tmpl.RootIndex(), r.CurrentNode)
	assert.NotEmpty(t, r.Blackboard)

	require.NoError(t, sys.ExecuteNode(ctx, 1, r, tmpl, 0.016))
	sys.Unbind(ctx, 1, r, tmpl)
	assert.Equal(t, 2, p.aborts)
	assert.True(t, r.Finished())
	assert.False(t, r.HasActiveTask())
}

func TestRunner_SnapshotRoundTrip(t *testing.T) {
	vars := []api.VariableDefinition{{Name: "Counter", Type: api.TypeInt, Default: api.IntValue(0)}}
	reg := NewTaskRegistry()
	reg.Register("Count", func() api.AtomicTask { return &counterTask{} })
	sys := NewSystem(Config{Registry: reg})
	tmpl := sequence(t, vars, leaf(1, "Count", nil))

	r := sys.Bind(9, 77, tmpl)
	require.NoError(t, sys.ExecuteNode(context.Background(), 9, r, tmpl, 0.25))
	require.True(t, r.HasActiveTask())

	data, err := r.MarshalBinary()
	require.NoError(t, err)

	var back Runner
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, r.Snapshot(), back.Snapshot())
	assert.False(t, back.HasActiveTask())

	// The restored runner re-enters its node with a fresh leaf.
	require.NoError(t, sys.ExecuteNode(context.Background(), 9, &back, tmpl, 0.25))
	bb := blackboard.New(vars)
	require.NoError(t, bb.Deserialize(back.Blackboard))
	v, _ := bb.GetValue("Counter")
	assert.Equal(t, int64(2), v.AsInt())

	finished := RestoreRunner(api.RunnerState{TemplateID: 1, NodeIndex: graph.None})
	assert.True(t, finished.Finished())
}
