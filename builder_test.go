package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphBuilder_PreOrderIDs(t *testing.T) {
	def := NewGraph("ids").
		Root(Sequence("root",
			Task("a", "A"),
			Selector("choice", Task("b", "B"), Task("c", "C")),
		)).
		Definition()

	require.Len(t, def.Nodes, 5)
	assert.Equal(t, 1, def.RootID)
	var names []string
	for i, n := range def.Nodes {
		assert.Equal(t, i+1, n.ID)
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"root", "a", "choice", "b", "c"}, names)
	assert.Equal(t, []int{2, 3}, def.Nodes[0].Children)
	assert.Equal(t, []int{4, 5}, def.Nodes[2].Children)
}

func TestGraphBuilder_CompilesEdges(t *testing.T) {
	tmpl := NewGraph("edges").
		Root(Selector("root",
			Sequence("attack", Task("aim", "Aim"), Task("fire", "Fire")),
			Task("flee", "Flee"),
		)).
		MustBuild()

	require.Equal(t, 3, tmpl.Len())
	aim, _ := tmpl.GetNode(0)
	fire, _ := tmpl.GetNode(1)
	flee, _ := tmpl.GetNode(2)

	assert.Equal(t, 1, aim.NextOnSuccess)
	assert.Equal(t, 2, aim.NextOnFailure)
	assert.Equal(t, NoNode, fire.NextOnSuccess)
	assert.Equal(t, 2, fire.NextOnFailure)
	assert.Equal(t, NoNode, flee.NextOnSuccess)
	assert.Equal(t, NoNode, flee.NextOnFailure)
}

func TestGraphBuilder_Decorators(t *testing.T) {
	retry := NewGraph("retry").Root(Retry(3, Task("try", "Try"))).MustBuild()
	require.Equal(t, 3, retry.Len())
	for i := 0; i < 3; i++ {
		n, _ := retry.GetNode(i)
		assert.Equal(t, NoNode, n.NextOnSuccess, "copy %d", i)
	}
	last, _ := retry.GetNode(2)
	assert.Equal(t, NoNode, last.NextOnFailure)

	loop := NewGraph("loop").Root(Loop(Sequence("legs", Task("a", "Go"), Task("b", "Go")))).MustBuild()
	require.Equal(t, 2, loop.Len())
	b, _ := loop.GetNode(1)
	assert.Equal(t, 0, b.NextOnSuccess)
	assert.Equal(t, NoNode, b.NextOnFailure)

	inv := NewGraph("inv").Root(Inverter(Task("x", "X"))).MustBuild()
	x, _ := inv.GetNode(0)
	assert.Equal(t, NoNode, x.NextOnSuccess)
	assert.Equal(t, NoNode, x.NextOnFailure)
}

func TestGraphBuilder_ParamsAndConditions(t *testing.T) {
	tmpl := NewGraph("params").
		Var("Target", Vec3(1, 2, 3)).
		Var("Armed", true).
		Root(Sequence("root",
			Condition("armed?", "Armed"),
			Task("move", "MoveTo").WithRef("Target", "Target").With("Speed", 2.5),
		)).
		MustBuild()

	cond, _ := tmpl.GetNode(0)
	assert.Equal(t, "EvaluateConditionTask", cond.TaskID)
	assert.Equal(t, "Armed", cond.Params["Expression"].LiteralValue().AsString())

	move, _ := tmpl.GetNode(1)
	assert.True(t, move.Params["Target"].IsReference())
	assert.Equal(t, "Target", move.Params["Target"].Reference())
	assert.InDelta(t, 2.5, move.Params["Speed"].LiteralValue().AsFloat(), 1e-9)

	vars := tmpl.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, TypeVector3, vars[0].Type)
	assert.Equal(t, TypeBool, vars[1].Type)
}

func TestGraphBuilder_Errors(t *testing.T) {
	_, err := NewGraph("empty").Build()
	assert.Error(t, err)

	_, err = NewGraph("no expression").
		Root(Sequence("root", Condition("empty", ""), Inverter(nil))).
		Build()
	var le *LoadError
	assert.ErrorAs(t, err, &le)

	assert.Panics(t, func() { Task("x", "") })
	assert.Panics(t, func() { NewGraph("") })
	assert.Panics(t, func() { Task("x", "X").With("p", struct{}{}) })
	assert.Panics(t, func() { NewGraph("g").Var("v", []int{1}) })
}

func TestActionAndPredicate(t *testing.T) {
	seen := EntityID(0)
	task := Action(func(tc *TaskContext, p Params) TaskStatus {
		seen = tc.Entity
		return StatusRunning
	})()
	ct, ok := task.(ContextTask)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, ct.ExecuteWithContext(&TaskContext{Entity: 5}, nil))
	assert.Equal(t, EntityID(5), seen)
	assert.Equal(t, StatusRunning, task.Execute(nil))

	even := Predicate(func(_ *TaskContext, p Params) bool {
		n, _ := p.Number("N")
		return int(n)%2 == 0
	})
	assert.Equal(t, StatusSuccess, even().Execute(Params{"N": IntValue(4)}))
	assert.Equal(t, StatusFailure, even().Execute(Params{"N": IntValue(3)}))
	assert.Equal(t, StatusSuccess, Succeed().Execute(nil))
	assert.Equal(t, StatusFailure, Fail().Execute(nil))
}
