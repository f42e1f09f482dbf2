package taskgraph

import (
	"fmt"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
)

// NodeSpec describes one node of a graph authored in code. Specs are built
// with Task, Condition, Sequence, Selector and the decorator helpers.
type NodeSpec struct {
	name       string
	typ        graph.NodeType
	task       string
	params     map[string]api.ParameterBinding
	condition  bool
	expression string
	decorator  graph.DecoratorKind
	count      int
	children   []*NodeSpec
}

// Task returns a leaf running the registered task taskID.
func Task(name, taskID string) *NodeSpec {
	if taskID == "" {
		panic(fmt.Sprintf("taskgraph: task node %q has empty task id", name))
	}
	return &NodeSpec{name: name, typ: graph.NodeAtomicTask, task: taskID}
}

// Condition returns a leaf that succeeds when expression evaluates to true
// over the blackboard and the node's parameters.
func Condition(name, expression string) *NodeSpec {
	return &NodeSpec{name: name, typ: graph.NodeAtomicTask, condition: true, expression: expression}
}

// With binds a literal parameter. value may be a Go value accepted by
// api.ValueOf, an api.Value or an api.ParameterBinding. It panics for
// anything else.
func (n *NodeSpec) With(param string, value any) *NodeSpec {
	var b api.ParameterBinding
	switch v := value.(type) {
	case api.ParameterBinding:
		b = v
	default:
		val, err := api.ValueOf(value)
		if err != nil {
			panic(fmt.Sprintf("taskgraph: node %q parameter %q: %v", n.name, param, err))
		}
		b = api.Literal(val)
	}
	if n.params == nil {
		n.params = make(map[string]api.ParameterBinding)
	}
	n.params[param] = b
	return n
}

// WithRef binds a parameter to a blackboard variable.
func (n *NodeSpec) WithRef(param, variable string) *NodeSpec {
	return n.With(param, api.Ref(variable))
}

func composite(typ graph.NodeType, name string, children []*NodeSpec) *NodeSpec {
	return &NodeSpec{name: name, typ: typ, children: children}
}

// Sequence runs children in order until one fails.
func Sequence(name string, children ...*NodeSpec) *NodeSpec {
	return composite(graph.NodeSequence, name, children)
}

// Selector runs children in order until one succeeds.
func Selector(name string, children ...*NodeSpec) *NodeSpec {
	return composite(graph.NodeSelector, name, children)
}

func decorate(kind graph.DecoratorKind, count int, child *NodeSpec) *NodeSpec {
	n := &NodeSpec{name: kind.String(), typ: graph.NodeDecorator, decorator: kind, count: count}
	if child != nil {
		n.children = []*NodeSpec{child}
	}
	return n
}

// Inverter swaps the child's success and failure.
func Inverter(child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorInverter, 0, child) }

// Succeeder reports success however the child ends.
func Succeeder(child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorSucceeder, 0, child) }

// Failer reports failure however the child ends.
func Failer(child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorFailer, 0, child) }

// Repeat runs the child n times in a row, stopping at the first failure.
func Repeat(n int, child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorRepeat, n, child) }

// Retry runs the child up to n times until it succeeds.
func Retry(n int, child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorRetry, n, child) }

// Loop runs the child until it fails.
func Loop(child *NodeSpec) *NodeSpec { return decorate(graph.DecoratorLoop, 0, child) }

// GraphBuilder provides a fluent API for authoring graphs in code:
//
//	tmpl, err := taskgraph.NewGraph("patrol").
//	    Var("Position", taskgraph.Vec3(0, 0, 0)).
//	    Root(taskgraph.Loop(taskgraph.Sequence("legs",
//	        taskgraph.Task("to A", "MoveTo").With("Target", taskgraph.Vec3(5, 0, 0)),
//	        taskgraph.Task("to B", "MoveTo").With("Target", taskgraph.Vec3(0, 0, 0)),
//	    ))).
//	    Build()
//
// Built graphs go through the same compiler as loaded documents.
type GraphBuilder struct {
	name string
	vars []api.VariableDefinition
	root *NodeSpec
}

// NewGraph creates a builder for a graph with the given name.
func NewGraph(name string) *GraphBuilder {
	if name == "" {
		panic("taskgraph: graph name must not be empty")
	}
	return &GraphBuilder{name: name}
}

// Name returns the graph name.
func (b *GraphBuilder) Name() string {
	return b.name
}

// Var declares a blackboard variable whose type is taken from its default.
// It panics for defaults api.ValueOf does not accept.
func (b *GraphBuilder) Var(name string, def any) *GraphBuilder {
	v, err := api.ValueOf(def)
	if err != nil {
		panic(fmt.Sprintf("taskgraph: variable %q: %v", name, err))
	}
	return b.Variable(api.VariableDefinition{Name: name, Type: v.Type(), Default: v})
}

// Variable declares a blackboard variable.
func (b *GraphBuilder) Variable(def api.VariableDefinition) *GraphBuilder {
	b.vars = append(b.vars, def)
	return b
}

// Root sets the root node.
func (b *GraphBuilder) Root(n *NodeSpec) *GraphBuilder {
	b.root = n
	return b
}

// Definition lowers the builder into the authoring form. Node ids are
// assigned in pre-order starting at 1. A NodeSpec used twice yields two
// independent nodes.
func (b *GraphBuilder) Definition() *graph.Definition {
	def := &graph.Definition{
		Name:      b.name,
		Variables: append([]api.VariableDefinition(nil), b.vars...),
		RootID:    1,
	}
	if b.root == nil {
		return def
	}

	next := 1
	var add func(n *NodeSpec) int
	add = func(n *NodeSpec) int {
		id := next
		next++
		def.Nodes = append(def.Nodes, graph.NodeDef{})
		pos := len(def.Nodes) - 1

		nd := graph.NodeDef{
			ID:            id,
			Name:          n.name,
			Type:          n.typ,
			TaskID:        n.task,
			Params:        n.params,
			Condition:     n.condition,
			Expression:    n.expression,
			Decorator:     n.decorator,
			Count:         n.count,
			NextOnSuccess: graph.None,
			NextOnFailure: graph.None,
		}
		for _, c := range n.children {
			if c != nil {
				nd.Children = append(nd.Children, add(c))
			}
		}
		def.Nodes[pos] = nd
		return id
	}
	add(b.root)
	return def
}

// Build compiles the graph.
func (b *GraphBuilder) Build() (*Template, error) {
	if b.root == nil {
		return nil, fmt.Errorf("taskgraph: graph %q has no root", b.name)
	}
	return graph.Compile(b.Definition())
}

// MustBuild is like Build but panics on error.
func (b *GraphBuilder) MustBuild() *Template {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
