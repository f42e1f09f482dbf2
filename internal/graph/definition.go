package graph

import (
	"github.com/petrijr/taskgraph/pkg/api"
)

const (
	// SchemaVersion is the newest document schema version the loader reads.
	SchemaVersion = 1

	// MaxUnroll bounds the Count of Repeat and Retry decorators.
	MaxUnroll = 64

	// MaxCompiledNodes bounds the size of a compiled graph after unrolling.
	MaxCompiledNodes = 1 << 16

	// ConditionTaskID backs condition nodes that do not name a task.
	ConditionTaskID = "EvaluateConditionTask"

	// ConditionExpressionParam is the parameter carrying a condition's
	// expression.
	ConditionExpressionParam = "Expression"
)

// Definition is the authoring form of a graph: an arena of nodes that
// reference their children by id. It is produced by the document decoder
// or by a builder, and lowered into a Template by Compile.
type Definition struct {
	Name      string
	Variables []api.VariableDefinition
	RootID    int

	// Flat marks a pre-flattened definition whose nodes carry explicit
	// NextOnSuccess/NextOnFailure indices into Nodes.
	Flat  bool
	Nodes []NodeDef
}

// NodeDef is one authoring node.
type NodeDef struct {
	ID       int
	Name     string
	Type     NodeType
	Children []int

	// Decorator and Count apply to NodeDecorator only.
	Decorator DecoratorKind
	Count     int

	TaskID string
	Params map[string]api.ParameterBinding

	// Condition marks a condition-style node. It compiles to an AtomicTask
	// backed by ConditionTaskID unless TaskID is set.
	Condition  bool
	Expression string

	// NextOnSuccess and NextOnFailure are used by flat definitions only.
	NextOnSuccess int
	NextOnFailure int
}

// leafTask returns the task id and parameters a leaf compiles to, applying
// condition normalisation.
func (n *NodeDef) leafTask() (string, map[string]api.ParameterBinding) {
	params := make(map[string]api.ParameterBinding, len(n.Params)+1)
	for k, v := range n.Params {
		params[k] = v
	}
	task := n.TaskID
	if n.Condition {
		if task == "" {
			task = ConditionTaskID
		}
		if _, ok := params[ConditionExpressionParam]; !ok && n.Expression != "" {
			params[ConditionExpressionParam] = api.Literal(api.StringValue(n.Expression))
		}
	}
	return task, params
}
