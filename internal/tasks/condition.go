package tasks

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
)

// programs caches compiled expressions. Expressions come from loaded
// templates, so the set is bounded by the authored graphs.
var programs sync.Map // string -> *vm.Program

func compileExpression(src string) (*vm.Program, error) {
	if p, ok := programs.Load(src); ok {
		return p.(*vm.Program), nil
	}
	p, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	actual, _ := programs.LoadOrStore(src, p)
	return actual.(*vm.Program), nil
}

// EvaluateConditionTask evaluates the boolean Expression parameter and
// succeeds when it is true. Blackboard variables and the node's other
// parameters are visible to the expression by name; parameters shadow
// variables. Vector3 values expose X, Y and Z.
type EvaluateConditionTask struct {
	api.NoAbort
}

func (t *EvaluateConditionTask) Execute(params api.Params) api.TaskStatus {
	return t.ExecuteWithContext(&api.TaskContext{}, params)
}

func (t *EvaluateConditionTask) ExecuteWithContext(tc *api.TaskContext, params api.Params) api.TaskStatus {
	ok, err := evaluate(tc.Blackboard, params)
	if err != nil {
		debug(tc, "condition failed to evaluate", "error", err)
		return api.StatusFailure
	}
	if ok {
		return api.StatusSuccess
	}
	return api.StatusFailure
}

func evaluate(bb api.Blackboard, params api.Params) (bool, error) {
	src, ok := params.String(graph.ConditionExpressionParam)
	if !ok || src == "" {
		return false, fmt.Errorf("missing %s parameter", graph.ConditionExpressionParam)
	}
	program, err := compileExpression(src)
	if err != nil {
		return false, err
	}

	env := make(map[string]any, len(params))
	if bb != nil {
		for _, name := range bb.VariableNames() {
			if v, err := bb.GetValue(name); err == nil {
				env[name] = exprValue(v)
			}
		}
	}
	for name, v := range params {
		if name != graph.ConditionExpressionParam {
			env[name] = exprValue(v)
		}
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, not bool", out)
	}
	return b, nil
}

// exprValue unwraps v for the expression VM. Entity references become
// plain integers so they compare against literals.
func exprValue(v api.Value) any {
	if v.Type() == api.TypeEntityRef {
		return int64(v.AsEntityRef())
	}
	return v.Interface()
}
