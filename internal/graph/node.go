// Package graph holds the authoring model of task graphs, the loader for
// JSON and YAML documents, and the compiler that lowers an authoring tree
// into the flat, index-addressed Template the task system executes.
package graph

import (
	"fmt"
	"strings"

	"github.com/petrijr/taskgraph/pkg/api"
)

// None is the "no next node" sentinel. A runner whose cursor is None has
// finished its graph.
const None = -1

// NodeType is the closed set of authoring node kinds.
type NodeType uint8

const (
	NodeAtomicTask NodeType = iota
	NodeSequence
	NodeSelector
	NodeDecorator
)

func (t NodeType) String() string {
	switch t {
	case NodeAtomicTask:
		return "AtomicTask"
	case NodeSequence:
		return "Sequence"
	case NodeSelector:
		return "Selector"
	case NodeDecorator:
		return "Decorator"
	}
	return fmt.Sprintf("NodeType(%d)", uint8(t))
}

// IsComposite reports whether t routes control to children.
func (t NodeType) IsComposite() bool {
	return t != NodeAtomicTask
}

// DecoratorKind selects how a Decorator alters its single child.
type DecoratorKind uint8

const (
	// DecoratorRepeat runs the child Count times in a row; any failure fails
	// the decorator.
	DecoratorRepeat DecoratorKind = iota
	// DecoratorRetry runs the child up to Count times until it succeeds.
	DecoratorRetry
	// DecoratorInverter swaps the child's success and failure.
	DecoratorInverter
	// DecoratorSucceeder reports success whatever the child returns.
	DecoratorSucceeder
	// DecoratorFailer reports failure whatever the child returns.
	DecoratorFailer
	// DecoratorLoop re-enters the child after every success and fails when
	// the child fails.
	DecoratorLoop
)

var decoratorNames = map[DecoratorKind]string{
	DecoratorRepeat:    "Repeat",
	DecoratorRetry:     "Retry",
	DecoratorInverter:  "Inverter",
	DecoratorSucceeder: "Succeeder",
	DecoratorFailer:    "Failer",
	DecoratorLoop:      "Loop",
}

func (k DecoratorKind) String() string {
	if s, ok := decoratorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("DecoratorKind(%d)", uint8(k))
}

// ParseDecoratorKind parses a decorator name. An empty name means Repeat.
func ParseDecoratorKind(s string) (DecoratorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "repeat":
		return DecoratorRepeat, nil
	case "retry", "retryuntilsuccess":
		return DecoratorRetry, nil
	case "inverter", "invert", "not":
		return DecoratorInverter, nil
	case "succeeder", "alwayssucceed", "forcesuccess":
		return DecoratorSucceeder, nil
	case "failer", "alwaysfail", "forcefailure":
		return DecoratorFailer, nil
	case "loop", "repeatuntilfailure", "forever":
		return DecoratorLoop, nil
	}
	return 0, fmt.Errorf("unknown decorator %q", s)
}

// Node is one compiled node of a Template. Every compiled node is an
// AtomicTask leaf; composites only exist in the authoring tree and are
// lowered into NextOnSuccess/NextOnFailure edges.
//
// Nodes handed out by a Template are shared by every runner bound to it and
// must not be modified.
type Node struct {
	ID            int
	Name          string
	Type          NodeType
	TaskID        string
	Params        map[string]api.ParameterBinding
	NextOnSuccess int
	NextOnFailure int
}

// Template is the immutable compiled form of a task graph. A Template is
// safe for concurrent use by any number of runners.
type Template struct {
	name      string
	nodes     []Node
	root      int
	byID      map[int]int
	variables []api.VariableDefinition
}

// NewTemplate validates and assembles a Template from already-flat nodes.
// byID may be nil, in which case the reverse lookup is derived from the
// nodes' IDs (first occurrence wins).
func NewTemplate(name string, nodes []Node, root int, variables []api.VariableDefinition, byID map[int]int) (*Template, error) {
	var problems []string
	if len(nodes) == 0 {
		problems = append(problems, "graph has no nodes")
	}
	if root < 0 || root >= len(nodes) {
		problems = append(problems, fmt.Sprintf("root index %d out of range", root))
	}

	declared := make(map[string]bool, len(variables))
	for _, v := range variables {
		declared[v.Name] = true
	}

	for _, n := range nodes {
		label := fmt.Sprintf("node %d (%s)", n.ID, n.Name)
		if n.Type != NodeAtomicTask {
			problems = append(problems, fmt.Sprintf("%s: compiled node must be an AtomicTask, got %s", label, n.Type))
		}
		if n.TaskID == "" {
			problems = append(problems, label+": missing task id")
		}
		if !validNext(n.NextOnSuccess, len(nodes)) {
			problems = append(problems, fmt.Sprintf("%s: nextOnSuccess %d out of range", label, n.NextOnSuccess))
		}
		if !validNext(n.NextOnFailure, len(nodes)) {
			problems = append(problems, fmt.Sprintf("%s: nextOnFailure %d out of range", label, n.NextOnFailure))
		}
		for _, pname := range sortedKeys(n.Params) {
			b := n.Params[pname]
			if b.IsReference() && !declared[b.Reference()] {
				problems = append(problems, fmt.Sprintf("%s: parameter %q references undeclared variable %q", label, pname, b.Reference()))
			}
		}
	}
	if len(problems) > 0 {
		return nil, &LoadError{Graph: name, Problems: problems}
	}

	t := &Template{
		name:      name,
		nodes:     make([]Node, len(nodes)),
		root:      root,
		variables: append([]api.VariableDefinition(nil), variables...),
	}
	copy(t.nodes, nodes)
	if byID == nil {
		byID = make(map[int]int, len(nodes))
		for i, n := range nodes {
			if _, ok := byID[n.ID]; !ok {
				byID[n.ID] = i
			}
		}
	}
	t.byID = make(map[int]int, len(byID))
	for k, v := range byID {
		t.byID[k] = v
	}
	return t, nil
}

func validNext(i, n int) bool {
	return i == None || (i >= 0 && i < n)
}

// Name returns the graph name.
func (t *Template) Name() string { return t.name }

// Len returns the number of compiled nodes.
func (t *Template) Len() int { return len(t.nodes) }

// RootIndex returns the index a freshly bound runner starts at.
func (t *Template) RootIndex() int { return t.root }

// GetNode returns the node at index i.
func (t *Template) GetNode(i int) (*Node, bool) {
	if i < 0 || i >= len(t.nodes) {
		return nil, false
	}
	return &t.nodes[i], true
}

// IndexOf maps an authoring node id to its flat index. Composite ids map
// to the index control enters them at.
func (t *Template) IndexOf(id int) (int, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// Variables returns a copy of the variable schema.
func (t *Template) Variables() []api.VariableDefinition {
	return append([]api.VariableDefinition(nil), t.variables...)
}

// TaskIDs returns the distinct task ids referenced by the graph, in node
// order.
func (t *Template) TaskIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range t.nodes {
		if !seen[n.TaskID] {
			seen[n.TaskID] = true
			out = append(out, n.TaskID)
		}
	}
	return out
}
