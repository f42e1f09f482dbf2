package graph

import (
	"fmt"

	"github.com/petrijr/taskgraph/pkg/api"
)

// Compile validates def and lowers it into a Template.
//
// Tree definitions are flattened by assigning every leaf an index in
// pre-order and wiring transitions from composite semantics: a Sequence
// moves to the next child on success and fails fast, a Selector moves to
// the next child on failure and succeeds fast. Repeat and Retry decorators
// are unrolled into Count copies of their child. A composite's index in the
// reverse lookup is the index control first enters it at.
func Compile(def *Definition) (*Template, error) {
	if def == nil {
		return nil, &LoadError{Problems: []string{"nil definition"}}
	}

	var p problems
	vars := normalizeVariables(def.Variables, &p)
	byID := indexNodes(def, &p)

	if def.Flat {
		return compileFlat(def, vars, byID, &p)
	}
	return compileTree(def, vars, byID, &p)
}

func normalizeVariables(in []api.VariableDefinition, p *problems) []api.VariableDefinition {
	out := make([]api.VariableDefinition, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		switch {
		case v.Name == "":
			p.add("variable with empty name")
			continue
		case seen[v.Name]:
			p.add(fmt.Sprintf("variable %q declared twice", v.Name))
			continue
		case !v.Type.Valid():
			p.add(fmt.Sprintf("variable %q: invalid type", v.Name))
			continue
		}
		seen[v.Name] = true
		if !v.Default.IsValid() {
			v.Default = api.ZeroValue(v.Type)
		} else if v.Default.Type() != v.Type {
			conv, ok := v.Default.Convert(v.Type)
			if !ok {
				p.add(fmt.Sprintf("variable %q: default %s does not match type %s", v.Name, v.Default.Type(), v.Type))
				continue
			}
			v.Default = conv
		}
		out = append(out, v)
	}
	return out
}

func indexNodes(def *Definition, p *problems) map[int]*NodeDef {
	byID := make(map[int]*NodeDef, len(def.Nodes))
	if len(def.Nodes) == 0 {
		p.add("graph has no nodes")
	}
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if _, dup := byID[n.ID]; dup {
			p.add(fmt.Sprintf("duplicate node id %d", n.ID))
			continue
		}
		byID[n.ID] = n
	}
	if _, ok := byID[def.RootID]; !ok && len(def.Nodes) > 0 {
		p.add(fmt.Sprintf("root node %d does not exist", def.RootID))
	}
	return byID
}

func label(n *NodeDef) string {
	return fmt.Sprintf("node %d (%s)", n.ID, n.Name)
}

func checkLeaf(n *NodeDef, p *problems) {
	if n.TaskID == "" && !n.Condition {
		p.add(label(n) + ": missing task id")
	}
	if n.Condition && n.TaskID == "" && n.Expression == "" {
		if _, ok := n.Params[ConditionExpressionParam]; !ok {
			p.add(label(n) + ": condition has no expression")
		}
	}
}

func compileFlat(def *Definition, vars []api.VariableDefinition, byID map[int]*NodeDef, p *problems) (*Template, error) {
	nodes := make([]Node, 0, len(def.Nodes))
	root := None
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.Type != NodeAtomicTask {
			p.add(fmt.Sprintf("%s: flat graphs may only contain AtomicTask nodes, got %s", label(n), n.Type))
			continue
		}
		if len(n.Children) > 0 {
			p.add(label(n) + ": flat node declares children")
		}
		checkLeaf(n, p)
		if n.ID == def.RootID && root == None {
			root = i
		}
		task, params := n.leafTask()
		nodes = append(nodes, Node{
			ID:            n.ID,
			Name:          n.Name,
			Type:          NodeAtomicTask,
			TaskID:        task,
			Params:        params,
			NextOnSuccess: n.NextOnSuccess,
			NextOnFailure: n.NextOnFailure,
		})
	}
	if err := p.err(def.Name); err != nil {
		return nil, err
	}
	return NewTemplate(def.Name, nodes, root, vars, nil)
}

// cnode is a node of the expanded authoring tree. Unrolled decorators get
// one cnode per copy.
type cnode struct {
	def      *NodeDef
	kind     NodeType
	deco     DecoratorKind
	children []*cnode
	index    int
}

type treeCompiler struct {
	byID     map[int]*NodeDef
	p        *problems
	expanded int
	overflow bool

	out   []Node
	index map[int]int
}

func compileTree(def *Definition, vars []api.VariableDefinition, byID map[int]*NodeDef, p *problems) (*Template, error) {
	checkTree(def, byID, p)
	if err := p.err(def.Name); err != nil {
		return nil, err
	}

	c := &treeCompiler{byID: byID, p: p, index: make(map[int]int)}
	root := c.expand(def.RootID, make(map[int]bool))
	if root == nil {
		return nil, p.err(def.Name)
	}
	c.allocate(root)
	c.wire(root, None, None)
	return NewTemplate(def.Name, c.out, entry(root), vars, c.index)
}

func checkTree(def *Definition, byID map[int]*NodeDef, p *problems) {
	parents := make(map[int]int)
	for i := range def.Nodes {
		n := &def.Nodes[i]
		for _, ch := range n.Children {
			if _, ok := byID[ch]; !ok {
				p.add(fmt.Sprintf("%s: child %d does not exist", label(n), ch))
				continue
			}
			if parent, seen := parents[ch]; seen && parent != n.ID {
				p.add(fmt.Sprintf("node %d has more than one parent (%d and %d)", ch, parent, n.ID))
				continue
			}
			parents[ch] = n.ID
		}

		switch n.Type {
		case NodeAtomicTask:
			if len(n.Children) > 0 {
				p.add(label(n) + ": leaf declares children")
			}
			checkLeaf(n, p)
		case NodeSequence, NodeSelector:
			if len(n.Children) == 0 {
				p.add(fmt.Sprintf("%s: %s has no children", label(n), n.Type))
			}
		case NodeDecorator:
			if len(n.Children) != 1 {
				p.add(fmt.Sprintf("%s: decorator must have exactly one child, has %d", label(n), len(n.Children)))
			}
			if n.Count < 0 || n.Count > MaxUnroll {
				p.add(fmt.Sprintf("%s: count %d outside 0..%d", label(n), n.Count, MaxUnroll))
			}
			if _, ok := decoratorNames[n.Decorator]; !ok {
				p.add(fmt.Sprintf("%s: unknown decorator %s", label(n), n.Decorator))
			}
		default:
			p.add(fmt.Sprintf("%s: unknown node type %s", label(n), n.Type))
		}
	}
}

func (c *treeCompiler) expand(id int, path map[int]bool) *cnode {
	if c.overflow {
		return nil
	}
	if path[id] {
		c.p.add(fmt.Sprintf("cycle through node %d", id))
		return nil
	}
	c.expanded++
	if c.expanded > MaxCompiledNodes {
		c.overflow = true
		c.p.add(fmt.Sprintf("graph exceeds %d nodes after unrolling", MaxCompiledNodes))
		return nil
	}

	n := c.byID[id]
	path[id] = true
	defer delete(path, id)

	cn := &cnode{def: n, kind: n.Type, deco: n.Decorator}
	switch n.Type {
	case NodeAtomicTask:
		return cn
	case NodeSequence, NodeSelector:
		for _, ch := range n.Children {
			k := c.expand(ch, path)
			if k == nil {
				return nil
			}
			cn.children = append(cn.children, k)
		}
	case NodeDecorator:
		copies := 1
		if (n.Decorator == DecoratorRepeat || n.Decorator == DecoratorRetry) && n.Count > 0 {
			copies = n.Count
		}
		for i := 0; i < copies; i++ {
			k := c.expand(n.Children[0], path)
			if k == nil {
				return nil
			}
			cn.children = append(cn.children, k)
		}
		switch n.Decorator {
		case DecoratorRepeat:
			cn.kind = NodeSequence
		case DecoratorRetry:
			cn.kind = NodeSelector
		}
	}
	return cn
}

func (c *treeCompiler) allocate(cn *cnode) {
	if cn.kind == NodeAtomicTask {
		cn.index = len(c.out)
		task, params := cn.def.leafTask()
		c.out = append(c.out, Node{
			ID:            cn.def.ID,
			Name:          cn.def.Name,
			Type:          NodeAtomicTask,
			TaskID:        task,
			Params:        params,
			NextOnSuccess: None,
			NextOnFailure: None,
		})
		if _, ok := c.index[cn.def.ID]; !ok {
			c.index[cn.def.ID] = cn.index
		}
		return
	}

	first := len(c.out)
	for _, ch := range cn.children {
		c.allocate(ch)
	}
	if _, ok := c.index[cn.def.ID]; !ok {
		c.index[cn.def.ID] = first
	}
}

func entry(cn *cnode) int {
	for cn.kind != NodeAtomicTask {
		cn = cn.children[0]
	}
	return cn.index
}

func (c *treeCompiler) wire(cn *cnode, succ, fail int) {
	switch cn.kind {
	case NodeAtomicTask:
		c.out[cn.index].NextOnSuccess = succ
		c.out[cn.index].NextOnFailure = fail
	case NodeSequence:
		next := succ
		for i := len(cn.children) - 1; i >= 0; i-- {
			c.wire(cn.children[i], next, fail)
			next = entry(cn.children[i])
		}
	case NodeSelector:
		next := fail
		for i := len(cn.children) - 1; i >= 0; i-- {
			c.wire(cn.children[i], succ, next)
			next = entry(cn.children[i])
		}
	case NodeDecorator:
		child := cn.children[0]
		switch cn.deco {
		case DecoratorInverter:
			c.wire(child, fail, succ)
		case DecoratorSucceeder:
			c.wire(child, succ, succ)
		case DecoratorFailer:
			c.wire(child, fail, fail)
		case DecoratorLoop:
			c.wire(child, entry(child), fail)
		default:
			panic(fmt.Sprintf("graph: decorator %s not lowered", cn.deco))
		}
	default:
		panic(fmt.Sprintf("graph: unhandled node type %s", cn.kind))
	}
}
