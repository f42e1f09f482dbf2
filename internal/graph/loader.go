package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/taskgraph/pkg/api"
)

type document struct {
	SchemaVersion int           `json:"schemaVersion"`
	Name          string        `json:"name"`
	Variables     []variableDoc `json:"variables"`
	Data          dataDoc       `json:"data"`
}

type dataDoc struct {
	RootNodeID int       `json:"rootNodeId"`
	Format     string    `json:"format"`
	Nodes      []nodeDoc `json:"nodes"`
}

type variableDoc struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default any    `json:"default"`
	Local   bool   `json:"local"`
}

type nodeDoc struct {
	ID            *int           `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Children      []int          `json:"children"`
	Task          string         `json:"task"`
	Parameters    map[string]any `json:"parameters"`
	Condition     string         `json:"condition"`
	Decorator     string         `json:"decorator"`
	Count         int            `json:"count"`
	NextOnSuccess *int           `json:"nextOnSuccess"`
	NextOnFailure *int           `json:"nextOnFailure"`
}

// ValidateJSON performs the structural pre-check of a graph document: it
// must be a JSON object with a schema version, a name, and a data section
// holding a non-empty node list and a root node id. Whether node and child
// references resolve is not checked here.
func ValidateJSON(doc []byte) (bool, []string) {
	if !gjson.ValidBytes(doc) {
		return false, []string{"document is not valid JSON"}
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return false, []string{"document must be a JSON object"}
	}

	var p problems
	if sv := root.Get("schemaVersion"); !sv.Exists() {
		p.add("missing schemaVersion")
	} else if sv.Type != gjson.Number {
		p.add("schemaVersion must be a number")
	}

	if name := root.Get("name"); !name.Exists() {
		p.add("missing name")
	} else if name.Type != gjson.String || name.String() == "" {
		p.add("name must be a non-empty string")
	}

	data := root.Get("data")
	if !data.IsObject() {
		p.add("missing data section")
		return false, p.list
	}

	nodes := data.Get("nodes")
	switch {
	case !nodes.Exists():
		p.add("missing data.nodes")
	case !nodes.IsArray():
		p.add("data.nodes must be an array")
	case len(nodes.Array()) == 0:
		p.add("data.nodes is empty")
	}

	if rid := data.Get("rootNodeId"); !rid.Exists() {
		p.add("missing data.rootNodeId")
	} else if rid.Type != gjson.Number {
		p.add("data.rootNodeId must be a number")
	}

	return p.empty(), p.list
}

// Decode parses a graph document into its authoring Definition.
func Decode(data []byte) (*Definition, error) {
	if ok, probs := ValidateJSON(data); !ok {
		return nil, &LoadError{Graph: gjson.GetBytes(data, "name").String(), Problems: probs}
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Problems: []string{"malformed document: " + err.Error()}, Err: err}
	}

	var p problems
	if doc.SchemaVersion < 1 || doc.SchemaVersion > SchemaVersion {
		p.add(fmt.Sprintf("unsupported schemaVersion %d", doc.SchemaVersion))
	}

	def := &Definition{
		Name:   doc.Name,
		RootID: doc.Data.RootNodeID,
		Flat:   isFlat(doc.Data),
	}

	for _, v := range doc.Variables {
		vd, err := decodeVariable(v)
		if err != nil {
			p.add(err.Error())
			continue
		}
		def.Variables = append(def.Variables, vd)
	}

	for i, nd := range doc.Data.Nodes {
		n, err := decodeNode(nd, def.Flat)
		if err != nil {
			p.add(fmt.Sprintf("node at position %d: %v", i, err))
			continue
		}
		def.Nodes = append(def.Nodes, n)
	}

	if err := p.err(doc.Name); err != nil {
		return nil, err
	}
	return def, nil
}

func isFlat(d dataDoc) bool {
	switch strings.ToLower(d.Format) {
	case "flat":
		return true
	case "tree", "hierarchical":
		return false
	}
	for _, n := range d.Nodes {
		if n.NextOnSuccess != nil || n.NextOnFailure != nil {
			return true
		}
	}
	return false
}

func decodeVariable(v variableDoc) (api.VariableDefinition, error) {
	if v.Name == "" {
		return api.VariableDefinition{}, fmt.Errorf("variable with empty name")
	}
	typ, err := api.ParseValueType(v.Type)
	if err != nil {
		return api.VariableDefinition{}, fmt.Errorf("variable %q: %w", v.Name, err)
	}
	vd := api.VariableDefinition{Name: v.Name, Type: typ, IsLocal: v.Local}
	if v.Default == nil {
		vd.Default = api.ZeroValue(typ)
		return vd, nil
	}
	lit, err := decodeLiteral(v.Default)
	if err != nil {
		return api.VariableDefinition{}, fmt.Errorf("variable %q: default: %w", v.Name, err)
	}
	conv, ok := lit.Convert(typ)
	if !ok {
		return api.VariableDefinition{}, fmt.Errorf("variable %q: default %s does not match type %s", v.Name, lit.Type(), typ)
	}
	vd.Default = conv
	return vd, nil
}

func decodeNode(nd nodeDoc, flat bool) (NodeDef, error) {
	if nd.ID == nil {
		return NodeDef{}, fmt.Errorf("missing id")
	}
	n := NodeDef{
		ID:            *nd.ID,
		Name:          nd.Name,
		Children:      nd.Children,
		TaskID:        nd.Task,
		Count:         nd.Count,
		Expression:    nd.Condition,
		NextOnSuccess: None,
		NextOnFailure: None,
	}

	typ, deco, cond, err := parseNodeType(nd.Type, nd.Decorator)
	if err != nil {
		return NodeDef{}, fmt.Errorf("node %d (%s): %w", n.ID, n.Name, err)
	}
	n.Type, n.Decorator = typ, deco
	n.Condition = cond || (typ == NodeAtomicTask && strings.HasSuffix(nd.Name, "?"))

	if len(nd.Parameters) > 0 {
		n.Params = make(map[string]api.ParameterBinding, len(nd.Parameters))
		for _, name := range sortedKeys(nd.Parameters) {
			b, err := decodeBinding(nd.Parameters[name])
			if err != nil {
				return NodeDef{}, fmt.Errorf("node %d (%s): parameter %q: %w", n.ID, n.Name, name, err)
			}
			n.Params[name] = b
		}
	}

	if flat {
		if nd.NextOnSuccess != nil {
			n.NextOnSuccess = *nd.NextOnSuccess
		}
		if nd.NextOnFailure != nil {
			n.NextOnFailure = *nd.NextOnFailure
		}
	}
	return n, nil
}

// parseNodeType maps a document type tag onto the closed node kinds.
// Decorator names may be used directly as type tags, and condition-style
// tags become AtomicTask nodes.
func parseNodeType(tag, decorator string) (NodeType, DecoratorKind, bool, error) {
	lower := strings.ToLower(strings.TrimSpace(tag))
	switch lower {
	case "":
		return 0, 0, false, fmt.Errorf("missing type")
	case "sequence":
		return NodeSequence, 0, false, nil
	case "selector", "fallback":
		return NodeSelector, 0, false, nil
	case "decorator":
		kind, err := ParseDecoratorKind(decorator)
		return NodeDecorator, kind, false, err
	case "atomictask", "task", "action", "leaf":
		return NodeAtomicTask, 0, false, nil
	}
	if strings.HasSuffix(lower, "condition") {
		return NodeAtomicTask, 0, true, nil
	}
	if kind, err := ParseDecoratorKind(lower); err == nil {
		return NodeDecorator, kind, false, nil
	}
	return 0, 0, false, fmt.Errorf("unknown node type %q", tag)
}

// LoadFromJSON decodes and compiles a graph document.
func LoadFromJSON(data []byte) (*Template, error) {
	def, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Compile(def)
}

// LoadFromFile loads a graph document from disk. Files ending in .yaml or
// .yml are read as YAML with the same structure as the JSON form.
func LoadFromFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Graph: path, Problems: []string{err.Error()}, Err: err}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, &LoadError{Graph: path, Problems: []string{"malformed YAML: " + err.Error()}, Err: err}
		}
	}
	return LoadFromJSON(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
