// Package blackboard implements the typed, schema-driven local memory owned
// by one task runner.
package blackboard

import (
	"errors"
	"fmt"

	"github.com/petrijr/taskgraph/pkg/api"
)

var (
	// ErrUnknownVariable is returned when a name is not part of the schema.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrTypeMismatch is returned when a value's type differs from the
	// declared type of its variable.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrCorruptBuffer is returned by Deserialize for undecodable input.
	ErrCorruptBuffer = errors.New("corrupt blackboard buffer")
)

// LocalBlackboard is a typed key/value store whose key set and value types
// are fixed by a variable schema. It is owned by a single runner and is not
// safe for concurrent use.
type LocalBlackboard struct {
	schema []api.VariableDefinition
	types  map[string]api.ValueType
	values map[string]api.Value
}

var _ api.Blackboard = (*LocalBlackboard)(nil)

// New returns a blackboard initialised from schema.
func New(schema []api.VariableDefinition) *LocalBlackboard {
	bb := &LocalBlackboard{}
	bb.Initialize(schema)
	return bb
}

// Initialize registers every declared variable at its default value.
// Calling it again with the same schema resets all values. The schema is
// copied.
func (b *LocalBlackboard) Initialize(schema []api.VariableDefinition) {
	b.schema = append([]api.VariableDefinition(nil), schema...)
	b.types = make(map[string]api.ValueType, len(schema))
	b.values = make(map[string]api.Value, len(schema))
	for _, def := range schema {
		b.types[def.Name] = def.Type
		b.values[def.Name] = defaultFor(def)
	}
}

func defaultFor(def api.VariableDefinition) api.Value {
	if def.Default.Type() == def.Type {
		return def.Default
	}
	return api.ZeroValue(def.Type)
}

// GetValue returns the current value of name.
func (b *LocalBlackboard) GetValue(name string) (api.Value, error) {
	v, ok := b.values[name]
	if !ok {
		return api.Value{}, fmt.Errorf("get %q: %w", name, ErrUnknownVariable)
	}
	return v, nil
}

// SetValue overwrites name with v. On error the blackboard is unchanged.
func (b *LocalBlackboard) SetValue(name string, v api.Value) error {
	want, ok := b.types[name]
	if !ok {
		return fmt.Errorf("set %q: %w", name, ErrUnknownVariable)
	}
	if v.Type() != want {
		return fmt.Errorf("set %q: %w: declared %s, got %s", name, ErrTypeMismatch, want, v.Type())
	}
	b.values[name] = v
	return nil
}

// Reset restores every variable to its schema default.
func (b *LocalBlackboard) Reset() {
	for _, def := range b.schema {
		b.values[def.Name] = defaultFor(def)
	}
}

// HasVariable reports whether name is declared. Matching is case-sensitive.
func (b *LocalBlackboard) HasVariable(name string) bool {
	_, ok := b.types[name]
	return ok
}

// VariableNames returns every declared name in schema order.
func (b *LocalBlackboard) VariableNames() []string {
	names := make([]string, 0, len(b.schema))
	for _, def := range b.schema {
		names = append(names, def.Name)
	}
	return names
}

// Len returns the number of declared variables.
func (b *LocalBlackboard) Len() int {
	return len(b.schema)
}

// Snapshot returns a copy of all current values keyed by name.
func (b *LocalBlackboard) Snapshot() map[string]api.Value {
	out := make(map[string]api.Value, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}
