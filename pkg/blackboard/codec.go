package blackboard

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/petrijr/taskgraph/pkg/api"
)

const wireVersion = 2

// wireEntry is one self-describing (name, type, value) tuple. Only the
// payload field matching Type is meaningful. Floats travel as their IEEE
// bit patterns: gob omits zero-valued fields, which would drop the sign
// of -0.
type wireEntry struct {
	Name   string
	Type   uint8
	Bool   bool
	Int    int64
	Float  uint64
	String string
	Vec    [3]uint64
	Entity uint64
}

type wireBoard struct {
	Version uint8
	Entries []wireEntry
}

func toWire(name string, v api.Value) wireEntry {
	e := wireEntry{Name: name, Type: uint8(v.Type())}
	switch v.Type() {
	case api.TypeBool:
		e.Bool = v.AsBool()
	case api.TypeInt:
		e.Int = v.AsInt()
	case api.TypeFloat:
		e.Float = math.Float64bits(v.AsFloat())
	case api.TypeString:
		e.String = v.AsString()
	case api.TypeVector3:
		p := v.AsVector3()
		e.Vec = [3]uint64{math.Float64bits(p.X), math.Float64bits(p.Y), math.Float64bits(p.Z)}
	case api.TypeEntityRef:
		e.Entity = uint64(v.AsEntityRef())
	}
	return e
}

func (e wireEntry) value() (api.Value, bool) {
	switch api.ValueType(e.Type) {
	case api.TypeBool:
		return api.BoolValue(e.Bool), true
	case api.TypeInt:
		return api.IntValue(e.Int), true
	case api.TypeFloat:
		return api.FloatValue(math.Float64frombits(e.Float)), true
	case api.TypeString:
		return api.StringValue(e.String), true
	case api.TypeVector3:
		return api.Vector3Value(api.Vector3{
			X: math.Float64frombits(e.Vec[0]),
			Y: math.Float64frombits(e.Vec[1]),
			Z: math.Float64frombits(e.Vec[2]),
		}), true
	case api.TypeEntityRef:
		return api.EntityRefValue(api.EntityID(e.Entity)), true
	}
	return api.Value{}, false
}

// Serialize encodes every held variable as (name, type, value) tuples in
// schema order.
func (b *LocalBlackboard) Serialize() []byte {
	board := wireBoard{
		Version: wireVersion,
		Entries: make([]wireEntry, 0, len(b.schema)),
	}
	for _, def := range b.schema {
		board.Entries = append(board.Entries, toWire(def.Name, b.values[def.Name]))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&board); err != nil {
		// wireBoard holds only plain fields; encoding cannot fail.
		panic(fmt.Sprintf("blackboard: encode: %v", err))
	}
	return buf.Bytes()
}

// Deserialize applies encoded tuples to an initialised blackboard. Tuples
// naming unknown variables, or whose type differs from the declared one,
// are skipped. An empty buffer is a no-op. A buffer that cannot be decoded
// returns ErrCorruptBuffer and leaves the blackboard unchanged.
func (b *LocalBlackboard) Deserialize(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var board wireBoard
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&board); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBuffer, err)
	}
	for _, e := range board.Entries {
		want, ok := b.types[e.Name]
		if !ok || api.ValueType(e.Type) != want {
			continue
		}
		v, ok := e.value()
		if !ok {
			continue
		}
		b.values[e.Name] = v
	}
	return nil
}
