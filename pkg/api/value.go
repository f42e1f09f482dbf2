package api

import (
	"encoding/gob"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func init() {
	gob.Register(Vector3{})
}

// ValueType identifies the active variant of a Value.
type ValueType uint8

const (
	// TypeInvalid is the zero ValueType; no Value constructed through the
	// helpers in this package carries it.
	TypeInvalid ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeVector3
	TypeEntityRef
)

var valueTypeNames = [...]string{
	TypeInvalid:   "Invalid",
	TypeBool:      "Bool",
	TypeInt:       "Int",
	TypeFloat:     "Float",
	TypeString:    "String",
	TypeVector3:   "Vector3",
	TypeEntityRef: "EntityRef",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "ValueType(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t names one of the supported variants.
func (t ValueType) Valid() bool {
	return t >= TypeBool && t <= TypeEntityRef
}

// ParseValueType parses a type tag as written in template documents.
// Matching is case-insensitive and accepts a few common spellings.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return TypeBool, nil
	case "int", "integer", "int64":
		return TypeInt, nil
	case "float", "double", "number", "float64":
		return TypeFloat, nil
	case "string", "str":
		return TypeString, nil
	case "vector3", "vec3", "vector":
		return TypeVector3, nil
	case "entityref", "entity", "entityid":
		return TypeEntityRef, nil
	}
	return TypeInvalid, fmt.Errorf("unknown value type %q", s)
}

// EntityID identifies a simulation entity.
type EntityID uint64

// NoEntity is the null entity reference.
const NoEntity EntityID = 0

// Vector3 is a 3D vector.
type Vector3 struct {
	X, Y, Z float64
}

// Vec3 is shorthand for Vector3{x, y, z}.
func Vec3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Add returns the component-wise sum v+o.
func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns the component-wise difference v-o.
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v multiplied by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the euclidean length of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns v scaled to unit length, or the zero vector when v has
// no length.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Value is a tagged union over the data types that flow through task
// graphs. The zero Value is invalid. Values are immutable and copied by value.
//
// Accessors for a variant other than the active one panic; use Type to
// inspect the variant first when the type is not statically known.
type Value struct {
	typ ValueType
	b   bool
	i   int64
	f   float64
	s   string
	v   Vector3
	e   EntityID
}

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{typ: TypeBool, b: b} }

// IntValue returns an Int value.
func IntValue(i int64) Value { return Value{typ: TypeInt, i: i} }

// FloatValue returns a Float value.
func FloatValue(f float64) Value { return Value{typ: TypeFloat, f: f} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{typ: TypeString, s: s} }

// Vector3Value returns a Vector3 value.
func Vector3Value(v Vector3) Value { return Value{typ: TypeVector3, v: v} }

// EntityRefValue returns an EntityRef value.
func EntityRefValue(e EntityID) Value { return Value{typ: TypeEntityRef, e: e} }

// ZeroValue returns the zero value of the given type, or the invalid Value
// for an unsupported type.
func ZeroValue(t ValueType) Value {
	switch t {
	case TypeBool:
		return BoolValue(false)
	case TypeInt:
		return IntValue(0)
	case TypeFloat:
		return FloatValue(0)
	case TypeString:
		return StringValue("")
	case TypeVector3:
		return Vector3Value(Vector3{})
	case TypeEntityRef:
		return EntityRefValue(NoEntity)
	}
	return Value{}
}

// Type returns the active variant.
func (v Value) Type() ValueType { return v.typ }

// IsValid reports whether v carries a supported variant.
func (v Value) IsValid() bool { return v.typ.Valid() }

func (v Value) mustBe(t ValueType) {
	if v.typ != t {
		panic(fmt.Sprintf("api: Value is %s, not %s", v.typ, t))
	}
}

// AsBool returns the Bool variant. It panics for any other variant.
func (v Value) AsBool() bool {
	v.mustBe(TypeBool)
	return v.b
}

// AsInt returns the Int variant. It panics for any other variant.
func (v Value) AsInt() int64 {
	v.mustBe(TypeInt)
	return v.i
}

// AsFloat returns the Float variant. It panics for any other variant.
func (v Value) AsFloat() float64 {
	v.mustBe(TypeFloat)
	return v.f
}

// AsString returns the String variant. It panics for any other variant.
func (v Value) AsString() string {
	v.mustBe(TypeString)
	return v.s
}

// AsVector3 returns the Vector3 variant. It panics for any other variant.
func (v Value) AsVector3() Vector3 {
	v.mustBe(TypeVector3)
	return v.v
}

// AsEntityRef returns the EntityRef variant. It panics for any other variant.
func (v Value) AsEntityRef() EntityID {
	v.mustBe(TypeEntityRef)
	return v.e
}

// Number returns Int and Float variants as float64. ok is false for every
// other variant.
func (v Value) Number() (float64, bool) {
	switch v.typ {
	case TypeInt:
		return float64(v.i), true
	case TypeFloat:
		return v.f, true
	}
	return 0, false
}

// Equal reports whether v and o hold the same variant and payload. Floats
// are compared by bit pattern so NaN payloads round-trip as equal.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeInt:
		return v.i == o.i
	case TypeFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case TypeString:
		return v.s == o.s
	case TypeVector3:
		return math.Float64bits(v.v.X) == math.Float64bits(o.v.X) &&
			math.Float64bits(v.v.Y) == math.Float64bits(o.v.Y) &&
			math.Float64bits(v.v.Z) == math.Float64bits(o.v.Z)
	case TypeEntityRef:
		return v.e == o.e
	}
	return true
}

// Interface returns the payload as a plain Go value (bool, int64, float64,
// string, Vector3 or EntityID), or nil for the invalid Value.
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeVector3:
		return v.v
	case TypeEntityRef:
		return v.e
	}
	return nil
}

// ValueOf converts a plain Go value into a Value. Integer kinds map to Int,
// float kinds to Float.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint32:
		return IntValue(int64(t)), nil
	case float32:
		return FloatValue(float64(t)), nil
	case float64:
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	case Vector3:
		return Vector3Value(t), nil
	case EntityID:
		return EntityRefValue(t), nil
	}
	return Value{}, fmt.Errorf("unsupported value %T", x)
}

// Convert returns v as type t. Identity conversions always succeed; Int
// widens to Float and integral Floats narrow to Int. Everything else fails.
func (v Value) Convert(t ValueType) (Value, bool) {
	if v.typ == t {
		return v, true
	}
	switch {
	case v.typ == TypeInt && t == TypeFloat:
		return FloatValue(float64(v.i)), true
	case v.typ == TypeFloat && t == TypeInt:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return IntValue(int64(v.f)), true
		}
	case v.typ == TypeInt && t == TypeEntityRef:
		if v.i >= 0 {
			return EntityRefValue(EntityID(v.i)), true
		}
	}
	return Value{}, false
}

func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypeVector3:
		return v.v.String()
	case TypeEntityRef:
		return "entity#" + strconv.FormatUint(uint64(v.e), 10)
	}
	return "<invalid>"
}

// FormatPath encodes a list of waypoints as a String payload
// ("x,y,z;x,y,z"). Paths are stored in blackboards this way because the
// Value union has no list variant.
func FormatPath(points []Vector3) string {
	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(p.Z, 'g', -1, 64))
	}
	return sb.String()
}

// ParsePath decodes a path produced by FormatPath.
func ParsePath(s string) ([]Vector3, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]Vector3, 0, len(parts))
	for _, part := range parts {
		coords := strings.Split(part, ",")
		if len(coords) != 3 {
			return nil, fmt.Errorf("malformed waypoint %q", part)
		}
		var xyz [3]float64
		for i, c := range coords {
			f, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed waypoint %q: %w", part, err)
			}
			xyz[i] = f
		}
		out = append(out, Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return out, nil
}
