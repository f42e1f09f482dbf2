package api

// BindingKind distinguishes literal bindings from blackboard references.
type BindingKind uint8

const (
	BindingLiteral BindingKind = iota
	BindingReference
)

// ParameterBinding is either a literal Value or the name of a blackboard
// variable resolved at execution time.
type ParameterBinding struct {
	kind    BindingKind
	literal Value
	ref     string
}

// Literal binds a constant value.
func Literal(v Value) ParameterBinding {
	return ParameterBinding{kind: BindingLiteral, literal: v}
}

// Ref binds the named blackboard variable.
func Ref(name string) ParameterBinding {
	return ParameterBinding{kind: BindingReference, ref: name}
}

// Kind reports whether the binding is a literal or a reference.
func (b ParameterBinding) Kind() BindingKind { return b.kind }

// IsReference reports whether the binding names a blackboard variable.
func (b ParameterBinding) IsReference() bool { return b.kind == BindingReference }

// LiteralValue returns the bound literal; it is the invalid Value for
// references.
func (b ParameterBinding) LiteralValue() Value { return b.literal }

// Reference returns the referenced variable name, or "" for literals.
func (b ParameterBinding) Reference() string { return b.ref }

func (b ParameterBinding) String() string {
	if b.kind == BindingReference {
		return "$" + b.ref
	}
	return b.literal.String()
}

// Params is the resolved call-time parameter map handed to leaves.
type Params map[string]Value

// Get returns the named parameter.
func (p Params) Get(name string) (Value, bool) {
	v, ok := p[name]
	return v, ok
}

// Bool returns the named parameter when it is a Bool.
func (p Params) Bool(name string) (bool, bool) {
	v, ok := p[name]
	if !ok || v.Type() != TypeBool {
		return false, false
	}
	return v.AsBool(), true
}

// Int returns the named parameter when it is an Int.
func (p Params) Int(name string) (int64, bool) {
	v, ok := p[name]
	if !ok || v.Type() != TypeInt {
		return 0, false
	}
	return v.AsInt(), true
}

// Number returns the named parameter when it is an Int or a Float.
func (p Params) Number(name string) (float64, bool) {
	v, ok := p[name]
	if !ok {
		return 0, false
	}
	return v.Number()
}

// String returns the named parameter when it is a String.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok || v.Type() != TypeString {
		return "", false
	}
	return v.AsString(), true
}

// Vector3 returns the named parameter when it is a Vector3.
func (p Params) Vector3(name string) (Vector3, bool) {
	v, ok := p[name]
	if !ok || v.Type() != TypeVector3 {
		return Vector3{}, false
	}
	return v.AsVector3(), true
}

// EntityRef returns the named parameter when it is an EntityRef.
func (p Params) EntityRef(name string) (EntityID, bool) {
	v, ok := p[name]
	if !ok || v.Type() != TypeEntityRef {
		return NoEntity, false
	}
	return v.AsEntityRef(), true
}
