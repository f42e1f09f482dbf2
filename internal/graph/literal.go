package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/petrijr/taskgraph/pkg/api"
)

// refKey marks a blackboard reference in a parameter object:
// {"$ref": "TargetPosition"}.
const refKey = "$ref"

// decodeBinding turns one decoded parameter value into a binding.
func decodeBinding(raw any) (api.ParameterBinding, error) {
	if obj, ok := raw.(map[string]any); ok {
		if ref, ok := obj[refKey]; ok {
			name, ok := ref.(string)
			if !ok || name == "" {
				return api.ParameterBinding{}, errors.New("$ref must be a non-empty string")
			}
			return api.Ref(name), nil
		}
	}
	v, err := decodeLiteral(raw)
	if err != nil {
		return api.ParameterBinding{}, err
	}
	return api.Literal(v), nil
}

// decodeLiteral maps a JSON value onto the Value union:
//
//	true/false                 Bool
//	integral number            Int
//	other number               Float
//	"text"                     String
//	[x, y, z] or {"x","y","z"} Vector3
//	{"entity": n}              EntityRef
//	{"type": T, "value": v}    v converted to T
func decodeLiteral(raw any) (api.Value, error) {
	switch x := raw.(type) {
	case nil:
		return api.Value{}, errors.New("null is not a value")
	case bool:
		return api.BoolValue(x), nil
	case json.Number:
		return decodeNumber(x)
	case float64:
		if x == float64(int64(x)) {
			return api.IntValue(int64(x)), nil
		}
		return api.FloatValue(x), nil
	case string:
		return api.StringValue(x), nil
	case []any:
		vec, err := decodeVector(x)
		if err != nil {
			return api.Value{}, err
		}
		return api.Vector3Value(vec), nil
	case map[string]any:
		return decodeObject(x)
	}
	return api.Value{}, fmt.Errorf("unsupported literal %T", raw)
}

func decodeNumber(n json.Number) (api.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return api.IntValue(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return api.Value{}, fmt.Errorf("bad number %q", s)
	}
	return api.FloatValue(f), nil
}

func toFloat(raw any) (float64, bool) {
	switch x := raw.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	}
	return 0, false
}

func decodeVector(xs []any) (api.Vector3, error) {
	if len(xs) != 3 {
		return api.Vector3{}, fmt.Errorf("vector needs 3 components, got %d", len(xs))
	}
	var c [3]float64
	for i, x := range xs {
		f, ok := toFloat(x)
		if !ok {
			return api.Vector3{}, fmt.Errorf("vector component %d is not a number", i)
		}
		c[i] = f
	}
	return api.Vec3(c[0], c[1], c[2]), nil
}

func decodeObject(obj map[string]any) (api.Value, error) {
	if e, ok := obj["entity"]; ok && len(obj) == 1 {
		f, ok := toFloat(e)
		if !ok || f < 0 || f != float64(uint64(f)) {
			return api.Value{}, errors.New("entity must be a non-negative integer")
		}
		return api.EntityRefValue(api.EntityID(uint64(f))), nil
	}

	if t, ok := obj["type"]; ok {
		tag, ok := t.(string)
		if !ok {
			return api.Value{}, errors.New("type must be a string")
		}
		want, err := api.ParseValueType(tag)
		if err != nil {
			return api.Value{}, err
		}
		inner, err := decodeLiteral(obj["value"])
		if err != nil {
			return api.Value{}, err
		}
		v, ok := inner.Convert(want)
		if !ok {
			return api.Value{}, fmt.Errorf("cannot use %s %s as %s", inner.Type(), inner, want)
		}
		return v, nil
	}

	_, hasX := obj["x"]
	_, hasY := obj["y"]
	_, hasZ := obj["z"]
	if hasX && hasY && hasZ && len(obj) == 3 {
		vec, err := decodeVector([]any{obj["x"], obj["y"], obj["z"]})
		if err != nil {
			return api.Value{}, err
		}
		return api.Vector3Value(vec), nil
	}
	return api.Value{}, errors.New("unrecognised object literal")
}
