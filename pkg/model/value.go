package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ValueType is the explicit tag carried by every Value.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeNumber   ValueType = "number"
	TypeBoolean  ValueType = "boolean"
	TypeObject   ValueType = "object"
	TypeArray    ValueType = "array"
	TypeVariable ValueType = "variable"
	TypeFunction ValueType = "function"
	TypeComputed ValueType = "computed"
)

// ErrUnknownValueType is returned when a value carries a tag outside the union.
var ErrUnknownValueType = errors.New("unknown value type")

// IsLiteral reports whether t is one of the five literal tags.
func (t ValueType) IsLiteral() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// Valid reports whether t belongs to the union.
func (t ValueType) Valid() bool {
	return t.IsLiteral() || t == TypeVariable || t == TypeFunction || t == TypeComputed
}

// Function modes.
const (
	ModeFunction      = "function"
	ModeAsyncFunction = "asyncFunction"
)

// Function is the payload of function and computed values: a parameter list
// plus a body, compiled lazily by whoever needs to run it.
type Function struct {
	Code         string   `json:"code"`
	CodeVar      []string `json:"codeVar"`
	FunctionMode string   `json:"functionMode"`
	IsArrow      bool     `json:"isArrow,omitempty"`
}

// Async reports whether the function is declared async.
func (f *Function) Async() bool {
	return f != nil && f.FunctionMode == ModeAsyncFunction
}

func (f *Function) clone() *Function {
	if f == nil {
		return nil
	}
	c := *f
	c.CodeVar = append([]string(nil), f.CodeVar...)
	return &c
}

// Value is one dynamic datum of the model. Exactly one payload field is
// meaningful, selected by Type:
//
//	literal types  -> Literal (string, float64, bool, map[string]any, []any or nil)
//	variable       -> Path
//	function       -> Func
//	computed       -> Func
type Value struct {
	Type    ValueType
	Literal any
	Path    []string
	Func    *Function

	// Modifiers are the dotted event modifiers of an event binding.
	Modifiers []string
	// Model marks an attribute bound two-way.
	Model bool
}

// String returns a string literal.
func String(s string) Value { return Value{Type: TypeString, Literal: s} }

// Number returns a number literal.
func Number(f float64) Value { return Value{Type: TypeNumber, Literal: f} }

// Bool returns a boolean literal.
func Bool(b bool) Value { return Value{Type: TypeBoolean, Literal: b} }

// Object returns an object literal.
func Object(m map[string]any) Value { return Value{Type: TypeObject, Literal: m} }

// Array returns an array literal.
func Array(items []any) Value { return Value{Type: TypeArray, Literal: items} }

// Null returns a literal of type t with no value.
func Null(t ValueType) Value { return Value{Type: t} }

// Var returns a variable reference.
func Var(path ...string) Value { return Value{Type: TypeVariable, Path: path} }

// Func returns a function value.
func Func(code string, params ...string) Value {
	return Value{Type: TypeFunction, Func: &Function{Code: code, CodeVar: params, FunctionMode: ModeFunction}}
}

// Computed returns a computed value.
func Computed(code string) Value {
	return Value{Type: TypeComputed, Func: &Function{Code: code, FunctionMode: ModeFunction}}
}

// IsCallable reports whether the value carries a function body.
func (v Value) IsCallable() bool {
	return v.Type == TypeFunction || v.Type == TypeComputed
}

// IsEmpty reports the null / empty-object / empty-array sentinel.
func (v Value) IsEmpty() bool {
	switch v.Type {
	case TypeVariable:
		return len(v.Path) == 0
	case TypeFunction, TypeComputed:
		return v.Func == nil
	}
	switch lit := v.Literal.(type) {
	case nil:
		return true
	case map[string]any:
		return len(lit) == 0
	case []any:
		return len(lit) == 0
	}
	return false
}

// Clone deep-copies the value.
func (v Value) Clone() Value {
	c := v
	c.Literal = cloneAny(v.Literal)
	c.Path = append([]string(nil), v.Path...)
	c.Func = v.Func.clone()
	c.Modifiers = append([]string(nil), v.Modifiers...)
	if len(v.Path) == 0 {
		c.Path = nil
	}
	if len(v.Modifiers) == 0 {
		c.Modifiers = nil
	}
	return c
}

// Equal compares two values structurally.
func Equal(a, b Value) bool {
	return reflect.DeepEqual(a.Clone(), b.Clone())
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneAny(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	}
	return v
}

type valueJSON struct {
	Type      ValueType       `json:"type"`
	Value     json.RawMessage `json:"value"`
	Modifiers []string        `json:"modifiers,omitempty"`
	Model     bool            `json:"model,omitempty"`
}

func (v Value) encode() (valueJSON, error) {
	out := valueJSON{Type: v.Type, Modifiers: v.Modifiers, Model: v.Model}
	var payload any
	switch {
	case v.Type.IsLiteral():
		payload = v.Literal
	case v.Type == TypeVariable:
		path := v.Path
		if path == nil {
			path = []string{}
		}
		payload = path
	case v.Type == TypeFunction, v.Type == TypeComputed:
		payload = v.Func
	default:
		return out, fmt.Errorf("%w: %q", ErrUnknownValueType, v.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	out.Value = raw
	return out, nil
}

func decodeValue(in valueJSON) (Value, error) {
	v := Value{Type: in.Type, Modifiers: in.Modifiers, Model: in.Model}
	raw := in.Value
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	isNull := bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	switch in.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		if isNull {
			return v, nil
		}
		var lit any
		if err := json.Unmarshal(raw, &lit); err != nil {
			return v, err
		}
		if err := checkLiteral(in.Type, lit); err != nil {
			return v, err
		}
		v.Literal = lit
	case TypeVariable:
		if isNull {
			return v, nil
		}
		if err := json.Unmarshal(raw, &v.Path); err != nil {
			return v, fmt.Errorf("variable path: %w", err)
		}
	case TypeFunction, TypeComputed:
		if isNull {
			return v, nil
		}
		var fn Function
		if err := json.Unmarshal(raw, &fn); err != nil {
			return v, fmt.Errorf("%s body: %w", in.Type, err)
		}
		if fn.FunctionMode == "" {
			fn.FunctionMode = ModeFunction
		}
		v.Func = &fn
	default:
		return v, fmt.Errorf("%w: %q", ErrUnknownValueType, in.Type)
	}
	return v, nil
}

func checkLiteral(t ValueType, lit any) error {
	ok := false
	switch t {
	case TypeString:
		_, ok = lit.(string)
	case TypeNumber:
		_, ok = lit.(float64)
	case TypeBoolean:
		_, ok = lit.(bool)
	case TypeObject:
		_, ok = lit.(map[string]any)
	case TypeArray:
		_, ok = lit.([]any)
	}
	if !ok {
		return fmt.Errorf("%s literal has a %T value", t, lit)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	enc, err := v.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// UnmarshalJSON implements json.Unmarshaler. The payload is decoded according
// to the type tag only.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out, err := decodeValue(in)
	if err != nil {
		return err
	}
	*v = out
	return nil
}
