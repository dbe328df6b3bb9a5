// Package value defines TinyScript's runtime value domain: the tagged union of
// primitives, shared mutable collections, class descriptors, live objects, and
// function references, along with their arithmetic, comparison, and equality rules.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the concrete shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindString
	KindArray
	KindDictionary
	KindClass
	KindObject
	KindFunctionRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	case KindClass:
		return "class"
	case KindObject:
		return "object"
	case KindFunctionRef:
		return "function_ref"
	default:
		return "unknown"
	}
}

// Array is the shared, mutable, ordered backing store for an Array value.
// Identity is preserved across aliases: copying a Value that wraps *Array
// copies the pointer, not the slice contents.
type Array struct {
	Elems []Value
}

// Dictionary is the shared, mutable string-keyed map backing a Dictionary value.
type Dictionary struct {
	Entries map[string]Value
}

// Class is an immutable descriptor: a name to template-Value map. Methods are
// recorded as FunctionRef templates, fields as Null templates. Classes live in
// the program's global table for the program's lifetime.
type Class struct {
	Name    string
	Members map[string]Value
	// FieldOrder records the fields' declaration order.
	FieldOrder []string
}

// Object is a live, shared, mutable instance. Its field map starts as a deep
// copy of its Class's template and evolves independently thereafter; objects
// never alias each other even when constructed from the same Class.
type Object struct {
	ClassName string
	Fields    map[string]Value
}

// FunctionRef carries only a qualified function name (e.g. "Point.sum"),
// resolved against a Program's symbol table at Call time. Equality is by
// name string only (see DESIGN.md Open Question decisions).
type FunctionRef struct {
	Name string
}

// Value is an immutable handle onto one of the kinds above. Primitive kinds
// carry their payload directly; Array, Dictionary, and Object carry pointers
// to shared, mutable backing stores.
type Value struct {
	kind    Kind
	i       int32
	f       float32
	b       bool
	s       string
	arr     *Array
	dict    *Dictionary
	class   *Class
	obj     *Object
	fnref   FunctionRef
}

var Null = Value{kind: KindNull}

func Integer(i int32) Value { return Value{kind: KindInteger, i: i} }
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func String(s string) Value { return Value{kind: KindString, s: s} }

func NewArray(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: &Array{Elems: elems}}
}

func NewDictionary(entries map[string]Value) Value {
	if entries == nil {
		entries = make(map[string]Value)
	}
	return Value{kind: KindDictionary, dict: &Dictionary{Entries: entries}}
}

func NewClass(c *Class) Value { return Value{kind: KindClass, class: c} }

func NewObject(o *Object) Value { return Value{kind: KindObject, obj: o} }

func NewFunctionRef(name string) Value {
	return Value{kind: KindFunctionRef, fnref: FunctionRef{Name: name}}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInteger() (int32, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float32, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsArray() (*Array, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsDictionary() (*Dictionary, bool) {
	if v.kind != KindDictionary {
		return nil, false
	}
	return v.dict, true
}

func (v Value) AsClass() (*Class, bool) {
	if v.kind != KindClass {
		return nil, false
	}
	return v.class, true
}

func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

func (v Value) AsFunctionRef() (FunctionRef, bool) {
	if v.kind != KindFunctionRef {
		return FunctionRef{}, false
	}
	return v.fnref, true
}

// String renders a Value the way Print stringifies it to the host's standard
// output channel.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInteger:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	case KindArray:
		parts := make([]string, len(v.arr.Elems))
		for i, e := range v.arr.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDictionary:
		parts := make([]string, 0, len(v.dict.Entries))
		for k, e := range v.dict.Entries {
			parts = append(parts, fmt.Sprintf("%q: %s", k, e.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindClass:
		return fmt.Sprintf("<class %s>", v.class.Name)
	case KindObject:
		return fmt.Sprintf("<object %s>", v.obj.ClassName)
	case KindFunctionRef:
		return fmt.Sprintf("<function %s>", v.fnref.Name)
	default:
		return "?"
	}
}

// numeric reports whether v is Integer or Float, and its float64 value for
// promotion purposes.
func numeric(v Value) (float64, bool, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true, true
	case KindFloat:
		return float64(v.f), false, true
	default:
		return 0, false, false
	}
}

// Add implements `+` per §3: numeric promotion, string concatenation
// (stringifying a non-string right operand), in-place array concatenation,
// and the intentional Bool+Bool conjunction quirk.
func Add(left, right Value) (Value, error) {
	if left.kind == KindString {
		return String(left.s + right.String()), nil
	}
	if left.kind == KindBool && right.kind == KindBool {
		return Bool(left.b && right.b), nil
	}
	if left.kind == KindArray {
		if right.kind == KindArray {
			left.arr.Elems = append(left.arr.Elems, right.arr.Elems...)
		} else {
			left.arr.Elems = append(left.arr.Elems, right)
		}
		return left, nil
	}
	lv, lIsInt, lOK := numeric(left)
	rv, rIsInt, rOK := numeric(right)
	if !lOK || !rOK {
		return Value{}, fmt.Errorf("type error: cannot add %s and %s", left.kind, right.kind)
	}
	if lIsInt && rIsInt {
		sum := lv + rv
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return Value{}, fmt.Errorf("type error: integer overflow")
		}
		return Integer(int32(sum)), nil
	}
	return Float(float32(lv + rv)), nil
}

func arithmetic(left, right Value, op func(a, b float64) float64, name string) (Value, error) {
	lv, lIsInt, lOK := numeric(left)
	rv, rIsInt, rOK := numeric(right)
	if !lOK || !rOK {
		return Value{}, fmt.Errorf("type error: cannot %s %s and %s", name, left.kind, right.kind)
	}
	if lIsInt && rIsInt {
		r := op(lv, rv)
		if r > math.MaxInt32 || r < math.MinInt32 {
			return Value{}, fmt.Errorf("type error: integer overflow")
		}
		return Integer(int32(r)), nil
	}
	return Float(float32(op(lv, rv))), nil
}

// Sub implements numeric `-`.
func Sub(left, right Value) (Value, error) {
	return arithmetic(left, right, func(a, b float64) float64 { return a - b }, "subtract")
}

// Mul implements numeric `*`.
func Mul(left, right Value) (Value, error) {
	return arithmetic(left, right, func(a, b float64) float64 { return a * b }, "multiply")
}

// Div implements numeric `/`: integer division truncates toward zero and
// division by zero is a runtime failure for both integer and float operands.
func Div(left, right Value) (Value, error) {
	lv, lIsInt, lOK := numeric(left)
	rv, rIsInt, rOK := numeric(right)
	if !lOK || !rOK {
		return Value{}, fmt.Errorf("type error: cannot divide %s and %s", left.kind, right.kind)
	}
	if rv == 0 {
		return Value{}, fmt.Errorf("type error: division by zero")
	}
	if lIsInt && rIsInt {
		if lv/rv > math.MaxInt32 {
			return Value{}, fmt.Errorf("type error: integer overflow")
		}
		return Integer(int32(lv) / int32(rv)), nil
	}
	return Float(float32(lv / rv)), nil
}

// Pow implements `^`. The original reference implementation never finished
// this opcode; TinyScript computes it for real via math.Pow, narrowing back
// to Integer only when both operands were Integer.
func Pow(left, right Value) (Value, error) {
	lv, lIsInt, lOK := numeric(left)
	rv, rIsInt, rOK := numeric(right)
	if !lOK || !rOK {
		return Value{}, fmt.Errorf("type error: cannot raise %s to %s", left.kind, right.kind)
	}
	result := math.Pow(lv, rv)
	if lIsInt && rIsInt {
		if result > math.MaxInt32 || result < math.MinInt32 {
			return Value{}, fmt.Errorf("type error: integer overflow")
		}
		return Integer(int32(result)), nil
	}
	return Float(float32(result)), nil
}

// Compare orders left and right, valid only within Integer/Integer,
// Float/Float, or mixed int/float (promoted to float); anything else is a
// runtime failure.
func Compare(left, right Value) (int, error) {
	lv, _, lOK := numeric(left)
	rv, _, rOK := numeric(right)
	if !lOK || !rOK {
		return 0, fmt.Errorf("type error: cannot order %s and %s", left.kind, right.kind)
	}
	switch {
	case lv < rv:
		return -1, nil
	case lv > rv:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal implements structural equality for primitives and strings, and
// element-wise equality for shared collections/objects. FunctionRef equality
// is by name string only.
func Equal(left, right Value) bool {
	if left.kind != right.kind {
		// int/float are distinct kinds; the core does not define cross-kind equality.
		return false
	}
	switch left.kind {
	case KindNull:
		return true
	case KindInteger:
		return left.i == right.i
	case KindFloat:
		return left.f == right.f
	case KindBool:
		return left.b == right.b
	case KindString:
		return left.s == right.s
	case KindFunctionRef:
		return left.fnref.Name == right.fnref.Name
	case KindArray:
		if len(left.arr.Elems) != len(right.arr.Elems) {
			return false
		}
		for i := range left.arr.Elems {
			if !Equal(left.arr.Elems[i], right.arr.Elems[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		if len(left.dict.Entries) != len(right.dict.Entries) {
			return false
		}
		for k, lv := range left.dict.Entries {
			rv, ok := right.dict.Entries[k]
			if !ok || !Equal(lv, rv) {
				return false
			}
		}
		return true
	case KindObject:
		if len(left.obj.Fields) != len(right.obj.Fields) {
			return false
		}
		for k, lv := range left.obj.Fields {
			rv, ok := right.obj.Fields[k]
			if !ok || !Equal(lv, rv) {
				return false
			}
		}
		return true
	case KindClass:
		return left.class == right.class
	default:
		return false
	}
}

// Length returns an array's element count. Used by ArrayLen; any other kind
// is a type error.
func Length(v Value) (int, error) {
	if v.kind != KindArray {
		return 0, fmt.Errorf("type error: cannot take length of %s", v.kind)
	}
	return len(v.arr.Elems), nil
}

// Clone returns an independent copy of a Value suitable for pushing onto a
// stack or into a local slot. Shared collections/objects keep their shared
// backing store (identity-preserving clone); only Class->Object instantiation
// (CreateObject) performs a deep copy.
func Clone(v Value) Value {
	return v
}

// DeepCopyClassTemplate produces a fresh Object field map from a Class
// template, used by CreateObject. Nested collections in field defaults are
// themselves deep-copied so new instances never alias the template or each
// other.
func DeepCopyClassTemplate(c *Class) *Object {
	fields := make(map[string]Value, len(c.Members))
	for k, v := range c.Members {
		fields[k] = deepCopyValue(v)
	}
	return &Object{ClassName: c.Name, Fields: fields}
}

func deepCopyValue(v Value) Value {
	switch v.kind {
	case KindArray:
		elems := make([]Value, len(v.arr.Elems))
		for i, e := range v.arr.Elems {
			elems[i] = deepCopyValue(e)
		}
		return NewArray(elems)
	case KindDictionary:
		entries := make(map[string]Value, len(v.dict.Entries))
		for k, e := range v.dict.Entries {
			entries[k] = deepCopyValue(e)
		}
		return NewDictionary(entries)
	default:
		return v
	}
}
