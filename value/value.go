// Package value defines the tagged-union runtime values manipulated by the
// Bolt virtual machine, plus the Namespace type that maps names to values.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rubiojr/bolt/ast"
)

// Tag identifies the dynamic type of a Value.
type Tag uint8

const (
	NilTag Tag = iota
	BoolTag
	IntTag
	FloatTag
	StringTag
	ListTag
	MapTag
	FuncTag
	NativeTag
	ModuleTag
	TreeTag
	ProtoTag
	HandleTag
)

var tagNames = [...]string{
	NilTag:    "nil",
	BoolTag:   "bool",
	IntTag:    "int",
	FloatTag:  "float",
	StringTag: "string",
	ListTag:   "list",
	MapTag:    "map",
	FuncTag:   "function",
	NativeTag: "function",
	ModuleTag: "module",
	TreeTag:   "tree",
	ProtoTag:  "proto",
	HandleTag: "handle",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// Value is a tagged union. Data holds bool, int64, float64, string,
// *List, *Map, *NativeFunc, *Module, *ast.Module or an opaque payload
// depending on Tag.
type Value struct {
	Tag  Tag
	Data any
}

// Nil is the nil value.
var Nil = Value{Tag: NilTag}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Tag: BoolTag, Data: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{Tag: IntTag, Data: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{Tag: FloatTag, Data: f} }

// Str wraps a string.
func Str(s string) Value { return Value{Tag: StringTag, Data: s} }

// Tree wraps a syntax tree, used as the output of modules without code.
func Tree(m *ast.Module) Value { return Value{Tag: TreeTag, Data: m} }

// Handle wraps an opaque host object, such as the runtime itself.
func Handle(x any) Value { return Value{Tag: HandleTag, Data: x} }

// List is a mutable ordered sequence.
type List struct {
	Items []Value
}

// NewList wraps items in a list value.
func NewList(items ...Value) Value {
	return Value{Tag: ListTag, Data: &List{Items: items}}
}

// Map is a mutable string-keyed map that remembers insertion order.
type Map struct {
	keys    []string
	entries map[string]Value
}

// NewMap returns an empty map value.
func NewMap() Value {
	return Value{Tag: MapTag, Data: &Map{entries: make(map[string]Value)}}
}

// Get returns the entry for key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Set adds or replaces an entry.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = v
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// NativeFunc is a function implemented in Go.
type NativeFunc struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

// Native wraps a Go function.
func Native(name string, fn func(args []Value) (Value, error)) Value {
	return Value{Tag: NativeTag, Data: &NativeFunc{Name: name, Fn: fn}}
}

// Module is the runtime view of an executed module.
type Module struct {
	Name      string
	Namespace *Namespace
}

// NewModule wraps a namespace as a module value.
func NewModule(name string, ns *Namespace) Value {
	return Value{Tag: ModuleTag, Data: &Module{Name: name, Namespace: ns}}
}

func (v Value) AsBool() bool        { b, _ := v.Data.(bool); return b }
func (v Value) AsInt() int64        { i, _ := v.Data.(int64); return i }
func (v Value) AsFloat() float64    { f, _ := v.Data.(float64); return f }
func (v Value) AsString() string    { s, _ := v.Data.(string); return s }
func (v Value) AsList() *List       { l, _ := v.Data.(*List); return l }
func (v Value) AsMap() *Map         { m, _ := v.Data.(*Map); return m }
func (v Value) AsModule() *Module   { m, _ := v.Data.(*Module); return m }
func (v Value) AsTree() *ast.Module { m, _ := v.Data.(*ast.Module); return m }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.Tag == NilTag }

// TypeName returns the user-facing type name.
func (v Value) TypeName() string { return v.Tag.String() }

// Truthy reports whether v counts as true in a condition.
// Only nil and false are false.
func (v Value) Truthy() bool {
	switch v.Tag {
	case NilTag:
		return false
	case BoolTag:
		return v.AsBool()
	}
	return true
}

// Number returns v as a float64 when it is an int or float.
func (v Value) Number() (float64, bool) {
	switch v.Tag {
	case IntTag:
		return float64(v.AsInt()), true
	case FloatTag:
		return v.AsFloat(), true
	}
	return 0, false
}

// Equal reports structural equality. Ints and floats compare numerically.
func Equal(a, b Value) bool {
	if an, ok := a.Number(); ok {
		bn, ok := b.Number()
		return ok && an == bn
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case NilTag:
		return true
	case BoolTag:
		return a.AsBool() == b.AsBool()
	case StringTag:
		return a.AsString() == b.AsString()
	case ListTag:
		al, bl := a.AsList(), b.AsList()
		if len(al.Items) != len(bl.Items) {
			return false
		}
		for i := range al.Items {
			if !Equal(al.Items[i], bl.Items[i]) {
				return false
			}
		}
		return true
	case MapTag:
		am, bm := a.AsMap(), b.AsMap()
		if am.Len() != bm.Len() {
			return false
		}
		for _, k := range am.keys {
			bv, ok := bm.entries[k]
			if !ok || !Equal(am.entries[k], bv) {
				return false
			}
		}
		return true
	}
	return a.Data == b.Data
}

// String renders v for display. Strings are not quoted.
func (v Value) String() string {
	if v.Tag == StringTag {
		return v.AsString()
	}
	return Repr(v)
}

// Repr renders v as source-like text.
func Repr(v Value) string {
	switch v.Tag {
	case NilTag:
		return "nil"
	case BoolTag:
		return strconv.FormatBool(v.AsBool())
	case IntTag:
		return strconv.FormatInt(v.AsInt(), 10)
	case FloatTag:
		return formatFloat(v.AsFloat())
	case StringTag:
		return strconv.Quote(v.AsString())
	case ListTag:
		parts := make([]string, 0, len(v.AsList().Items))
		for _, it := range v.AsList().Items {
			parts = append(parts, Repr(it))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case MapTag:
		m := v.AsMap()
		parts := make([]string, 0, m.Len())
		for _, k := range m.keys {
			parts = append(parts, strconv.Quote(k)+": "+Repr(m.entries[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case NativeTag:
		return fmt.Sprintf("<builtin %s>", v.Data.(*NativeFunc).Name)
	case ModuleTag:
		return fmt.Sprintf("<module %s>", v.AsModule().Name)
	case TreeTag:
		return fmt.Sprintf("<tree %s>", v.AsTree().SourceFile)
	case FuncTag, ProtoTag:
		if n, ok := v.Data.(interface{ FuncName() string }); ok {
			return fmt.Sprintf("<function %s>", n.FuncName())
		}
		return "<function>"
	}
	return fmt.Sprintf("<%s>", v.Tag)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Namespace maps names to values.
type Namespace struct {
	vars map[string]Value
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{vars: make(map[string]Value)}
}

// Get returns the binding for name.
func (ns *Namespace) Get(name string) (Value, bool) {
	v, ok := ns.vars[name]
	return v, ok
}

// Set binds name.
func (ns *Namespace) Set(name string, v Value) { ns.vars[name] = v }

// Has reports whether name is bound.
func (ns *Namespace) Has(name string) bool {
	_, ok := ns.vars[name]
	return ok
}

// Delete removes a binding.
func (ns *Namespace) Delete(name string) { delete(ns.vars, name) }

// Len returns the number of bindings.
func (ns *Namespace) Len() int { return len(ns.vars) }

// Names returns all bound names sorted.
func (ns *Namespace) Names() []string {
	names := make([]string, 0, len(ns.vars))
	for n := range ns.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Update copies every binding of other into ns.
func (ns *Namespace) Update(other *Namespace) {
	for k, v := range other.vars {
		ns.vars[k] = v
	}
}
