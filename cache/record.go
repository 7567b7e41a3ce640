package cache

import (
	"fmt"

	"github.com/rubiojr/bolt/ast"
	"github.com/rubiojr/bolt/bolt"
	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
)

// Record is the persisted form of a compiled module.
type Record struct {
	AST              *ast.WireNode  `msgpack:"ast"`
	Code             *compiler.Code `msgpack:"code,omitempty"`
	Refs             []WireValue    `msgpack:"refs"`
	Output           string         `msgpack:"output,omitempty"`
	ResourceLocation string         `msgpack:"resource_location"`
	Globals          []string       `msgpack:"globals"`
	Version          string         `msgpack:"version"`
}

// WireValue is the persisted form of a ref. Only the value kinds code
// generation emits are representable.
type WireValue struct {
	Tag   value.Tag      `msgpack:"t"`
	Bool  bool           `msgpack:"b,omitempty"`
	Int   int64          `msgpack:"i,omitempty"`
	Float float64        `msgpack:"f,omitempty"`
	Str   string         `msgpack:"s,omitempty"`
	Items []WireValue    `msgpack:"l,omitempty"`
	Proto *compiler.Code `msgpack:"p,omitempty"`
}

// NewRecord captures m, stamped with the given runtime version.
func NewRecord(m *bolt.CompiledModule, version string) (*Record, error) {
	if m.AST == nil {
		return nil, fmt.Errorf("%s: module has no syntax tree", m.ResourceLocation)
	}
	refs := make([]WireValue, len(m.Refs))
	for i, r := range m.Refs {
		w, err := toWire(r)
		if err != nil {
			return nil, fmt.Errorf("%s: ref %d: %w", m.ResourceLocation, i, err)
		}
		refs[i] = w
	}
	return &Record{
		AST:              ast.ToWire(m.AST),
		Code:             m.Code,
		Refs:             refs,
		Output:           m.Output,
		ResourceLocation: m.ResourceLocation,
		Globals:          append([]string(nil), m.Globals...),
		Version:          version,
	}, nil
}

// Module rebuilds the compiled module for unit. The module shares unit's
// syntax tree; a unit without one adopts the recorded tree.
func (r *Record) Module(unit *bolt.CompilationUnit) (*bolt.CompiledModule, error) {
	if r.ResourceLocation != unit.ResourceLocation {
		return nil, fmt.Errorf("record is for %q, not %q", r.ResourceLocation, unit.ResourceLocation)
	}
	refs := make([]value.Value, len(r.Refs))
	for i, w := range r.Refs {
		v, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("ref %d: %w", i, err)
		}
		refs[i] = v
	}
	if unit.AST == nil {
		tree, err := ast.FromWire(r.AST)
		if err != nil {
			return nil, err
		}
		unit.AST = tree
	}
	return &bolt.CompiledModule{
		AST:              unit.AST,
		Code:             r.Code,
		Refs:             refs,
		Output:           r.Output,
		ResourceLocation: r.ResourceLocation,
		Filename:         unit.Filename,
		Globals:          append([]string(nil), r.Globals...),
	}, nil
}

func toWire(v value.Value) (WireValue, error) {
	w := WireValue{Tag: v.Tag}
	switch v.Tag {
	case value.NilTag:
	case value.BoolTag:
		w.Bool = v.AsBool()
	case value.IntTag:
		w.Int = v.AsInt()
	case value.FloatTag:
		w.Float = v.AsFloat()
	case value.StringTag:
		w.Str = v.AsString()
	case value.ListTag:
		for _, it := range v.AsList().Items {
			iw, err := toWire(it)
			if err != nil {
				return w, err
			}
			w.Items = append(w.Items, iw)
		}
	case value.ProtoTag:
		code, ok := v.Data.(*compiler.Code)
		if !ok {
			return w, fmt.Errorf("proto ref holds %T", v.Data)
		}
		w.Proto = code
	default:
		return w, fmt.Errorf("cannot persist %s ref", v.TypeName())
	}
	return w, nil
}

func fromWire(w WireValue) (value.Value, error) {
	switch w.Tag {
	case value.NilTag:
		return value.Nil, nil
	case value.BoolTag:
		return value.Bool(w.Bool), nil
	case value.IntTag:
		return value.Int(w.Int), nil
	case value.FloatTag:
		return value.Float(w.Float), nil
	case value.StringTag:
		return value.Str(w.Str), nil
	case value.ListTag:
		items := make([]value.Value, len(w.Items))
		for i, iw := range w.Items {
			v, err := fromWire(iw)
			if err != nil {
				return value.Nil, err
			}
			items[i] = v
		}
		return value.NewList(items...), nil
	case value.ProtoTag:
		if w.Proto == nil {
			return value.Nil, fmt.Errorf("proto ref without code")
		}
		return value.Value{Tag: value.ProtoTag, Data: w.Proto}, nil
	}
	return value.Nil, fmt.Errorf("unknown ref tag %d", w.Tag)
}
