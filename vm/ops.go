package vm

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
)

var opSymbols = map[compiler.Opcode]string{
	compiler.OpAdd: "+",
	compiler.OpSub: "-",
	compiler.OpMul: "*",
	compiler.OpDiv: "/",
	compiler.OpMod: "%",
	compiler.OpLt:  "<",
	compiler.OpLe:  "<=",
	compiler.OpGt:  ">",
	compiler.OpGe:  ">=",
}

func unsupported(op compiler.Opcode, a, b value.Value) error {
	return fmt.Errorf("unsupported operand types for %s: %s and %s", opSymbols[op], a.TypeName(), b.TypeName())
}

func arith(op compiler.Opcode, a, b value.Value) (value.Value, error) {
	if a.Tag == value.IntTag && b.Tag == value.IntTag {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case compiler.OpAdd:
			return value.Int(x + y), nil
		case compiler.OpSub:
			return value.Int(x - y), nil
		case compiler.OpMul:
			return value.Int(x * y), nil
		case compiler.OpDiv:
			if y == 0 {
				return value.Nil, fmt.Errorf("division by zero")
			}
			return value.Int(floorDiv(x, y)), nil
		case compiler.OpMod:
			if y == 0 {
				return value.Nil, fmt.Errorf("division by zero")
			}
			return value.Int(x - floorDiv(x, y)*y), nil
		}
	}
	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			switch op {
			case compiler.OpAdd:
				return value.Float(x + y), nil
			case compiler.OpSub:
				return value.Float(x - y), nil
			case compiler.OpMul:
				return value.Float(x * y), nil
			case compiler.OpDiv:
				return value.Float(x / y), nil
			case compiler.OpMod:
				return value.Float(math.Mod(x, y)), nil
			}
		}
	}
	switch {
	case op == compiler.OpAdd && a.Tag == value.StringTag && b.Tag == value.StringTag:
		return value.Str(a.AsString() + b.AsString()), nil
	case op == compiler.OpAdd && a.Tag == value.ListTag && b.Tag == value.ListTag:
		items := make([]value.Value, 0, len(a.AsList().Items)+len(b.AsList().Items))
		items = append(items, a.AsList().Items...)
		items = append(items, b.AsList().Items...)
		return value.NewList(items...), nil
	case op == compiler.OpMul && a.Tag == value.StringTag && b.Tag == value.IntTag:
		s, n := a.AsString(), b.AsInt()
		if n < 0 {
			return value.Nil, fmt.Errorf("negative repeat count %d", n)
		}
		if len(s) > 0 && n > int64(MaxStringLen/len(s)) {
			return value.Nil, fmt.Errorf("repeated string longer than %d bytes", MaxStringLen)
		}
		return value.Str(strings.Repeat(s, int(n))), nil
	}
	return value.Nil, unsupported(op, a, b)
}

// floorDiv rounds towards negative infinity.
func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func compare(op compiler.Opcode, a, b value.Value) (bool, error) {
	var c int
	if x, ok := a.Number(); ok {
		y, ok := b.Number()
		if !ok {
			return false, unsupported(op, a, b)
		}
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	} else if a.Tag == value.StringTag && b.Tag == value.StringTag {
		c = strings.Compare(a.AsString(), b.AsString())
	} else {
		return false, unsupported(op, a, b)
	}
	switch op {
	case compiler.OpLt:
		return c < 0, nil
	case compiler.OpLe:
		return c <= 0, nil
	case compiler.OpGt:
		return c > 0, nil
	}
	return c >= 0, nil
}

func getAttr(obj value.Value, name string) (value.Value, error) {
	switch obj.Tag {
	case value.ModuleTag:
		mod := obj.AsModule()
		if v, ok := mod.Namespace.Get(name); ok {
			return v, nil
		}
		return value.Nil, fmt.Errorf("module %q has no attribute %q", mod.Name, name)
	case value.MapTag:
		if v, ok := obj.AsMap().Get(name); ok {
			return v, nil
		}
		return value.Nil, fmt.Errorf("map has no key %q", name)
	}
	return value.Nil, fmt.Errorf("%s has no attribute %q", obj.TypeName(), name)
}

func listIndex(n int, idx value.Value) (int, error) {
	if idx.Tag != value.IntTag {
		return 0, fmt.Errorf("index must be int, got %s", idx.TypeName())
	}
	i := idx.AsInt()
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, fmt.Errorf("index %d out of range (len %d)", idx.AsInt(), n)
	}
	return int(i), nil
}

func getIndex(obj, idx value.Value) (value.Value, error) {
	switch obj.Tag {
	case value.ListTag:
		items := obj.AsList().Items
		i, err := listIndex(len(items), idx)
		if err != nil {
			return value.Nil, err
		}
		return items[i], nil
	case value.MapTag:
		if idx.Tag != value.StringTag {
			return value.Nil, fmt.Errorf("map keys must be strings, got %s", idx.TypeName())
		}
		v, _ := obj.AsMap().Get(idx.AsString())
		return v, nil
	case value.StringTag:
		runes := []rune(obj.AsString())
		i, err := listIndex(len(runes), idx)
		if err != nil {
			return value.Nil, err
		}
		return value.Str(string(runes[i])), nil
	case value.ModuleTag:
		if idx.Tag == value.StringTag {
			return getAttr(obj, idx.AsString())
		}
	}
	return value.Nil, fmt.Errorf("%s is not indexable", obj.TypeName())
}

func setIndex(obj, idx, v value.Value) error {
	switch obj.Tag {
	case value.ListTag:
		items := obj.AsList().Items
		i, err := listIndex(len(items), idx)
		if err != nil {
			return err
		}
		items[i] = v
		return nil
	case value.MapTag:
		if idx.Tag != value.StringTag {
			return fmt.Errorf("map keys must be strings, got %s", idx.TypeName())
		}
		obj.AsMap().Set(idx.AsString(), v)
		return nil
	}
	return fmt.Errorf("%s does not support item assignment", obj.TypeName())
}

type iterator struct {
	list *value.List
	keys []string
	str  string
	i    int
}

func newIterator(v value.Value) (*iterator, error) {
	switch v.Tag {
	case value.ListTag:
		return &iterator{list: v.AsList()}, nil
	case value.MapTag:
		return &iterator{keys: v.AsMap().Keys()}, nil
	case value.StringTag:
		return &iterator{str: v.AsString()}, nil
	}
	return nil, fmt.Errorf("cannot iterate over %s", v.TypeName())
}

func (it *iterator) next() (value.Value, bool) {
	switch {
	case it.list != nil:
		if it.i >= len(it.list.Items) {
			return value.Nil, false
		}
		it.i++
		return it.list.Items[it.i-1], true
	case it.keys != nil:
		if it.i >= len(it.keys) {
			return value.Nil, false
		}
		it.i++
		return value.Str(it.keys[it.i-1]), true
	}
	if it.i >= len(it.str) {
		return value.Nil, false
	}
	r, size := utf8.DecodeRuneInString(it.str[it.i:])
	it.i += size
	return value.Str(string(r)), true
}
