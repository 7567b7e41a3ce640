package bolt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rubiojr/bolt/value"
)

func (rt *Runtime) installBuiltins() {
	for name, fn := range map[string]func([]value.Value) (value.Value, error){
		"print":  rt.builtinPrint,
		"len":    builtinLen,
		"str":    builtinStr,
		"int":    builtinInt,
		"float":  builtinFloat,
		"type":   builtinType,
		"range":  builtinRange,
		"keys":   builtinKeys,
		"append": builtinAppend,
	} {
		rt.SetGlobal(name, value.Native(name, fn))
	}
}

func arity(name string, args []value.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s() takes %d argument(s) (%d given)", name, n, len(args))
	}
	return nil
}

func (rt *Runtime) builtinPrint(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(rt.Stdout, strings.Join(parts, " "))
	return value.Nil, nil
}

func builtinLen(args []value.Value) (value.Value, error) {
	if err := arity("len", args, 1); err != nil {
		return value.Nil, err
	}
	switch v := args[0]; v.Tag {
	case value.StringTag:
		return value.Int(int64(utf8.RuneCountInString(v.AsString()))), nil
	case value.ListTag:
		return value.Int(int64(len(v.AsList().Items))), nil
	case value.MapTag:
		return value.Int(int64(v.AsMap().Len())), nil
	}
	return value.Nil, fmt.Errorf("len() of %s", args[0].TypeName())
}

func builtinStr(args []value.Value) (value.Value, error) {
	if err := arity("str", args, 1); err != nil {
		return value.Nil, err
	}
	return value.Str(args[0].String()), nil
}

func builtinInt(args []value.Value) (value.Value, error) {
	if err := arity("int", args, 1); err != nil {
		return value.Nil, err
	}
	switch v := args[0]; v.Tag {
	case value.IntTag:
		return v, nil
	case value.FloatTag:
		return value.Int(int64(v.AsFloat())), nil
	case value.BoolTag:
		if v.AsBool() {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.StringTag:
		i, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
		if err != nil {
			return value.Nil, fmt.Errorf("int(): invalid number %q", v.AsString())
		}
		return value.Int(i), nil
	}
	return value.Nil, fmt.Errorf("int() of %s", args[0].TypeName())
}

func builtinFloat(args []value.Value) (value.Value, error) {
	if err := arity("float", args, 1); err != nil {
		return value.Nil, err
	}
	if f, ok := args[0].Number(); ok {
		return value.Float(f), nil
	}
	if args[0].Tag == value.StringTag {
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].AsString()), 64)
		if err != nil {
			return value.Nil, fmt.Errorf("float(): invalid number %q", args[0].AsString())
		}
		return value.Float(f), nil
	}
	return value.Nil, fmt.Errorf("float() of %s", args[0].TypeName())
}

func builtinType(args []value.Value) (value.Value, error) {
	if err := arity("type", args, 1); err != nil {
		return value.Nil, err
	}
	return value.Str(args[0].TypeName()), nil
}

// MaxRangeLen bounds the number of items range() builds.
const MaxRangeLen = 1 << 24

// builtinRange accepts (stop) or (start, stop).
func builtinRange(args []value.Value) (value.Value, error) {
	var start, stop int64
	switch len(args) {
	case 1:
		stop = args[0].AsInt()
	case 2:
		start, stop = args[0].AsInt(), args[1].AsInt()
	default:
		return value.Nil, fmt.Errorf("range() takes 1 or 2 arguments (%d given)", len(args))
	}
	for _, a := range args {
		if a.Tag != value.IntTag {
			return value.Nil, fmt.Errorf("range() arguments must be int, got %s", a.TypeName())
		}
	}
	if stop <= start {
		return value.NewList(), nil
	}
	n := uint64(stop) - uint64(start)
	if n > MaxRangeLen {
		return value.Nil, fmt.Errorf("range() of %d items exceeds the limit of %d", n, MaxRangeLen)
	}
	items := make([]value.Value, 0, n)
	for i := start; i < stop; i++ {
		items = append(items, value.Int(i))
	}
	return value.NewList(items...), nil
}

func builtinKeys(args []value.Value) (value.Value, error) {
	if err := arity("keys", args, 1); err != nil {
		return value.Nil, err
	}
	if args[0].Tag != value.MapTag {
		return value.Nil, fmt.Errorf("keys() of %s", args[0].TypeName())
	}
	keys := args[0].AsMap().Keys()
	items := make([]value.Value, len(keys))
	for i, k := range keys {
		items[i] = value.Str(k)
	}
	return value.NewList(items...), nil
}

// builtinAppend appends in place and returns the list.
func builtinAppend(args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Tag != value.ListTag {
		return value.Nil, fmt.Errorf("append() needs a list as first argument")
	}
	l := args[0].AsList()
	l.Items = append(l.Items, args[1:]...)
	return args[0], nil
}
