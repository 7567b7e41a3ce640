package strmod

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rubiojr/bolt/modules"
	"github.com/rubiojr/bolt/value"
)

func strFunc(fn func(string) string) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		return value.Str(fn(args[0].AsString())), nil
	}
}

func predicate(fn func(s, x string) bool) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		return value.Bool(fn(args[0].AsString(), args[1].AsString())), nil
	}
}

func title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func init() {
	S := modules.String
	modules.Register(&modules.Module{
		Name: "str",
		Doc:  "String manipulation.",
		Funcs: []modules.FuncDef{
			{Name: "contains", Args: []modules.ArgType{S, S}, Impl: predicate(strings.Contains)},
			{Name: "split", Args: []modules.ArgType{S, S}, Impl: func(args []value.Value) (value.Value, error) {
				parts := strings.Split(args[0].AsString(), args[1].AsString())
				items := make([]value.Value, len(parts))
				for i, p := range parts {
					items[i] = value.Str(p)
				}
				return value.NewList(items...), nil
			}},
			{Name: "join", Args: []modules.ArgType{modules.List, S}, Impl: func(args []value.Value) (value.Value, error) {
				items := args[0].AsList().Items
				parts := make([]string, len(items))
				for i, it := range items {
					parts[i] = it.String()
				}
				return value.Str(strings.Join(parts, args[1].AsString())), nil
			}},
			{Name: "trim", Args: []modules.ArgType{S}, Impl: strFunc(strings.TrimSpace)},
			{Name: "starts_with", Args: []modules.ArgType{S, S}, Impl: predicate(strings.HasPrefix)},
			{Name: "ends_with", Args: []modules.ArgType{S, S}, Impl: predicate(strings.HasSuffix)},
			{Name: "replace", Args: []modules.ArgType{S, S, S}, Impl: func(args []value.Value) (value.Value, error) {
				return value.Str(strings.ReplaceAll(args[0].AsString(), args[1].AsString(), args[2].AsString())), nil
			}},
			{Name: "upper", Args: []modules.ArgType{S}, Impl: strFunc(strings.ToUpper)},
			{Name: "lower", Args: []modules.ArgType{S}, Impl: strFunc(strings.ToLower)},
			{Name: "title", Args: []modules.ArgType{S}, Impl: strFunc(title)},
			{Name: "index", Args: []modules.ArgType{S, S}, Impl: func(args []value.Value) (value.Value, error) {
				return value.Int(int64(strings.Index(args[0].AsString(), args[1].AsString()))), nil
			}},
		},
	})
}
