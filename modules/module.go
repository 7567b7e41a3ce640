// Package modules holds the registry of native modules that Bolt scripts can
// import by name when no source module exists at that location.
package modules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rubiojr/bolt/value"
)

// ArgType represents the expected type of a function argument.
type ArgType int

const (
	String ArgType = iota
	Int
	Float
	Bool
	List
	Any
)

func (t ArgType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case List:
		return "list"
	}
	return "any"
}

// FuncDef describes a function exposed by a module.
type FuncDef struct {
	// Name is the bolt function name (e.g. "sqrt").
	Name string
	// Args lists the expected typed arguments. Int arguments are accepted
	// where Float is expected and converted.
	Args []ArgType
	// Variadic, when true, passes remaining args beyond Args unchecked.
	Variadic bool
	// Doc is a one-line description.
	Doc string
	// Impl receives the checked arguments.
	Impl func(args []value.Value) (value.Value, error)
}

// Module represents a native module that can be imported.
type Module struct {
	// Name is the import name (e.g. "math", "str").
	Name string
	// Doc is a one-line description of the module.
	Doc   string
	Funcs []FuncDef
}

var registry = make(map[string]*Module)

// Register adds a module to the global registry.
func Register(m *Module) {
	registry[m.Name] = m
}

// Get returns a registered module by name.
func Get(name string) (*Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// IsModule returns true if name is a registered module.
func IsModule(name string) bool {
	_, ok := registry[name]
	return ok
}

// LookupFunc returns the callable for module.funcName.
func LookupFunc(module, funcName string) (value.Value, bool) {
	m, ok := registry[module]
	if !ok {
		return value.Nil, false
	}
	for i := range m.Funcs {
		if m.Funcs[i].Name == funcName {
			return m.wrap(&m.Funcs[i]), true
		}
	}
	return value.Nil, false
}

// Names returns sorted names of all registered modules.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Namespace returns a fresh namespace binding every function of the module.
func (m *Module) Namespace() *value.Namespace {
	ns := value.NewNamespace()
	for i := range m.Funcs {
		ns.Set(m.Funcs[i].Name, m.wrap(&m.Funcs[i]))
	}
	return ns
}

// Value returns the module as an importable value.
func (m *Module) Value() value.Value {
	return value.NewModule(m.Name, m.Namespace())
}

// wrap builds the native function that checks arguments before calling
// the implementation.
func (m *Module) wrap(f *FuncDef) value.Value {
	qualified := m.Name + "." + f.Name
	return value.Native(qualified, func(args []value.Value) (value.Value, error) {
		min := len(f.Args)
		if len(args) < min || (!f.Variadic && len(args) > min) {
			return value.Nil, fmt.Errorf("%s: %s", qualified, arityMessage(min, f.Variadic, len(args)))
		}
		conv := make([]value.Value, len(args))
		copy(conv, args)
		for i, t := range f.Args {
			v, err := convertArg(args[i], t)
			if err != nil {
				return value.Nil, fmt.Errorf("%s: argument %d: %w", qualified, i+1, err)
			}
			conv[i] = v
		}
		return f.Impl(conv)
	})
}

func arityMessage(min int, variadic bool, got int) string {
	if variadic {
		return fmt.Sprintf("requires at least %d argument(s), got %d", min, got)
	}
	return fmt.Sprintf("requires %d argument(s), got %d", min, got)
}

func convertArg(v value.Value, t ArgType) (value.Value, error) {
	switch t {
	case String:
		if v.Tag == value.StringTag {
			return v, nil
		}
	case Int:
		if v.Tag == value.IntTag {
			return v, nil
		}
	case Float:
		if f, ok := v.Number(); ok {
			return value.Float(f), nil
		}
	case Bool:
		if v.Tag == value.BoolTag {
			return v, nil
		}
	case List:
		if v.Tag == value.ListTag {
			return v, nil
		}
	case Any:
		return v, nil
	}
	return value.Nil, fmt.Errorf("expected %s, got %s", t, v.TypeName())
}

// Describe renders a module's functions as help text.
func (m *Module) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", m.Name, m.Doc)
	for _, f := range m.Funcs {
		args := make([]string, len(f.Args))
		for i, a := range f.Args {
			args[i] = a.String()
		}
		if f.Variadic {
			args = append(args, "...")
		}
		fmt.Fprintf(&sb, "  %s(%s)  %s\n", f.Name, strings.Join(args, ", "), f.Doc)
	}
	return sb.String()
}
