package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bolt/value"
)

func withCleanRegistry(t *testing.T) {
	t.Helper()
	old := registry
	registry = make(map[string]*Module)
	t.Cleanup(func() { registry = old })
}

func echo(args []value.Value) (value.Value, error) {
	return value.NewList(args...), nil
}

func call(t *testing.T, fn value.Value, args ...value.Value) (value.Value, error) {
	t.Helper()
	require.Equal(t, value.NativeTag, fn.Tag)
	return fn.Data.(*value.NativeFunc).Fn(args)
}

func TestRegisterAndGet(t *testing.T) {
	withCleanRegistry(t)

	Register(&Module{
		Name:  "test",
		Funcs: []FuncDef{{Name: "foo", Args: []ArgType{String}, Impl: echo}},
	})

	got, ok := Get("test")
	require.True(t, ok)
	assert.Equal(t, "test", got.Name)

	_, ok = Get("nonexistent")
	assert.False(t, ok)
	assert.True(t, IsModule("test"))
	assert.False(t, IsModule("nope"))
}

func TestNames(t *testing.T) {
	withCleanRegistry(t)
	Register(&Module{Name: "beta"})
	Register(&Module{Name: "alpha"})
	assert.Equal(t, []string{"alpha", "beta"}, Names())
}

func TestLookupFunc(t *testing.T) {
	withCleanRegistry(t)
	Register(&Module{
		Name: "mymod",
		Funcs: []FuncDef{
			{Name: "hello", Args: []ArgType{String}, Impl: echo},
		},
	})

	fn, ok := LookupFunc("mymod", "hello")
	require.True(t, ok)
	assert.Equal(t, "<builtin mymod.hello>", value.Repr(fn))

	_, ok = LookupFunc("mymod", "missing")
	assert.False(t, ok)
	_, ok = LookupFunc("unknown", "hello")
	assert.False(t, ok)
}

func TestWrapperChecksArguments(t *testing.T) {
	m := &Module{
		Name: "t",
		Funcs: []FuncDef{
			{Name: "f", Args: []ArgType{String, Int, Float, Bool, List, Any}, Impl: echo},
			{Name: "v", Args: []ArgType{String}, Variadic: true, Impl: echo},
		},
	}
	ns := m.Namespace()
	f, _ := ns.Get("f")

	out, err := call(t, f, value.Str("a"), value.Int(1), value.Int(2), value.Bool(true), value.NewList(), value.Nil)
	require.NoError(t, err)
	assert.Equal(t, `["a", 1, 2.0, true, [], nil]`, value.Repr(out))

	_, err = call(t, f, value.Str("a"))
	assert.EqualError(t, err, "t.f: requires 6 argument(s), got 1")

	_, err = call(t, f, value.Int(1), value.Int(1), value.Int(2), value.Bool(true), value.NewList(), value.Nil)
	assert.EqualError(t, err, "t.f: argument 1: expected string, got int")

	v, _ := ns.Get("v")
	out, err = call(t, v, value.Str("a"), value.Int(1), value.Nil)
	require.NoError(t, err)
	assert.Len(t, out.AsList().Items, 3)

	_, err = call(t, v)
	assert.EqualError(t, err, "t.v: requires at least 1 argument(s), got 0")
}

func TestModuleValueAndDescribe(t *testing.T) {
	m := &Module{
		Name: "t",
		Doc:  "Test module.",
		Funcs: []FuncDef{
			{Name: "f", Args: []ArgType{String, Int}, Doc: "Does f.", Impl: echo},
		},
	}
	v := m.Value()
	require.Equal(t, value.ModuleTag, v.Tag)
	assert.Equal(t, []string{"f"}, v.AsModule().Namespace.Names())
	assert.Equal(t, "t: Test module.\n  f(string, int)  Does f.\n", m.Describe())
}
