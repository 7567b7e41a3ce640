package vm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bolt/ast"
	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
)

func execSource(t *testing.T, src string, ns *value.Namespace) error {
	t.Helper()
	mod, err := ast.ParseSource(src, "t.bolt")
	require.NoError(t, err)
	res, err := compiler.Generate(mod, ns.Names())
	require.NoError(t, err)
	return Run(res.Code, res.Refs, ns)
}

func get(t *testing.T, ns *value.Namespace, name string) value.Value {
	t.Helper()
	v, ok := ns.Get(name)
	require.True(t, ok, "%s is not bound", name)
	return v
}

func TestRunControlFlow(t *testing.T) {
	ns := value.NewNamespace()
	err := execSource(t, `total = 0
for i in [1, 2, 3, 4]
  if i % 2 == 0
    continue
  end
  total = total + i
end
n = 10
while n > 0
  n = n - 3
  if n < 3
    break
  end
end
flag = n == 1 and not false
pick = nil or "fallback"
`, ns)
	require.NoError(t, err)
	assert.Equal(t, value.Int(4), get(t, ns, "total"))
	assert.Equal(t, value.Int(1), get(t, ns, "n"))
	assert.Equal(t, value.Bool(true), get(t, ns, "flag"))
	assert.Equal(t, value.Str("fallback"), get(t, ns, "pick"))
	assert.Equal(t, value.Nil, get(t, ns, compiler.ImplicitOutput))
}

func TestRunFunctions(t *testing.T) {
	ns := value.NewNamespace()
	err := execSource(t, `def fib(n)
  if n < 2
    return n
  end
  return fib(n - 1) + fib(n - 2)
end
def noop()
end
a = fib(10)
b = noop()
fib(6)
`, ns)
	require.NoError(t, err)
	assert.Equal(t, value.Int(55), get(t, ns, "a"))
	assert.Equal(t, value.Nil, get(t, ns, "b"))
	assert.Equal(t, value.Int(8), get(t, ns, compiler.ImplicitOutput))

	out, err := Call(get(t, ns, "fib"), value.Int(7))
	require.NoError(t, err)
	assert.Equal(t, value.Int(13), out)
}

func TestRunImplicitOutputSurvivesLaterStatements(t *testing.T) {
	ns := value.NewNamespace()
	err := execSource(t, "10 * 2\nfor i in [1, 2]\n  if i == 2\n    break\n  end\n  x = i\nend\n", ns)
	require.NoError(t, err)
	assert.Equal(t, value.Int(20), get(t, ns, compiler.ImplicitOutput))
	assert.Equal(t, value.Int(1), get(t, ns, "x"))
}

func TestRunCollections(t *testing.T) {
	ns := value.NewNamespace()
	err := execSource(t, `m = {"a": 1}
m["b"] = [1, 2]
m.b[0] = 5
first = m.b[0]
missing = m["zzz"]
x = [1, 2] + [3]
last = x[-1]
s = "ab" * 2
c = s[1]
keys = []
for k in m
  keys = keys + [k]
end
chars = ""
for ch in "héllo"
  chars = chars + ch + "."
end
`, ns)
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), get(t, ns, "first"))
	assert.Equal(t, value.Nil, get(t, ns, "missing"))
	assert.Equal(t, value.Int(3), get(t, ns, "last"))
	assert.Equal(t, value.Str("abab"), get(t, ns, "s"))
	assert.Equal(t, value.Str("b"), get(t, ns, "c"))
	assert.Equal(t, `["a", "b"]`, value.Repr(get(t, ns, "keys")))
	assert.Equal(t, value.Str("h.é.l.l.o."), get(t, ns, "chars"))
	assert.Equal(t, `{"a": 1, "b": [5, 2]}`, value.Repr(get(t, ns, "m")))
}

func TestRunArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want value.Value
	}{
		{"7 / 2", value.Int(3)},
		{"-7 / 2", value.Int(-4)},
		{"-7 % 2", value.Int(1)},
		{"7.0 / 2", value.Float(3.5)},
		{"1 + 0.5", value.Float(1.5)},
		{"2 * 3 - 1", value.Int(5)},
		{"\"a\" < \"b\"", value.Bool(true)},
		{"1 == 1.0", value.Bool(true)},
		{"[1, 2] == [1, 2]", value.Bool(true)},
		{"-(2.5)", value.Float(-2.5)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ns := value.NewNamespace()
			require.NoError(t, execSource(t, "r = "+tt.expr+"\n", ns))
			assert.Equal(t, tt.want, get(t, ns, "r"))
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		line int
	}{
		{"division by zero", "x = 1 / 0\n", "division by zero", 1},
		{"bad operands", "x = 1\ny = x + \"a\"\n", "unsupported operand types for +: int and string", 2},
		{"not defined yet", "y = x\nx = 1\n", `name "x" is not defined`, 1},
		{"index out of range", "x = [1]\ny = x[3]\n", "index 3 out of range (len 1)", 2},
		{"not callable", "x = 1\nx()\n", "int is not callable", 2},
		{"arity", "def f(a)\nend\nf()\n", "f() takes 1 arguments (0 given)", 3},
		{"iterate int", "for i in 3\nend\n", "cannot iterate over int", 1},
		{"map key", "m = {1: 2}\n", "map keys must be strings, got int", 1},
		{"attr", "m = {}\nm.nope\n", `map has no key "nope"`, 2},
		{"no importer", "import \"lib/x\"\n", "imports are not available in this namespace", 1},
		{"negative repeat", "s = \"ab\" * -1\n", "negative repeat count -1", 1},
		{"huge repeat", "s = \"x\"\ns = s * 9000000000000000000\n", "repeated string longer than 67108864 bytes", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execSource(t, tt.src, value.NewNamespace())
			require.Error(t, err)
			var re *Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.msg, re.Msg)
			require.NotEmpty(t, re.Frames)
			assert.Equal(t, tt.line, re.Frames[0].Line)
			assert.Equal(t, "t.bolt", re.Frames[0].File)
		})
	}
}

func TestRunErrorTrace(t *testing.T) {
	err := execSource(t, `def inner()
  return 1 + "a"
end
def outer()
  return inner()
end
outer()
`, value.NewNamespace())
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []Frame{
		{Func: "inner", File: "t.bolt", Line: 2},
		{Func: "outer", File: "t.bolt", Line: 5},
		{Func: "<module>", File: "t.bolt", Line: 7},
	}, re.Frames)
	assert.Equal(t, "inner (t.bolt:2)", re.Frames[0].String())
}

func TestRunNativeErrorIsWrapped(t *testing.T) {
	errKaput := errors.New("kaput")
	ns := value.NewNamespace()
	ns.Set("boom", value.Native("boom", func([]value.Value) (value.Value, error) {
		return value.Nil, errKaput
	}))
	err := execSource(t, "boom()\n", ns)
	require.ErrorIs(t, err, errKaput)
	assert.EqualError(t, err, "kaput")
}

func TestRunMaxDepth(t *testing.T) {
	err := execSource(t, "def f(n)\n  return f(n + 1)\nend\nf(0)\n", value.NewNamespace())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("maximum call depth %d exceeded", MaxDepth))
}

type fakeImporter struct {
	mods map[string]*value.Namespace
}

func (f *fakeImporter) Import(loc string) (value.Value, error) {
	ns, ok := f.mods[loc]
	if !ok {
		return value.Nil, fmt.Errorf("no module %q", loc)
	}
	return value.NewModule(loc, ns), nil
}

func (f *fakeImporter) ImportFrom(loc string, names []string) ([]value.Value, error) {
	ns, ok := f.mods[loc]
	if !ok {
		return nil, fmt.Errorf("no module %q", loc)
	}
	out := make([]value.Value, len(names))
	for i, n := range names {
		out[i], _ = ns.Get(n)
	}
	return out, nil
}

func TestRunImports(t *testing.T) {
	lib := value.NewNamespace()
	lib.Set("x", value.Int(1))
	lib.Set("y", value.Int(2))
	imp := &fakeImporter{mods: map[string]*value.Namespace{"lib/data": lib}}

	ns := value.NewNamespace()
	ns.Set(RuntimeName, value.Handle(imp))
	err := execSource(t, "import \"lib/data\"\nfrom \"lib/data\" import x, y\nsum = data.x + data[\"y\"] + x + y\n", ns)
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), get(t, ns, "sum"))

	err = execSource(t, "import \"nope\" as n\n", ns)
	assert.EqualError(t, err, `no module "nope"`)
}
