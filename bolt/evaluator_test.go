package bolt

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rubiojr/bolt/modules/math"
	"github.com/rubiojr/bolt/value"
)

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt := New(t.TempDir(), opts...)
	t.Cleanup(rt.Clear)
	return rt
}

func writeFile(t *testing.T, root, name, src string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestOutputRunsHookOnce(t *testing.T) {
	rt := newTestRuntime(t, WithoutBuiltins())
	rt.Database.AddSource("A", "output = 1 + 1\noutput output\n")

	m, err := rt.Registry.Get(Target{Location: "A"})
	require.NoError(t, err)
	calls := 0
	m.AddHook(func(*CompiledModule) error {
		calls++
		return nil
	})

	out, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), out)
	assert.Equal(t, Executed, m.State())

	out, err = rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), out)

	out, err = rt.Evaluator.Run(m)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), out)
	assert.Equal(t, 1, calls)
}

func TestOutputExecutesAtMostOnce(t *testing.T) {
	rt := newTestRuntime(t)
	ticks := 0
	rt.SetGlobal("tick", value.Native("tick", func([]value.Value) (value.Value, error) {
		ticks++
		return value.Nil, nil
	}))
	rt.Database.AddSource("counter", "tick()\n7\n")
	m, err := rt.Registry.Get(Target{Location: "counter"})
	require.NoError(t, err)

	first, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	second, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ticks)
}

func TestOutputWithoutCodeIsTree(t *testing.T) {
	rt := newTestRuntime(t)
	unit := rt.Database.AddSource("empty", "# declarations only\n")
	m, err := rt.Registry.Get(Target{Unit: unit})
	require.NoError(t, err)
	assert.False(t, m.HasCode())

	out, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	require.Equal(t, value.TreeTag, out.Tag)
	assert.Same(t, unit.AST, out.AsTree())

	again, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Same(t, unit.AST, again.AsTree())
}

func TestImportCycle(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("a", "import \"b\"\nx = 1\n")
	rt.Database.AddSource("b", "import \"a\"\ny = 2\n")

	_, err := rt.Exec("a")
	require.Error(t, err)
	var cycle *ImportCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
	assert.EqualError(t, err, "a.bolt:1: b.bolt:1: import cycle detected: a -> b -> a")

	for _, loc := range []string{"a", "b"} {
		m, ok := rt.Registry.Lookup(loc)
		require.True(t, ok, loc)
		assert.Equal(t, NotExecuted, m.State(), loc)
		assert.Nil(t, m.Namespace, loc)
	}
	assert.Empty(t, rt.Stack())

	// The failure is not sticky: the same cycle is reported again.
	_, err = rt.Exec("a")
	require.ErrorAs(t, err, &cycle)
}

func assertCycleUnwound(t *testing.T, rt *Runtime, locs ...string) {
	t.Helper()
	for _, loc := range locs {
		m, ok := rt.Registry.Lookup(loc)
		require.True(t, ok, loc)
		assert.Equal(t, NotExecuted, m.State(), loc)
		assert.Nil(t, m.Namespace, loc)
	}
	assert.Empty(t, rt.Stack())
}

func TestImportCycleAfterExpressionStatement(t *testing.T) {
	var out bytes.Buffer
	rt := newTestRuntime(t, WithStdout(&out))
	rt.Database.AddSource("a", "print(\"a\")\nimport \"b\"\n")
	rt.Database.AddSource("b", "import \"a\"\ny = 2\n")

	_, err := rt.Exec("a")
	var cycle *ImportCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
	assert.Equal(t, "a\n", out.String())
	assertCycleUnwound(t, rt, "a", "b")
}

func TestImportCycleAfterOutputAssigned(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("a", "x = 1\nimport \"b\"\noutput x\n")
	rt.Database.AddSource("b", "from \"a\" import x\ny = x\n")

	_, err := rt.Exec("a")
	var cycle *ImportCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
	assertCycleUnwound(t, rt, "a", "b")
}

func TestFromModuleImport(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("lib/data", "x = 1\ny = \"two\"\n")

	vals, err := rt.Evaluator.FromModuleImport("lib/data", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Int(1), value.Str("two")}, vals)

	_, err = rt.Evaluator.FromModuleImport("lib/data", "x", "z")
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "lib/data", ie.Location)
	assert.Equal(t, "z", ie.Name)
	assert.EqualError(t, err, `cannot import name "z" from "lib/data"`)
}

func TestImportModuleNotFound(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Evaluator.ImportModule("lib/nope")
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, ie.Name)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.EqualError(t, err, `module "lib/nope" not found`)

	_, err = rt.Evaluator.ImportModule("../outside")
	require.ErrorAs(t, err, &ie)
}

func TestImportModuleWithParseError(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("broken", "if x\n")
	_, err := rt.Evaluator.ImportModule("broken")
	var de *DiagnosticsError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, ErrUnusableCompilationUnit)
	assert.Contains(t, err.Error(), `expected "end"`)
}

func TestImportBindsModuleNamespace(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("lib/greet", "def hi(n)\n  return \"hi \" + n\nend\n")
	rt.Database.AddSource("main", "import \"lib/greet\"\nimport \"lib/greet\" as g\noutput = greet.hi(\"bob\") + g.hi(\"!\")\noutput output\n")

	out, err := rt.Exec("main")
	require.NoError(t, err)
	assert.Equal(t, value.Str("hi bobhi !"), out)
	assert.Equal(t, []string{"lib/greet", "main"}, rt.Registry.Locations())
}

func TestRelativeImportsFromFiles(t *testing.T) {
	rt := newTestRuntime(t)
	root := rt.Database.Root
	writeFile(t, root, "lib/a.bolt", "from \"./b\" import v\nfrom \"../top\" import t\noutput = v + t\noutput output\n")
	writeFile(t, root, "lib/b.bolt", "v = 1\n")
	writeFile(t, root, "top.bolt", "t = 10\n")

	out, err := rt.Exec("lib/a")
	require.NoError(t, err)
	assert.Equal(t, value.Int(11), out)
	assert.Equal(t, []string{"lib/a", "lib/b", "top"}, rt.Registry.Locations())

	unit, ok := rt.Database.Lookup("lib/b")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "lib", "b.bolt"), unit.Filename)
}

func TestNativeModuleImport(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("calc", "import \"math\"\nfrom \"math\" import pow\nr = math.sqrt(16) + pow(2, 3)\noutput r\n")
	out, err := rt.Exec("calc")
	require.NoError(t, err)
	assert.Equal(t, value.Float(12), out)

	m, err := rt.Evaluator.ImportModule("math")
	require.NoError(t, err)
	assert.True(t, m.Native())
	mv, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Equal(t, value.ModuleTag, mv.Tag)
}

func TestSourceModuleShadowsNative(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("math", "answer = 42\n")
	vals, err := rt.Evaluator.FromModuleImport("math", "answer")
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), vals[0])
}

func TestRuntimeErrorPointsAtUserCode(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("e", "def f()\n  return 1 / 0\nend\nf()\n")

	_, err := rt.Exec("e")
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, Pos{File: "e.bolt", Line: 2}, be.Pos)
	assert.EqualError(t, err, "e.bolt:2: division by zero")
	assert.Len(t, be.Frames, 2)
	detail := be.Detail()
	assert.Contains(t, detail, "at f (e.bolt:2)")
	assert.Contains(t, detail, "at <module> (e.bolt:4)")

	m, _ := rt.Registry.Lookup("e")
	assert.Equal(t, NotExecuted, m.State())
	assert.Nil(t, m.Namespace)
}

func TestRuntimeErrorKeepsCause(t *testing.T) {
	rt := newTestRuntime(t)
	errKaput := errors.New("kaput")
	rt.SetGlobal("boom", value.Native("boom", func([]value.Value) (value.Value, error) {
		return value.Nil, errKaput
	}))
	rt.Database.AddSource("e", "x = 1\nboom()\n")
	_, err := rt.Exec("e")
	require.ErrorIs(t, err, errKaput)
	assert.EqualError(t, err, "e.bolt:2: kaput")
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Detail(), "caused by: *errors.errorString: kaput")
}

func TestHookFailureRunsHooksOnlyOnce(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("h", "1\n")
	m, err := rt.Registry.Get(Target{Location: "h"})
	require.NoError(t, err)
	calls := 0
	m.AddHook(func(*CompiledModule) error {
		calls++
		return errors.New("not ready")
	})

	_, err = rt.Evaluator.Output(m)
	assert.EqualError(t, err, "not ready")
	assert.Equal(t, NotExecuted, m.State())

	out, err := rt.Evaluator.Output(m)
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), out)
	assert.Equal(t, 1, calls)
}

func TestNamespaceSeeding(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Database.AddSource("who", "s = \"hi\"\n[__name__, __file__, len(__refs__)]\n")
	out, err := rt.Exec("who")
	require.NoError(t, err)
	assert.Equal(t, `["who", "who.bolt", 1]`, value.Repr(out))

	m, _ := rt.Registry.Lookup("who")
	rtv, ok := m.Namespace.Get(RuntimeName)
	require.True(t, ok)
	assert.Same(t, rt, rtv.Data)
}

func TestPrintWritesToStdout(t *testing.T) {
	var buf bytes.Buffer
	rt := newTestRuntime(t, WithStdout(&buf))
	rt.Database.AddSource("p", "print(\"a\", 1, [2, \"b\"], nil)\n")
	_, err := rt.Exec("p")
	require.NoError(t, err)
	assert.Equal(t, "a 1 [2, \"b\"] nil\n", buf.String())
}
