// Package bolt implements the Bolt module runtime: compilation units,
// the compiled-module registry, and the evaluator that executes modules
// at most once each with import cycle detection.
package bolt

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rubiojr/bolt/value"
)

// Version is the runtime release.
const Version = "0.4.0"

// FormatVersion changes whenever compiled code changes shape.
const FormatVersion = 1

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.Logger = l }
}

// WithVersion overrides the version tag recorded in compiled artifacts.
func WithVersion(v string) Option {
	return func(rt *Runtime) { rt.version = v }
}

// WithStdout sets where print writes.
func WithStdout(w io.Writer) Option {
	return func(rt *Runtime) { rt.Stdout = w }
}

// WithoutBuiltins starts the runtime with no global bindings.
func WithoutBuiltins() Option {
	return func(rt *Runtime) { rt.noBuiltins = true }
}

// Runtime ties together the database, registry and evaluator of one
// session. It is single-threaded: hosts serialize access.
type Runtime struct {
	Database  *Database
	Registry  *Registry
	Evaluator *Evaluator
	Logger    *slog.Logger
	Stdout    io.Writer

	version    string
	noBuiltins bool
	globals    *value.Namespace
	stack      []*CompiledModule
}

// New returns a runtime whose modules live below root.
func New(root string, opts ...Option) *Runtime {
	rt := &Runtime{
		Database: NewDatabase(root),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Stdout:   os.Stdout,
		version:  fmt.Sprintf("%s+bc%d", Version, FormatVersion),
		globals:  value.NewNamespace(),
	}
	rt.Registry = newRegistry(rt)
	rt.Evaluator = &Evaluator{rt: rt}
	for _, opt := range opts {
		opt(rt)
	}
	if !rt.noBuiltins {
		rt.installBuiltins()
	}
	return rt
}

// Version returns the tag stamped on compiled artifacts.
func (rt *Runtime) Version() string { return rt.version }

// Globals returns the sorted names of the global bindings.
func (rt *Runtime) Globals() []string { return rt.globals.Names() }

// Global returns a global binding.
func (rt *Runtime) Global(name string) (value.Value, bool) { return rt.globals.Get(name) }

// SetGlobal adds or replaces a global binding. Modules compiled before
// the change keep the global set they were compiled with.
func (rt *Runtime) SetGlobal(name string, v value.Value) { rt.globals.Set(name, v) }

// DeleteGlobal removes a global binding.
func (rt *Runtime) DeleteGlobal(name string) { rt.globals.Delete(name) }

// Stack returns a copy of the execution stack, outermost first.
func (rt *Runtime) Stack() []*CompiledModule {
	return append([]*CompiledModule(nil), rt.stack...)
}

func (rt *Runtime) push(m *CompiledModule) { rt.stack = append(rt.stack, m) }

func (rt *Runtime) pop() { rt.stack = rt.stack[:len(rt.stack)-1] }

func (rt *Runtime) top() *CompiledModule {
	if len(rt.stack) == 0 {
		return nil
	}
	return rt.stack[len(rt.stack)-1]
}

// seed builds the namespace m executes in.
func (rt *Runtime) seed(m *CompiledModule) *value.Namespace {
	ns := value.NewNamespace()
	ns.Update(rt.globals)
	ns.Set(RuntimeName, value.Handle(rt))
	ns.Set(RefsName, value.NewList(append([]value.Value(nil), m.Refs...)...))
	ns.Set(NameName, value.Str(m.ResourceLocation))
	ns.Set(FileName, value.Str(m.Filename))
	return ns
}

// DiagnosticsError reports a unit that could not be compiled because it
// failed to parse.
type DiagnosticsError struct {
	Unit *CompilationUnit
}

func (e *DiagnosticsError) Error() string {
	msgs := make([]string, len(e.Unit.Diagnostics))
	for i, d := range e.Unit.Diagnostics {
		msgs[i] = d.String()
	}
	return strings.Join(msgs, "\n")
}

func (e *DiagnosticsError) Unwrap() error { return ErrUnusableCompilationUnit }

// Compile returns the compiled module of unit. When the unit has no
// syntax tree but already carries diagnostics, Compile returns a nil
// module and a nil error: the diagnostics are the report.
func (rt *Runtime) Compile(unit *CompilationUnit) (*CompiledModule, error) {
	m, err := rt.Registry.Get(Target{Unit: unit})
	if errors.Is(err, ErrUnusableCompilationUnit) && len(unit.Diagnostics) > 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", unit.ResourceLocation, err)
	}
	return m, nil
}

// Exec loads the module at loc, makes it the current unit and returns
// its output.
func (rt *Runtime) Exec(loc string) (value.Value, error) {
	unit, err := rt.Database.Load(loc)
	if err != nil {
		return value.Nil, err
	}
	rt.Database.Current = unit
	m, err := rt.Compile(unit)
	if err != nil {
		return value.Nil, err
	}
	if m == nil {
		return value.Nil, &DiagnosticsError{Unit: unit}
	}
	return rt.Evaluator.Output(m)
}

// Import implements the import statement.
func (rt *Runtime) Import(loc string) (value.Value, error) {
	m, err := rt.Evaluator.ImportModule(loc)
	if err != nil {
		return value.Nil, err
	}
	return value.NewModule(m.ResourceLocation, m.Namespace), nil
}

// ImportFrom implements the from-import statement.
func (rt *Runtime) ImportFrom(loc string, names []string) ([]value.Value, error) {
	return rt.Evaluator.FromModuleImport(loc, names...)
}

// Clear ends the session: every compiled module and unit is dropped.
func (rt *Runtime) Clear() {
	rt.Registry.Clear()
	rt.Database.Clear()
	rt.stack = nil
}
