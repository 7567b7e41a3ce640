package bolt

import (
	"errors"
	"io/fs"

	"github.com/rubiojr/bolt/value"
	"github.com/rubiojr/bolt/vm"
)

// Namespace bindings every executing module receives besides the globals.
const (
	RuntimeName = vm.RuntimeName
	RefsName    = "__refs__"
	NameName    = "__name__"
	FileName    = "__file__"
)

var internalNames = []string{RuntimeName, RefsName, NameName, FileName}

// Evaluator executes compiled modules at most once each, in import order.
type Evaluator struct {
	rt *Runtime
}

// Output returns the output value of m, executing it if needed. Modules
// without code produce their syntax tree.
func (ev *Evaluator) Output(m *CompiledModule) (value.Value, error) {
	if m.native {
		return m.result, nil
	}
	if !m.HasCode() {
		return ev.Run(m)
	}
	// A module still on the stack may have bound its output name already.
	if m.state == Executing {
		return value.Nil, ev.cycle(m)
	}
	if m.Namespace != nil {
		if v, ok := m.Namespace.Get(m.Output); ok {
			return v, nil
		}
	}
	return ev.Run(m)
}

// Run executes m unless it already ran, and returns its output.
func (ev *Evaluator) Run(m *CompiledModule) (value.Value, error) {
	switch m.state {
	case Executed:
		return m.result, nil
	case Executing:
		return value.Nil, ev.cycle(m)
	}
	rt := ev.rt
	log := rt.Logger.With("location", m.ResourceLocation)

	m.state = Executing
	rt.push(m)
	defer func() {
		rt.pop()
		if m.state == Executing {
			m.reset()
		}
	}()

	if !m.hooksRan {
		m.hooksRan = true
		for _, h := range m.hooks {
			if err := h(m); err != nil {
				return value.Nil, err
			}
		}
	}

	if !m.HasCode() {
		m.Namespace = value.NewNamespace()
		m.result = value.Tree(m.AST)
		m.state = Executed
		return m.result, nil
	}

	log.Debug("execute", "depth", len(rt.stack))
	ns := rt.seed(m)
	m.Namespace = ns
	if err := vm.Run(m.Code, m.Refs, ns); err != nil {
		log.Debug("execute failed", "error", err)
		return value.Nil, rewrite(m, err)
	}
	m.result, _ = ns.Get(m.Output)
	m.state = Executed
	return m.result, nil
}

func (ev *Evaluator) cycle(m *CompiledModule) error {
	stack := ev.rt.stack
	start := 0
	for i, s := range stack {
		if s == m {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(stack)-start+1)
	for _, s := range stack[start:] {
		chain = append(chain, s.ResourceLocation)
	}
	chain = append(chain, m.ResourceLocation)
	return &ImportCycleError{Chain: chain}
}

// ImportModule resolves loc, executes the module if it has not run yet
// and returns it. Relative locations resolve against the executing
// module. Unknown locations fail with *ImportError.
func (ev *Evaluator) ImportModule(loc string) (*CompiledModule, error) {
	base := ""
	if top := ev.rt.top(); top != nil {
		base = top.ResourceLocation
	}
	full := ResolveLocation(base, loc)
	if !ValidLocation(full) {
		return nil, &ImportError{Location: loc, Err: fs.ErrNotExist}
	}
	m, err := ev.rt.Registry.Get(Target{Location: full})
	if err != nil {
		if errors.Is(err, ErrUnusableCompilationUnit) {
			if u, ok := ev.rt.Database.Lookup(full); ok && len(u.Diagnostics) > 0 {
				return nil, &DiagnosticsError{Unit: u}
			}
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if nm, ok := ev.rt.Registry.native(full); ok {
			return nm, nil
		}
		return nil, &ImportError{Location: loc, Err: err}
	}
	if _, err := ev.Output(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromModuleImport imports loc and returns the values bound to names, in
// order. A missing name fails with *ImportError naming it.
func (ev *Evaluator) FromModuleImport(loc string, names ...string) ([]value.Value, error) {
	m, err := ev.ImportModule(loc)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(names))
	for i, name := range names {
		v, ok := m.Namespace.Get(name)
		if !ok {
			return nil, &ImportError{Location: loc, Name: name}
		}
		out[i] = v
	}
	return out, nil
}
