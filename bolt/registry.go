package bolt

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rubiojr/bolt/ast"
	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/modules"
	"github.com/rubiojr/bolt/value"
)

// Target selects the module Registry.Get resolves. At most one field is
// normally set; the zero Target means "the module being executed" or, when
// nothing executes, the database's current unit.
type Target struct {
	Location string
	Tree     *ast.Module
	Unit     *CompilationUnit
}

func (t Target) zero() bool { return t.Location == "" && t.Tree == nil && t.Unit == nil }

// ArtifactCache supplies previously compiled modules and persists fresh
// ones. A fetched module must carry unit's syntax tree.
type ArtifactCache interface {
	Fetch(unit *CompilationUnit) (*CompiledModule, bool)
	Persist(unit *CompilationUnit, m *CompiledModule)
}

// Registry maps compilation units, by resource location, to their
// compiled modules. It is not safe for concurrent use.
type Registry struct {
	rt      *Runtime
	modules map[string]*CompiledModule
	natives map[string]*CompiledModule
	// Cache, when set, is consulted before code generation.
	Cache ArtifactCache
}

func newRegistry(rt *Runtime) *Registry {
	return &Registry{
		rt:      rt,
		modules: make(map[string]*CompiledModule),
		natives: make(map[string]*CompiledModule),
	}
}

// Get resolves t to a compiled module, generating code when the unit has
// no module yet or its syntax tree changed.
func (r *Registry) Get(t Target) (*CompiledModule, error) {
	if t.zero() {
		if top := r.rt.top(); top != nil {
			return top, nil
		}
	}
	unit, err := r.unit(t)
	if err != nil {
		return nil, err
	}
	tree := unit.AST
	if t.Tree != nil {
		tree = t.Tree
	}
	if m, ok := r.modules[unit.ResourceLocation]; ok && tree != nil && m.AST == tree {
		return m, nil
	}
	if r.Cache != nil && tree != nil && tree == unit.AST {
		if m, ok := r.Cache.Fetch(unit); ok && m.AST == tree {
			r.modules[unit.ResourceLocation] = m
			return m, nil
		}
	}
	m, err := r.codegen(unit, tree)
	if err != nil {
		return nil, err
	}
	r.modules[unit.ResourceLocation] = m
	if r.Cache != nil && tree == unit.AST {
		r.Cache.Persist(unit, m)
	}
	return m, nil
}

func (r *Registry) unit(t Target) (*CompilationUnit, error) {
	db := r.rt.Database
	switch {
	case t.Unit != nil:
		return t.Unit, nil
	case t.Location != "":
		return db.Load(t.Location)
	case t.Tree != nil:
		if u, ok := db.UnitForTree(t.Tree); ok {
			return u, nil
		}
		return nil, fmt.Errorf("syntax tree of %s does not belong to a compilation unit: %w", t.Tree.SourceFile, ErrNoCompilationUnit)
	case db.Current != nil:
		return db.Current, nil
	}
	return nil, ErrNoCompilationUnit
}

func (r *Registry) codegen(unit *CompilationUnit, tree *ast.Module) (*CompiledModule, error) {
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", unit.ResourceLocation, ErrUnusableCompilationUnit)
	}
	globals := r.rt.Globals()
	names := append(append([]string(nil), globals...), internalNames...)
	res, err := compiler.Generate(tree, names)
	if err != nil {
		return nil, err
	}
	r.rt.Logger.Debug("codegen", "location", unit.ResourceLocation, "code", res.Code != nil, "refs", len(res.Refs))
	m := &CompiledModule{
		AST:              tree,
		Refs:             res.Refs,
		ResourceLocation: unit.ResourceLocation,
		Filename:         unit.Filename,
		Globals:          globals,
	}
	if res.Code != nil && res.Output != "" {
		m.Code = res.Code
		m.Output = res.Output
	}
	return m, nil
}

// Install stores m as the module of unit. m.AST must be unit's tree.
func (r *Registry) Install(unit *CompilationUnit, m *CompiledModule) error {
	if m.AST == nil || m.AST != unit.AST {
		return errors.New("module tree does not match the compilation unit")
	}
	r.modules[unit.ResourceLocation] = m
	return nil
}

// Lookup returns the module compiled for loc, if any.
func (r *Registry) Lookup(loc string) (*CompiledModule, bool) {
	m, ok := r.modules[loc]
	return m, ok
}

// Locations returns the locations of all compiled modules, sorted.
func (r *Registry) Locations() []string {
	locs := make([]string, 0, len(r.modules))
	for loc := range r.modules {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}

// Remove drops the module compiled for loc.
func (r *Registry) Remove(loc string) { delete(r.modules, loc) }

// Clear drops every module.
func (r *Registry) Clear() {
	r.modules = make(map[string]*CompiledModule)
	r.natives = make(map[string]*CompiledModule)
}

// Len returns the number of compiled modules.
func (r *Registry) Len() int { return len(r.modules) }

// native returns the executed module wrapping the Go module name.
func (r *Registry) native(name string) (*CompiledModule, bool) {
	if m, ok := r.natives[name]; ok {
		return m, true
	}
	mod, ok := modules.Get(name)
	if !ok {
		return nil, false
	}
	m := &CompiledModule{
		ResourceLocation: name,
		Filename:         "<native " + name + ">",
		Namespace:        mod.Namespace(),
		state:            Executed,
		native:           true,
	}
	m.result = value.NewModule(name, m.Namespace)
	r.natives[name] = m
	return m, true
}
