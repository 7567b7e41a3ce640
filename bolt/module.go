package bolt

import (
	"github.com/rubiojr/bolt/ast"
	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
)

// State is the execution state of a compiled module.
type State int

const (
	NotExecuted State = iota
	Executing
	Executed
)

func (s State) String() string {
	switch s {
	case NotExecuted:
		return "not-executed"
	case Executing:
		return "executing"
	case Executed:
		return "executed"
	}
	return "unknown"
}

// Hook runs once before a module's code first executes.
type Hook func(m *CompiledModule) error

// CompiledModule is the executable artifact derived from a compilation
// unit. Namespace is nil until the module executes.
type CompiledModule struct {
	AST              *ast.Module
	Code             *compiler.Code // nil for modules without executable statements
	Refs             []value.Value
	Output           string // empty when Code is nil
	ResourceLocation string
	Filename         string
	// Globals is the sorted global-identifier set used to compile Code.
	Globals   []string
	Namespace *value.Namespace

	hooks    []Hook
	hooksRan bool
	state    State
	result   value.Value
	native   bool
}

// State returns the module's execution state.
func (m *CompiledModule) State() State { return m.state }

// AddHook registers a pre-execution hook. Hooks added after the module
// started executing never run.
func (m *CompiledModule) AddHook(h Hook) { m.hooks = append(m.hooks, h) }

// HasCode reports whether the module has executable code.
func (m *CompiledModule) HasCode() bool { return m.Code != nil && m.Output != "" }

// Native reports whether the module is implemented in Go.
func (m *CompiledModule) Native() bool { return m.native }

func (m *CompiledModule) reset() {
	m.state = NotExecuted
	m.Namespace = nil
	m.result = value.Nil
}
