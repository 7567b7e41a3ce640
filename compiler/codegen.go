package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rubiojr/bolt/ast"
	"github.com/rubiojr/bolt/value"
)

// ImplicitOutput is the output name of modules that do not declare one.
// It is bound to the value of the last top-level expression statement.
const ImplicitOutput = "__output__"

// Result is the product of code generation for one module.
type Result struct {
	// Code is nil when the module has no executable statement.
	Code *Code
	// Output names the namespace binding holding the module's output.
	// Empty when Code is nil.
	Output string
	// Refs are the literal and function-prototype references used by Code.
	Refs []value.Value
}

// Error is a compile error at a source position.
type Error struct {
	File string
	Pos  ast.Pos
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line, e.Pos.Col, e.Msg)
}

// ErrorList collects every compile error of a module, in source order.
type ErrorList []*Error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Generate compiles mod. Names that are not bound at module level must be
// in globals.
func Generate(mod *ast.Module, globals []string) (*Result, error) {
	g := &generator{
		file:     mod.SourceFile,
		globals:  make(map[string]bool, len(globals)),
		bound:    make(map[string]bool),
		refIndex: make(map[string]int),
	}
	for _, name := range globals {
		g.globals[name] = true
	}

	var executable []ast.Statement
	var output *ast.OutputStmt
	for _, st := range mod.Statements {
		if o, ok := st.(*ast.OutputStmt); ok {
			if output != nil {
				g.errorf(o.Pos, "output already declared at line %d", output.Line)
				continue
			}
			output = o
			continue
		}
		executable = append(executable, st)
	}
	collectBound(executable, g.bound)

	if len(executable) == 0 {
		if output != nil {
			g.errorf(output.Pos, "output name %q is never assigned", output.Name)
		}
		if len(g.errs) > 0 {
			return nil, g.errs
		}
		return &Result{}, nil
	}

	res := &Result{Output: ImplicitOutput}
	lastExpr := -1
	if output != nil {
		res.Output = output.Name
		if !g.bound[output.Name] {
			g.errorf(output.Pos, "output name %q is never assigned", output.Name)
		}
	} else {
		for i, st := range executable {
			if _, ok := st.(*ast.ExprStmt); ok {
				lastExpr = i
			}
		}
	}

	e := g.newEmitter("<module>", nil)
	for i, st := range executable {
		if i == lastExpr {
			// Kept on the stack until the end of the module.
			es := st.(*ast.ExprStmt)
			e.setPos(es.Pos)
			e.expr(es.Expression)
			continue
		}
		e.stmt(st)
	}
	// Bound only once every statement has run.
	if output == nil {
		if lastExpr < 0 {
			e.emit(OpNil, 0)
		}
		e.emit(OpStoreName, e.name(ImplicitOutput))
	}

	if len(g.errs) > 0 {
		return nil, g.errs
	}
	res.Code = e.code
	res.Refs = g.refs
	return res, nil
}

type generator struct {
	file     string
	globals  map[string]bool
	bound    map[string]bool // module-level bindings
	refs     []value.Value
	refIndex map[string]int
	errs     ErrorList
}

func (g *generator) errorf(pos ast.Pos, format string, args ...any) {
	g.errs = append(g.errs, &Error{File: g.file, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (g *generator) newEmitter(name string, params []string) *emitter {
	e := &emitter{
		g:     g,
		code:  &Code{Name: name, Filename: g.file, Params: params},
		names: make(map[string]uint32),
	}
	if params != nil || name != "<module>" {
		e.locals = make(map[string]uint32)
	}
	return e
}

// ref interns a literal; key identifies equal literals.
func (g *generator) ref(key string, v value.Value) uint32 {
	if key != "" {
		if i, ok := g.refIndex[key]; ok {
			return uint32(i)
		}
		g.refIndex[key] = len(g.refs)
	}
	g.refs = append(g.refs, v)
	return uint32(len(g.refs) - 1)
}

// collectBound records the names a statement list binds, without
// descending into function bodies.
func collectBound(stmts []ast.Statement, into map[string]bool) {
	for _, st := range stmts {
		switch s := st.(type) {
		case *ast.AssignStmt:
			into[s.Target] = true
		case *ast.ForStmt:
			into[s.Var] = true
			collectBound(s.Body, into)
		case *ast.WhileStmt:
			collectBound(s.Body, into)
		case *ast.IfStmt:
			collectBound(s.Body, into)
			for _, c := range s.ElsifClauses {
				collectBound(c.Body, into)
			}
			collectBound(s.ElseBody, into)
		case *ast.FuncDef:
			into[s.Name] = true
		case *ast.ImportStmt:
			into[importName(s)] = true
		case *ast.FromImportStmt:
			for _, n := range s.Names {
				into[n] = true
			}
		}
	}
}

func importName(s *ast.ImportStmt) string {
	if s.Alias != "" {
		return s.Alias
	}
	return ast.DefaultImportName(s.Location)
}

type loop struct {
	start  int
	breaks []int
	iter   bool // a for loop keeps its iterator on the stack
}

type emitter struct {
	g      *generator
	code   *Code
	names  map[string]uint32
	locals map[string]uint32 // nil at module level
	loops  []*loop
	line   int32
}

func (e *emitter) setPos(p ast.Pos) { e.line = int32(p.Line) }

func (e *emitter) emit(op Opcode, imm uint32) int {
	e.code.Instructions = append(e.code.Instructions, Pack(op, imm))
	e.code.Lines = append(e.code.Lines, e.line)
	return len(e.code.Instructions) - 1
}

func (e *emitter) here() int { return len(e.code.Instructions) }

func (e *emitter) patch(at, target int) {
	e.code.Instructions[at] = Pack(Op(e.code.Instructions[at]), uint32(target))
}

func (e *emitter) name(n string) uint32 {
	if i, ok := e.names[n]; ok {
		return i
	}
	i := uint32(len(e.code.Names))
	e.code.Names = append(e.code.Names, n)
	e.names[n] = i
	return i
}

func (e *emitter) local(n string) uint32 {
	if i, ok := e.locals[n]; ok {
		return i
	}
	i := uint32(e.code.NumLocals)
	e.locals[n] = i
	e.code.NumLocals++
	return i
}

func (e *emitter) block(stmts []ast.Statement) {
	for _, st := range stmts {
		e.stmt(st)
	}
}

func (e *emitter) store(n string) {
	if e.locals != nil {
		e.emit(OpStoreLocal, e.local(n))
		return
	}
	e.emit(OpStoreName, e.name(n))
}

func (e *emitter) stmt(st ast.Statement) {
	e.setPos(st.Position())
	switch s := st.(type) {
	case *ast.ExprStmt:
		e.expr(s.Expression)
		e.emit(OpPop, 0)

	case *ast.AssignStmt:
		e.expr(s.Value)
		e.store(s.Target)

	case *ast.IndexAssignStmt:
		e.expr(s.Object)
		e.expr(s.Index)
		e.expr(s.Value)
		e.setPos(s.Pos)
		e.emit(OpSetIndex, 0)

	case *ast.IfStmt:
		var ends []int
		e.expr(s.Condition)
		next := e.emit(OpJumpIfFalse, 0)
		e.block(s.Body)
		for _, c := range s.ElsifClauses {
			ends = append(ends, e.emit(OpJump, 0))
			e.patch(next, e.here())
			e.expr(c.Condition)
			next = e.emit(OpJumpIfFalse, 0)
			e.block(c.Body)
		}
		if s.ElseBody != nil {
			ends = append(ends, e.emit(OpJump, 0))
			e.patch(next, e.here())
			e.block(s.ElseBody)
		} else {
			e.patch(next, e.here())
		}
		for _, j := range ends {
			e.patch(j, e.here())
		}

	case *ast.WhileStmt:
		l := &loop{start: e.here()}
		e.expr(s.Condition)
		exit := e.emit(OpJumpIfFalse, 0)
		e.loops = append(e.loops, l)
		e.block(s.Body)
		e.loops = e.loops[:len(e.loops)-1]
		e.emit(OpJump, uint32(l.start))
		e.patch(exit, e.here())
		for _, j := range l.breaks {
			e.patch(j, e.here())
		}

	case *ast.ForStmt:
		e.expr(s.Iterable)
		e.setPos(s.Pos)
		e.emit(OpIterInit, 0)
		l := &loop{start: e.here(), iter: true}
		exit := e.emit(OpIterNext, 0)
		e.store(s.Var)
		e.loops = append(e.loops, l)
		e.block(s.Body)
		e.loops = e.loops[:len(e.loops)-1]
		e.emit(OpJump, uint32(l.start))
		e.patch(exit, e.here())
		for _, j := range l.breaks {
			e.patch(j, e.here())
		}

	case *ast.BreakStmt:
		if len(e.loops) == 0 {
			e.g.errorf(s.Pos, "break outside loop")
			return
		}
		l := e.loops[len(e.loops)-1]
		if l.iter {
			e.emit(OpPop, 0)
		}
		l.breaks = append(l.breaks, e.emit(OpJump, 0))

	case *ast.ContinueStmt:
		if len(e.loops) == 0 {
			e.g.errorf(s.Pos, "continue outside loop")
			return
		}
		e.emit(OpJump, uint32(e.loops[len(e.loops)-1].start))

	case *ast.ReturnStmt:
		if e.locals == nil {
			e.g.errorf(s.Pos, "return outside function")
			return
		}
		if s.Value != nil {
			e.expr(s.Value)
		} else {
			e.emit(OpNil, 0)
		}
		e.emit(OpReturn, 0)

	case *ast.FuncDef:
		if e.locals != nil {
			e.g.errorf(s.Pos, "def is only allowed at module level")
			return
		}
		fn := e.g.function(s)
		e.setPos(s.Pos)
		e.emit(OpMakeFunc, e.g.ref("", value.Value{Tag: value.ProtoTag, Data: fn}))
		e.emit(OpStoreName, e.name(s.Name))

	case *ast.ImportStmt:
		e.emit(OpImport, e.g.ref("s:"+s.Location, value.Str(s.Location)))
		e.store(importName(s))

	case *ast.FromImportStmt:
		items := make([]value.Value, 0, len(s.Names)+1)
		items = append(items, value.Str(s.Location))
		for _, n := range s.Names {
			items = append(items, value.Str(n))
		}
		e.emit(OpImportFrom, e.g.ref("", value.NewList(items...)))
		for i := len(s.Names) - 1; i >= 0; i-- {
			e.store(s.Names[i])
		}

	case *ast.OutputStmt:
		e.g.errorf(s.Pos, "output must be declared at module level")

	default:
		e.g.errorf(st.Position(), "unsupported statement %T", st)
	}
}

func (g *generator) function(def *ast.FuncDef) *Code {
	params := def.Params
	if params == nil {
		params = []string{}
	}
	e := g.newEmitter(def.Name, params)
	for _, p := range params {
		e.local(p)
	}
	bound := make(map[string]bool)
	collectBound(def.Body, bound)
	names := make([]string, 0, len(bound))
	for n := range bound {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		e.local(n)
	}
	e.setPos(def.Pos)
	e.block(def.Body)
	e.emit(OpNil, 0)
	e.emit(OpReturn, 0)
	if len(e.code.Params) == 0 {
		e.code.Params = nil
	}
	return e.code
}

var binaryOps = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"%":  OpMod,
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (e *emitter) expr(x ast.Expr) {
	e.setPos(x.Position())
	switch n := x.(type) {
	case *ast.IntLiteral:
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			e.g.errorf(n.Pos, "integer literal %s out of range", n.Value)
			return
		}
		e.emit(OpRef, e.g.ref("i:"+n.Value, value.Int(i)))

	case *ast.FloatLiteral:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			e.g.errorf(n.Pos, "invalid float literal %s", n.Value)
			return
		}
		e.emit(OpRef, e.g.ref("f:"+n.Value, value.Float(f)))

	case *ast.StringLiteral:
		e.emit(OpRef, e.g.ref("s:"+n.Value, value.Str(n.Value)))

	case *ast.BoolLiteral:
		if n.Value {
			e.emit(OpTrue, 0)
		} else {
			e.emit(OpFalse, 0)
		}

	case *ast.NilLiteral:
		e.emit(OpNil, 0)

	case *ast.IdentExpr:
		if i, ok := e.locals[n.Name]; ok {
			e.emit(OpLoadLocal, i)
			return
		}
		if !e.g.bound[n.Name] && !e.g.globals[n.Name] {
			e.g.errorf(n.Pos, "undefined name %q", n.Name)
			return
		}
		e.emit(OpLoadName, e.name(n.Name))

	case *ast.ListLiteral:
		for _, el := range n.Elements {
			e.expr(el)
		}
		e.setPos(n.Pos)
		e.emit(OpMakeList, uint32(len(n.Elements)))

	case *ast.MapLiteral:
		for i := range n.Keys {
			e.expr(n.Keys[i])
			e.expr(n.Values[i])
		}
		e.setPos(n.Pos)
		e.emit(OpMakeMap, uint32(len(n.Keys)))

	case *ast.UnaryExpr:
		e.expr(n.Operand)
		e.setPos(n.Pos)
		if n.Op == "not" {
			e.emit(OpNot, 0)
		} else {
			e.emit(OpNeg, 0)
		}

	case *ast.BinaryExpr:
		switch n.Op {
		case "and", "or":
			e.expr(n.Left)
			op := OpJumpIfFalseKeep
			if n.Op == "or" {
				op = OpJumpIfTrueKeep
			}
			e.setPos(n.Pos)
			end := e.emit(op, 0)
			e.expr(n.Right)
			e.patch(end, e.here())
			return
		}
		op, ok := binaryOps[n.Op]
		if !ok {
			e.g.errorf(n.Pos, "unknown operator %q", n.Op)
			return
		}
		e.expr(n.Left)
		e.expr(n.Right)
		e.setPos(n.Pos)
		e.emit(op, 0)

	case *ast.CallExpr:
		e.expr(n.Func)
		for _, a := range n.Args {
			e.expr(a)
		}
		e.setPos(n.Pos)
		e.emit(OpCall, uint32(len(n.Args)))

	case *ast.IndexExpr:
		e.expr(n.Object)
		e.expr(n.Index)
		e.setPos(n.Pos)
		e.emit(OpGetIndex, 0)

	case *ast.AttrExpr:
		e.expr(n.Object)
		e.setPos(n.Pos)
		e.emit(OpGetAttr, e.name(n.Name))

	default:
		e.g.errorf(x.Position(), "unsupported expression %T", x)
	}
}
