// Package vm interprets compiled Bolt code against a module namespace.
package vm

import (
	"errors"
	"fmt"

	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
)

// RuntimeName is the namespace binding that holds the host runtime. Import
// instructions resolve through it.
const RuntimeName = "__runtime__"

// MaxDepth bounds nested function calls within one execution.
const MaxDepth = 512

// MaxStringLen bounds the length in bytes of strings built by repetition.
const MaxStringLen = 1 << 26

// Importer resolves the modules named by import statements.
type Importer interface {
	Import(location string) (value.Value, error)
	ImportFrom(location string, names []string) ([]value.Value, error)
}

// Function is a user-defined function closed over its module's namespace.
type Function struct {
	Code      *compiler.Code
	Refs      []value.Value
	Namespace *value.Namespace
}

// FuncName implements the naming hook used when printing function values.
func (f *Function) FuncName() string { return f.Code.Name }

// Frame is one entry of a runtime error's trace.
type Frame struct {
	Func string
	File string
	Line int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Func, f.File, f.Line)
}

// Error is a failure raised while executing code. Frames run from the
// innermost call outwards.
type Error struct {
	Msg    string
	Frames []Frame
	Err    error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Run executes module code with ns as its namespace.
func Run(code *compiler.Code, refs []value.Value, ns *value.Namespace) error {
	t := &thread{}
	_, err := t.run(&frame{code: code, refs: refs, ns: ns})
	return err
}

// Call invokes a callable value from host code.
func Call(fn value.Value, args ...value.Value) (value.Value, error) {
	t := &thread{}
	return t.call(fn, args)
}

type thread struct {
	depth int
}

type frame struct {
	code   *compiler.Code
	refs   []value.Value
	ns     *value.Namespace
	locals []value.Value
	stack  []value.Value
	ip     int
}

func (fr *frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() value.Value {
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v
}

func (fr *frame) top() value.Value { return fr.stack[len(fr.stack)-1] }

// fail builds an error located at the instruction being executed.
func (fr *frame) fail(cause error, format string, args ...any) error {
	return &Error{
		Msg:    fmt.Sprintf(format, args...),
		Frames: []Frame{fr.where()},
		Err:    cause,
	}
}

func (fr *frame) where() Frame {
	return Frame{Func: fr.code.Name, File: fr.code.Filename, Line: fr.code.LineAt(fr.ip - 1)}
}

// wrap attaches the current frame to an error coming out of a nested call.
func (fr *frame) wrap(err error) error {
	if re, ok := err.(*Error); ok {
		re.Frames = append(re.Frames, fr.where())
		return re
	}
	return fr.fail(err, "%s", err.Error())
}

func (t *thread) run(fr *frame) (value.Value, error) {
	code := fr.code.Instructions
	for fr.ip < len(code) {
		ins := code[fr.ip]
		fr.ip++
		op, imm := compiler.Op(ins), compiler.Operand(ins)

		switch op {
		case compiler.OpNop:

		case compiler.OpRef:
			if int(imm) >= len(fr.refs) {
				return value.Nil, fr.fail(nil, "ref index %d out of range", imm)
			}
			fr.push(fr.refs[imm])
		case compiler.OpNil:
			fr.push(value.Nil)
		case compiler.OpTrue:
			fr.push(value.Bool(true))
		case compiler.OpFalse:
			fr.push(value.Bool(false))

		case compiler.OpLoadName:
			name := fr.code.Names[imm]
			v, ok := fr.ns.Get(name)
			if !ok {
				return value.Nil, fr.fail(nil, "name %q is not defined", name)
			}
			fr.push(v)
		case compiler.OpStoreName:
			fr.ns.Set(fr.code.Names[imm], fr.pop())
		case compiler.OpLoadLocal:
			fr.push(fr.locals[imm])
		case compiler.OpStoreLocal:
			fr.locals[imm] = fr.pop()
		case compiler.OpPop:
			fr.pop()
		case compiler.OpDup:
			fr.push(fr.top())

		case compiler.OpMakeList:
			n := int(imm)
			items := make([]value.Value, n)
			copy(items, fr.stack[len(fr.stack)-n:])
			fr.stack = fr.stack[:len(fr.stack)-n]
			fr.push(value.NewList(items...))
		case compiler.OpMakeMap:
			n := int(imm)
			pairs := fr.stack[len(fr.stack)-2*n:]
			m := value.NewMap()
			for i := 0; i < len(pairs); i += 2 {
				if pairs[i].Tag != value.StringTag {
					return value.Nil, fr.fail(nil, "map keys must be strings, got %s", pairs[i].TypeName())
				}
				m.AsMap().Set(pairs[i].AsString(), pairs[i+1])
			}
			fr.stack = fr.stack[:len(fr.stack)-2*n]
			fr.push(m)
		case compiler.OpGetAttr:
			obj := fr.pop()
			v, err := getAttr(obj, fr.code.Names[imm])
			if err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}
			fr.push(v)
		case compiler.OpGetIndex:
			idx := fr.pop()
			obj := fr.pop()
			v, err := getIndex(obj, idx)
			if err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}
			fr.push(v)
		case compiler.OpSetIndex:
			v := fr.pop()
			idx := fr.pop()
			obj := fr.pop()
			if err := setIndex(obj, idx, v); err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
			b := fr.pop()
			a := fr.pop()
			v, err := arith(op, a, b)
			if err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}
			fr.push(v)
		case compiler.OpEq:
			b := fr.pop()
			fr.push(value.Bool(value.Equal(fr.pop(), b)))
		case compiler.OpNe:
			b := fr.pop()
			fr.push(value.Bool(!value.Equal(fr.pop(), b)))
		case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
			b := fr.pop()
			a := fr.pop()
			v, err := compare(op, a, b)
			if err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}
			fr.push(value.Bool(v))
		case compiler.OpNeg:
			a := fr.pop()
			switch a.Tag {
			case value.IntTag:
				fr.push(value.Int(-a.AsInt()))
			case value.FloatTag:
				fr.push(value.Float(-a.AsFloat()))
			default:
				return value.Nil, fr.fail(nil, "cannot negate %s", a.TypeName())
			}
		case compiler.OpNot:
			fr.push(value.Bool(!fr.pop().Truthy()))

		case compiler.OpJump:
			fr.ip = int(imm)
		case compiler.OpJumpIfFalse:
			if !fr.pop().Truthy() {
				fr.ip = int(imm)
			}
		case compiler.OpJumpIfFalseKeep:
			if !fr.top().Truthy() {
				fr.ip = int(imm)
			} else {
				fr.pop()
			}
		case compiler.OpJumpIfTrueKeep:
			if fr.top().Truthy() {
				fr.ip = int(imm)
			} else {
				fr.pop()
			}
		case compiler.OpIterInit:
			it, err := newIterator(fr.pop())
			if err != nil {
				return value.Nil, fr.fail(nil, "%s", err.Error())
			}
			fr.push(value.Handle(it))
		case compiler.OpIterNext:
			it := fr.top().Data.(*iterator)
			v, ok := it.next()
			if !ok {
				fr.pop()
				fr.ip = int(imm)
				break
			}
			fr.push(v)

		case compiler.OpCall:
			n := int(imm)
			args := make([]value.Value, n)
			copy(args, fr.stack[len(fr.stack)-n:])
			fr.stack = fr.stack[:len(fr.stack)-n]
			callee := fr.pop()
			v, err := t.call(callee, args)
			if err != nil {
				return value.Nil, fr.wrap(err)
			}
			fr.push(v)
		case compiler.OpReturn:
			return fr.pop(), nil
		case compiler.OpMakeFunc:
			proto, ok := fr.refs[imm].Data.(*compiler.Code)
			if !ok {
				return value.Nil, fr.fail(nil, "ref %d is not a function", imm)
			}
			fn := &Function{Code: proto, Refs: fr.refs, Namespace: fr.ns}
			fr.push(value.Value{Tag: value.FuncTag, Data: fn})
		case compiler.OpImport:
			imp, err := importer(fr.ns)
			if err != nil {
				return value.Nil, fr.fail(err, "%s", err.Error())
			}
			mod, err := imp.Import(fr.refs[imm].AsString())
			if err != nil {
				return value.Nil, fr.fail(err, "%s", err.Error())
			}
			fr.push(mod)
		case compiler.OpImportFrom:
			imp, err := importer(fr.ns)
			if err != nil {
				return value.Nil, fr.fail(err, "%s", err.Error())
			}
			items := fr.refs[imm].AsList().Items
			names := make([]string, len(items)-1)
			for i, it := range items[1:] {
				names[i] = it.AsString()
			}
			vals, err := imp.ImportFrom(items[0].AsString(), names)
			if err != nil {
				return value.Nil, fr.fail(err, "%s", err.Error())
			}
			for _, v := range vals {
				fr.push(v)
			}

		default:
			return value.Nil, fr.fail(nil, "unknown opcode %s", op)
		}
	}
	return value.Nil, nil
}

func (t *thread) call(callee value.Value, args []value.Value) (value.Value, error) {
	switch callee.Tag {
	case value.NativeTag:
		nf := callee.Data.(*value.NativeFunc)
		return nf.Fn(args)
	case value.FuncTag:
		fn := callee.Data.(*Function)
		code := fn.Code
		if len(args) != len(code.Params) {
			return value.Nil, fmt.Errorf("%s() takes %d arguments (%d given)", code.Name, len(code.Params), len(args))
		}
		if t.depth >= MaxDepth {
			return value.Nil, fmt.Errorf("maximum call depth %d exceeded", MaxDepth)
		}
		t.depth++
		defer func() { t.depth-- }()
		locals := make([]value.Value, code.NumLocals)
		copy(locals, args)
		return t.run(&frame{code: code, refs: fn.Refs, ns: fn.Namespace, locals: locals})
	}
	return value.Nil, fmt.Errorf("%s is not callable", callee.TypeName())
}

func importer(ns *value.Namespace) (Importer, error) {
	rt, ok := ns.Get(RuntimeName)
	if ok {
		if imp, ok := rt.Data.(Importer); ok {
			return imp, nil
		}
	}
	return nil, errors.New("imports are not available in this namespace")
}
