package compiler

import "fmt"

// Opcode is the operation part of an instruction.
type Opcode uint8

const (
	OpNop Opcode = iota

	// constants and names
	OpRef       // push refs[imm]
	OpNil       // push nil
	OpTrue      // push true
	OpFalse     // push false
	OpLoadName  // push namespace[names[imm]]
	OpStoreName // namespace[names[imm]] = pop
	OpLoadLocal // push locals[imm]
	OpStoreLocal
	OpPop
	OpDup

	// collections
	OpMakeList // pop imm values into a list
	OpMakeMap  // pop imm key/value pairs into a map
	OpGetAttr  // pop obj, push obj.names[imm]
	OpGetIndex // pop idx, obj; push obj[idx]
	OpSetIndex // pop val, idx, obj; obj[idx] = val

	// arithmetic, comparison, unary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg
	OpNot

	// control flow
	OpJump            // ip = imm
	OpJumpIfFalse     // pop cond; if falsy ip = imm
	OpJumpIfFalseKeep // if top is falsy ip = imm, else pop
	OpJumpIfTrueKeep  // if top is truthy ip = imm, else pop
	OpIterInit        // pop iterable, push iterator
	OpIterNext        // push next item of iterator on top, or pop it and ip = imm

	// functions and modules
	OpCall       // pop imm args and callee; push result
	OpReturn     // pop v; return v
	OpMakeFunc   // push a function for the proto refs[imm]
	OpImport     // push the module at location refs[imm]
	OpImportFrom // refs[imm] = [location, names...]; push each imported value
)

var opNames = [...]string{
	OpNop:             "NOP",
	OpRef:             "REF",
	OpNil:             "NIL",
	OpTrue:            "TRUE",
	OpFalse:           "FALSE",
	OpLoadName:        "LOAD_NAME",
	OpStoreName:       "STORE_NAME",
	OpLoadLocal:       "LOAD_LOCAL",
	OpStoreLocal:      "STORE_LOCAL",
	OpPop:             "POP",
	OpDup:             "DUP",
	OpMakeList:        "MAKE_LIST",
	OpMakeMap:         "MAKE_MAP",
	OpGetAttr:         "GET_ATTR",
	OpGetIndex:        "GET_INDEX",
	OpSetIndex:        "SET_INDEX",
	OpAdd:             "ADD",
	OpSub:             "SUB",
	OpMul:             "MUL",
	OpDiv:             "DIV",
	OpMod:             "MOD",
	OpEq:              "EQ",
	OpNe:              "NE",
	OpLt:              "LT",
	OpLe:              "LE",
	OpGt:              "GT",
	OpGe:              "GE",
	OpNeg:             "NEG",
	OpNot:             "NOT",
	OpJump:            "JUMP",
	OpJumpIfFalse:     "JUMP_IF_FALSE",
	OpJumpIfFalseKeep: "JUMP_IF_FALSE_KEEP",
	OpJumpIfTrueKeep:  "JUMP_IF_TRUE_KEEP",
	OpIterInit:        "ITER_INIT",
	OpIterNext:        "ITER_NEXT",
	OpCall:            "CALL",
	OpReturn:          "RETURN",
	OpMakeFunc:        "MAKE_FUNC",
	OpImport:          "IMPORT",
	OpImportFrom:      "IMPORT_FROM",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// MaxOperand is the largest immediate that fits in an instruction.
const MaxOperand = 1<<24 - 1

// Pack encodes an instruction as op<<24 | imm.
func Pack(op Opcode, imm uint32) uint32 { return uint32(op)<<24 | (imm & MaxOperand) }

// Op extracts the opcode of an instruction.
func Op(ins uint32) Opcode { return Opcode(ins >> 24) }

// Operand extracts the immediate of an instruction.
func Operand(ins uint32) uint32 { return ins & MaxOperand }

// Code is a compiled instruction sequence. A module body and every function
// body get their own Code; they share the module's refs.
type Code struct {
	Name         string   `msgpack:"name"`
	Filename     string   `msgpack:"file"`
	Instructions []uint32 `msgpack:"ins"`
	Lines        []int32  `msgpack:"lines"` // source line of each instruction
	Names        []string `msgpack:"names"`
	Params       []string `msgpack:"params,omitempty"`
	NumLocals    int      `msgpack:"locals,omitempty"`
}

// FuncName implements the naming hook used when printing function values.
func (c *Code) FuncName() string { return c.Name }

// LineAt returns the source line of the instruction at ip.
func (c *Code) LineAt(ip int) int {
	if ip < 0 || ip >= len(c.Lines) {
		return 0
	}
	return int(c.Lines[ip])
}
