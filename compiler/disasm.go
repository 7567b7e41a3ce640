package compiler

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bolt/value"
)

// Disassemble renders code and every function it references as text.
func Disassemble(code *Code, refs []value.Value) string {
	var sb strings.Builder
	seen := map[*Code]bool{}
	var walk func(c *Code)
	walk = func(c *Code) {
		if seen[c] {
			return
		}
		seen[c] = true
		disassembleOne(&sb, c, refs)
		for _, ins := range c.Instructions {
			if Op(ins) != OpMakeFunc {
				continue
			}
			if fn, ok := refs[Operand(ins)].Data.(*Code); ok {
				sb.WriteByte('\n')
				walk(fn)
			}
		}
	}
	walk(code)
	return sb.String()
}

func disassembleOne(sb *strings.Builder, c *Code, refs []value.Value) {
	fmt.Fprintf(sb, "== %s (%s)", c.Name, c.Filename)
	if len(c.Params) > 0 {
		fmt.Fprintf(sb, " params=%s", strings.Join(c.Params, ","))
	}
	if c.NumLocals > 0 {
		fmt.Fprintf(sb, " locals=%d", c.NumLocals)
	}
	sb.WriteString(" ==\n")
	for ip, ins := range c.Instructions {
		op, imm := Op(ins), Operand(ins)
		var line strings.Builder
		fmt.Fprintf(&line, "%04d %4d  %-18s", ip, c.LineAt(ip), op)
		switch op {
		case OpRef, OpImport, OpImportFrom, OpMakeFunc:
			fmt.Fprintf(&line, " %d", imm)
			if int(imm) < len(refs) {
				fmt.Fprintf(&line, " (%s)", value.Repr(refs[imm]))
			}
		case OpLoadName, OpStoreName, OpGetAttr:
			fmt.Fprintf(&line, " %d", imm)
			if int(imm) < len(c.Names) {
				fmt.Fprintf(&line, " (%s)", c.Names[imm])
			}
		case OpLoadLocal, OpStoreLocal, OpMakeList, OpMakeMap, OpCall,
			OpJump, OpJumpIfFalse, OpJumpIfFalseKeep, OpJumpIfTrueKeep, OpIterNext:
			fmt.Fprintf(&line, " %d", imm)
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
	}
}
