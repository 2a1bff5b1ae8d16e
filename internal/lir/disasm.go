package lir

import (
	"fmt"
	"strings"
)

// Disasm renders a cell's instruction stream as one line per instruction,
// for the lowering snapshot tests and debugging inspection. The format
// follows the usual register-machine listing shape: pc, opcode, operands
// per layout, with constant operands annotated inline.
func (c *LirCell) Disasm() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cell %s params=%d regs=%d\n", c.Name, c.Params, c.RegisterCount)
	for pc, ins := range c.Instructions {
		switch LayoutOf(ins.Op) {
		case LayoutSAx:
			fmt.Fprintf(&sb, "  %3d  %-10s %+d -> %d\n", pc, ins.Op, ins.Sax, pc+1+int(ins.Sax))
		case LayoutABx:
			note := ""
			if opUsesConstant(ins.Op) && int(ins.Bx) < len(c.Constants) {
				note = "  ; " + formatConst(c.Constants[ins.Bx])
			}
			fmt.Fprintf(&sb, "  %3d  %-10s r%d k%d%s\n", pc, ins.Op, ins.A, ins.Bx, note)
		default:
			fmt.Fprintf(&sb, "  %3d  %-10s r%d r%d r%d\n", pc, ins.Op, ins.A, ins.B, ins.C)
		}
	}
	return sb.String()
}

func formatConst(v Value) string {
	switch v.Kind {
	case "string":
		return fmt.Sprintf("%q", v.Str)
	case "int":
		return fmt.Sprintf("%d", v.Int)
	case "float":
		return fmt.Sprintf("%g", v.Float)
	case "bool":
		return fmt.Sprintf("%t", v.Bool)
	case "cell":
		return "cell " + v.Str
	default:
		return v.Kind
	}
}
