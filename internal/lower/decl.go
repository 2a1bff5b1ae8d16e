package lower

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/checker"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/resolver"
)

// lowerAgent compiles an agent declaration's body into an ordinary cell
// (an agent is, at the bytecode level, a cell that happens to have tools
// and a memory process bound to it) and records the binding in an
// AgentMeta entry the VM consults to wire tool grants and the memory
// process before calling that cell. Instructions is bound as a local named
// "instructions" ahead of the body so a hand-written agent body can
// reference its own system prompt without a dedicated opcode.
func lowerAgent(mod *lir.LirModule, res *resolver.Resolution, env *checker.Env, diags *diag.List,
	consts map[string]lir.Value, d *ast.AgentDecl) {
	cellName := "<agent:" + d.Name + ">"
	b := newBuilder(mod, res, env, diags, nil)
	b.constsTop = consts
	b.cell.Name = cellName
	b.cell.Params = len(d.Params)
	b.cell.Effects = d.Effects

	b.pushBlock()
	for _, p := range d.Params {
		r := b.allocReg(p.SpanRange)
		b.defineLocal(p.Name, r)
	}
	if d.Instructions != nil {
		reg := lowerExpr(b, d.Instructions)
		dst := b.allocReg(d.SpanRange)
		b.emit(lir.ABC(lir.OpMove, dst, reg, 0))
		b.defineLocal("instructions", dst)
	}
	lowerBody(b, d.Body)
	b.runDefers()
	b.emit(lir.ABC(lir.OpReturn, 0, 0, 0))
	b.popBlock(0)

	b.cell.RegisterCount = b.regs.registerCount()
	mod.Cells = append(mod.Cells, *b.cell)

	mod.Agents = append(mod.Agents, lir.AgentMeta{
		Name: d.Name, Cell: cellName, Tools: append([]string{}, d.Tools...), Memory: d.Memory,
	})
}

// lowerProcess compiles a process declaration's config into a ProcessMeta
// entry (the runtime backends for memory/machine/pipeline/etc. live in
// internal/vm's process registry, not in LIR) and, for kinds that carry a
// step body (machine/pipeline/orchestration), compiles that body into its
// own cell the VM invokes per step/transition.
func lowerProcess(mod *lir.LirModule, res *resolver.Resolution, env *checker.Env, diags *diag.List,
	consts map[string]lir.Value, d *ast.ProcessDecl) {
	config := map[string]string{}
	for _, c := range d.Config {
		config[c.Key] = configValueString(c.Value)
	}

	var cellName string
	if len(d.Body) > 0 {
		cellName = fmt.Sprintf("<process:%s>", d.Name)
		b := newBuilder(mod, res, env, diags, nil)
		b.constsTop = consts
		b.cell.Name = cellName
		b.pushBlock()
		lowerBody(b, d.Body)
		b.runDefers()
		b.emit(lir.ABC(lir.OpReturn, 0, 0, 0))
		b.popBlock(0)
		b.cell.RegisterCount = b.regs.registerCount()
		mod.Cells = append(mod.Cells, *b.cell)
	}

	mod.Processes = append(mod.Processes, lir.ProcessMeta{
		Name: d.Name, Kind: d.Kind.String(), Config: config, Cell: cellName,
	})
}

// configValueString renders a process/tool config entry's value for the
// LirModule's string-keyed config maps; only bare literals are meaningful
// here (spec.md §3's process configs are themselves literal key/value
// pairs, never arbitrary expressions).
func configValueString(e ast.Expr) string {
	lit, ok := e.(*ast.LiteralExpr)
	if !ok {
		return ""
	}
	switch lit.Kind {
	case ast.LitString:
		s, _ := lit.Value.(string)
		return s
	case ast.LitBool:
		v, _ := lit.Value.(bool)
		if v {
			return "true"
		}
		return "false"
	case ast.LitNull:
		return ""
	default:
		return fmt.Sprintf("%v", lit.Value)
	}
}

// lowerHandler compiles a handler declaration into a single dispatch cell
// taking (op, args): op is the performed operation name as a string value,
// args is the List of arguments Perform bundled. The cell tests op against
// each case in declaration order, destructures that case's params out of
// args by position, and lowers its body — whose `resume(v)` lowers to an
// ordinary Return, since handler dispatch is a synchronous call from the
// Perform site and that call's own frame plays the role of the captured
// continuation (see DESIGN.md's internal/vm entry).
func lowerHandler(mod *lir.LirModule, res *resolver.Resolution, env *checker.Env, diags *diag.List,
	consts map[string]lir.Value, d *ast.HandlerDecl) {
	cellName := "<handler:" + d.Name + ">"
	b := newBuilder(mod, res, env, diags, nil)
	b.constsTop = consts
	b.cell.Name = cellName
	b.cell.Params = 2

	b.pushBlock()
	opReg := b.allocReg(d.SpanRange)
	argsReg := b.allocReg(d.SpanRange)
	b.defineLocal("__op", opReg)
	b.defineLocal("__args", argsReg)

	// Record which ops this dispatch cell actually covers so the VM can
	// decide Perform eligibility (does this installed handler intercept
	// this effect/op at all?) without speculatively invoking the cell and
	// guessing whether a Null result meant "no case matched" or a genuine
	// resume(null).
	for _, c := range d.Cases {
		b.cell.EffectHandlerMetas = append(b.cell.EffectHandlerMetas, lir.EffectHandlerMeta{Effect: d.Effect, Op: c.Op})
	}

	for _, c := range d.Cases {
		mark := b.regs.mark()
		b.pushBlock()
		opConst := b.freshNamed(c.SpanRange, c.Op)
		testReg := b.allocReg(c.SpanRange)
		b.emit(lir.ABC(lir.OpEq, testReg, opReg, opConst))
		// Test skips on falsy; a case must fall through to its body on a
		// *match* and skip to the next case on a mismatch, so negate first.
		notTest := b.allocReg(c.SpanRange)
		b.emit(lir.ABC(lir.OpNot, notTest, testReg, 0))
		b.emit(lir.ABC(lir.OpTest, notTest, 0, 0))
		skipPC := b.emit(lir.SAx(lir.OpJmp, 0))

		for pi, p := range c.Params {
			pr := b.allocReg(p.SpanRange)
			b.emit(lir.ABC(lir.OpGetTuple, pr, argsReg, uint8(pi)))
			b.defineLocal(p.Name, pr)
		}
		lowerBody(b, c.Body)
		b.runDefers()
		nilReg := b.allocReg(c.SpanRange)
		b.emit(lir.ABC(lir.OpLoadNil, nilReg, 0, 0))
		b.emit(lir.ABC(lir.OpReturn, nilReg, 0, 0))

		b.scopes = b.scopes[:len(b.scopes)-1]
		b.regs.releaseTo(mark)
		b.patchJumpTo(skipPC, b.here())
	}

	nilReg := b.allocReg(d.SpanRange)
	b.emit(lir.ABC(lir.OpLoadNil, nilReg, 0, 0))
	b.emit(lir.ABC(lir.OpReturn, nilReg, 0, 0))
	b.popBlock(0)

	b.cell.RegisterCount = b.regs.registerCount()
	mod.Cells = append(mod.Cells, *b.cell)

	mod.Handlers = append(mod.Handlers, lir.HandlerDef{Name: d.Name, Effect: d.Effect, Cell: cellName})
}
