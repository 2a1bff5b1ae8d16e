package vm

import (
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/tool"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// execToolCall implements OpToolCall's (dst, aliasReg, argsReg) convention
// (lower/expr.go's lowerToolCall). There is no scope operand at the
// instruction level at all, so every call reaches the dispatcher with an
// empty domain; tool.Policy.Validate treats an empty domain as nothing to
// check, which is the closest a scope-blind instruction can get to
// honoring a scoped grant without inventing a call-site scope LIR never
// records (see flattenPolicies's doc comment for the same limitation on
// the grant side of this boundary).
func (v *VM) execToolCall(f *fiber, fr *frame, ins lir.Instruction) error {
	alias := fr.regs[ins.B].S
	args := fr.regs[ins.C]
	input := vmvalue.ToJSON(args)

	out, toolErr := v.tools.Call(f.ctx, alias, "", input)
	if toolErr != nil {
		fr.regs[ins.A] = vmvalue.NewUnion("Result", "err", toolErrorValue(toolErr))
		return nil
	}
	val, err := vmvalue.FromJSON(out)
	if err != nil {
		return err
	}
	fr.regs[ins.A] = vmvalue.NewUnion("Result", "ok", val)
	return nil
}

// ModuleGrants builds the tool.GrantLookup a Dispatcher needs from a
// compiled module's policy table, using the same scope flattening the VM
// applies internally, so the dispatcher and the VM agree on which policy
// governs an alias.
func ModuleGrants(mod *lir.LirModule) tool.GrantLookup {
	policies := flattenPolicies(mod.Policies)
	return func(alias string) (tool.Policy, bool) {
		p, ok := policies[alias]
		return p, ok
	}
}

// toolErrorValue renders a tool.ToolError as the Record a handler or
// `try` block sees, mirroring spec.md §4.10's ToolError field list.
func toolErrorValue(e *tool.ToolError) vmvalue.Value {
	fields := []string{"kind", "message", "retry_after_ms", "elapsed_ms", "limit_ms", "expected_schema", "actual"}
	values := []vmvalue.Value{
		vmvalue.Str(e.Kind.String()),
		vmvalue.Str(e.Message),
		vmvalue.Int(e.RetryAfterMs),
		vmvalue.Int(e.ElapsedMs),
		vmvalue.Int(e.LimitMs),
		vmvalue.Str(e.ExpectedSchema),
		vmvalue.Str(e.Actual),
	}
	return vmvalue.NewRecord("ToolError", fields, values)
}
