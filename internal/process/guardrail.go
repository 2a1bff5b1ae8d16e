package process

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Guardrail wraps a check cell around a value: the cell returns Bool, and
// a false verdict rejects the value with the configured message.
type Guardrail struct {
	name      string
	checkCell string
	message   string
	runner    CellRunner
}

func NewGuardrail(meta lir.ProcessMeta, runner CellRunner) *Guardrail {
	msg := meta.Config["message"]
	if msg == "" {
		msg = "guardrail rejected value"
	}
	return &Guardrail{name: meta.Name, checkCell: meta.Cell, message: msg, runner: runner}
}

func (g *Guardrail) Name() string { return g.name }
func (g *Guardrail) Kind() string { return "guardrail" }
func (g *Guardrail) Close() error { return nil }

// Check runs the guard cell over v; a falsy verdict is an error carrying
// the configured message.
func (g *Guardrail) Check(ctx context.Context, v vmvalue.Value) error {
	if g.checkCell == "" {
		return nil
	}
	verdict, err := g.runner.Run(ctx, g.checkCell, []vmvalue.Value{v})
	if err != nil {
		return fmt.Errorf("guardrail %s: %w", g.name, err)
	}
	if verdict.Kind == vmvalue.KBool && !verdict.B {
		return fmt.Errorf("guardrail %s: %s", g.name, g.message)
	}
	return nil
}

// Eval scores a value with its body cell (expected to return Float in
// [0,1]) and compares against the configured threshold.
type Eval struct {
	name      string
	scoreCell string
	threshold float64
	runner    CellRunner
}

func NewEval(meta lir.ProcessMeta, runner CellRunner) *Eval {
	threshold := 0.5
	if s, ok := meta.Config["threshold"]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			threshold = f
		}
	}
	return &Eval{name: meta.Name, scoreCell: meta.Cell, threshold: threshold, runner: runner}
}

func (e *Eval) Name() string { return e.name }
func (e *Eval) Kind() string { return "eval" }
func (e *Eval) Close() error { return nil }

// Score runs the scoring cell and reports the score plus whether it clears
// the threshold.
func (e *Eval) Score(ctx context.Context, v vmvalue.Value) (float64, bool, error) {
	if e.scoreCell == "" {
		return 0, false, fmt.Errorf("eval %s: no scoring body declared", e.name)
	}
	out, err := e.runner.Run(ctx, e.scoreCell, []vmvalue.Value{v})
	if err != nil {
		return 0, false, fmt.Errorf("eval %s: %w", e.name, err)
	}
	var score float64
	switch out.Kind {
	case vmvalue.KFloat:
		score = out.F
	case vmvalue.KInt:
		score = float64(out.I)
	default:
		return 0, false, fmt.Errorf("eval %s: scoring cell returned %s, want a number", e.name, out.TypeOf())
	}
	return score, score >= e.threshold, nil
}

// Pattern is a named prompt/template holder: config entries are exposed
// verbatim for agents to interpolate. It carries no behavior of its own.
type Pattern struct {
	name   string
	params map[string]string
}

func NewPattern(meta lir.ProcessMeta) *Pattern {
	params := make(map[string]string, len(meta.Config))
	for k, v := range meta.Config {
		params[k] = v
	}
	return &Pattern{name: meta.Name, params: params}
}

func (p *Pattern) Name() string { return p.name }
func (p *Pattern) Kind() string { return "pattern" }
func (p *Pattern) Close() error { return nil }

// Param reads one configured entry.
func (p *Pattern) Param(key string) (string, bool) {
	v, ok := p.params[key]
	return v, ok
}
