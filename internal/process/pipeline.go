package process

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Pipeline chains cells: each stage's result feeds the next stage's single
// argument. Config: stages = "clean,summarize,format". A declared body
// cell, when present, runs after the last stage with the final value.
type Pipeline struct {
	name     string
	stages   []string
	bodyCell string
	runner   CellRunner
}

func NewPipeline(meta lir.ProcessMeta, runner CellRunner) *Pipeline {
	return &Pipeline{
		name:     meta.Name,
		stages:   splitList(meta.Config["stages"]),
		bodyCell: meta.Cell,
		runner:   runner,
	}
}

func (p *Pipeline) Name() string { return p.name }
func (p *Pipeline) Kind() string { return "pipeline" }
func (p *Pipeline) Close() error { return nil }

// Run threads input through every stage in order.
func (p *Pipeline) Run(ctx context.Context, input vmvalue.Value) (vmvalue.Value, error) {
	cur := input
	for _, stage := range p.stages {
		out, err := p.runner.Run(ctx, stage, []vmvalue.Value{cur})
		if err != nil {
			return vmvalue.Null, fmt.Errorf("pipeline %s: stage %s: %w", p.name, stage, err)
		}
		cur = out
	}
	if p.bodyCell != "" {
		out, err := p.runner.Run(ctx, p.bodyCell, []vmvalue.Value{cur})
		if err != nil {
			return vmvalue.Null, fmt.Errorf("pipeline %s: body: %w", p.name, err)
		}
		cur = out
	}
	return cur, nil
}

// Orchestration fans one input out to every step cell concurrently and
// collects results in declaration order. Config: steps = "a,b,c". The
// coordinator body cell, when present, receives the collected list for
// synthesis.
type Orchestration struct {
	name     string
	steps    []string
	bodyCell string
	runner   CellRunner
}

func NewOrchestration(meta lir.ProcessMeta, runner CellRunner) *Orchestration {
	return &Orchestration{
		name:     meta.Name,
		steps:    splitList(meta.Config["steps"]),
		bodyCell: meta.Cell,
		runner:   runner,
	}
}

func (o *Orchestration) Name() string { return o.name }
func (o *Orchestration) Kind() string { return "orchestration" }
func (o *Orchestration) Close() error { return nil }

// Run executes every step concurrently, preserving input order in the
// result list (the same contract as the scheduler's `parallel`).
func (o *Orchestration) Run(ctx context.Context, input vmvalue.Value) (vmvalue.Value, error) {
	results := make([]vmvalue.Value, len(o.steps))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, step := range o.steps {
		i, step := i, step
		g.Go(func() error {
			out, err := o.runner.Run(gctx, step, []vmvalue.Value{input})
			if err != nil {
				return fmt.Errorf("step %s: %w", step, err)
			}
			mu.Lock()
			results[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return vmvalue.Null, fmt.Errorf("orchestration %s: %w", o.name, err)
	}

	collected := vmvalue.NewList(results...)
	if o.bodyCell != "" {
		out, err := o.runner.Run(ctx, o.bodyCell, []vmvalue.Value{collected})
		if err != nil {
			return vmvalue.Null, fmt.Errorf("orchestration %s: body: %w", o.name, err)
		}
		return out, nil
	}
	return collected, nil
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
