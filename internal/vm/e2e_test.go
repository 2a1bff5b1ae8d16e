package vm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/compile"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/scheduler"
	"github.com/lumen-lang/lumen/internal/trace"
	"github.com/lumen-lang/lumen/internal/vm"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// runSource compiles src and executes its entry cell on a fresh VM,
// returning the result, the trace sink, and any runtime error.
func runSource(t *testing.T, src string) (vmvalue.Value, *trace.Sink, error) {
	t.Helper()
	session := compile.NewSession(compile.Options{})
	unit, diags := session.CompileSource("t.lm", src)
	require.NotNil(t, unit, "compile errors: %v", diags)
	require.Empty(t, diags.Errors())

	entry, ok := compile.EntryCell(unit.Module)
	require.True(t, ok)

	ctx := context.Background()
	sched := scheduler.New(ctx, scheduler.WithWorkers(4))
	defer sched.Shutdown()
	sink := trace.NewSink(64)

	machine := vm.New(unit.Module, sched, nil, sink)
	val, err := machine.Run(ctx, entry, nil)
	return val, sink, err
}

func TestRun_Addition(t *testing.T) {
	val, _, err := runSource(t, "cell main() -> Int\n  return 2 + 3\nend\n")
	require.NoError(t, err)
	assert.Equal(t, vmvalue.KInt, val.Kind)
	assert.Equal(t, int64(5), val.I)
}

func TestRun_RecursiveFactorial(t *testing.T) {
	src := "cell fact(n: Int) -> Int\n" +
		"  if n <= 1\n    return 1\n  end\n" +
		"  return n * fact(n - 1)\n" +
		"end\n" +
		"cell main() -> Int\n  return fact(10)\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(3628800), val.I)
}

func TestRun_ForLoopAccumulates(t *testing.T) {
	src := "cell main() -> Int\n" +
		"  let mut s = 0\n" +
		"  for i in 0..5\n    s += i\n  end\n" +
		"  return s\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(10), val.I)
}

func TestRun_WhileLoop(t *testing.T) {
	src := "cell main() -> Int\n" +
		"  let mut n = 0\n" +
		"  while n < 7\n    n += 1\n  end\n" +
		"  return n\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(7), val.I)
}

func TestRun_HandledPerformRecordsNoTrace(t *testing.T) {
	src := "effect Console\n  log(m: String) -> Null\nend\n" +
		"handler Quiet for Console\n" +
		"  handle log(m)\n    resume(null)\n  end\n" +
		"end\n" +
		"cell main() -> Int\n" +
		"  with Quiet\n" +
		"    perform Console.log(\"hi\")\n" +
		"  end\n" +
		"  return 1\nend\n"
	val, sink, err := runSource(t, src)
	require.NoError(t, err, "a handled perform must not escape")
	assert.Equal(t, int64(1), val.I)
	assert.Empty(t, sink.Events(), "a handled effect must not reach tool dispatch")
}

func TestRun_HandlerResumeValueBecomesPerformResult(t *testing.T) {
	src := "effect Ask\n  num() -> Int\nend\n" +
		"handler FortyTwo for Ask\n" +
		"  handle num()\n    resume(42)\n  end\n" +
		"end\n" +
		"cell main() -> Int\n" +
		"  let mut got = 0\n" +
		"  with FortyTwo\n" +
		"    got = perform Ask.num()\n" +
		"  end\n" +
		"  return got\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(42), val.I)
}

func TestRun_UncaughtPerformErrors(t *testing.T) {
	src := "effect Console\n  log(m: String) -> Null\nend\n" +
		"cell main() -> Int\n" +
		"  perform Console.log(\"hi\")\n" +
		"  return 1\nend\n"
	_, _, err := runSource(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uncaught perform")
}

func TestRun_StackOverflowAtFrameLimit(t *testing.T) {
	src := "cell loop_forever(n: Int) -> Int\n" +
		"  return loop_forever(n + 1)\n" +
		"end\n" +
		"cell main() -> Int\n  return loop_forever(0)\nend\n"
	_, _, err := runSource(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call stack exceeded 256 frames")
}

func TestRun_DeepestLegalRecursionSucceeds(t *testing.T) {
	// main + 254 nested calls = 255 frames, one under the limit.
	src := "cell down(n: Int) -> Int\n" +
		"  if n <= 0\n    return 0\n  end\n" +
		"  return down(n - 1)\n" +
		"end\n" +
		"cell main() -> Int\n  return down(253)\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(0), val.I)
}

func TestRun_ParallelCollectsInOrder(t *testing.T) {
	src := "cell main() -> List(Int)\n" +
		"  return parallel\n" +
		"    1 + 1\n" +
		"    2 + 2\n" +
		"    3 + 3\n" +
		"  end\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	require.Equal(t, vmvalue.KList, val.Kind)
	require.Len(t, val.List.Elems, 3)
	assert.Equal(t, int64(2), val.List.Elems[0].I)
	assert.Equal(t, int64(4), val.List.Elems[1].I)
	assert.Equal(t, int64(6), val.List.Elems[2].I)
}

func TestRun_SpawnAwait(t *testing.T) {
	src := "cell main() -> Int\n" +
		"  let f = spawn 20 + 22\n" +
		"  return await f\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(42), val.I)
}

func TestRun_MatchOnEnumVariant(t *testing.T) {
	src := "enum D\n  North\n  South\nend\n" +
		"cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n      return \"n\"\n" +
		"    case D.South =>\n      return \"s\"\n" +
		"  end\n" +
		"  return \"?\"\n" +
		"end\n" +
		"cell main() -> String\n  return label(D.South)\nend\n"
	val, _, err := runSource(t, src)
	require.NoError(t, err)
	assert.Equal(t, "s", val.S)
}

func TestRun_HaltPropagates(t *testing.T) {
	src := "cell main() -> Int\n  halt \"boom\"\nend\n"
	_, _, err := runSource(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

// countingBackend compiles any cell into a canned result after two
// activations, recording which cells it was offered.
type countingBackend struct {
	offered []string
	result  vmvalue.Value
}

func (b *countingBackend) Threshold() int { return 3 }
func (b *countingBackend) Compile(cell *lir.LirCell) (vm.CompiledCell, bool) {
	b.offered = append(b.offered, cell.Name)
	res := b.result
	return func(args []vmvalue.Value) (vmvalue.Value, bool, error) {
		return res, true, nil
	}, true
}

func TestRun_TieredJITTakesOverHotCells(t *testing.T) {
	src := "cell hot() -> Int\n  return 1\nend\n" +
		"cell main() -> Int\n  return hot() + hot() + hot()\nend\n"
	session := compile.NewSession(compile.Options{})
	unit, diags := session.CompileSource("t.lm", src)
	require.NotNil(t, unit, "diags: %v", diags)

	ctx := context.Background()
	sched := scheduler.New(ctx, scheduler.WithWorkers(1))
	defer sched.Shutdown()

	backend := &countingBackend{result: vmvalue.Int(100)}
	machine := vm.New(unit.Module, sched, nil, trace.NewSink(0), vm.WithJIT(backend))

	val, err := machine.Run(ctx, "main", nil)
	require.NoError(t, err)
	// First two hot() activations interpret (1 each); the third crosses
	// the threshold and runs the compiled body (100).
	assert.Equal(t, int64(102), val.I)
	assert.Contains(t, backend.offered, "hot")
}

func TestRun_ScriptMainEntry(t *testing.T) {
	val, _, err := runSource(t, "let x = 40\nreturn x + 2\n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val.I)
}
