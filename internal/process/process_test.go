package process

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func TestMemory_GetSetDeleteKeys(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("scratch", NewMemStore())
	defer mem.Close()

	got, err := mem.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, vmvalue.KNull, got.Kind)

	require.NoError(t, mem.Set(ctx, "n", vmvalue.Int(42)))
	require.NoError(t, mem.Set(ctx, "s", vmvalue.Str("hi")))

	got, err = mem.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.I)

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "s"}, keys, "keys list in sorted order")

	require.NoError(t, mem.Delete(ctx, "n"))
	got, err = mem.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, vmvalue.KNull, got.Kind)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStoreFromClient(client, "sess")
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", `1`))
	require.NoError(t, store.Set(ctx, "b", `"two"`))

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, err = store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLStore_QueriesViaMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLStoreFromDB(db, "kv", DialectSQLite)
	defer store.Close()
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO kv").WithArgs("k", "v", "v").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Set(ctx, "k", "v"))

	mock.ExpectQuery("SELECT v FROM kv").WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	mock.ExpectQuery("SELECT k FROM kv ORDER BY k").
		WillReturnRows(sqlmock.NewRows([]string{"k"}).AddRow("a").AddRow("b"))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	mock.ExpectExec("DELETE FROM kv WHERE").WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, "k"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLStoreFromDB(db, "kv", DialectPostgres)
	defer store.Close()

	mock.ExpectQuery(`SELECT v FROM kv WHERE k = \$1`).WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	_, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

// stubRunner records cell invocations and returns scripted values.
type stubRunner struct {
	calls  []string
	result func(cell string, args []vmvalue.Value) (vmvalue.Value, error)
}

func (r *stubRunner) Run(_ context.Context, cell string, args []vmvalue.Value) (vmvalue.Value, error) {
	r.calls = append(r.calls, cell)
	if r.result != nil {
		return r.result(cell, args)
	}
	return vmvalue.Null, nil
}

func TestMachine_Transitions(t *testing.T) {
	meta := lir.ProcessMeta{
		Name: "doc",
		Kind: "machine",
		Config: map[string]string{
			"initial":    "draft",
			"states":     "draft,review,published",
			"on_submit":  "draft->review",
			"on_approve": "review->published",
		},
	}
	m, err := NewMachine(meta, nil)
	require.NoError(t, err)
	assert.Equal(t, "draft", m.Current())

	ctx := context.Background()
	state, err := m.Fire(ctx, "submit")
	require.NoError(t, err)
	assert.Equal(t, "review", state)

	_, err = m.Fire(ctx, "submit")
	assert.Error(t, err, "submit is not legal from review")

	state, err = m.Fire(ctx, "approve")
	require.NoError(t, err)
	assert.Equal(t, "published", state)

	_, err = m.Fire(ctx, "unknown")
	assert.Error(t, err)
}

func TestMachine_RejectsBadConfig(t *testing.T) {
	_, err := NewMachine(lir.ProcessMeta{
		Name: "bad", Kind: "machine",
		Config: map[string]string{"initial": "nowhere", "states": "a,b"},
	}, nil)
	assert.Error(t, err)

	_, err = NewMachine(lir.ProcessMeta{
		Name: "bad2", Kind: "machine",
		Config: map[string]string{"initial": "a", "states": "a,b", "on_go": "a->c"},
	}, nil)
	assert.Error(t, err)
}

func TestPipeline_ThreadsValueThroughStages(t *testing.T) {
	runner := &stubRunner{result: func(cell string, args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Int(args[0].I + 1), nil
	}}
	p := NewPipeline(lir.ProcessMeta{
		Name: "incr", Kind: "pipeline",
		Config: map[string]string{"stages": "a, b, c"},
	}, runner)

	out, err := p.Run(context.Background(), vmvalue.Int(0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.I)
	assert.Equal(t, []string{"a", "b", "c"}, runner.calls)
}

func TestOrchestration_CollectsInDeclarationOrder(t *testing.T) {
	runner := &stubRunner{result: func(cell string, args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(cell), nil
	}}
	o := NewOrchestration(lir.ProcessMeta{
		Name: "fan", Kind: "orchestration",
		Config: map[string]string{"steps": "x,y,z"},
	}, runner)

	out, err := o.Run(context.Background(), vmvalue.Null)
	require.NoError(t, err)
	require.Equal(t, vmvalue.KList, out.Kind)
	require.Len(t, out.List.Elems, 3)
	assert.Equal(t, "x", out.List.Elems[0].S)
	assert.Equal(t, "y", out.List.Elems[1].S)
	assert.Equal(t, "z", out.List.Elems[2].S)
}

func TestGuardrail_RejectsOnFalse(t *testing.T) {
	runner := &stubRunner{result: func(_ string, args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Bool(args[0].I > 0), nil
	}}
	g := NewGuardrail(lir.ProcessMeta{
		Name: "positive", Kind: "guardrail", Cell: "check",
		Config: map[string]string{"message": "must be positive"},
	}, runner)

	ctx := context.Background()
	assert.NoError(t, g.Check(ctx, vmvalue.Int(5)))
	err := g.Check(ctx, vmvalue.Int(-5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestEval_ScoresAgainstThreshold(t *testing.T) {
	runner := &stubRunner{result: func(_ string, _ []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Float(0.8), nil
	}}
	e := NewEval(lir.ProcessMeta{
		Name: "quality", Kind: "eval", Cell: "score",
		Config: map[string]string{"threshold": "0.7"},
	}, runner)

	score, pass, err := e.Score(context.Background(), vmvalue.Str("output"))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)
	assert.True(t, pass)
}

func TestInstantiate_BuildsEveryKind(t *testing.T) {
	metas := []lir.ProcessMeta{
		{Name: "m1", Kind: "memory", Config: map[string]string{}},
		{Name: "p1", Kind: "pattern", Config: map[string]string{"template": "hello {name}"}},
		{Name: "sm", Kind: "machine", Config: map[string]string{"initial": "a", "states": "a,b", "on_go": "a->b"}},
	}
	reg, err := Instantiate(metas, Deps{})
	require.NoError(t, err)
	defer reg.Close()

	inst, ok := reg.Lookup("m1")
	require.True(t, ok)
	assert.Equal(t, "memory", inst.Kind())
	assert.Len(t, reg.Memories(), 1)

	pat, ok := reg.Lookup("p1")
	require.True(t, ok)
	tmpl, ok := pat.(*Pattern).Param("template")
	require.True(t, ok)
	assert.Equal(t, "hello {name}", tmpl)

	_, err = Instantiate([]lir.ProcessMeta{{Name: "x", Kind: "mystery"}}, Deps{})
	assert.Error(t, err)
}

func TestMemoryProvider_ToolSurface(t *testing.T) {
	mem := NewMemory("kv", NewMemStore())
	p := NewMemoryProvider(mem)
	ctx := context.Background()

	out, terr := p.Call(ctx, `{"op":"set","key":"a","value":{"n":1}}`)
	require.Nil(t, terr)
	assert.Equal(t, "true", out)

	out, terr = p.Call(ctx, `{"op":"get","key":"a"}`)
	require.Nil(t, terr)
	assert.JSONEq(t, `{"n":1}`, out)

	out, terr = p.Call(ctx, `{"op":"keys"}`)
	require.Nil(t, terr)
	assert.JSONEq(t, `["a"]`, out)

	_, terr = p.Call(ctx, `{"op":"explode"}`)
	require.NotNil(t, terr)

	assert.Equal(t, "memory:kv", p.Name())
}
