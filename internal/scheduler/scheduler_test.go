package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func TestSpawnResolves(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(2))
	defer s.Shutdown()

	fut := s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
		return vmvalue.Int(42), nil
	})

	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("future never resolved")
	}
	v, err, cancelled := fut.Result()
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, int64(42), v.I)
}

func TestParallelPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(4))
	defer s.Shutdown()

	var futs []*Future
	for i := 0; i < 5; i++ {
		i := i
		futs = append(futs, s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
			time.Sleep(time.Duration(5-i) * time.Millisecond)
			return vmvalue.Int(int64(i)), nil
		}))
	}
	results, err := s.Parallel(ctx, futs)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, v := range results {
		assert.Equal(t, int64(i), v.I)
	}
}

func TestRaceCancelsLosers(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(2))
	defer s.Shutdown()

	fast := s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
		return vmvalue.Str("fast"), nil
	})
	slow := s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
		select {
		case <-time.After(time.Second):
			return vmvalue.Str("slow"), nil
		case <-ctx.Done():
			return vmvalue.Null, ctx.Err()
		}
	})

	v, err := s.Race(ctx, []*Future{fast, slow})
	require.NoError(t, err)
	assert.Equal(t, "fast", v.S)
	_, _, cancelled := slow.Result()
	assert.True(t, cancelled, "the losing future must be flagged cancelled")
}

func TestVotePicksMode(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(3))
	defer s.Shutdown()

	vals := []int64{1, 2, 1, 3, 1}
	var futs []*Future
	for _, n := range vals {
		n := n
		futs = append(futs, s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
			return vmvalue.Int(n), nil
		}))
	}
	v, err := s.Vote(ctx, futs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I)
}

func TestTimeoutReturnsNullWhenSlow(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(1))
	defer s.Shutdown()

	slow := s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
		select {
		case <-time.After(time.Second):
			return vmvalue.Int(1), nil
		case <-ctx.Done():
			return vmvalue.Null, ctx.Err()
		}
	})
	v, err := s.Timeout(ctx, slow, 10)
	require.NoError(t, err)
	assert.Equal(t, vmvalue.KNull, v.Kind)
}

func TestDeterministicSpawnCompletesInOrder(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithWorkers(4), WithDeterministic(true))
	defer s.Shutdown()

	var futs []*Future
	for i := 0; i < 3; i++ {
		i := i
		futs = append(futs, s.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
			return vmvalue.Int(int64(i)), nil
		}))
	}
	for i, f := range futs {
		<-f.Done()
		v, _, _ := f.Result()
		assert.Equal(t, int64(i), v.I)
	}
}

func TestMailboxSendReceive(t *testing.T) {
	ctx := context.Background()
	mb := NewMailbox(2)
	require.NoError(t, mb.Send(ctx, vmvalue.Str("hello")))
	v, err := mb.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.S)

	_, ok := mb.TryReceive()
	assert.False(t, ok)
}
