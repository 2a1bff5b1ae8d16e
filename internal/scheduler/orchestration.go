package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Parallel awaits every future and returns the full vector, preserving
// input order (spec.md §4.9). A bounded semaphore caps how many of the
// futures this call itself waits on concurrently via goroutines, using
// golang.org/x/sync/semaphore as SPEC_FULL.md's domain stack commits to
// ("a bounded-parallelism guard in parallel()").
func (s *Scheduler) Parallel(ctx context.Context, futs []*Future) ([]vmvalue.Value, error) {
	out := make([]vmvalue.Value, len(futs))
	sem := semaphore.NewWeighted(int64(maxInt(len(s.workers), 1)))
	errCh := make(chan error, len(futs))
	done := make(chan struct{})

	remaining := int32(len(futs))
	if remaining == 0 {
		return out, nil
	}

	for i, f := range futs {
		i, f := i, f
		go func() {
			_ = sem.Acquire(ctx, 1)
			defer sem.Release(1)
			select {
			case <-f.Done():
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			v, err, cancelled := f.Result()
			if cancelled {
				errCh <- context.Canceled
				return
			}
			if err != nil {
				errCh <- err
				return
			}
			out[i] = v
			errCh <- nil
		}()
	}

	go func() {
		for range futs {
			<-errCh
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return out, nil
}

// Race returns the value of the first future to complete and cancels the
// rest (spec.md §4.9). Ties (simultaneous Done()) resolve to whichever the
// select statement happens to pick, which is fine: spec.md only guarantees
// "the first future to complete," not a deterministic tiebreak outside
// @deterministic.
func (s *Scheduler) Race(ctx context.Context, futs []*Future) (vmvalue.Value, error) {
	if len(futs) == 0 {
		return vmvalue.Null, nil
	}
	cases := make(chan int, len(futs))
	for i, f := range futs {
		i, f := i, f
		go func() {
			select {
			case <-f.Done():
				cases <- i
			case <-ctx.Done():
			}
		}()
	}
	var winner int
	select {
	case winner = <-cases:
	case <-ctx.Done():
		return vmvalue.Null, ctx.Err()
	}
	for i, f := range futs {
		if i != winner {
			f.cancel()
		}
	}
	v, err, cancelled := futs[winner].Result()
	if cancelled {
		return vmvalue.Null, context.Canceled
	}
	return v, err
}

// Vote awaits every future and returns the modal (most frequent) value,
// ties broken by first-completed (spec.md §4.9).
func (s *Scheduler) Vote(ctx context.Context, futs []*Future) (vmvalue.Value, error) {
	vals, err := s.Parallel(ctx, futs)
	if err != nil {
		return vmvalue.Null, err
	}
	counts := map[string]int{}
	order := map[string]int{}
	for i, v := range vals {
		key := vmvalue.ToJSON(v)
		if j, seen := order[key]; !seen || futs[i].seq < futs[j].seq {
			order[key] = i
		}
		counts[key]++
	}
	bestKey, bestCount, bestSeq := "", -1, int(^uint(0)>>1)
	for k, c := range counts {
		seq := futs[order[k]].seq
		if c > bestCount || (c == bestCount && seq < bestSeq) {
			bestKey, bestCount, bestSeq = k, c, seq
		}
	}
	return vals[order[bestKey]], nil
}

// Select takes the first future that reports ready non-null (spec.md
// §4.9), polling in round-robin order rather than a single blocking
// select since "ready" excludes a resolved-but-null result.
func (s *Scheduler) Select(ctx context.Context, futs []*Future) (vmvalue.Value, error) {
	if len(futs) == 0 {
		return vmvalue.Null, nil
	}
	pending := append([]*Future{}, futs...)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		for _, f := range pending {
			select {
			case <-f.Done():
				v, err, cancelled := f.Result()
				if !cancelled && err == nil && v.Kind != vmvalue.KNull {
					return v, nil
				}
			default:
			}
		}
		select {
		case <-ctx.Done():
			return vmvalue.Null, ctx.Err()
		case <-ticker.C:
		}
		allDone := true
		for _, f := range pending {
			select {
			case <-f.Done():
			default:
				allDone = false
			}
		}
		if allDone {
			return vmvalue.Null, nil
		}
	}
}

// Timeout races fut against a sleep of ms milliseconds, returning Null on
// timeout (spec.md §4.9).
func (s *Scheduler) Timeout(ctx context.Context, fut *Future, ms int64) (vmvalue.Value, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
	defer cancel()
	select {
	case <-fut.Done():
		v, err, cancelled := fut.Result()
		if cancelled {
			return vmvalue.Null, nil
		}
		return v, err
	case <-timeoutCtx.Done():
		fut.cancel()
		return vmvalue.Null, nil
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
