// Package batch runs independent jobs with a fixed concurrency ceiling.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Concurrency presets for callers. LightLimit suits cheap, cached lookups.
const (
	DefaultLimit = 10
	LightLimit   = 20
)

// ErrInvalidLimit is returned when the concurrency limit is not positive.
var ErrInvalidLimit = errors.New("batch: concurrency limit must be positive")

// Result is the outcome of one job, keyed by the input that produced it.
type Result[In, Out any] struct {
	Input In
	Value Out
	Err   error
}

// OK reports whether the job succeeded.
func (r Result[In, Out]) OK() bool {
	return r.Err == nil
}

// Run calls fn for every input with at most limit calls in flight and returns
// one Result per input, in input order. A failing job never stops its siblings;
// its error is recorded in the Result. Run itself only fails for limit <= 0.
//
// Jobs that already started always run to completion. If ctx is cancelled
// while inputs are still waiting for a slot, those inputs are recorded as
// failed with the context error.
func Run[In, Out any](ctx context.Context, inputs []In, limit int, fn func(context.Context, In) (Out, error)) ([]Result[In, Out], error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	results := make([]Result[In, Out], len(inputs))
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, in := range inputs {
		results[i].Input = in

		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(inputs); j++ {
				results[j].Input = inputs[j]
				results[j].Err = fmt.Errorf("not started: %w", err)
			}
			break
		}

		wg.Add(1)
		go func(i int, in In) {
			defer wg.Done()
			defer sem.Release(1)
			results[i].Value, results[i].Err = call(ctx, in, fn)
		}(i, in)
	}

	wg.Wait()
	return results, nil
}

// call shields the batch from a panicking job.
func call[In, Out any](ctx context.Context, in In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, in)
}

// Values returns the values of all results, or the first failure in input order.
// Use it when there is no per-item fallback and any failure is fatal.
func Values[In, Out any](results []Result[In, Out]) ([]Out, error) {
	values := make([]Out, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("item %d (%v): %w", i, r.Input, r.Err)
		}
		values[i] = r.Value
	}
	return values, nil
}

// Failed returns only the failed results, in input order.
func Failed[In, Out any](results []Result[In, Out]) []Result[In, Out] {
	var failed []Result[In, Out]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
