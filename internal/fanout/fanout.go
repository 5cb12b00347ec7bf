// Package fanout runs one function per work item concurrently and returns
// only after every dispatched item has reported.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// ErrNotStarted is recorded for items that were never dispatched because
// the context was done first.
var ErrNotStarted = errors.New("work item not started")

// Outcome is the per-item record of a Run. Outcomes are index-aligned with
// the input items.
type Outcome struct {
	Index   int
	Err     error
	Started bool
}

// Result collects the outcome of every item.
type Result struct {
	Outcomes []Outcome
}

// Failed returns the outcomes of items that started and returned an error,
// in input order.
func (r *Result) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Started && o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded returns the number of items that started and returned nil.
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Started && o.Err == nil {
			n++
		}
	}
	return n
}

// NotStarted returns the number of items skipped by cancellation.
func (r *Result) NotStarted() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Started {
			n++
		}
	}
	return n
}

// FirstError returns the error of the lowest-index failed item, or the
// cancellation error when only undispatched items remain.
func (r *Result) FirstError() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// Err joins every item error in input order.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Run calls fn once per item with at most limit calls in flight. A limit
// below one means runtime.NumCPU(). Items are dispatched in order; once ctx
// is done no further items are dispatched, but items already running are
// waited for. Run returns only after every dispatched call has returned.
//
// The items slice is only read.
func Run[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, index int, item T) error) *Result {
	result := &Result{Outcomes: make([]Outcome, len(items))}
	if len(items) == 0 {
		return result
	}

	if limit < 1 {
		limit = runtime.NumCPU()
	}
	if limit > len(items) {
		limit = len(items)
	}

	p := pool.New().WithMaxGoroutines(limit)
	for i, item := range items {
		result.Outcomes[i].Index = i

		if err := ctx.Err(); err != nil {
			result.Outcomes[i].Err = errors.Join(ErrNotStarted, err)
			continue
		}

		p.Go(func() {
			if err := ctx.Err(); err != nil {
				result.Outcomes[i].Err = errors.Join(ErrNotStarted, err)
				return
			}
			result.Outcomes[i].Started = true
			result.Outcomes[i].Err = runItem(ctx, i, item, fn)
		})
	}
	p.Wait()

	return result
}

// runItem converts a panic in fn into an error so one item cannot take
// down its siblings before the barrier.
func runItem[T any](ctx context.Context, i int, item T, fn func(context.Context, int, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Index: i, Value: r}
		}
	}()
	return fn(ctx, i, item)
}

// PanicError reports a work item that panicked.
type PanicError struct {
	Index int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item %d panicked: %v", e.Index, e.Value)
}
