// Package batchcall groups jobs from many goroutines into batches, running
// each batch on an event loop with a single [eventloop.Loop.Call].
package batchcall

import (
	"context"

	"github.com/joeycumines/go-microbatch"

	"github.com/joeycumines/go-crossq"
	"github.com/joeycumines/go-crossq/eventloop"
)

type (
	// Config models optional configuration, see [microbatch.BatcherConfig].
	Config = microbatch.BatcherConfig

	// Processor handles a batch of jobs, on the loop goroutine. Results
	// should be assigned to the jobs themselves, e.g. via pointer fields. A
	// returned error is propagated to every job in the batch.
	Processor[T any] func(loop *eventloop.Loop, jobs []T) error

	// Batcher submits jobs to an event loop, in batches.
	// Instances must be initialized using the New factory.
	Batcher[T any] struct {
		batcher *microbatch.Batcher[T]
		loop    *eventloop.Loop
	}
)

// New initializes a new Batcher, processing jobs on loop, using fn. The
// config may be nil, in which case the microbatch defaults apply. A panic
// will occur if loop or fn is nil, or the config is invalid.
//
// The Batcher.Close method and/or Batcher.Shutdown method should be called
// when the Batcher is no longer needed.
func New[T any](loop *eventloop.Loop, fn Processor[T], cfg *Config) *Batcher[T] {
	if loop == nil {
		panic(`batchcall: nil loop`)
	}
	if fn == nil {
		panic(`batchcall: nil processor`)
	}
	return &Batcher[T]{
		loop: loop,
		batcher: microbatch.NewBatcher(cfg, func(_ context.Context, jobs []T) error {
			return callBatch(loop, fn, jobs)
		}),
	}
}

// callBatch runs one batch, with one cross-goroutine round trip. There is no
// cancellation: once the batch is queued, it will run.
func callBatch[T any](loop *eventloop.Loop, fn Processor[T], jobs []T) error {
	var out any
	if err := loop.Call(func(loop *eventloop.Loop, _ any, out *any) {
		if err := fn(loop, jobs); err != nil {
			*out = err
		}
	}, nil, &out); err != nil {
		return err
	}
	if err, ok := out.(error); ok {
		return err
	}
	return nil
}

// Submit schedules a job, returning a result that may be waited on. Errors
// are as per [microbatch.Batcher.Submit].
func (x *Batcher[T]) Submit(ctx context.Context, job T) (*microbatch.JobResult[T], error) {
	return x.batcher.Submit(ctx, job)
}

// Do submits job, then waits for its batch to be processed. An error is
// returned if ctx is cancelled, the batcher is stopped, the loop rejected
// the batch (e.g. [crossq.ErrShuttingDown]), the processor panicked (a
// [*crossq.PanicError]), or the processor returned an error.
//
// Do panics with a [*crossq.MisuseError] if called on the loop goroutine,
// which would otherwise wait on a batch that only it can run.
func (x *Batcher[T]) Do(ctx context.Context, job T) error {
	if x.loop.IsLoopGoroutine() {
		panic(&crossq.MisuseError{Op: "batchcall", Reason: "do called from the loop goroutine"})
	}
	result, err := x.batcher.Submit(ctx, job)
	if err != nil {
		return err
	}
	return result.Wait(ctx)
}

// Shutdown prevents further jobs, then waits for those already submitted.
// See [microbatch.Batcher.Shutdown].
func (x *Batcher[T]) Shutdown(ctx context.Context) error {
	return x.batcher.Shutdown(ctx)
}

// Close immediately cancels all pending jobs, and prevents further jobs.
func (x *Batcher[T]) Close() error {
	return x.batcher.Close()
}
