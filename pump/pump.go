// Package pump forwards values from channels onto an event loop, posting
// each received batch as a single entry.
package pump

import (
	"context"
	"errors"
	"io"

	"github.com/joeycumines/go-longpoll"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-crossq/eventloop"
)

// ErrNonBlockingConfig is returned by [Run] for a [Config] that would never
// block on the channel, i.e. a negative MinSize without a PartialTimeout.
var ErrNonBlockingConfig = errors.New(`pump: config never blocks: negative MinSize requires a positive PartialTimeout`)

type (
	// Config models optional batching configuration, see
	// [longpoll.ChannelConfig].
	Config = longpoll.ChannelConfig

	// Handler is called on the loop goroutine, once per value, in receive
	// order.
	Handler[T any] func(loop *eventloop.Loop, value T)

	// Group runs one or more pumps, see [Start] and [Add].
	Group struct {
		loop   *eventloop.Loop
		ctx    context.Context
		cancel context.CancelFunc
		group  *errgroup.Group
	}
)

// Run receives from ch until it is closed, posting values to loop in
// batches, as received by [longpoll.Channel]. Values already received when
// ctx is cancelled are still posted.
//
// Run returns nil once ch is closed and drained, the context's error if it
// is cancelled, or the first error from [eventloop.Loop.Post] (e.g.
// [crossq.ErrShuttingDown]), in which case the batch was not delivered.
// [ErrNonBlockingConfig] is returned, without receiving, if cfg would
// never block. If handle panics, the remainder of that batch is skipped.
func Run[T any](ctx context.Context, loop *eventloop.Loop, ch <-chan T, handle Handler[T], cfg *Config) error {
	if loop == nil {
		panic(`pump: nil loop`)
	}
	if handle == nil {
		panic(`pump: nil handler`)
	}
	if cfg != nil && cfg.MinSize < 0 && cfg.PartialTimeout < 0 {
		return ErrNonBlockingConfig
	}

	for {
		var batch []T
		err := longpoll.Channel(ctx, cfg, ch, func(value T) error {
			batch = append(batch, value)
			return nil
		})

		if len(batch) != 0 {
			if err := postBatch(loop, handle, batch); err != nil {
				return err
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

func postBatch[T any](loop *eventloop.Loop, handle Handler[T], batch []T) error {
	return loop.Post(func(loop *eventloop.Loop, in any, _ *any) {
		for _, value := range in.([]T) {
			handle(loop, value)
		}
	}, batch)
}

// NewGroup initializes an empty Group, posting to loop. Pumps stop once ctx
// is cancelled, or any pump fails.
func NewGroup(ctx context.Context, loop *eventloop.Loop) *Group {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	return &Group{
		loop:   loop,
		ctx:    ctx,
		cancel: cancel,
		group:  group,
	}
}

// Start runs a single pump in a new Group, see [Run].
func Start[T any](ctx context.Context, loop *eventloop.Loop, ch <-chan T, handle Handler[T], cfg *Config) *Group {
	g := NewGroup(ctx, loop)
	Add(g, ch, handle, cfg)
	return g
}

// Add starts a pump for ch, within g.
func Add[T any](g *Group, ch <-chan T, handle Handler[T], cfg *Config) {
	g.group.Go(func() error {
		return Run(g.ctx, g.loop, ch, handle, cfg)
	})
}

// Wait blocks until every pump has stopped, returning the first error.
func (g *Group) Wait() error {
	defer g.cancel()
	return g.group.Wait()
}

// Stop cancels every pump, then waits for them.
func (g *Group) Stop() error {
	g.cancel()
	return g.group.Wait()
}
