// Package eventloop provides a single goroutine event loop, hosting a
// [crossq.Queue] so that any goroutine may run functions on the loop.
//
// # Architecture
//
// Each [Loop] owns a wake primitive (an eventfd on Linux, a self-pipe on
// other unix systems, or a channel elsewhere). A tick runs expired timers,
// then the callbacks of signalled [Async] handles, then blocks on the wake
// primitive until the next signal or timer deadline.
//
// The cross-goroutine queue is itself bound to an [Async], and is attached
// by [Loop.Run], on the loop goroutine.
//
// # Thread Safety
//
//   - [Loop.Post], [Loop.Call] and [Loop.ScheduleTimer] are safe to call from
//     any goroutine ([Loop.Call] panics on the loop goroutine)
//   - [Async.Signal] is safe to call from any goroutine
//   - timers and async callbacks run only on the loop goroutine
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(ctx)
//	<-loop.Started()
//
//	err = loop.Post(func(loop *eventloop.Loop, in any, _ *any) {
//	    // runs on the loop goroutine
//	}, nil)
//
// # Shutdown
//
// [Loop.Shutdown] (or [Loop.Close], or cancelling the context passed to
// [Loop.Run]) tears the queue down: every entry linked beforehand is run,
// and further Post and Call attempts fail with [crossq.ErrShuttingDown].
package eventloop
