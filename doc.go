// Package crossq implements a cross-goroutine call queue, allowing any
// goroutine to schedule a function on the single "owner" goroutine of an
// event loop, without the owner ever blocking on a foreign goroutine.
//
// # Modes
//
// [Queue.Post] is fire-and-forget: the caller returns as soon as the
// function is queued, and the entry is owned (and eventually released) by the
// queue. [Queue.Call] blocks until the function has run on the owner
// goroutine; its entry lives in the caller's frame, and the caller waits only
// on that entry's private condition variable, never on the shared queue.
//
// # Host
//
// A [Queue] is attached to a [Host], which supplies goroutine identity and a
// [Wake] signal, the callback of which is the dispatcher. See the eventloop
// subpackage for a complete host:
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(ctx)
//	<-loop.Started()
//
//	var out any
//	err = loop.Call(func(loop *eventloop.Loop, in any, out *any) {
//	    *out = in.(int) * 2
//	}, 21, &out)
//
// # Ordering
//
// Entries are dispatched in the order they were linked, under the queue
// lock. The dispatcher releases the lock around each function, so dispatched
// functions may themselves post (or, from other goroutines, call).
//
// # Errors
//
// Recoverable failures are returned: [ErrOutOfMemory], [ErrShuttingDown],
// and [ErrSignalUnavailable]. Programming errors, such as calling
// [Queue.Call] from the owner goroutine, panic with a [*MisuseError].
package crossq
