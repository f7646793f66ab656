// Example: Posting and Calling onto the Loop
//
// This example demonstrates the cross-goroutine queue:
// - Posting fire-and-forget work from many goroutines
// - Calling the loop, and waiting for a result
// - Shutting down, which runs everything already queued
//
// Run with: go run ./eventloop/examples/01_post_and_call/
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/joeycumines/go-crossq"
	"github.com/joeycumines/go-crossq/eventloop"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	loop, err := eventloop.New(
		eventloop.WithLogger(logger),
		eventloop.WithQueueOptions(crossq.WithMaxPosted(1024)),
	)
	if err != nil {
		panic(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()
	<-loop.Started()

	// state owned by the loop goroutine, no locking required
	counts := make(map[string]int)

	// Method 1: Post from many goroutines
	var wg sync.WaitGroup
	for _, name := range []string{"alpha", "beta", "gamma"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := loop.Post(func(_ *eventloop.Loop, in any, _ *any) {
					counts[in.(string)]++
				}, name); err != nil {
					fmt.Println("post failed:", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Method 2: Call, blocking until the function has run on the loop
	var out any
	if err := loop.Call(func(_ *eventloop.Loop, _ any, out *any) {
		snapshot := make(map[string]int, len(counts))
		for k, v := range counts {
			snapshot[k] = v
		}
		*out = snapshot
	}, nil, &out); err != nil {
		panic(err)
	}
	fmt.Println("counts:", out)

	// Method 3: A timer, registered via the queue
	fired := make(chan struct{})
	if err := loop.ScheduleTimer(50*time.Millisecond, func() {
		fmt.Println("timer fired on the loop goroutine:", loop.IsLoopGoroutine())
		close(fired)
	}); err != nil {
		panic(err)
	}
	<-fired

	// Posts queued before Shutdown still run
	_ = loop.Post(func(*eventloop.Loop, any, *any) { fmt.Println("drained during shutdown") }, nil)

	if err := loop.Shutdown(ctx); err != nil {
		panic(err)
	}
	if err := <-runErr; err != nil {
		panic(err)
	}

	fmt.Println("post after shutdown:", loop.Post(func(*eventloop.Loop, any, *any) {}, nil))
	fmt.Printf("stats: %+v\n", loop.Queue().Stats())
}
