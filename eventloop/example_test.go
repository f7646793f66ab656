package eventloop_test

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-crossq/eventloop"
)

func ExampleLoop_ScheduleTimer() {
	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}

	go func() { _ = loop.Run(context.Background()) }()
	<-loop.Started()

	fired := make(chan struct{})
	if err := loop.ScheduleTimer(10*time.Millisecond, func() {
		fmt.Println("timer fired")
		close(fired)
	}); err != nil {
		panic(err)
	}
	<-fired

	if err := loop.Shutdown(context.Background()); err != nil {
		panic(err)
	}
	fmt.Println(loop.State())

	//output:
	//timer fired
	//Terminated
}

func ExampleLoop_NewAsync() {
	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}

	called := make(chan struct{})
	async, err := loop.NewAsync(func() { close(called) })
	if err != nil {
		panic(err)
	}

	go func() { _ = loop.Run(context.Background()) }()

	if err := async.Signal(); err != nil {
		panic(err)
	}
	<-called
	fmt.Println("async callback ran")

	_ = loop.Shutdown(context.Background())

	//output:
	//async callback ran
}
