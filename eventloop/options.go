// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-crossq"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger    *logiface.Logger[logiface.Event]
	queueOpts []crossq.Option
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger configures structured logging, for both the loop and its queue.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithQueueOptions passes options through to [crossq.Init], when the queue
// is attached by [Loop.Run]. They are applied after the loop's own logger,
// and so may override it. May be specified multiple times.
func WithQueueOptions(opts ...crossq.Option) LoopOption {
	return &loopOptionImpl{func(cfg *loopOptions) error {
		cfg.queueOpts = append(cfg.queueOpts, opts...)
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
