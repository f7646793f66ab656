// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package crossq

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// queueOptions holds configuration options for Queue creation.
type queueOptions struct {
	logger     *logiface.Logger[logiface.Event]
	limiter    *catrate.Limiter
	hooks      *queueTestHooks
	maxPosted  int64
	limiterSet bool
}

// Option configures a Queue instance, see [Init].
type Option interface {
	applyQueue(*queueOptions) error
}

// queueOptionImpl implements Option.
type queueOptionImpl struct {
	applyQueueFunc func(*queueOptions) error
}

func (o *queueOptionImpl) applyQueue(opts *queueOptions) error {
	return o.applyQueueFunc(opts)
}

// WithLogger configures structured logging. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxPosted bounds the number of posted entries that have been allocated
// but not yet released by the dispatcher. Once reached, [Queue.Post] fails
// with [ErrOutOfMemory] until the owner goroutine catches up.
// Unbounded by default.
func WithMaxPosted(n int64) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		if n <= 0 {
			return fmt.Errorf("crossq: invalid max posted: %d", n)
		}
		opts.maxPosted = n
		return nil
	}}
}

// WithLogRateLimits configures sliding window limits, per category, for
// warning logs, e.g. repeated wake signal failures. Keys are window sizes,
// values the maximum number of logs within that window. A nil or empty map
// disables limiting. Defaults to 5/s and 60/min.
//
// Rates are validated as per [catrate.NewLimiter].
func WithLogRateLimits(rates map[time.Duration]int) Option {
	return &queueOptionImpl{func(opts *queueOptions) (err error) {
		opts.limiterSet = true
		opts.limiter = nil
		if len(rates) == 0 {
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("crossq: invalid log rate limits: %v", r)
			}
		}()
		opts.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// withTestHooks installs instrumentation, used by tests.
func withTestHooks(hooks *queueTestHooks) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.hooks = hooks
		return nil
	}}
}

// defaultLogRates caps warnings at 5/s and 60/min per category.
func defaultLogRates() map[time.Duration]int {
	return map[time.Duration]int{
		time.Second: 5,
		time.Minute: 60,
	}
}

// resolveQueueOptions applies Option instances to queueOptions.
func resolveQueueOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyQueue(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.limiterSet {
		cfg.limiter = catrate.NewLimiter(defaultLogRates())
	}
	return cfg, nil
}
