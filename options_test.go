package crossq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveQueueOptions_defaults(t *testing.T) {
	cfg, err := resolveQueueOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.logger)
	assert.NotNil(t, cfg.limiter)
	assert.Zero(t, cfg.maxPosted)
	assert.Nil(t, cfg.hooks)
}

func TestResolveQueueOptions_lastWins(t *testing.T) {
	logger, _ := newTestLogger()
	cfg, err := resolveQueueOptions([]Option{
		WithMaxPosted(10),
		WithLogger(logger),
		WithMaxPosted(3),
		WithLogRateLimits(map[time.Duration]int{time.Second: 1}),
		WithLogRateLimits(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.maxPosted)
	assert.Same(t, logger, cfg.logger)
	assert.Nil(t, cfg.limiter)
}

func TestResolveQueueOptions_firstErrorStops(t *testing.T) {
	var applied bool
	cfg, err := resolveQueueOptions([]Option{
		WithMaxPosted(-1),
		&queueOptionImpl{func(*queueOptions) error {
			applied = true
			return nil
		}},
	})
	assert.Nil(t, cfg)
	assert.EqualError(t, err, "crossq: invalid max posted: -1")
	assert.False(t, applied)
}

func TestWithLogRateLimits_invalid(t *testing.T) {
	_, err := resolveQueueOptions([]Option{WithLogRateLimits(map[time.Duration]int{-time.Second: 1})})
	assert.ErrorContains(t, err, "crossq: invalid log rate limits")
}
