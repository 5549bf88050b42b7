package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsIndependently(t *testing.T) {
	s := NewScheduler(discardLogger())

	var ticks, panics atomic.Int64
	s.Add(Job{
		Name:     "healthy",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			ticks.Add(1)
			return nil
		},
	})
	s.Add(Job{
		Name:     "broken",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			panics.Add(1)
			panic("boom")
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	// The broken job panicked repeatedly without taking down the healthy one.
	assert.GreaterOrEqual(t, ticks.Load(), int64(3))
	assert.GreaterOrEqual(t, panics.Load(), int64(2))
}

func TestSchedulerRunOnStart(t *testing.T) {
	s := NewScheduler(discardLogger())

	var calls atomic.Int64
	s.Add(Job{
		Name:       "eager",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			calls.Add(1)
			return errors.New("transient")
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int64(1), calls.Load())
}
