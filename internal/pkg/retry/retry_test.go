package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_AttemptBudget(t *testing.T) {
	p := Policy{
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		MaxAttempts: 4,
		JitterRatio: 0,
	}
	s := p.NewSchedule()

	// MaxAttempts counts attempts, so the schedule hands out one fewer delay.
	granted := 0
	for {
		_, ok := s.Next()
		if !ok {
			break
		}
		granted++
		require.LessOrEqual(t, granted, p.MaxAttempts, "schedule must terminate")
	}
	assert.Equal(t, p.MaxAttempts-1, granted)
	assert.Equal(t, p.MaxAttempts, s.Attempts())

	// Exhausted schedules stay exhausted.
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestSchedule_DelaysGrowAndCap(t *testing.T) {
	p := Policy{
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    40 * time.Millisecond,
		MaxAttempts: 10,
		JitterRatio: 0,
	}
	s := p.NewSchedule()

	var prev time.Duration
	for {
		d, ok := s.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, d, prev, "delays must be non-decreasing without jitter")
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}
	assert.Equal(t, p.MaxDelay, prev, "backoff should reach the cap")
}

func TestSchedule_JitterIsUpwardOnly(t *testing.T) {
	p := Policy{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 20,
		JitterRatio: 0.2,
	}

	for i := 0; i < 64; i++ {
		d, ok := p.NewSchedule().Next()
		require.True(t, ok)
		assert.GreaterOrEqual(t, d, p.BaseDelay, "jitter must never undershoot the base delay")
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleep_ZeroDurationReturnsImmediately(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
}
