// Package retry provides the reusable retry policy used for reward
// distribution. A policy is parameterized by base delay, max delay, attempt
// budget and jitter ratio; callers instantiate one policy per failure class
// (generic remote failures get a wide one, the ownership-mismatch path a
// tight one) instead of spreading ad-hoc backoff math around.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes one bounded exponential backoff schedule.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	JitterRatio float64
}

// Schedule is one live run of a policy: it hands out delays and tracks the
// attempt budget. Not safe for concurrent use; create one per operation.
type Schedule struct {
	policy  Policy
	backoff *backoff.ExponentialBackOff
	used    int
}

// NewSchedule starts a fresh run of the policy.
func (p Policy) NewSchedule() *Schedule {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	// The library jitters symmetrically around the interval, which would let
	// delays undershoot the base; jitter is applied upward-only in Next.
	b.RandomizationFactor = 0
	b.Multiplier = 2
	// Attempt budget is enforced by the schedule, not by elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()
	return &Schedule{policy: p, backoff: b}
}

// Next consumes one attempt and returns the delay before the next one, or
// false once the budget is exhausted. Jitter stretches each delay into
// [d, d*(1+JitterRatio)], never below the exponential schedule.
func (s *Schedule) Next() (time.Duration, bool) {
	s.used++
	if s.used >= s.policy.MaxAttempts {
		return 0, false
	}
	d := s.backoff.NextBackOff()
	if s.policy.JitterRatio > 0 {
		d += time.Duration(rand.Float64() * s.policy.JitterRatio * float64(d))
	}
	return d, true
}

// Attempts reports how many attempts have been consumed.
func (s *Schedule) Attempts() int {
	return s.used
}

// Sleep waits for d or until the context is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
