// Package poll runs a bounded, fixed-interval retry loop.
package poll

import (
	"context"
	"errors"
	"time"
)

var ErrExhausted = errors.New("poll attempts exhausted")

// Policy bounds a poll loop. The loop waits Interval before every attempt and
// gives up after MaxAttempts checks.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Check reports whether the awaited condition has resolved. A non-nil error
// stops the loop immediately.
type Check func(ctx context.Context, attempt int) (done bool, err error)

type Option func(*Poller)

// WithSleeper replaces the wall-clock sleeper, mostly for tests.
func WithSleeper(sleep Sleeper) Option {
	return func(p *Poller) {
		p.sleep = sleep
	}
}

type Poller struct {
	policy Policy
	sleep  Sleeper
}

func New(policy Policy, opts ...Option) *Poller {
	p := &Poller{
		policy: policy,
		sleep:  ContextSleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the bounds the poller was built with.
func (p *Poller) Policy() Policy {
	return p.policy
}

// Run calls check up to MaxAttempts times, sleeping Interval before each call.
// It returns the number of attempts made. When no attempt resolves, the error
// is ErrExhausted.
func (p *Poller) Run(ctx context.Context, check Check) (int, error) {
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		if err := p.sleep(ctx, p.policy.Interval); err != nil {
			return attempt - 1, err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
	return p.policy.MaxAttempts, ErrExhausted
}

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
