package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

func TestRunExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	p := New(Policy{Interval: time.Second, MaxAttempts: 20}, WithSleeper(clock.sleep))

	calls := 0
	attempts, err := p.Run(context.Background(), func(context.Context, int) (bool, error) {
		calls++
		return false, nil
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 20, attempts)
	require.Equal(t, 20, calls)
	require.Equal(t, 20*time.Second, clock.total())
}

func TestRunStopsOnFirstResolvedAttempt(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	p := New(Policy{Interval: time.Second, MaxAttempts: 20}, WithSleeper(clock.sleep))

	var seen []int
	attempts, err := p.Run(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		seen = append(seen, attempt)
		return attempt == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []int{1, 2, 3}, seen)
	require.Len(t, clock.slept, 3)
}

func TestRunStopsOnCheckError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := New(Policy{Interval: time.Second, MaxAttempts: 5}, WithSleeper((&fakeClock{}).sleep))

	attempts, err := p.Run(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		if attempt == 2 {
			return false, boom
		}
		return false, nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, attempts)
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Policy{Interval: time.Hour, MaxAttempts: 3})
	attempts, err := p.Run(ctx, func(context.Context, int) (bool, error) {
		t.Fatal("check must not run after cancellation")
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, attempts)
}

func TestContextSleepWaits(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, ContextSleep(context.Background(), 5*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
