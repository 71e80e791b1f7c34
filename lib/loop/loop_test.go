package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLoop() (*Loop, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return New(WithClock(clk.now)), clk
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := newTestLoop()

	var got []int
	l.Post(func() { got = append(got, 1) })
	l.Post(func() {
		got = append(got, 2)
		l.Post(func() { got = append(got, 4) })
	})
	l.Post(func() { got = append(got, 3) })

	n := l.RunPending()
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestIdleCallbackWaitsForIdlePeriod(t *testing.T) {
	l, _ := newTestLoop()

	ran := false
	l.RequestIdle(func(d Deadline) {
		ran = true
		assert.False(t, d.DidTimeout())
		assert.Equal(t, 10*time.Millisecond, d.TimeRemaining())
	}, 0)

	l.RunPending()
	require.False(t, ran, "idle callback must not run without an idle period")

	l.Idle(10 * time.Millisecond)
	assert.True(t, ran)
}

func TestIdleCallbackTimeoutForcesRun(t *testing.T) {
	l, clk := newTestLoop()

	var timedOut bool
	l.RequestIdle(func(d Deadline) {
		timedOut = d.DidTimeout()
		assert.Equal(t, time.Duration(0), d.TimeRemaining())
	}, 100*time.Millisecond)

	clk.advance(50 * time.Millisecond)
	l.RunPending()
	_, idle := l.Pending()
	require.Equal(t, 1, idle)

	clk.advance(60 * time.Millisecond)
	l.RunPending()
	assert.True(t, timedOut)
	_, idle = l.Pending()
	assert.Equal(t, 0, idle)
}

func TestDeadlineShrinksWithClock(t *testing.T) {
	l, clk := newTestLoop()

	var before, after time.Duration
	l.RequestIdle(func(d Deadline) {
		before = d.TimeRemaining()
		clk.advance(30 * time.Millisecond)
		after = d.TimeRemaining()
	}, 0)
	l.Idle(20 * time.Millisecond)

	assert.Equal(t, 20*time.Millisecond, before)
	assert.Equal(t, time.Duration(0), after)
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New()
	l.IdleBudget = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := make(chan struct{})
	l.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("posted task did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
