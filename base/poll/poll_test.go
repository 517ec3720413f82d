package poll_test

import (
	"context"
	"os"
	"testing"
	"time"

	"example.com/oled-clock/base/poll"
	"example.com/oled-clock/base/timebase"
)

type testClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *testClock) Epoch() uint64             { return 0 }
func (c *testClock) Now() time.Time            { return c.now }
func (c *testClock) Step(offset time.Duration) { c.now = c.now.Add(offset) }
func (c *testClock) Sleep(duration time.Duration) {
	c.sleeps = append(c.sleeps, duration)
	c.now = c.now.Add(duration)
}

var clk = &testClock{}

func TestMain(m *testing.M) {
	timebase.RegisterClock(clk)
	os.Exit(m.Run())
}

func TestUntilSucceedsOnNthAttempt(t *testing.T) {
	clk.sleeps = nil
	calls := 0
	ok := poll.Until(context.Background(), time.Millisecond, 10, func() bool {
		calls++
		return calls == 3
	})
	if !ok {
		t.Fatalf("Until = false, want true")
	}
	if calls != 3 {
		t.Errorf("predicate called %d times, want 3", calls)
	}
	if len(clk.sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(clk.sleeps))
	}
}

func TestUntilExhaustsAttempts(t *testing.T) {
	clk.sleeps = nil
	calls := 0
	ok := poll.Until(context.Background(), time.Millisecond, 5, func() bool {
		calls++
		return false
	})
	if ok {
		t.Fatalf("Until = true, want false")
	}
	if calls != 5 {
		t.Errorf("predicate called %d times, want 5", calls)
	}
	// No sleep after the final attempt.
	if len(clk.sleeps) != 4 {
		t.Errorf("slept %d times, want 4", len(clk.sleeps))
	}
}

func TestUntilStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ok := poll.Until(ctx, time.Millisecond, 100, func() bool {
		calls++
		if calls == 2 {
			cancel()
		}
		return false
	})
	if ok {
		t.Fatalf("Until = true, want false")
	}
	if calls != 2 {
		t.Errorf("predicate called %d times after cancellation, want 2", calls)
	}
}

func TestUntilRejectsInvalidParameters(t *testing.T) {
	for _, tt := range []struct {
		name     string
		interval time.Duration
		attempts int
	}{
		{"zero interval", 0, 1},
		{"zero attempts", time.Millisecond, 0},
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: Until did not panic", tt.name)
				}
			}()
			poll.Until(context.Background(), tt.interval, tt.attempts, func() bool { return true })
		}()
	}
}
