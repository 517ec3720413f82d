package timebase

import (
	"sync/atomic"
	"time"
)

// LocalClock is the device clock capability. Now returns local wall-clock
// time, Step applies a correction from a remote time source, and Sleep
// suspends the caller for the given duration. The clock is assumed to be
// backed by a continuously running hardware timer, so wall-clock time stays
// correct across a Sleep. Epoch increments on every discontinuity (Step).
type LocalClock interface {
	Epoch() uint64
	Now() time.Time
	Step(offset time.Duration)
	Sleep(duration time.Duration)
}

var lclk atomic.Value

func RegisterClock(c LocalClock) {
	if c == nil {
		panic("local clock must not be nil")
	}
	swapped := lclk.CompareAndSwap(nil, c)
	if !swapped {
		panic("local clock already registered")
	}
}

func Clock() LocalClock {
	c := lclk.Load()
	if c == nil {
		panic("no local clock registered")
	}
	return c.(LocalClock)
}

func Now() time.Time {
	return Clock().Now()
}

func Epoch() uint64 {
	return Clock().Epoch()
}
