//go:build !linux

package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/oled-clock/base/timebase"
)

// SystemClock is a portable device clock. The host clock is read-only from
// an unprivileged process, so corrections are kept as a process-local
// offset applied to every reading.
type SystemClock struct {
	Log *zap.Logger
	Loc *time.Location // nil means time.Local

	mu     sync.Mutex
	epoch  uint64
	offset time.Duration
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func (c *SystemClock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *SystemClock) Now() time.Time {
	c.mu.Lock()
	offset := c.offset
	c.mu.Unlock()
	return time.Now().Add(offset).In(c.location())
}

func (c *SystemClock) Step(offset time.Duration) {
	c.mu.Lock()
	c.offset += offset
	c.epoch++
	c.mu.Unlock()
	c.Log.Debug("SystemClock.Step", zap.Duration("offset", offset))
}

func (c *SystemClock) Sleep(duration time.Duration) {
	c.Log.Debug("SystemClock.Sleep", zap.Duration("duration", duration))
	if duration < 0 {
		duration = 0
	}
	time.Sleep(duration)
}

func (c *SystemClock) location() *time.Location {
	if c.Loc != nil {
		return c.Loc
	}
	return time.Local
}
