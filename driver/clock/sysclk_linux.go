//go:build linux

package clock

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"golang.org/x/sys/unix"

	"example.com/oled-clock/base/timebase"
)

// SystemClock drives CLOCK_REALTIME directly: a sync correction steps the
// kernel clock, and sleeps use an absolute timerfd so a step during a
// night sleep cannot stretch or shrink the suspension.
type SystemClock struct {
	Log *zap.Logger
	Loc *time.Location // nil means time.Local

	mu    sync.Mutex
	epoch uint64
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func now(log *zap.Logger) time.Time {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		log.Fatal("unix.ClockGettime failed", zap.Error(err))
	}
	return time.Unix(ts.Unix())
}

func (c *SystemClock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *SystemClock) Now() time.Time {
	return now(c.Log).In(c.location())
}

func (c *SystemClock) Step(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, err := unix.TimeToTimespec(now(c.Log).Add(offset))
	if err != nil {
		c.Log.Fatal("unix.TimeToTimespec failed", zap.Error(err))
	}
	err = unix.ClockSettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		c.Log.Fatal("unix.ClockSettime failed", zap.Error(err))
	}
	c.epoch++
	c.Log.Debug("SystemClock.Step", zap.Duration("offset", offset))
}

func (c *SystemClock) Sleep(duration time.Duration) {
	c.Log.Debug("SystemClock.Sleep", zap.Duration("duration", duration))
	if duration <= 0 {
		return
	}
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_NONBLOCK)
	if err != nil {
		c.Log.Fatal("unix.TimerfdCreate failed", zap.Error(err))
	}
	ts, err := unix.TimeToTimespec(now(c.Log).Add(duration))
	if err != nil {
		c.Log.Fatal("unix.TimeToTimespec failed", zap.Error(err))
	}
	err = unix.TimerfdSettime(fd, unix.TFD_TIMER_ABSTIME,
		&unix.ItimerSpec{Value: ts}, nil /* oldValue */)
	if err != nil {
		c.Log.Fatal("unix.TimerfdSettime failed", zap.Error(err))
	}
	if fd < math.MinInt32 || math.MaxInt32 < fd {
		c.Log.Fatal("unix.TimerfdCreate returned unexpected value")
	}
	pollFds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pollFds, -1 /* timeout */)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			c.Log.Fatal("unix.Poll failed", zap.Error(err))
		}
		break
	}
	_ = unix.Close(fd)
}

func (c *SystemClock) location() *time.Location {
	if c.Loc != nil {
		return c.Loc
	}
	return time.Local
}
