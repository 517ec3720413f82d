// Sync coordinator: one bounded time-synchronization attempt at a time.

package sync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/oled-clock/base/display"
	"example.com/oled-clock/base/metrics"
	"example.com/oled-clock/base/poll"
	"example.com/oled-clock/base/timebase"
)

const (
	DefaultConnectInterval = 250 * time.Millisecond
	DefaultConnectAttempts = 80 // 20 s
	DefaultFetchInterval   = 500 * time.Millisecond
	DefaultFetchAttempts   = 60 // 30 s

	// Fetched times with an earlier year are rejected as an
	// un-synchronized clock default, not a real time.
	DefaultMinYear = 2024
)

type Outcome int

const (
	Success Outcome = iota
	Timeout
	NetworkFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case NetworkFailure:
		return "network failure"
	default:
		return "unknown"
	}
}

// Result of one sync attempt. Time is set for Success only.
type Result struct {
	Outcome Outcome
	Time    time.Time
}

// / Session is the network capability needed for a sync: a bounded connection
// that the coordinator polls up and always tears down before returning.
// Connect must be cheap to call repeatedly and a no-op once connected;
// Disconnect must be safe to call in any state.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
}

// TimeSource fetches the current time from the remote source over an
// established session.
type TimeSource interface {
	FetchTime(ctx context.Context) (time.Time, error)
}

// PowerController raises the CPU/radio to full power for the duration of a
// sync and lowers it back to the power-saving profile afterwards. Platforms
// without controllable power states leave it nil.
type PowerController interface {
	FullPower()
	SavePower()
}

type coordinatorMetrics struct {
	attempts        prometheus.Counter
	successes       prometheus.Counter
	connectTimeouts prometheus.Counter
	fetchFailures   prometheus.Counter
}

func newCoordinatorMetrics() *coordinatorMetrics {
	return &coordinatorMetrics{
		attempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncAttemptsN,
			Help: metrics.SyncAttemptsH,
		}),
		successes: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncSuccessesN,
			Help: metrics.SyncSuccessesH,
		}),
		connectTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncConnectTimeoutsN,
			Help: metrics.SyncConnectTimeoutsH,
		}),
		fetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncFetchFailuresN,
			Help: metrics.SyncFetchFailuresH,
		}),
	}
}

var mtrcs atomic.Pointer[coordinatorMetrics]

func init() {
	mtrcs.Store(newCoordinatorMetrics())
}

// Coordinator orchestrates one synchronization attempt: session up, bounded
// time fetch, plausibility check, session down. It is strictly sequential;
// callers must not start an attempt while a previous one is outstanding.
type Coordinator struct {
	Log     *zap.Logger
	Session Session
	Source  TimeSource
	Surface display.Surface
	Power   PowerController // optional

	ConnectInterval time.Duration // 0 means DefaultConnectInterval
	ConnectAttempts int           // 0 means DefaultConnectAttempts
	FetchInterval   time.Duration // 0 means DefaultFetchInterval
	FetchAttempts   int           // 0 means DefaultFetchAttempts
	MinYear         int           // 0 means DefaultMinYear
}

// Attempt performs one sync attempt and blocks until it concludes, bounded
// by the connect and fetch polling limits. The session is torn down on
// every exit path; the radio must never be left associated after an
// attempt. On success the registered local clock has been stepped to the
// fetched time.
func (c *Coordinator) Attempt(ctx context.Context) Result {
	m := mtrcs.Load()
	m.attempts.Inc()
	defer c.Session.Disconnect()

	c.Surface.ShowStatus("WLAN on")
	if c.Power != nil {
		c.Power.FullPower()
	}

	connected := poll.Until(ctx, c.connectInterval(), c.connectAttempts(), func() bool {
		err := c.Session.Connect(ctx)
		if err != nil {
			c.Log.Debug("connect attempt failed", zap.Error(err))
			return false
		}
		return true
	})
	if !connected {
		m.connectTimeouts.Inc()
		c.Log.Info("network unreachable", zap.Int("attempts", c.connectAttempts()))
		c.Surface.ShowStatus("WLAN Timeout")
		return Result{Outcome: Timeout}
	}

	c.Surface.ShowStatus("NTP sync")
	var fetched time.Time
	ok := poll.Until(ctx, c.fetchInterval(), c.fetchAttempts(), func() bool {
		t, err := c.Source.FetchTime(ctx)
		if err != nil {
			c.Log.Debug("time fetch failed", zap.Error(err))
			return false
		}
		if t.Year() < c.minYear() {
			c.Log.Debug("fetched time not plausible", zap.Time("fetched", t))
			return false
		}
		fetched = t
		return true
	})
	if !ok {
		m.fetchFailures.Inc()
		c.Log.Info("no plausible time received", zap.Int("attempts", c.fetchAttempts()))
		c.Surface.ShowStatus("Sync failed")
		return Result{Outcome: NetworkFailure}
	}

	offset := fetched.Sub(timebase.Now())
	timebase.Clock().Step(offset)
	c.Surface.ShowStatus("Time OK")
	if c.Power != nil {
		c.Power.SavePower()
	}
	m.successes.Inc()
	c.Log.Info("time synchronized",
		zap.Time("time", fetched), zap.Duration("step", offset))
	return Result{Outcome: Success, Time: fetched}
}

func (c *Coordinator) connectInterval() time.Duration {
	if c.ConnectInterval != 0 {
		return c.ConnectInterval
	}
	return DefaultConnectInterval
}

func (c *Coordinator) connectAttempts() int {
	if c.ConnectAttempts != 0 {
		return c.ConnectAttempts
	}
	return DefaultConnectAttempts
}

func (c *Coordinator) fetchInterval() time.Duration {
	if c.FetchInterval != 0 {
		return c.FetchInterval
	}
	return DefaultFetchInterval
}

func (c *Coordinator) fetchAttempts() int {
	if c.FetchAttempts != 0 {
		return c.FetchAttempts
	}
	return DefaultFetchAttempts
}

func (c *Coordinator) minYear() int {
	if c.MinYear != 0 {
		return c.MinYear
	}
	return DefaultMinYear
}
