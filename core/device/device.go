// Device run loop: boot sync, then the once-per-second scheduling cycle.

package device

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"example.com/oled-clock/base/display"
	"example.com/oled-clock/base/metrics"
	"example.com/oled-clock/base/timebase"
	"example.com/oled-clock/core/schedule"
	"example.com/oled-clock/core/sync"
)

const tickInterval = 1 * time.Second

// Syncer performs one bounded synchronization attempt.
type Syncer interface {
	Attempt(ctx context.Context) sync.Result
}

type deviceMetrics struct {
	redraws     prometheus.Counter
	nightSleeps prometheus.Counter
}

func newDeviceMetrics() *deviceMetrics {
	return &deviceMetrics{
		redraws: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.DeviceRedrawsN,
			Help: metrics.DeviceRedrawsH,
		}),
		nightSleeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.DeviceNightSleepsN,
			Help: metrics.DeviceNightSleepsH,
		}),
	}
}

var mtrcs atomic.Pointer[deviceMetrics]

func init() {
	mtrcs.Store(newDeviceMetrics())
}

// Device wires the schedule engine to the display surface, the sync
// coordinator and the registered local clock. Everything runs on the
// calling goroutine; the only suspension points are the clock sleeps.
type Device struct {
	Log      *zap.Logger
	Surface  display.Surface
	Syncer   Syncer
	Schedule schedule.Config
}

// Run performs the boot-time sync and then cycles through day phases and
// night sleeps until ctx is done. A failed boot sync is not fatal; the
// device keeps showing time from the current clock state and retries at
// the next scheduled window.
func (d *Device) Run(ctx context.Context) error {
	res := d.Syncer.Attempt(ctx)
	if res.Outcome != sync.Success {
		d.Log.Info("boot time sync failed",
			zap.Stringer("outcome", res.Outcome))
	}
	for {
		err := d.runUntilNightSleep(ctx)
		if err != nil {
			return err
		}
	}
}

// runUntilNightSleep drives the engine from a fresh state until the night
// phase suspends the device, then returns. Scheduling state does not
// survive the suspension; each wake starts over, so the first cycle after
// a wake always redraws.
func (d *Device) runUntilNightSleep(ctx context.Context) error {
	m := mtrcs.Load()
	e := schedule.NewEngine(d.Schedule)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := timebase.Now()
		a := e.Tick(now)
		switch a.Kind {
		case schedule.Redraw:
			d.Surface.ShowTime(now.Hour(), now.Minute())
			m.redraws.Inc()
		case schedule.AttemptSync:
			res := d.Syncer.Attempt(ctx)
			e.RecordSyncResult(now, res.Outcome == sync.Success)
			if res.Outcome == sync.Success {
				d.Log.Info("daily time sync succeeded")
			} else {
				d.Log.Info("daily time sync failed, retrying at the next window",
					zap.Stringer("outcome", res.Outcome))
			}
		case schedule.EnterNightSleep:
			d.Surface.SetPower(false)
			m.nightSleeps.Inc()
			d.Log.Info("entering night sleep",
				zap.Time("wake", a.Plan.WakeAt),
				zap.Duration("duration", a.Plan.Duration))
			timebase.Clock().Sleep(a.Plan.Duration)
			return nil
		}
		timebase.Clock().Sleep(tickInterval)
	}
}
