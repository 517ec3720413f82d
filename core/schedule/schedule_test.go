package schedule_test

import (
	"testing"
	"time"

	"example.com/oled-clock/core/schedule"
)

var cfg = schedule.Config{
	NightStartHour: schedule.DefaultNightStartHour,
	NightEndHour:   schedule.DefaultNightEndHour,
	SyncHour:       schedule.DefaultSyncHour,
	SyncMinute:     schedule.DefaultSyncMinute,
}

func at(hour, min, sec int) time.Time {
	return time.Date(2025, time.August, 29, hour, min, sec, 0, time.UTC)
}

func TestNightSleepForAllNightHours(t *testing.T) {
	for _, hour := range []int{22, 23, 0, 1, 2, 3, 4, 5} {
		e := schedule.NewEngine(cfg)
		now := at(hour, 15, 42) // never the sync minute
		a := e.Tick(now)
		if a.Kind != schedule.EnterNightSleep {
			t.Fatalf("Tick(%02d:15) = %v, want enter night sleep", hour, a.Kind)
		}
		if !a.Plan.WakeAt.After(now) {
			t.Errorf("hour %d: wake %v must be after now %v", hour, a.Plan.WakeAt, now)
		}
		if a.Plan.WakeAt.Hour() != cfg.NightEndHour ||
			a.Plan.WakeAt.Minute() != 0 || a.Plan.WakeAt.Second() != 0 {
			t.Errorf("hour %d: wake %v, want %02d:00:00", hour, a.Plan.WakeAt, cfg.NightEndHour)
		}
		if a.Plan.Duration < time.Second {
			t.Errorf("hour %d: duration %v, want >= 1s", hour, a.Plan.Duration)
		}
		if got := a.Plan.WakeAt.Sub(now); got != a.Plan.Duration {
			t.Errorf("hour %d: duration %v does not match wake instant (%v)", hour, a.Plan.Duration, got)
		}
	}
}

func TestWakeComputationBoundaries(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before midnight", at(23, 59, 0), time.Date(2025, time.August, 30, 6, 0, 0, 0, time.UTC)},
		{"after midnight", at(5, 29, 0), time.Date(2025, time.August, 29, 6, 0, 0, 0, time.UTC)},
		{"night start", at(22, 0, 0), time.Date(2025, time.August, 30, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		e := schedule.NewEngine(cfg)
		a := e.Tick(tt.now)
		if a.Kind != schedule.EnterNightSleep {
			t.Fatalf("%s: Tick = %v, want enter night sleep", tt.name, a.Kind)
		}
		if !a.Plan.WakeAt.Equal(tt.want) {
			t.Errorf("%s: wake = %v, want %v", tt.name, a.Plan.WakeAt, tt.want)
		}
	}
}

func TestDurationFloor(t *testing.T) {
	e := schedule.NewEngine(cfg)
	now := time.Date(2025, time.August, 29, 5, 59, 59, 900_000_000, time.UTC)
	a := e.Tick(now)
	if a.Kind != schedule.EnterNightSleep {
		t.Fatalf("Tick = %v, want enter night sleep", a.Kind)
	}
	if a.Plan.Duration != time.Second {
		t.Errorf("duration = %v, want floor of 1s", a.Plan.Duration)
	}
}

func TestRedrawSuppression(t *testing.T) {
	e := schedule.NewEngine(cfg)
	for _, hour := range []int{6, 7, 12, 21} {
		now := at(hour, 10, 3)
		if a := e.Tick(now); a.Kind != schedule.Redraw {
			t.Fatalf("hour %d: first Tick = %v, want redraw", hour, a.Kind)
		}
		if a := e.Tick(now.Add(20 * time.Second)); a.Kind != schedule.None {
			t.Errorf("hour %d: same minute Tick = %v, want none", hour, a.Kind)
		}
		if a := e.Tick(now.Add(time.Minute)); a.Kind != schedule.Redraw {
			t.Errorf("hour %d: next minute Tick = %v, want redraw", hour, a.Kind)
		}
	}
}

func TestSyncDebounceOverScheduledMinute(t *testing.T) {
	e := schedule.NewEngine(cfg)
	attempts := 0
	for sec := 0; sec < 60; sec++ {
		a := e.Tick(at(4, 30, sec))
		if a.Kind == schedule.AttemptSync {
			attempts++
		}
	}
	if attempts != 1 {
		t.Errorf("got %d sync attempts over 04:30:00-04:30:59, want exactly 1", attempts)
	}

	// The same minute value at a different hour must not fire.
	if a := e.Tick(at(5, 30, 0)); a.Kind == schedule.AttemptSync {
		t.Errorf("Tick(05:30) fired a sync attempt outside the sync hour")
	}
}

func TestDebounceResetsOnMinuteChange(t *testing.T) {
	e := schedule.NewEngine(cfg)
	if a := e.Tick(at(4, 30, 0)); a.Kind != schedule.AttemptSync {
		t.Fatalf("first window Tick = %v, want attempt sync", a.Kind)
	}
	e.RecordSyncResult(at(4, 30, 1), false)

	// Minute leaves and re-enters the scheduled value: the failed attempt
	// does not set the day guard, so the window opens again.
	if a := e.Tick(at(4, 31, 0)); a.Kind != schedule.EnterNightSleep {
		t.Fatalf("Tick(04:31) = %v, want enter night sleep", a.Kind)
	}
	if a := e.Tick(at(4, 30, 30)); a.Kind != schedule.AttemptSync {
		t.Errorf("re-entered window Tick = %v, want attempt sync", a.Kind)
	}
}

func TestDayGuardSuppressesSecondSync(t *testing.T) {
	e := schedule.NewEngine(cfg)
	now := at(4, 30, 0)
	if a := e.Tick(now); a.Kind != schedule.AttemptSync {
		t.Fatalf("first Tick = %v, want attempt sync", a.Kind)
	}
	e.RecordSyncResult(now, true)

	// Simulated clock rollback: minute leaves and re-enters the window on
	// the same calendar day. The day guard must hold even though the
	// minute debounce has been reset.
	if a := e.Tick(at(4, 31, 0)); a.Kind == schedule.AttemptSync {
		t.Fatalf("unexpected sync attempt at 04:31")
	}
	if a := e.Tick(at(4, 30, 5)); a.Kind == schedule.AttemptSync {
		t.Errorf("sync attempt repeated on the same day")
	}

	// Next day the guard releases.
	next := now.AddDate(0, 0, 1)
	e.Tick(next.Add(time.Minute)) // reset debounce away from the window
	if a := e.Tick(next); a.Kind != schedule.AttemptSync {
		t.Errorf("next day Tick = %v, want attempt sync", a.Kind)
	}
}

func TestSyncWindowInsideNightPhase(t *testing.T) {
	// 04:30 lies inside the night span; the sync check runs first, so a
	// device awake at that instant attempts the sync and only enters night
	// sleep on a later cycle.
	e := schedule.NewEngine(cfg)
	if a := e.Tick(at(4, 30, 0)); a.Kind != schedule.AttemptSync {
		t.Fatalf("Tick(04:30) = %v, want attempt sync", a.Kind)
	}
	if a := e.Tick(at(4, 30, 1)); a.Kind != schedule.EnterNightSleep {
		t.Errorf("following Tick = %v, want enter night sleep", a.Kind)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  schedule.Config
	}{
		{"night end after start", schedule.Config{NightStartHour: 6, NightEndHour: 22, SyncHour: 4, SyncMinute: 30}},
		{"sync hour out of range", schedule.Config{NightStartHour: 22, NightEndHour: 6, SyncHour: 24, SyncMinute: 30}},
		{"sync minute out of range", schedule.Config{NightStartHour: 22, NightEndHour: 6, SyncHour: 4, SyncMinute: 60}},
	}
	for _, tt := range tests {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: NewEngine did not panic", tt.name)
				}
			}()
			schedule.NewEngine(tt.cfg)
		}()
	}
}
