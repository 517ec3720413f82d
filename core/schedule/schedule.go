// Day/night scheduling for the clock device.
//
// The engine decides once per second whether the device redraws the display,
// attempts a time sync, or suspends itself until the wake hour. All decisions
// work on whole minutes; seconds never influence the outcome.

package schedule

import (
	"time"
)

const (
	DefaultNightStartHour = 22
	DefaultNightEndHour   = 6
	DefaultSyncHour       = 4
	DefaultSyncMinute     = 30
)

type ActionKind int

const (
	None ActionKind = iota
	Redraw
	AttemptSync
	EnterNightSleep
)

func (k ActionKind) String() string {
	switch k {
	case None:
		return "none"
	case Redraw:
		return "redraw"
	case AttemptSync:
		return "attempt sync"
	case EnterNightSleep:
		return "enter night sleep"
	default:
		return "unknown"
	}
}

// SleepPlan describes one night suspension: the absolute wake instant and
// the duration to hand to the sleep primitive. Duration is at least one
// second so a clock edge case can never produce a zero or negative sleep
// request.
type SleepPlan struct {
	WakeAt   time.Time
	Duration time.Duration
}

type Action struct {
	Kind ActionKind
	Plan SleepPlan // set for EnterNightSleep
}

type Config struct {
	NightStartHour int // inclusive, night spans [NightStartHour, 24) + [0, NightEndHour)
	NightEndHour   int // exclusive, also the wake hour
	SyncHour       int
	SyncMinute     int
}

// Engine owns all mutable scheduling state. It is not safe for concurrent
// use; the device runs it from a single loop.
type Engine struct {
	cfg Config

	lastDisplayedMinute int // -1 until the first redraw
	lastSyncDay         int // day of year of the last successful sync, -1 initially
	syncAttempted       bool
}

func NewEngine(cfg Config) *Engine {
	if cfg.NightStartHour < 0 || cfg.NightStartHour > 23 {
		panic("invalid night start hour")
	}
	if cfg.NightEndHour < 0 || cfg.NightEndHour > 23 {
		panic("invalid night end hour")
	}
	if cfg.NightEndHour >= cfg.NightStartHour {
		panic("night end hour must precede night start hour")
	}
	if cfg.SyncHour < 0 || cfg.SyncHour > 23 {
		panic("invalid sync hour")
	}
	if cfg.SyncMinute < 0 || cfg.SyncMinute > 59 {
		panic("invalid sync minute")
	}
	return &Engine{
		cfg:                 cfg,
		lastDisplayedMinute: -1,
		lastSyncDay:         -1,
	}
}

// Tick decides the action for one polling cycle. The sync window is checked
// before the day/night branch; at most one sync attempt is emitted per
// scheduled minute (debounce) and per calendar day (set by a successful
// sync reported through RecordSyncResult).
func (e *Engine) Tick(now time.Time) Action {
	if now.Minute() != e.cfg.SyncMinute {
		e.syncAttempted = false
	}
	if now.Hour() == e.cfg.SyncHour && now.Minute() == e.cfg.SyncMinute &&
		!e.syncAttempted && now.YearDay() != e.lastSyncDay {
		e.syncAttempted = true
		return Action{Kind: AttemptSync}
	}

	if e.night(now.Hour()) {
		return Action{Kind: EnterNightSleep, Plan: e.sleepPlan(now)}
	}

	if now.Minute() != e.lastDisplayedMinute {
		e.lastDisplayedMinute = now.Minute()
		return Action{Kind: Redraw}
	}
	return Action{Kind: None}
}

// RecordSyncResult reports the outcome of an attempt emitted by Tick. A
// success marks the day of year so further window hits on the same day are
// suppressed even if the minute debounce is reset, for instance by a clock
// step back across the scheduled minute.
func (e *Engine) RecordSyncResult(now time.Time, ok bool) {
	if ok {
		e.lastSyncDay = now.YearDay()
	}
}

func (e *Engine) night(hour int) bool {
	return hour >= e.cfg.NightStartHour || hour < e.cfg.NightEndHour
}

// sleepPlan computes the next occurrence of NightEndHour:00:00 strictly
// after now. Past the night start the wake day is tomorrow; between
// midnight and the night end it is today.
func (e *Engine) sleepPlan(now time.Time) SleepPlan {
	wake := time.Date(now.Year(), now.Month(), now.Day(),
		e.cfg.NightEndHour, 0, 0, 0, now.Location())
	if now.Hour() >= e.cfg.NightStartHour {
		wake = wake.AddDate(0, 0, 1)
	}
	d := wake.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return SleepPlan{WakeAt: wake, Duration: d}
}
