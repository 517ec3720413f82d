// Console display surface, mainly for running the device logic on a host.

package console

import (
	"fmt"
	"io"
	"sync"

	"example.com/oled-clock/base/display"
)

// Display renders the clock face as plain text, one line per update. It
// mirrors the OLED power semantics: ShowStatus and ShowTime power the
// surface on, and nothing is written while it is off.
type Display struct {
	W io.Writer

	mu sync.Mutex
	on bool
}

var _ display.Surface = (*Display)(nil)

func (d *Display) ShowStatus(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = true
	fmt.Fprintf(d.W, "-- %s\n", msg)
}

func (d *Display) ShowTime(hour, minute int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = true
	fmt.Fprintf(d.W, "%02d:%02d\n", hour, minute)
}

func (d *Display) SetPower(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.on && !on {
		fmt.Fprintln(d.W, "-- display off")
	}
	d.on = on
}

// Powered reports the current power state.
func (d *Display) Powered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}
