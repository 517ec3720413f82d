// Serial OLED display surface. The module speaks a small line-oriented
// command protocol over a serial link: "S <text>" renders a status line in
// the small font, "T HH:MM" renders the time in the large font, "P 0"/"P 1"
// switch the panel's power-save mode.

package oled

import (
	"fmt"
	"io"

	"github.com/tarm/serial"

	"example.com/oled-clock/base/display"
)

// Display drives a serial-attached OLED module.
type Display struct {
	w  io.Writer
	c  io.Closer
	on bool
}

var _ display.Surface = (*Display)(nil)

// Open opens the serial port the display module is attached to.
func Open(device string, baud int) (*Display, error) {
	p, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return &Display{w: p, c: p}, nil
}

func (d *Display) ShowStatus(msg string) {
	d.power(true)
	_, _ = io.WriteString(d.w, statusCommand(msg))
}

func (d *Display) ShowTime(hour, minute int) {
	d.power(true)
	_, _ = io.WriteString(d.w, timeCommand(hour, minute))
}

func (d *Display) SetPower(on bool) {
	d.power(on)
}

func (d *Display) Close() error {
	if d.c == nil {
		return nil
	}
	return d.c.Close()
}

func (d *Display) power(on bool) {
	if d.on == on {
		return
	}
	d.on = on
	_, _ = io.WriteString(d.w, powerCommand(on))
}

func statusCommand(msg string) string {
	return fmt.Sprintf("S %s\n", msg)
}

func timeCommand(hour, minute int) string {
	return fmt.Sprintf("T %02d:%02d\n", hour, minute)
}

func powerCommand(on bool) string {
	if on {
		return "P 1\n"
	}
	return "P 0\n"
}
