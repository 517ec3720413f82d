package display

// Surface is the display capability of the device: a short status message,
// an HH:MM time readout, and a power switch. Implementations must treat
// ShowStatus and ShowTime as implicitly powering the surface on, matching
// the behavior of the OLED module, and must tolerate repeated SetPower
// calls with the same value.
type Surface interface {
	ShowStatus(msg string)
	ShowTime(hour, minute int)
	SetPower(on bool)
}
