package poll

import (
	"context"
	"time"

	"example.com/oled-clock/base/timebase"
)

// Until runs pred up to maxAttempts times, sleeping interval on the
// registered local clock between attempts. It returns true as soon as pred
// does, false once the attempts are exhausted or ctx is done. No sleep
// follows the final attempt.
func Until(ctx context.Context, interval time.Duration, maxAttempts int, pred func() bool) bool {
	if interval <= 0 {
		panic("invalid poll interval")
	}
	if maxAttempts <= 0 {
		panic("invalid number of poll attempts")
	}
	for i := 0; i != maxAttempts; i++ {
		if pred() {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if i != maxAttempts-1 {
			timebase.Clock().Sleep(interval)
		}
	}
	return false
}
