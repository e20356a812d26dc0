package ports

import "time"

// Clock is the single source of "now" for cooldown, expiry and time-limit
// comparisons.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
