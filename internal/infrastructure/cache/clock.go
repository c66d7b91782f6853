package cache

import "time"

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Now returns the current time, falling back to time.Now for a nil Clock
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
