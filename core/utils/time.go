package utils

import (
	"time"
	_ "time/tzdata"
)

// Now now
func Now() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.Local)
}

// TimeZone time zone
func TimeZone() string {
	zone, _ := Now().Zone()
	return zone
}

// Clock returns the current time, swappable in tests
type Clock func() time.Time

// OrNow returns c, or time.Now when c is nil
func (c Clock) OrNow() Clock {
	if c == nil {
		return time.Now
	}

	return c
}
