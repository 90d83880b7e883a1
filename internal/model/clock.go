package model

import (
	"fmt"
	"time"
)

var location = time.UTC

// SetUTCOffset fixes the wall-clock offset used for timestamps and lamp
// schedules. Call once at startup before any task runs.
func SetUTCOffset(hours int) {
	location = time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600)
}

func Now() time.Time {
	return time.Now().In(location)
}

func Location() *time.Location {
	return location
}
