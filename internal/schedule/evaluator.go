// Package schedule decides the desired switch state from the current time
// and the day's sunset.
package schedule

import "time"

// ShouldBeOn reports whether the switch should be on at the given instant.
// The switch is on from sunset until the midnight ending sunset's calendar
// date, and off otherwise. The sunset boundary is inclusive, the midnight
// boundary exclusive. Anchoring midnight to sunset's date keeps the window
// fixed: a stale previous-day sunset can never hold the switch on past its
// own midnight.
func ShouldBeOn(now, sunset time.Time) bool {
	year, month, day := sunset.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, sunset.Location()).AddDate(0, 0, 1)

	return !now.Before(sunset) && now.Before(midnight)
}
