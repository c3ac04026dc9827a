package dispatch

import "time"

// ShouldAbort reports whether starting more work now has no realistic
// chance of finishing before the deadline, given the average time one
// gateway call takes. It is a heuristic margin for the polling loops and
// retry sleeps, not a guarantee about an attempt already in flight.
func ShouldAbort(now, deadline time.Time, avgProcessingTime time.Duration) bool {
	return !now.Add(avgProcessingTime).Before(deadline)
}
