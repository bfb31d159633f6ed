// Package fare computes trip fares from a route's pricing parameters.
package fare

// Amount returns the fare for travelling between two stop indices:
// base fare plus per-stop fare times the number of stops traveled,
// direction-independent. Equal indices yield a zero fare; the booking
// flow treats that as an incomplete selection. Bounds are the caller's
// responsibility.
func Amount(baseFare, farePerStop float64, from, to int) float64 {
	stops := to - from
	if stops < 0 {
		stops = -stops
	}
	if stops == 0 {
		return 0
	}
	return baseFare + farePerStop*float64(stops)
}

// ValidSelection reports whether the pair of stop indices describes a
// bookable journey on a route with stopCount stops.
func ValidSelection(stopCount, from, to int) bool {
	if from == to {
		return false
	}
	return from >= 0 && from < stopCount && to >= 0 && to < stopCount
}
