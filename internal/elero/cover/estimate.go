package cover

import "math"

// Estimate converts elapsed travel into a position, clamped to [0, 100].
// base is the position at the moment the motion command was issued,
// elapsedSeconds the wall-clock time spent moving and travelSeconds the
// configured full 0↔100 traversal duration. Idle movement credits nothing.
//
// The function is pure; callers supply the elapsed time (zero when no start
// time was recorded). travelSeconds > 0 is guaranteed by construction-time
// validation.
func Estimate(base, elapsedSeconds, travelSeconds float64, m Movement) float64 {
	delta := elapsedSeconds / travelSeconds * 100

	switch m {
	case MovementOpening:
		return math.Min(base+delta, PositionOpen)
	case MovementClosing:
		return math.Max(base-delta, PositionClosed)
	}

	return math.Max(PositionClosed, math.Min(base, PositionOpen))
}
