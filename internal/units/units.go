// Package units converts between the millisecond clock of the tracker, the
// sample clock used in MAF files, and screen pixel / visual angle units.
package units

import "math"

// Millisecond timestamps are converted to sample indices at this many
// milliseconds per second.
const msPerSecond = 1000.0

// DefaultPixelsPerDegree is the visual angle calibration of the reference
// experiment setup.
const DefaultPixelsPerDegree = 26.48

// IsValidFrequency reports whether hz can drive the sample clock.
func IsValidFrequency(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 0) && !math.IsNaN(hz)
}

// MsToIndex converts a millisecond timestamp to a sample-clock index:
// floor(ms * hz / 1000). For a fixed frequency the result is monotonic in ms.
func MsToIndex(ms, hz float64) int {
	return int(math.Floor(ms * hz / msPerSecond))
}

// IndexToMs converts a sample index back to the millisecond timestamp at
// which the index starts.
func IndexToMs(index int, hz float64) float64 {
	return float64(index) * msPerSecond / hz
}

// PixelsToDegrees converts a screen distance in pixels to degrees of visual
// angle using the pixels-per-degree calibration.
func PixelsToDegrees(px, pixelsPerDegree float64) float64 {
	if pixelsPerDegree <= 0 {
		return 0
	}
	return px / pixelsPerDegree
}
