// Package maf reads and writes MAF trial files, the line-oriented format
// loaded by the microsaccade explorer.
//
// Layout:
//
//	PARTICIPANT <label>
//	PIXELSPERDEGREE <ppd>
//	TRIAL <id>
//	COORDS <minX> <minY> <maxX> <maxY>
//	FREQ <hz>
//	STIMULUS <path>
//	F <eye> <startIndex> <durationIndices> <x> <y>
//	<eye> <timeIndex> <x> <y>
//	E <name> <start> <duration>
//	ENDTRIAL
//
// Every line except ENDTRIAL ends with a space before the newline.
package maf

import (
	"math"
	"strconv"
	"strings"
)

// Line keywords.
const (
	keyParticipant     = "PARTICIPANT"
	keyPixelsPerDegree = "PIXELSPERDEGREE"
	keyTrial           = "TRIAL"
	keyCoords          = "COORDS"
	keyFreq            = "FREQ"
	keyStimulus        = "STIMULUS"
	keyFixation        = "F"
	keyEvent           = "E"
	keyEndTrial        = "ENDTRIAL"
)

// FormatFloat renders v the way existing MAF files do: the shortest decimal
// that round-trips, always with a fractional part ("1000.0", "641.2"), and
// in exponent form below 1e-4 or from 1e16 on ("1e-05", "1.5e+16").
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
