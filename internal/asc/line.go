package asc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/asc2maf/internal/eyedata"
)

// Line is one classified ASC line. The set of implementations is closed:
// StartLine, SamplesRateLine, EfixLine, RawSampleLine, GazeCoordsLine,
// TrialIDLine, ShowStimulusLine, UseMarkerLine, HideStimulusLine and OtherLine.
type Line interface {
	isLine()
}

// StartLine declares the recorded eyes, e.g. "START 10254 LEFT RIGHT SAMPLES EVENTS".
type StartLine struct {
	LeftFirst   bool
	RightSecond bool
}

// SamplesRateLine carries the sampling frequency from a SAMPLES line.
type SamplesRateLine struct {
	Hz float64
}

// EfixLine is a tracker-reported end-of-fixation event.
type EfixLine struct {
	Eye        eyedata.Eye
	StartMs    float64
	EndMs      float64
	DurationMs float64
	X          float64
	Y          float64
}

// Gaze is one eye's position on a raw sample row. OK is false when the
// columns were missing or not numeric (e.g. the "." missing-data marker).
type Gaze struct {
	X  float64
	Y  float64
	OK bool
}

// RawSampleLine is a sample row: "<ts> <x1> <y1> <p1> [<x2> <y2> <p2> ...]".
type RawSampleLine struct {
	TimestampMs float64
	Left        Gaze
	Right       Gaze
}

// GazeCoordsLine carries the screen bounds from "MSG <ts> GAZE_COORDS ...".
type GazeCoordsLine struct {
	Bounds eyedata.Bounds
}

// TrialIDLine carries the label from "MSG <ts> TRIALID <id>".
type TrialIDLine struct {
	ID string
}

// ShowStimulusLine starts a trial: "MSG <ts> <event> showbild <path>".
type ShowStimulusLine struct {
	Event string
	Path  string
}

// UseMarkerLine marks the open trial for emission.
type UseMarkerLine struct {
	Event  string
	Marker string
}

// HideStimulusLine ends a trial: "MSG <ts> <event> hidebild".
type HideStimulusLine struct {
	Event string
}

// OtherLine is anything the converter does not act on. Malformed is set when
// the line looked like a known kind but its fields could not be parsed.
type OtherLine struct {
	Malformed error
}

func (StartLine) isLine()        {}
func (SamplesRateLine) isLine()  {}
func (EfixLine) isLine()         {}
func (RawSampleLine) isLine()    {}
func (GazeCoordsLine) isLine()   {}
func (TrialIDLine) isLine()      {}
func (ShowStimulusLine) isLine() {}
func (UseMarkerLine) isLine()    {}
func (HideStimulusLine) isLine() {}
func (OtherLine) isLine()        {}

// Message event keywords in the experiment's MSG lines.
const (
	keywordShow    = "showbild"
	keywordHide    = "hidebild"
	keywordTrialID = "TRIALID"
	keywordCoords  = "GAZE_COORDS"
	keywordRate    = "RATE"
	markerAudio    = "showdisaku"
	markerVisual   = "showdisvis"
	markerBoth     = "showdisboth"
)

// IsUseMarker reports whether an MSG keyword marks a trial for emission.
func IsUseMarker(keyword string) bool {
	switch keyword {
	case markerAudio, markerVisual, markerBoth:
		return true
	}
	return false
}

// Classify tokenizes a raw ASC line and classifies it. The second return is
// false for lines with fewer than two tokens, which carry nothing.
func Classify(raw string) (Line, bool) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, false
	}
	return ClassifyFields(fields), true
}

// ClassifyFields classifies an already tokenized line. The first matching rule
// wins, in the order START, SAMPLES, EFIX, raw sample, MSG.
func ClassifyFields(fields []string) Line {
	switch {
	case fields[0] == "START":
		return classifyStart(fields)
	case fields[0] == "SAMPLES":
		return classifySamples(fields)
	case fields[0] == "EFIX":
		return classifyEfix(fields)
	case isDigits(fields[0]):
		return classifyRawSample(fields)
	case fields[0] == "MSG":
		return classifyMessage(fields)
	}
	return OtherLine{}
}

func classifyStart(fields []string) Line {
	var l StartLine
	if len(fields) > 2 {
		l.LeftFirst = fields[2] == "LEFT"
	}
	if len(fields) > 3 {
		l.RightSecond = fields[3] == "RIGHT"
	}
	return l
}

func classifySamples(fields []string) Line {
	for i, f := range fields {
		if f != keywordRate {
			continue
		}
		if i+1 >= len(fields) {
			return OtherLine{Malformed: fmt.Errorf("SAMPLES line has no value after %s", keywordRate)}
		}
		hz, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return OtherLine{Malformed: fmt.Errorf("invalid sampling rate %q: %w", fields[i+1], err)}
		}
		return SamplesRateLine{Hz: hz}
	}
	return OtherLine{}
}

// EFIX <eye> <start> <end> <duration> <x> <y> [<pupil>]
func classifyEfix(fields []string) Line {
	eye := eyedata.Eye(fields[1])
	if eye != eyedata.Left && eye != eyedata.Right {
		return OtherLine{}
	}
	if len(fields) < 7 {
		return OtherLine{Malformed: fmt.Errorf("EFIX line has %d fields, want at least 7", len(fields))}
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return OtherLine{Malformed: fmt.Errorf("invalid EFIX field %d %q: %w", i+2, fields[i+2], err)}
		}
		vals[i] = v
	}
	return EfixLine{
		Eye:        eye,
		StartMs:    vals[0],
		EndMs:      vals[1],
		DurationMs: vals[2],
		X:          vals[3],
		Y:          vals[4],
	}
}

func classifyRawSample(fields []string) Line {
	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return OtherLine{Malformed: fmt.Errorf("invalid sample timestamp %q: %w", fields[0], err)}
	}
	return RawSampleLine{
		TimestampMs: ts,
		Left:        parseGaze(fields, 1),
		Right:       parseGaze(fields, 4),
	}
}

// parseGaze reads the x/y pair starting at column col. Pupil size is ignored.
func parseGaze(fields []string, col int) Gaze {
	if col+1 >= len(fields) {
		return Gaze{}
	}
	x, err := strconv.ParseFloat(fields[col], 64)
	if err != nil {
		return Gaze{}
	}
	y, err := strconv.ParseFloat(fields[col+1], 64)
	if err != nil {
		return Gaze{}
	}
	return Gaze{X: x, Y: y, OK: true}
}

func classifyMessage(fields []string) Line {
	if len(fields) >= 7 && fields[2] == keywordCoords {
		var vals [4]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i+3], 64)
			if err != nil {
				return OtherLine{Malformed: fmt.Errorf("invalid %s value %q: %w", keywordCoords, fields[i+3], err)}
			}
			vals[i] = v
		}
		return GazeCoordsLine{Bounds: eyedata.Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}}
	}
	if len(fields) <= 3 {
		return OtherLine{}
	}
	if fields[2] == keywordTrialID {
		return TrialIDLine{ID: fields[3]}
	}

	event, keyword := fields[2], fields[3]
	switch {
	case keyword == keywordShow:
		var path string
		if len(fields) > 4 {
			path = fields[4]
		}
		return ShowStimulusLine{Event: event, Path: path}
	case IsUseMarker(keyword):
		return UseMarkerLine{Event: event, Marker: keyword}
	case keyword == keywordHide:
		return HideStimulusLine{Event: event}
	}
	return OtherLine{}
}

// isDigits reports whether s is a non-empty run of ASCII digits, i.e. a
// non-negative integer without sign.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
