package asc

import (
	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/units"
)

// firstSample remembers the first sample of one eye in the current trial.
type firstSample struct {
	index int
	ms    float64
	ok    bool
}

// indexOr returns the first index, or fallback when the eye has no sample yet.
func (f firstSample) indexOr(fallback int) int {
	if !f.ok {
		return fallback
	}
	return f.index
}

// correctFixation converts an EFIX event to the sample clock. The tracker
// can report a fixation that began before the trial's first sample of that
// eye; such a fixation is clamped to start at the first sample and its
// duration shrinks by the milliseconds cut off, never below zero.
func correctFixation(ef EfixLine, first firstSample, hz float64) eyedata.Fixation {
	start := units.MsToIndex(ef.StartMs, hz)
	durMs := ef.DurationMs

	if first.ok && start < first.index {
		durMs -= first.ms - ef.StartMs
		if durMs < 0 {
			durMs = 0
		}
		start = first.index
	}

	return eyedata.Fixation{
		Eye:             ef.Eye,
		StartIndex:      start,
		DurationIndices: units.MsToIndex(durMs, hz),
		X:               ef.X,
		Y:               ef.Y,
	}
}
