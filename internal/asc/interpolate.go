package asc

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/asc2maf/internal/eyedata"
)

// sortFixations orders fixations by start index, keeping arrival order for
// equal starts.
func sortFixations(fixations []eyedata.Fixation) {
	sort.SliceStable(fixations, func(i, j int) bool {
		return fixations[i].StartIndex < fixations[j].StartIndex
	})
}

// interpolateFixations merges the overlapping intervals of sorted fixations
// and synthesizes one Binocular fixation per merged interval, positioned at
// the mean of the left and right samples inside it. Interval starts are
// clamped to firstLeft; pass -1 when the trial has no left sample.
func interpolateFixations(sorted []eyedata.Fixation, samples []eyedata.Sample, firstLeft int) []eyedata.Fixation {
	var out []eyedata.Fixation
	flush := func(start, end int) {
		if f, ok := interpolatedFixation(samples, max(firstLeft, start), end); ok {
			out = append(out, f)
		}
	}

	open := false
	var start, end int
	for _, f := range sorted {
		fStart, fEnd := f.StartIndex, f.EndIndex()
		switch {
		case !open:
			start, end, open = fStart, fEnd, true
		case fStart <= end:
			end = max(end, fEnd)
		default:
			flush(start, end)
			start, end = fStart, fEnd
		}
	}
	if open {
		flush(start, end)
	}
	return out
}

// interpolatedFixation averages the L and R samples with an index in
// [start, end]. It reports false when there is no such sample.
func interpolatedFixation(samples []eyedata.Sample, start, end int) (eyedata.Fixation, bool) {
	var xs, ys []float64
	for _, s := range samples {
		if s.Eye != eyedata.Left && s.Eye != eyedata.Right {
			continue
		}
		if s.TimeIndex < start || s.TimeIndex > end {
			continue
		}
		xs = append(xs, s.X)
		ys = append(ys, s.Y)
	}
	if len(xs) == 0 {
		return eyedata.Fixation{}, false
	}
	return eyedata.Fixation{
		Eye:             eyedata.Binocular,
		StartIndex:      start,
		DurationIndices: end - start,
		X:               stat.Mean(xs, nil),
		Y:               stat.Mean(ys, nil),
		Interpolated:    true,
	}, true
}
