// Package eyedata holds the trial model shared by the ASC extractor, the MAF
// codec and the reporting outputs.
package eyedata

import "fmt"

// Eye identifies which eye a sample or fixation belongs to. The string value
// is the code used in MAF files.
type Eye string

const (
	Left      Eye = "L"
	Right     Eye = "R"
	Binocular Eye = "B"
)

// ParseEye maps a MAF/ASC eye code to an Eye.
func ParseEye(code string) (Eye, error) {
	switch Eye(code) {
	case Left, Right, Binocular:
		return Eye(code), nil
	default:
		return "", fmt.Errorf("unknown eye code %q", code)
	}
}

// Sample is one gaze position on the sample clock.
type Sample struct {
	Eye       Eye
	TimeIndex int
	X         float64
	Y         float64
}

// Fixation is a fixation on the sample clock. Interpolated fixations are
// synthesized over merged fixation intervals and are always Binocular.
type Fixation struct {
	Eye             Eye
	StartIndex      int
	DurationIndices int
	X               float64
	Y               float64
	Interpolated    bool
}

// EndIndex is the last sample index covered by the fixation.
func (f Fixation) EndIndex() int {
	return f.StartIndex + f.DurationIndices - 1
}

// Event is a named span on the sample clock.
type Event struct {
	Name     string
	Start    int
	Duration int
}

// Bounds is the screen coordinate rectangle reported by the tracker.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns MaxX - MinX.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY - MinY.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Trial is one finalized trial. Stimulus is empty when no stimulus was shown.
type Trial struct {
	ID          string
	Bounds      Bounds
	FrequencyHz float64
	Stimulus    string
	Fixations   []Fixation
	Samples     []Sample
	Events      []Event
}

// InterpolatedCount returns the number of synthesized fixations in the trial.
func (t *Trial) InterpolatedCount() int {
	n := 0
	for _, f := range t.Fixations {
		if f.Interpolated {
			n++
		}
	}
	return n
}

// SamplesFor returns the samples recorded for one eye, in arrival order.
func (t *Trial) SamplesFor(eye Eye) []Sample {
	var out []Sample
	for _, s := range t.Samples {
		if s.Eye == eye {
			out = append(out, s)
		}
	}
	return out
}

// Participant is the header block of a MAF file.
type Participant struct {
	Label           string
	PixelsPerDegree float64
}

// Recording is a participant header together with its trials.
type Recording struct {
	Participant Participant
	Trials      []Trial
}
