// Package asc reconstructs trials from EyeLink ASCII exports.
//
// An ASC file interleaves tracker events (START, SAMPLES, EFIX), experiment
// messages (MSG) and raw sample rows. The Extractor folds over the lines in
// order and emits one eyedata.Trial per stimulus presentation that carried a
// use marker. Processing is strictly sequential: fixation timing depends on
// the samples seen earlier in the same trial.
package asc

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/units"
)

// maxLineBytes bounds a single ASC line. Sample rows are well under 200 bytes
// but some MSG lines carry long payloads.
const maxLineBytes = 1024 * 1024

// TrialHandler receives each finalized trial. Returning an error stops the
// extraction.
type TrialHandler func(trial eyedata.Trial) error

// Stats counts what the extractor did with a recording.
type Stats struct {
	Lines           int
	MalformedLines  int
	TrialsStarted   int
	TrialsEmitted   int
	TrialsDiscarded int
}

// TrialState accumulates one open trial. It is created at the stimulus
// onset and dropped at the stimulus offset, whether or not it was emitted.
type TrialState struct {
	Stimulus   string
	Use        bool
	Fixations  []eyedata.Fixation
	Samples    []eyedata.Sample
	firstLeft  firstSample
	firstRight firstSample
}

// first returns the first-sample marker for a monocular eye.
func (ts *TrialState) first(eye eyedata.Eye) firstSample {
	if eye == eyedata.Right {
		return ts.firstRight
	}
	return ts.firstLeft
}

// Extractor is the line-by-line trial state machine: Idle until a stimulus
// is shown, TrialOpen until it is hidden, then Emit or Discard and back to
// Idle. Frequency, bounds and the pending trial id belong to the recording
// and survive across trials.
type Extractor struct {
	emit TrialHandler

	frequencyHz float64
	bounds      *eyedata.Bounds
	eyeOrder    StartLine
	trialID     string

	trial *TrialState
	stats Stats
}

// DefaultTrialID names trials of a recording that has no TRIALID message.
const DefaultTrialID = "0"

// NewExtractor returns an Extractor that hands emitted trials to emit.
func NewExtractor(emit TrialHandler) *Extractor {
	return &Extractor{emit: emit, trialID: DefaultTrialID}
}

// Stats returns the counters accumulated so far.
func (e *Extractor) Stats() Stats { return e.stats }

// EyeOrder returns the eye declaration of the last START line.
func (e *Extractor) EyeOrder() StartLine { return e.eyeOrder }

// TrialOpen reports whether a stimulus is currently being shown.
func (e *Extractor) TrialOpen() bool { return e.trial != nil }

// Feed processes one raw line. A returned error is fatal for the recording.
func (e *Extractor) Feed(raw string) error {
	e.stats.Lines++
	line, ok := Classify(raw)
	if !ok {
		return nil
	}
	if err := e.apply(line); err != nil {
		return &LineError{Line: e.stats.Lines, Err: err}
	}
	return nil
}

// Finish ends the recording. A trial still open at the end of the input
// never saw its offset and is discarded.
func (e *Extractor) Finish() error {
	if e.trial != nil {
		monitoring.Logf("asc: discarding trial %q left open at end of recording", e.trialID)
		e.trial = nil
		e.stats.TrialsDiscarded++
	}
	return nil
}

func (e *Extractor) apply(line Line) error {
	switch l := line.(type) {
	case StartLine:
		if !l.LeftFirst && !l.RightSecond {
			return &FormatError{Declared: []string{boolEye(l.LeftFirst, "LEFT"), boolEye(l.RightSecond, "RIGHT")}}
		}
		e.eyeOrder = l
	case SamplesRateLine:
		e.frequencyHz = l.Hz
	case EfixLine:
		return e.addFixation(l)
	case RawSampleLine:
		return e.addSamples(l)
	case GazeCoordsLine:
		b := l.Bounds
		e.bounds = &b
	case TrialIDLine:
		e.trialID = l.ID
	case ShowStimulusLine:
		e.showStimulus(l)
	case UseMarkerLine:
		if e.trial != nil {
			e.trial.Use = true
		}
	case HideStimulusLine:
		return e.hideStimulus()
	case OtherLine:
		if l.Malformed != nil {
			e.stats.MalformedLines++
			monitoring.Logf("asc: skipping line %d: %v", e.stats.Lines, l.Malformed)
		}
	}
	return nil
}

func boolEye(ok bool, name string) string {
	if ok {
		return name
	}
	return "not " + name
}

func (e *Extractor) requireFrequency() error {
	if !units.IsValidFrequency(e.frequencyHz) {
		return ErrMissingFrequency
	}
	return nil
}

func (e *Extractor) showStimulus(l ShowStimulusLine) {
	if e.trial != nil {
		// a second onset without an offset keeps accumulating into the open trial
		e.trial.Stimulus = l.Path
		return
	}
	e.trial = &TrialState{Stimulus: l.Path}
	e.stats.TrialsStarted++
}

func (e *Extractor) addFixation(l EfixLine) error {
	if e.trial == nil {
		return nil
	}
	if err := e.requireFrequency(); err != nil {
		return err
	}
	f := correctFixation(l, e.trial.first(l.Eye), e.frequencyHz)
	e.trial.Fixations = append(e.trial.Fixations, f)
	return nil
}

func (e *Extractor) addSamples(l RawSampleLine) error {
	if e.trial == nil {
		return nil
	}
	if err := e.requireFrequency(); err != nil {
		return err
	}
	ts := e.trial
	index := units.MsToIndex(l.TimestampMs, e.frequencyHz)

	if l.Left.OK {
		ts.Samples = append(ts.Samples, eyedata.Sample{Eye: eyedata.Left, TimeIndex: index, X: l.Left.X, Y: l.Left.Y})
		if !ts.firstLeft.ok {
			ts.firstLeft = firstSample{index: index, ms: l.TimestampMs, ok: true}
		}
	}
	if l.Right.OK {
		ts.Samples = append(ts.Samples, eyedata.Sample{Eye: eyedata.Right, TimeIndex: index, X: l.Right.X, Y: l.Right.Y})
		if !ts.firstRight.ok {
			ts.firstRight = firstSample{index: index, ms: l.TimestampMs, ok: true}
		}
	}
	if l.Left.OK && l.Right.OK {
		ts.Samples = append(ts.Samples, eyedata.Sample{
			Eye:       eyedata.Binocular,
			TimeIndex: index,
			X:         (l.Left.X + l.Right.X) / 2,
			Y:         (l.Left.Y + l.Right.Y) / 2,
		})
	}
	return nil
}

func (e *Extractor) hideStimulus() error {
	ts := e.trial
	if ts == nil {
		return nil
	}
	e.trial = nil

	if !ts.Use {
		e.stats.TrialsDiscarded++
		return nil
	}
	if err := e.requireFrequency(); err != nil {
		return err
	}
	if e.bounds == nil {
		return ErrMissingBounds
	}

	trial := e.finalize(ts)
	e.stats.TrialsEmitted++
	if e.emit == nil {
		return nil
	}
	if err := e.emit(trial); err != nil {
		return fmt.Errorf("emit trial %q: %w", trial.ID, err)
	}
	return nil
}

// finalize sorts the reported fixations and appends the interpolated ones.
func (e *Extractor) finalize(ts *TrialState) eyedata.Trial {
	fixations := ts.Fixations
	sortFixations(fixations)
	interpolated := interpolateFixations(fixations, ts.Samples, ts.firstLeft.indexOr(-1))
	fixations = append(fixations, interpolated...)

	return eyedata.Trial{
		ID:          e.trialID,
		Bounds:      *e.bounds,
		FrequencyHz: e.frequencyHz,
		Stimulus:    ts.Stimulus,
		Fixations:   fixations,
		Samples:     ts.Samples,
		Events:      []eyedata.Event{},
	}
}

// Extract reads a whole recording from r and hands each trial to emit.
func Extract(r io.Reader, emit TrialHandler) (Stats, error) {
	e := NewExtractor(emit)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := e.Feed(scanner.Text()); err != nil {
			return e.Stats(), err
		}
	}
	if err := scanner.Err(); err != nil {
		return e.Stats(), fmt.Errorf("read recording: %w", err)
	}
	err := e.Finish()
	return e.Stats(), err
}

// ExtractAll reads a whole recording and returns its trials.
func ExtractAll(r io.Reader) ([]eyedata.Trial, Stats, error) {
	var trials []eyedata.Trial
	stats, err := Extract(r, func(t eyedata.Trial) error {
		trials = append(trials, t)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return trials, stats, nil
}
