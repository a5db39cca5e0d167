package maf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/asc2maf/internal/eyedata"
)

// ErrUnterminatedTrial is returned when the input ends inside a TRIAL block.
var ErrUnterminatedTrial = errors.New("trial not terminated by ENDTRIAL")

// ParseError reports a line that could not be decoded.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode reads a MAF file. Lines it does not know (microsaccade "M" lines,
// comments) are skipped. Binocular fixations are marked Interpolated, since
// the converter only synthesizes fixations for that eye.
func Decode(r io.Reader) (eyedata.Recording, error) {
	var (
		rec    eyedata.Recording
		trial  *eyedata.Trial
		lineNo int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		fail := func(err error) (eyedata.Recording, error) {
			return eyedata.Recording{}, &ParseError{Line: lineNo, Text: text, Err: err}
		}

		switch key := fields[0]; key {
		case keyParticipant:
			if len(fields) >= 2 {
				rec.Participant.Label = fields[1]
			}
		case keyPixelsPerDegree:
			if len(fields) < 2 {
				return fail(errors.New("missing value"))
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return fail(err)
			}
			rec.Participant.PixelsPerDegree = v
		case keyTrial:
			if trial != nil {
				return fail(errors.New("TRIAL inside an open trial"))
			}
			trial = &eyedata.Trial{Events: []eyedata.Event{}}
			if len(fields) >= 2 {
				trial.ID = fields[1]
			}
		case keyEndTrial:
			if trial == nil {
				return fail(errors.New("ENDTRIAL without TRIAL"))
			}
			rec.Trials = append(rec.Trials, *trial)
			trial = nil
		default:
			if trial == nil {
				continue
			}
			if err := decodeTrialLine(trial, fields); err != nil {
				return fail(err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return eyedata.Recording{}, fmt.Errorf("read maf: %w", err)
	}
	if trial != nil {
		return eyedata.Recording{}, fmt.Errorf("trial %q: %w", trial.ID, ErrUnterminatedTrial)
	}
	return rec, nil
}

func decodeTrialLine(t *eyedata.Trial, fields []string) error {
	switch fields[0] {
	case keyCoords:
		vals, err := parseFloats(fields[1:], 4)
		if err != nil {
			return err
		}
		t.Bounds = eyedata.Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	case keyFreq:
		vals, err := parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		t.FrequencyHz = vals[0]
	case keyStimulus:
		if len(fields) >= 2 {
			t.Stimulus = fields[1]
		}
	case keyFixation:
		if len(fields) < 6 {
			return fmt.Errorf("fixation has %d fields, want 6", len(fields))
		}
		eye, err := eyedata.ParseEye(fields[1])
		if err != nil {
			return err
		}
		ints, err := parseInts(fields[2:4])
		if err != nil {
			return err
		}
		pos, err := parseFloats(fields[4:], 2)
		if err != nil {
			return err
		}
		t.Fixations = append(t.Fixations, eyedata.Fixation{
			Eye:             eye,
			StartIndex:      ints[0],
			DurationIndices: ints[1],
			X:               pos[0],
			Y:               pos[1],
			Interpolated:    eye == eyedata.Binocular,
		})
	case string(eyedata.Left), string(eyedata.Right), string(eyedata.Binocular):
		if len(fields) < 4 {
			return fmt.Errorf("sample has %d fields, want 4", len(fields))
		}
		ints, err := parseInts(fields[1:2])
		if err != nil {
			return err
		}
		pos, err := parseFloats(fields[2:], 2)
		if err != nil {
			return err
		}
		t.Samples = append(t.Samples, eyedata.Sample{Eye: eyedata.Eye(fields[0]), TimeIndex: ints[0], X: pos[0], Y: pos[1]})
	case keyEvent:
		// E <name...> <start> <duration>
		if len(fields) < 4 {
			return fmt.Errorf("event has %d fields, want at least 4", len(fields))
		}
		n := len(fields)
		ints, err := parseInts(fields[n-2:])
		if err != nil {
			return err
		}
		t.Events = append(t.Events, eyedata.Event{
			Name:     strings.Join(fields[1:n-2], " "),
			Start:    ints[0],
			Duration: ints[1],
		})
	}
	return nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("got %d values, want %d", len(fields), n)
	}
	out := make([]float64, n)
	for i := range out {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
