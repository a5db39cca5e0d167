package maf

import (
	"bufio"
	"io"
	"strconv"

	"github.com/banshee-data/asc2maf/internal/eyedata"
)

// Writer serializes a participant header and trials. Errors are sticky: after
// the first failed write every call returns the same error.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// line writes the fields separated by spaces, followed by " \n".
func (w *Writer) line(fields ...string) {
	if w.err != nil {
		return
	}
	for _, f := range fields {
		if _, w.err = w.w.WriteString(f); w.err != nil {
			return
		}
		if w.err = w.w.WriteByte(' '); w.err != nil {
			return
		}
	}
	w.err = w.w.WriteByte('\n')
}

// WriteHeader writes the PARTICIPANT and PIXELSPERDEGREE lines.
func (w *Writer) WriteHeader(p eyedata.Participant) error {
	w.line(keyParticipant, p.Label)
	w.line(keyPixelsPerDegree, FormatFloat(p.PixelsPerDegree))
	return w.err
}

// WriteTrial writes one TRIAL ... ENDTRIAL block. Fixations, samples and
// events are written in slice order.
func (w *Writer) WriteTrial(t eyedata.Trial) error {
	b := t.Bounds
	w.line(keyTrial, t.ID)
	w.line(keyCoords, FormatFloat(b.MinX), FormatFloat(b.MinY), FormatFloat(b.MaxX), FormatFloat(b.MaxY))
	w.line(keyFreq, FormatFloat(t.FrequencyHz))
	if t.Stimulus != "" {
		w.line(keyStimulus, t.Stimulus)
	}
	for _, f := range t.Fixations {
		w.line(keyFixation, string(f.Eye), strconv.Itoa(f.StartIndex), strconv.Itoa(f.DurationIndices), FormatFloat(f.X), FormatFloat(f.Y))
	}
	for _, s := range t.Samples {
		w.line(string(s.Eye), strconv.Itoa(s.TimeIndex), FormatFloat(s.X), FormatFloat(s.Y))
	}
	for _, e := range t.Events {
		w.line(keyEvent, e.Name, strconv.Itoa(e.Start), strconv.Itoa(e.Duration))
	}
	if w.err == nil {
		_, w.err = w.w.WriteString(keyEndTrial + "\n")
	}
	return w.err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Encode writes a whole recording to out.
func Encode(out io.Writer, rec eyedata.Recording) error {
	w := NewWriter(out)
	if err := w.WriteHeader(rec.Participant); err != nil {
		return err
	}
	for _, t := range rec.Trials {
		if err := w.WriteTrial(t); err != nil {
			return err
		}
	}
	return w.Flush()
}
