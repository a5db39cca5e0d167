package asc

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongEyeOrder is reported when the START line declares neither a
	// left-first nor a right-second eye order.
	ErrWrongEyeOrder = errors.New("wrong eye order")

	// ErrMissingFrequency is reported when a sample, fixation or trial end
	// needs the sampling frequency before any SAMPLES ... RATE line was seen.
	ErrMissingFrequency = errors.New("sampling frequency not set")

	// ErrMissingBounds is reported when a trial is emitted before any
	// GAZE_COORDS message was seen.
	ErrMissingBounds = errors.New("gaze coordinates not set")
)

// FormatError describes a recording whose eye declaration cannot be
// converted. It is fatal for the file.
type FormatError struct {
	Declared []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: START declares %v", ErrWrongEyeOrder, e.Declared)
}

func (e *FormatError) Unwrap() error { return ErrWrongEyeOrder }

// LineError attaches the 1-based input line number to a fatal error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
