// Package testutil provides shared test utilities and fixtures.
//
// ASC builds synthetic EyeLink ASCII recordings line by line so tests can
// state exactly which events a recording contains.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// ASC accumulates the lines of a synthetic recording.
type ASC struct {
	lines []string
}

// NewASC starts an empty recording.
func NewASC() *ASC {
	return &ASC{}
}

// Line appends a raw line.
func (a *ASC) Line(format string, args ...any) *ASC {
	a.lines = append(a.lines, fmt.Sprintf(format, args...))
	return a
}

// Header appends the preamble of a binocular 1000 Hz recording on a
// 1280x960 screen.
func (a *ASC) Header(hz float64) *ASC {
	return a.Start("LEFT", "RIGHT").
		Rate(hz).
		GazeCoords(0, 0, 1279, 959)
}

// Start appends a START line declaring the two eye columns.
func (a *ASC) Start(first, second string) *ASC {
	return a.Line("START\t10000 \t%s\t%s\tSAMPLES\tEVENTS", first, second)
}

// Rate appends a SAMPLES line with the given sampling rate.
func (a *ASC) Rate(hz float64) *ASC {
	return a.Line("SAMPLES\tGAZE\tLEFT\tRIGHT\tRATE\t%.2f\tTRACKING\tCR\tFILTER\t2", hz)
}

// GazeCoords appends the screen bounds message.
func (a *ASC) GazeCoords(minX, minY, maxX, maxY float64) *ASC {
	return a.Line("MSG\t10001 GAZE_COORDS %.2f %.2f %.2f %.2f", minX, minY, maxX, maxY)
}

// TrialID appends a TRIALID message.
func (a *ASC) TrialID(ts int, id string) *ASC {
	return a.Line("MSG\t%d TRIALID %s", ts, id)
}

// Show appends the stimulus onset message that opens a trial.
func (a *ASC) Show(ts int, path string) *ASC {
	return a.Line("MSG\t%d stim showbild %s", ts, path)
}

// Use appends a use marker (showdisaku, showdisvis or showdisboth).
func (a *ASC) Use(ts int, marker string) *ASC {
	return a.Line("MSG\t%d stim %s", ts, marker)
}

// Hide appends the stimulus offset message that closes a trial.
func (a *ASC) Hide(ts int) *ASC {
	return a.Line("MSG\t%d stim hidebild", ts)
}

// Sample appends a binocular sample row. Pass "." for a missing value.
func (a *ASC) Sample(ts int, lx, ly, rx, ry string) *ASC {
	return a.Line("%d\t  %s\t  %s\t 1013.0\t  %s\t  %s\t 1008.0\t.....", ts, lx, ly, rx, ry)
}

// Efix appends an end-of-fixation event.
func (a *ASC) Efix(eye string, start, end int, x, y float64) *ASC {
	return a.Line("EFIX %s   %d\t%d\t%d\t  %.1f\t  %.1f\t   1203", eye, start, end, end-start+1, x, y)
}

// String returns the recording with a trailing newline.
func (a *ASC) String() string {
	return strings.Join(a.lines, "\n") + "\n"
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
