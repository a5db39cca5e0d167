package testutil

import (
	"os"
	"strings"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestASCBuilder(t *testing.T) {
	t.Parallel()

	got := NewASC().
		Header(1000).
		TrialID(10002, "7").
		Show(10003, "img.png").
		Sample(10004, "715.2", "412.9", ".", ".").
		Efix("L", 10004, 10010, 641.2, 482.5).
		Hide(10011).
		String()

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8:\n%s", len(lines), got)
	}

	wantPrefixes := []string{"START", "SAMPLES", "MSG", "MSG", "MSG", "10004", "EFIX", "MSG"}
	for i, prefix := range wantPrefixes {
		if fields := strings.Fields(lines[i]); len(fields) == 0 || fields[0] != prefix {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if fields := strings.Fields(lines[6]); fields[4] != "7" {
		t.Errorf("EFIX duration = %s, want 7", fields[4])
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := WriteFile(t, t.TempDir(), "exp001.asc", "START\n")
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if string(data) != "START\n" {
		t.Errorf("content = %q", data)
	}
}
