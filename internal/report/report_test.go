package report

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/fsutil"
)

func trials() []eyedata.Trial {
	return []eyedata.Trial{
		{
			ID:          "7",
			FrequencyHz: 1000,
			Fixations: []eyedata.Fixation{
				{Eye: eyedata.Left, DurationIndices: 120},
				{Eye: eyedata.Right, DurationIndices: 20},
				{Eye: eyedata.Binocular, DurationIndices: 260, Interpolated: true},
			},
			Samples: []eyedata.Sample{{Eye: eyedata.Left}, {Eye: eyedata.Right}},
		},
		{
			ID:          "8",
			FrequencyHz: 500,
			Fixations:   []eyedata.Fixation{{Eye: eyedata.Left, DurationIndices: 30}},
		},
	}
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/data/exp002.html", Path("/data/exp002.maf"))
	assert.Equal(t, "exp002.html", Path("exp002"))
}

func TestFixationDurations(t *testing.T) {
	got := FixationDurations(trials())
	want := []float64{20, 60, 120, 260}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("durations mismatch (-want +got):\n%s", diff)
	}
}

func TestFixationDurationsSkipsInvalidFrequency(t *testing.T) {
	got := FixationDurations([]eyedata.Trial{{FrequencyHz: 0, Fixations: []eyedata.Fixation{{DurationIndices: 5}}}})
	assert.Empty(t, got)
}

func TestDurationHistogram(t *testing.T) {
	h := DurationHistogram([]float64{0, 20, 60, 120, 150, 260})
	assert.Equal(t, []float64{0, 50, 100, 150, 200, 250, 300}, h.Dividers)
	assert.Equal(t, []float64{2, 1, 1, 1, 0, 1}, h.Counts)

	empty := DurationHistogram(nil)
	assert.Empty(t, empty.Counts)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "002", trials()))

	html := buf.String()
	assert.Contains(t, html, "Participant 002")
	assert.Contains(t, html, "interpolated")
	assert.Contains(t, html, "Fixation duration (ms)")
	assert.Contains(t, html, "1: 7")
}

func TestRenderNoTrials(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "002", nil))
	assert.Contains(t, buf.String(), "no fixations")
}

func TestWrite(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.MkdirAll("/data", 0o755))

	require.NoError(t, Write(mem, "/data/exp002.html", "002", trials()))
	data, err := mem.ReadFile("/data/exp002.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")

	assert.Error(t, Write(mem, "/missing/exp002.html", "002", trials()))
}
