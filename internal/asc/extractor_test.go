package asc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/testutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

func extract(t *testing.T, asc string) ([]eyedata.Trial, Stats) {
	t.Helper()
	trials, stats, err := ExtractAll(strings.NewReader(asc))
	require.NoError(t, err)
	return trials, stats
}

func TestExtractSingleTrial(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		TrialID(10002, "1").
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Sample(10004, "100.0", "200.0", "110.0", "210.0").
		Sample(10005, "102.0", "204.0", "112.0", "214.0").
		Efix("L", 10004, 10005, 101.0, 202.0).
		Hide(10006).
		String()

	trials, stats := extract(t, asc)
	require.Len(t, trials, 1)

	want := eyedata.Trial{
		ID:          "1",
		Bounds:      eyedata.Bounds{MinX: 0, MinY: 0, MaxX: 1279, MaxY: 959},
		FrequencyHz: 1000,
		Stimulus:    "img.png",
		Fixations: []eyedata.Fixation{
			{Eye: eyedata.Left, StartIndex: 10004, DurationIndices: 2, X: 101, Y: 202},
			{Eye: eyedata.Binocular, StartIndex: 10004, DurationIndices: 1, X: 106, Y: 207, Interpolated: true},
		},
		Samples: []eyedata.Sample{
			{Eye: eyedata.Left, TimeIndex: 10004, X: 100, Y: 200},
			{Eye: eyedata.Right, TimeIndex: 10004, X: 110, Y: 210},
			{Eye: eyedata.Binocular, TimeIndex: 10004, X: 105, Y: 205},
			{Eye: eyedata.Left, TimeIndex: 10005, X: 102, Y: 204},
			{Eye: eyedata.Right, TimeIndex: 10005, X: 112, Y: 214},
			{Eye: eyedata.Binocular, TimeIndex: 10005, X: 107, Y: 209},
		},
		Events: []eyedata.Event{},
	}
	if diff := cmp.Diff(want, trials[0]); diff != "" {
		t.Errorf("trial mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, stats.TrialsStarted)
	assert.Equal(t, 1, stats.TrialsEmitted)
	assert.Equal(t, 0, stats.TrialsDiscarded)
}

func TestExtractDiscardsTrialWithoutUseMarker(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		TrialID(10002, "1").
		Show(10003, "img.png").
		Sample(10004, "100.0", "200.0", "110.0", "210.0").
		Efix("L", 10004, 10005, 101.0, 202.0).
		Hide(10006).
		String()

	trials, stats := extract(t, asc)
	assert.Empty(t, trials)
	assert.Equal(t, 1, stats.TrialsDiscarded)
}

func TestExtractEmitsOneTrialPerMarkedOffset(t *testing.T) {
	quietLogs(t)
	markers := []string{"showdisaku", "", "showdisvis", "showdisboth", ""}
	b := testutil.NewASC().Header(500)
	ts := 20000
	for i, marker := range markers {
		b.TrialID(ts, string(rune('a'+i))).Show(ts+1, "img.png")
		if marker != "" {
			b.Use(ts+2, marker)
		}
		b.Sample(ts+3, "1.0", "2.0", "3.0", "4.0").Hide(ts + 4)
		ts += 10
	}

	trials, stats := extract(t, b.String())
	require.Len(t, trials, 3)
	assert.Equal(t, []string{"a", "c", "d"}, []string{trials[0].ID, trials[1].ID, trials[2].ID})
	assert.Equal(t, 5, stats.TrialsStarted)
	assert.Equal(t, 3, stats.TrialsEmitted)
	assert.Equal(t, 2, stats.TrialsDiscarded)
}

func TestExtractWrongEyeOrder(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Start("RIGHT", "LEFT").
		Rate(1000).
		GazeCoords(0, 0, 1279, 959).
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Hide(10006).
		String()

	var emitted int
	_, err := Extract(strings.NewReader(asc), func(eyedata.Trial) error {
		emitted++
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongEyeOrder))

	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Line)
	assert.Zero(t, emitted)
}

func TestExtractAcceptedEyeOrders(t *testing.T) {
	quietLogs(t)
	for _, order := range [][2]string{{"LEFT", "RIGHT"}, {"LEFT", "SAMPLES"}, {"RIGHT", "RIGHT"}} {
		asc := testutil.NewASC().Start(order[0], order[1]).String()
		_, _, err := ExtractAll(strings.NewReader(asc))
		assert.NoError(t, err, "order %v", order)
	}
}

func TestExtractMissingDataMarkers(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Show(10003, "img.png").
		Use(10003, "showdisvis").
		Sample(10004, ".", ".", "110.0", "210.0").
		Sample(10005, "102.0", "204.0", ".", ".").
		Sample(10006, ".", ".", ".", ".").
		Hide(10007).
		String()

	trials, _ := extract(t, asc)
	require.Len(t, trials, 1)
	want := []eyedata.Sample{
		{Eye: eyedata.Right, TimeIndex: 10004, X: 110, Y: 210},
		{Eye: eyedata.Left, TimeIndex: 10005, X: 102, Y: 204},
	}
	if diff := cmp.Diff(want, trials[0].Samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractBinocularIsMidpoint(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Show(10003, "img.png").
		Use(10003, "showdisboth").
		Sample(10004, "640.5", "480.25", "641.5", "479.75").
		Hide(10007).
		String()

	trials, _ := extract(t, asc)
	require.Len(t, trials, 1)
	b := trials[0].SamplesFor(eyedata.Binocular)
	require.Len(t, b, 1)
	assert.Equal(t, 641.0, b[0].X)
	assert.Equal(t, 480.0, b[0].Y)
	assert.Equal(t, 10004, b[0].TimeIndex)
}

func TestExtractIgnoresDataOutsideTrials(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Sample(9000, "1.0", "1.0", "1.0", "1.0").
		Efix("L", 9000, 9010, 1, 1).
		Use(9011, "showdisaku").
		Hide(9012).
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Sample(10004, "5.0", "6.0", "7.0", "8.0").
		Hide(10007).
		Sample(10008, "1.0", "1.0", "1.0", "1.0").
		String()

	trials, _ := extract(t, asc)
	require.Len(t, trials, 1)
	assert.Len(t, trials[0].Samples, 3)
	assert.Empty(t, trials[0].Fixations)
}

func TestExtractRecordingStatePersistsAcrossTrials(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		TrialID(10000, "first").
		Show(10003, "a.png").
		Use(10003, "showdisaku").
		Hide(10007).
		Show(10013, "b.png").
		Use(10013, "showdisaku").
		Hide(10017).
		GazeCoords(10, 20, 1000, 700).
		TrialID(10020, "third").
		Show(10023, "c.png").
		Use(10023, "showdisaku").
		Hide(10027).
		String()

	trials, _ := extract(t, asc)
	require.Len(t, trials, 3)
	assert.Equal(t, "first", trials[0].ID)
	assert.Equal(t, "first", trials[1].ID)
	assert.Equal(t, "third", trials[2].ID)
	assert.Equal(t, "b.png", trials[1].Stimulus)
	assert.Equal(t, eyedata.Bounds{MaxX: 1279, MaxY: 959}, trials[1].Bounds)
	assert.Equal(t, eyedata.Bounds{MinX: 10, MinY: 20, MaxX: 1000, MaxY: 700}, trials[2].Bounds)
	for _, tr := range trials {
		assert.Equal(t, 1000.0, tr.FrequencyHz)
		assert.NotNil(t, tr.Events)
	}
}

func TestExtractTrialStateResetsBetweenTrials(t *testing.T) {
	quietLogs(t)
	// The second EFIX starts before the second trial's first sample but
	// after the first trial's one.
	asc := testutil.NewASC().
		Header(1000).
		Show(10003, "a.png").
		Use(10003, "showdisaku").
		Sample(10004, "1.0", "1.0", "1.0", "1.0").
		Hide(10007).
		Show(10103, "b.png").
		Use(10103, "showdisaku").
		Sample(10110, "2.0", "2.0", "2.0", "2.0").
		Efix("L", 10100, 10120, 2, 2).
		Hide(10121).
		String()

	trials, _ := extract(t, asc)
	require.Len(t, trials, 2)
	assert.Equal(t, "b.png", trials[1].Stimulus)
	assert.Len(t, trials[1].Samples, 3)
	require.NotEmpty(t, trials[1].Fixations)
	assert.Equal(t, 10110, trials[1].Fixations[0].StartIndex)
	assert.Equal(t, 11, trials[1].Fixations[0].DurationIndices)
}

func TestExtractDriftCorrection(t *testing.T) {
	quietLogs(t)
	tests := []struct {
		name      string
		hz        float64
		efixEye   string
		efixStart int
		efixEnd   int
		wantStart int
		wantDur   int
	}{
		{"left clamped at 1000 Hz", 1000, "L", 10000, 10020, 10010, 11},
		{"left clamped at 500 Hz", 500, "L", 10000, 10020, 5005, 5},
		{"left unmodified", 1000, "L", 10015, 10020, 10015, 6},
		{"right uses right first sample", 1000, "R", 10000, 10020, 10012, 9},
		{"duration floors at zero", 1000, "L", 9990, 9995, 10010, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asc := testutil.NewASC().
				Header(tt.hz).
				Show(10003, "img.png").
				Use(10003, "showdisaku").
				Sample(10010, "1.0", "1.0", ".", ".").
				Sample(10012, "1.0", "1.0", "3.0", "3.0").
				Efix(tt.efixEye, tt.efixStart, tt.efixEnd, 5, 5).
				Hide(10030).
				String()

			trials, _ := extract(t, asc)
			require.Len(t, trials, 1)
			require.NotEmpty(t, trials[0].Fixations)
			f := trials[0].Fixations[0]
			assert.False(t, f.Interpolated)
			assert.Equal(t, tt.wantStart, f.StartIndex)
			assert.Equal(t, tt.wantDur, f.DurationIndices)
		})
	}
}

func TestDriftCorrectionBounds(t *testing.T) {
	for _, hz := range []float64{250, 500, 1000, 2000} {
		for firstMs := 1000; firstMs < 1040; firstMs += 3 {
			first := firstSample{index: int(float64(firstMs) * hz / 1000), ms: float64(firstMs), ok: true}
			for startMs := 990; startMs < 1050; startMs += 2 {
				for _, durMs := range []float64{0, 1, 7, 30, 120} {
					ef := EfixLine{Eye: eyedata.Left, StartMs: float64(startMs), DurationMs: durMs}
					raw := correctFixation(ef, firstSample{}, hz)
					got := correctFixation(ef, first, hz)
					if got.StartIndex < first.index && raw.StartIndex >= first.index {
						t.Fatalf("start moved below first sample: %+v", got)
					}
					if got.StartIndex < min(raw.StartIndex, first.index) {
						t.Fatalf("start %d below first index %d", got.StartIndex, first.index)
					}
					if got.DurationIndices > raw.DurationIndices {
						t.Fatalf("duration grew from %d to %d (hz=%f start=%d first=%d dur=%f)",
							raw.DurationIndices, got.DurationIndices, hz, startMs, firstMs, durMs)
					}
					if got.DurationIndices < 0 {
						t.Fatalf("negative duration %d", got.DurationIndices)
					}
				}
			}
		}
	}
}

func TestExtractMissingFrequency(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Start("LEFT", "RIGHT").
		GazeCoords(0, 0, 1279, 959).
		Show(10003, "img.png").
		Sample(10004, "1.0", "1.0", "1.0", "1.0").
		String()

	_, _, err := ExtractAll(strings.NewReader(asc))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingFrequency)
	var le *LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 4, le.Line)
}

func TestExtractMissingBounds(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Start("LEFT", "RIGHT").
		Rate(1000).
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Hide(10007).
		String()

	_, _, err := ExtractAll(strings.NewReader(asc))
	assert.ErrorIs(t, err, ErrMissingBounds)
}

func TestExtractDiscardedTrialNeedsNoBounds(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Start("LEFT", "RIGHT").
		Rate(1000).
		Show(10003, "img.png").
		Hide(10007).
		String()

	trials, stats := extract(t, asc)
	assert.Empty(t, trials)
	assert.Equal(t, 1, stats.TrialsDiscarded)
}

func TestExtractOpenTrialAtEOFIsDiscarded(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Sample(10004, "1.0", "1.0", "1.0", "1.0").
		String()

	trials, stats := extract(t, asc)
	assert.Empty(t, trials)
	assert.Equal(t, 1, stats.TrialsDiscarded)
}

func TestExtractWithoutTrialID(t *testing.T) {
	quietLogs(t)
	b := testutil.NewASC().Header(1000)
	for _, start := range []int{10003, 10010} {
		b = b.Show(start, "img.png").
			Use(start, "showdisaku").
			Sample(start+1, "1.0", "1.0", "1.0", "1.0").
			Hide(start + 2)
	}

	trials, _ := extract(t, b.String())
	require.Len(t, trials, 2)
	assert.Equal(t, DefaultTrialID, trials[0].ID)
	assert.Equal(t, DefaultTrialID, trials[1].ID)
}

func TestExtractHandlerErrorStops(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Show(10003, "a.png").Use(10003, "showdisaku").Hide(10004).
		Show(10005, "b.png").Use(10005, "showdisaku").Hide(10006).
		String()

	boom := errors.New("disk full")
	calls := 0
	_, err := Extract(strings.NewReader(asc), func(eyedata.Trial) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestExtractCountsMalformedLines(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		Line("EFIX L 100 110").
		Line("SAMPLES GAZE RATE fast").
		String()

	_, stats := extract(t, asc)
	assert.Equal(t, 2, stats.MalformedLines)
	assert.Equal(t, 5, stats.Lines)
}

func TestExtractIsDeterministic(t *testing.T) {
	quietLogs(t)
	asc := testutil.NewASC().
		Header(1000).
		TrialID(10000, "7").
		Show(10003, "img.png").
		Use(10003, "showdisaku").
		Sample(10004, "100.0", "200.0", "110.0", "210.0").
		Sample(10005, "101.0", "201.0", "111.0", "211.0").
		Efix("R", 10004, 10005, 110.5, 210.5).
		Efix("L", 10004, 10005, 100.5, 200.5).
		Hide(10006).
		String()

	first, _ := extract(t, asc)
	second, _ := extract(t, asc)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated extraction differs:\n%s", diff)
	}
}
