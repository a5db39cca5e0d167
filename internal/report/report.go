// Package report renders a per-recording HTML summary with go-echarts.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/fsutil"
	"github.com/banshee-data/asc2maf/internal/units"
)

// BinWidthMs is the width of a fixation-duration histogram bin.
const BinWidthMs = 50.0

// Path returns the report path for a MAF file: the same name with an .html
// extension.
func Path(mafPath string) string {
	return strings.TrimSuffix(mafPath, filepath.Ext(mafPath)) + ".html"
}

// Histogram is a fixation-duration histogram. Counts[i] covers
// [Dividers[i], Dividers[i+1]) milliseconds.
type Histogram struct {
	Dividers []float64
	Counts   []float64
}

// FixationDurations returns the durations in milliseconds of every fixation
// in trials, sorted ascending.
func FixationDurations(trials []eyedata.Trial) []float64 {
	var out []float64
	for _, t := range trials {
		for _, f := range t.Fixations {
			ms := units.IndexToMs(f.DurationIndices, t.FrequencyHz)
			if math.IsNaN(ms) || math.IsInf(ms, 0) {
				continue
			}
			out = append(out, ms)
		}
	}
	sort.Float64s(out)
	return out
}

// DurationHistogram bins sorted durations into BinWidthMs bins starting at
// zero. It returns an empty histogram when there is nothing to bin.
func DurationHistogram(sorted []float64) Histogram {
	if len(sorted) == 0 {
		return Histogram{}
	}
	last := sorted[len(sorted)-1]
	bins := int(math.Floor(last/BinWidthMs)) + 1
	dividers := make([]float64, bins+1)
	for i := range dividers {
		dividers[i] = float64(i) * BinWidthMs
	}
	return Histogram{
		Dividers: dividers,
		Counts:   stat.Histogram(nil, dividers, sorted, nil),
	}
}

// Render writes the report page for one recording.
func Render(w io.Writer, participant string, trials []eyedata.Trial) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Participant %s", participant)
	page.AddCharts(trialBar(participant, trials), durationBar(trials))
	return page.Render(w)
}

// Write renders the report into path through fs.
func Write(fs fsutil.FileSystem, path, participant string, trials []eyedata.Trial) error {
	var buf bytes.Buffer
	if err := Render(&buf, participant, trials); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func trialBar(participant string, trials []eyedata.Trial) *charts.Bar {
	x := make([]string, len(trials))
	samples := make([]opts.BarData, len(trials))
	fixations := make([]opts.BarData, len(trials))
	interpolated := make([]opts.BarData, len(trials))
	for i, t := range trials {
		x[i] = fmt.Sprintf("%d: %s", i+1, t.ID)
		samples[i] = opts.BarData{Value: len(t.Samples)}
		fixations[i] = opts.BarData{Value: len(t.Fixations)}
		interpolated[i] = opts.BarData{Value: t.InterpolatedCount()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{ChartID: "trials", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trials", Subtitle: fmt.Sprintf("participant=%s trials=%d", participant, len(trials))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("samples", samples).
		AddSeries("fixations", fixations).
		AddSeries("interpolated", interpolated)
	return bar
}

func durationBar(trials []eyedata.Trial) *charts.Bar {
	durations := FixationDurations(trials)
	h := DurationHistogram(durations)

	x := make([]string, len(h.Counts))
	y := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		x[i] = fmt.Sprintf("%g-%g", h.Dividers[i], h.Dividers[i+1])
		y[i] = opts.BarData{Value: c}
	}

	subtitle := "no fixations"
	if len(durations) > 0 {
		mean, std := stat.MeanStdDev(durations, nil)
		subtitle = fmt.Sprintf("n=%d mean=%.1fms sd=%.1fms", len(durations), mean, std)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{ChartID: "durations", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fixation duration (ms)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("fixations", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
