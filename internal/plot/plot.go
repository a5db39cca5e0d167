// Package plot renders one PNG per trial showing the gaze samples and
// fixations in screen coordinates.
package plot

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/fsutil"
	"github.com/banshee-data/asc2maf/internal/security"
)

var (
	leftColor         = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	rightColor        = color.RGBA{R: 255, G: 127, B: 14, A: 160}
	fixationColor     = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	interpolatedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Plotter writes trial plots into a directory.
type Plotter struct {
	fs     fsutil.FileSystem
	dir    string
	Width  vg.Length
	Height vg.Length
}

// NewPlotter returns a Plotter writing into dir through fs. The directory is
// created on first use.
func NewPlotter(fs fsutil.FileSystem, dir string) *Plotter {
	return &Plotter{fs: fs, dir: dir, Width: 10 * vg.Inch, Height: 7.5 * vg.Inch}
}

// Dir returns the output directory.
func (p *Plotter) Dir() string { return p.dir }

// FileName returns the PNG name for the seq-th trial of a participant. Trial
// ids are not unique within a recording, so the sequence number is part of
// the name.
func FileName(participant string, seq int, trialID string) string {
	return fmt.Sprintf("%s_%03d_%s.png",
		security.SanitizeFilename(participant), seq, security.SanitizeFilename(trialID))
}

// PlotTrial renders trial and returns the path of the written file.
func (p *Plotter) PlotTrial(participant string, seq int, trial eyedata.Trial) (string, error) {
	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plot directory: %w", err)
	}
	path := filepath.Join(p.dir, FileName(participant, seq, trial.ID))
	// Symlinks only exist on disk.
	if _, onDisk := p.fs.(fsutil.OSFileSystem); onDisk {
		if err := security.ValidatePathWithinDirectory(path, p.dir); err != nil {
			return "", err
		}
	}

	pl, err := NewTrialPlot(participant, trial)
	if err != nil {
		return "", err
	}
	wt, err := pl.WriterTo(p.Width, p.Height, "png")
	if err != nil {
		return "", fmt.Errorf("failed to render trial %s: %w", trial.ID, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to encode trial %s: %w", trial.ID, err)
	}
	if err := p.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write plot %s: %w", path, err)
	}
	return path, nil
}

// NewTrialPlot builds the plot for one trial: left and right samples as
// points, fixations as rings. The axes span the trial bounds with y growing
// downwards as on screen.
func NewTrialPlot(participant string, trial eyedata.Trial) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Participant %s - Trial %s", participant, trial.ID)
	if trial.Stimulus != "" {
		p.Title.Text += "\n" + trial.Stimulus
	}
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.X.Min, p.X.Max = trial.Bounds.MinX, trial.Bounds.MaxX
	p.Y.Min, p.Y.Max = trial.Bounds.MinY, trial.Bounds.MaxY
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	var fixations, interpolated plotter.XYs
	for _, f := range trial.Fixations {
		pt := plotter.XY{X: f.X, Y: f.Y}
		if f.Interpolated {
			interpolated = append(interpolated, pt)
		} else {
			fixations = append(fixations, pt)
		}
	}

	series := []struct {
		name  string
		pts   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
		size  vg.Length
	}{
		{"left", samplePoints(trial, eyedata.Left), leftColor, draw.CircleGlyph{}, vg.Points(1.5)},
		{"right", samplePoints(trial, eyedata.Right), rightColor, draw.CircleGlyph{}, vg.Points(1.5)},
		{"fixation", fixations, fixationColor, draw.RingGlyph{}, vg.Points(6)},
		{"interpolated", interpolated, interpolatedColor, draw.BoxGlyph{}, vg.Points(5)},
	}
	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return nil, fmt.Errorf("trial %s %s points: %w", trial.ID, s.name, err)
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Shape = s.shape
		sc.GlyphStyle.Radius = s.size
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}
	p.Legend.Top = true

	return p, nil
}

func samplePoints(trial eyedata.Trial, eye eyedata.Eye) plotter.XYs {
	samples := trial.SamplesFor(eye)
	if len(samples) == 0 {
		return nil
	}
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: s.X, Y: s.Y}
	}
	return pts
}
