// Package convert drives the conversion of ASC recordings into MAF files and
// the optional outputs that go with them.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/asc2maf/internal/asc"
	"github.com/banshee-data/asc2maf/internal/config"
	"github.com/banshee-data/asc2maf/internal/db"
	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/fsutil"
	"github.com/banshee-data/asc2maf/internal/maf"
	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/plot"
	"github.com/banshee-data/asc2maf/internal/report"
	"github.com/banshee-data/asc2maf/internal/timeutil"
)

// Options control a conversion run.
type Options struct {
	PixelsPerDegree  float64
	InputExt         string
	OutputExt        string
	ParticipantStart int
	ParticipantEnd   int
	Workers          int
	PlotDir          string // empty disables plots
	Report           bool
}

// OptionsFromConfig resolves the defaults of cfg.
func OptionsFromConfig(cfg *config.ConverterConfig) Options {
	return Options{
		PixelsPerDegree:  cfg.GetPixelsPerDegree(),
		InputExt:         cfg.GetInputExt(),
		OutputExt:        cfg.GetOutputExt(),
		ParticipantStart: cfg.GetParticipantStart(),
		ParticipantEnd:   cfg.GetParticipantEnd(),
		Workers:          cfg.GetWorkers(),
		PlotDir:          cfg.GetPlotDir(),
		Report:           cfg.GetReport(),
	}
}

// Catalog records conversion runs. *db.DB implements it.
type Catalog interface {
	StartRun(id string, startedAt time.Time) error
	FinishRun(id string, finishedAt time.Time, filesOK, filesFailed int) error
	RecordFile(rec db.FileRecord, trials []db.TrialRecord) error
}

// Result is the outcome of converting one recording.
type Result struct {
	Input       string
	Output      string
	Participant string
	Stats       asc.Stats
	Trials      []db.TrialRecord
	Plots       []string
	Report      string
	Err         error
}

// Summary is the outcome of a run, with results in input order.
type Summary struct {
	RunID   string
	Results []Result
	OK      int
	Failed  int
}

// Err returns an error naming the failed files, or nil when every file
// converted.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Driver converts recordings. Catalog and Clock may be set before the first
// Run.
type Driver struct {
	fs      fsutil.FileSystem
	opts    Options
	plotter *plot.Plotter

	Catalog Catalog
	Clock   timeutil.Clock
	NewID   func() string
}

// NewDriver returns a Driver reading and writing through fsys.
func NewDriver(fsys fsutil.FileSystem, opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	d := &Driver{
		fs:    fsys,
		opts:  opts,
		Clock: timeutil.RealClock{},
		NewID: uuid.NewString,
	}
	if opts.PlotDir != "" {
		d.plotter = plot.NewPlotter(fsys, opts.PlotDir)
	}
	return d
}

// Options returns the options the driver runs with.
func (d *Driver) Options() Options { return d.opts }

// Run converts inputs with up to Options.Workers files in flight. Each
// result is reported, and recorded in the catalog, in input order as soon as
// it and every earlier result are done. Cancelling ctx stops scheduling new
// files; unscheduled files fail with the context error. The returned error is
// only set when the catalog cannot be written.
func (d *Driver) Run(ctx context.Context, inputs []string) (Summary, error) {
	sum := Summary{RunID: d.NewID(), Results: make([]Result, len(inputs))}
	if d.Catalog != nil {
		if err := d.Catalog.StartRun(sum.RunID, d.Clock.Now()); err != nil {
			return sum, err
		}
	}

	done := make([]chan struct{}, len(inputs))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	go func() {
		for i, in := range inputs {
			if err := ctx.Err(); err != nil {
				sum.Results[i] = Result{Input: in, Output: OutputPath(in, d.opts.OutputExt), Err: err}
				close(done[i])
				continue
			}
			g.Go(func() error {
				sum.Results[i] = d.ConvertFile(in)
				close(done[i])
				return nil
			})
		}
	}()

	var catalogErr error
	for i := range inputs {
		<-done[i]
		r := sum.Results[i]
		d.reportResult(r)
		if r.Err != nil {
			sum.Failed++
		} else {
			sum.OK++
		}
		if d.Catalog != nil && catalogErr == nil {
			catalogErr = d.Catalog.RecordFile(fileRecord(sum.RunID, r), r.Trials)
		}
	}
	_ = g.Wait()

	if d.Catalog != nil && catalogErr == nil {
		catalogErr = d.Catalog.FinishRun(sum.RunID, d.Clock.Now(), sum.OK, sum.Failed)
	}
	if catalogErr != nil {
		return sum, fmt.Errorf("catalog: %w", catalogErr)
	}
	return sum, nil
}

func (d *Driver) reportResult(r Result) {
	monitoring.Progressf("Converting %s to %s", r.Input, r.Output)
	if r.Err != nil {
		monitoring.Logf("convert: %s: %v", r.Input, r.Err)
		return
	}
	s := r.Stats
	if s.MalformedLines > 0 || s.TrialsDiscarded > 0 {
		monitoring.Logf("convert: %s: %d trials, %d discarded, %d malformed lines",
			r.Input, s.TrialsEmitted, s.TrialsDiscarded, s.MalformedLines)
	}
}

// ConvertFile converts one recording. The MAF file is written only when the
// whole recording converted; on error nothing is written.
func (d *Driver) ConvertFile(input string) Result {
	res := Result{
		Input:       input,
		Output:      OutputPath(input, d.opts.OutputExt),
		Participant: ParticipantLabel(input, d.opts.ParticipantStart, d.opts.ParticipantEnd),
	}

	rec, stats, err := d.extract(input, res.Participant)
	res.Stats = stats
	if err != nil {
		res.Err = err
		return res
	}

	var buf bytes.Buffer
	if err := maf.Encode(&buf, rec); err != nil {
		res.Err = fmt.Errorf("failed to encode: %w", err)
		return res
	}
	if err := d.fs.WriteFile(res.Output, buf.Bytes(), 0o644); err != nil {
		res.Err = fmt.Errorf("failed to write %s: %w", res.Output, err)
		return res
	}

	res.Trials = make([]db.TrialRecord, len(rec.Trials))
	for i, t := range rec.Trials {
		res.Trials[i] = db.TrialRecord{
			TrialID:      t.ID,
			Stimulus:     t.Stimulus,
			Samples:      len(t.Samples),
			Fixations:    len(t.Fixations),
			Interpolated: t.InterpolatedCount(),
		}
	}

	// Plots and reports are extras; their failures are logged and do not
	// fail the conversion.
	if d.plotter != nil {
		for i, t := range rec.Trials {
			path, err := d.plotter.PlotTrial(res.Participant, i, t)
			if err != nil {
				monitoring.Logf("convert: %s: plot trial %s: %v", input, t.ID, err)
				continue
			}
			res.Plots = append(res.Plots, path)
		}
	}
	if d.opts.Report {
		path := report.Path(res.Output)
		if err := report.Write(d.fs, path, res.Participant, rec.Trials); err != nil {
			monitoring.Logf("convert: %s: %v", input, err)
		} else {
			res.Report = path
		}
	}
	return res
}

func (d *Driver) extract(input, participant string) (eyedata.Recording, asc.Stats, error) {
	rec := eyedata.Recording{
		Participant: eyedata.Participant{Label: participant, PixelsPerDegree: d.opts.PixelsPerDegree},
	}
	f, err := d.fs.Open(input)
	if err != nil {
		return rec, asc.Stats{}, fmt.Errorf("failed to open: %w", err)
	}
	defer f.Close()

	trials, stats, err := asc.ExtractAll(f)
	if err != nil {
		return rec, stats, err
	}
	rec.Trials = trials
	return rec, stats, nil
}

func fileRecord(runID string, r Result) db.FileRecord {
	rec := db.FileRecord{
		RunID:           runID,
		InputPath:       r.Input,
		OutputPath:      r.Output,
		Participant:     r.Participant,
		Trials:          len(r.Trials),
		Status:          db.StatusConverted,
		Lines:           r.Stats.Lines,
		MalformedLines:  r.Stats.MalformedLines,
		TrialsDiscarded: r.Stats.TrialsDiscarded,
	}
	if r.Err != nil {
		rec.Status = db.StatusFailed
		rec.Error = r.Err.Error()
	}
	return rec
}
