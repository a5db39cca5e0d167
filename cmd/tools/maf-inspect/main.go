// Command maf-inspect prints a per-trial summary of MAF files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/asc2maf/internal/eyedata"
	"github.com/banshee-data/asc2maf/internal/maf"
	"github.com/banshee-data/asc2maf/internal/units"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("maf-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	degrees := fs.Bool("degrees", false, "report fixation dispersion in degrees of visual angle")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: maf-inspect [-degrees] file.maf...")
		return 2
	}

	code := 0
	for _, path := range fs.Args() {
		if err := inspect(path, *degrees, stdout); err != nil {
			fmt.Fprintf(stderr, "maf-inspect: %s: %v\n", path, err)
			code = 1
		}
	}
	return code
}

func inspect(path string, degrees bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := maf.Decode(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: participant %s, %d trials, %g px/deg\n",
		path, rec.Participant.Label, len(rec.Trials), rec.Participant.PixelsPerDegree)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	spread := "SD_X(px)"
	if degrees {
		spread = "SD_X(deg)"
	}
	fmt.Fprintf(tw, "TRIAL\tFREQ\tL\tR\tB\tFIX\tINTERP\tMEAN_MS\tSD_MS\t%s\n", spread)
	for _, t := range rec.Trials {
		s := summarize(t)
		sdX := s.sdX
		if degrees {
			sdX = units.PixelsToDegrees(sdX, rec.Participant.PixelsPerDegree)
		}
		fmt.Fprintf(tw, "%s\t%g\t%d\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t%.2f\n",
			t.ID, t.FrequencyHz, s.left, s.right, s.both, len(t.Fixations), t.InterpolatedCount(),
			s.meanMs, s.sdMs, sdX)
	}
	return tw.Flush()
}

type trialSummary struct {
	left, right, both int
	meanMs, sdMs      float64
	sdX               float64
}

// summarize counts samples per eye and describes the fixation durations and
// horizontal fixation spread. Statistics of fewer than two fixations are 0.
func summarize(t eyedata.Trial) trialSummary {
	var s trialSummary
	for _, smp := range t.Samples {
		switch smp.Eye {
		case eyedata.Left:
			s.left++
		case eyedata.Right:
			s.right++
		case eyedata.Binocular:
			s.both++
		}
	}

	durations := make([]float64, len(t.Fixations))
	xs := make([]float64, len(t.Fixations))
	for i, f := range t.Fixations {
		durations[i] = units.IndexToMs(f.DurationIndices, t.FrequencyHz)
		xs[i] = f.X
	}
	switch len(t.Fixations) {
	case 0:
	case 1:
		s.meanMs = durations[0]
	default:
		s.meanMs, s.sdMs = stat.MeanStdDev(durations, nil)
		s.sdX = stat.StdDev(xs, nil)
	}
	return s
}
