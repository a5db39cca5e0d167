// Command asc2maf converts EyeLink ASCII recordings (.asc) into MAF files.
//
// Usage:
//
//	asc2maf [flags] <dir | file.asc...>
//
// A directory argument converts every .asc file directly inside it. With
// -watch the directory is watched and files are converted as they settle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/asc2maf/internal/config"
	"github.com/banshee-data/asc2maf/internal/convert"
	"github.com/banshee-data/asc2maf/internal/db"
	"github.com/banshee-data/asc2maf/internal/fsutil"
	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/timeutil"
	"github.com/banshee-data/asc2maf/internal/version"
	"github.com/banshee-data/asc2maf/internal/watch"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	workers    int
	plotDir    string
	report     bool
	catalog    string
	watch      bool
	version    bool
	quiet      bool
}

func parseFlags(args []string, stderr io.Writer) (options, *config.ConverterConfig, []string, error) {
	var o options
	fs := flag.NewFlagSet("asc2maf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: asc2maf [flags] <dir | file.asc...>\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.configPath, "config", "", "JSON config file")
	fs.IntVar(&o.workers, "workers", 1, "files converted in parallel")
	fs.StringVar(&o.plotDir, "plots", "", "write one PNG per trial into this directory")
	fs.BoolVar(&o.report, "report", false, "write an HTML report next to each MAF file")
	fs.StringVar(&o.catalog, "catalog", "", "record conversions in this SQLite database")
	fs.BoolVar(&o.watch, "watch", false, "watch the directory and convert files as they appear")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.BoolVar(&o.quiet, "quiet", false, "suppress progress and log output")
	if err := fs.Parse(args); err != nil {
		return o, nil, nil, err
	}

	// Only flags given on the command line override the config file and
	// environment.
	overlay := config.EmptyConfig()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			overlay.Workers = &o.workers
		case "plots":
			overlay.PlotDir = &o.plotDir
		case "report":
			overlay.Report = &o.report
		case "catalog":
			overlay.CatalogPath = &o.catalog
		}
	})
	return o, overlay, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, overlay, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	logger := log.New(stderr, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	monitoring.SetProgress(func(format string, v ...interface{}) {
		fmt.Fprintf(stdout, format+"\n", v...)
	})
	if o.quiet {
		monitoring.Mute()
	}

	if len(paths) == 0 {
		fmt.Fprintln(stderr, "asc2maf: no input given")
		return exitUsage
	}
	if o.watch && len(paths) != 1 {
		fmt.Fprintln(stderr, "asc2maf: -watch takes exactly one directory")
		return exitUsage
	}

	lookup, err := config.EnvLookup(config.DotEnvFile)
	if err != nil {
		fmt.Fprintf(stderr, "asc2maf: %v\n", err)
		return exitUsage
	}
	cfg, err := config.Resolve(o.configPath, lookup)
	if err != nil {
		fmt.Fprintf(stderr, "asc2maf: %v\n", err)
		return exitUsage
	}
	cfg.Merge(overlay)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "asc2maf: invalid configuration: %v\n", err)
		return exitUsage
	}

	fsys := fsutil.OSFileSystem{}
	driver := convert.NewDriver(fsys, convert.OptionsFromConfig(cfg))
	if path := cfg.GetCatalogPath(); path != "" {
		catalog, err := db.NewDB(path)
		if err != nil {
			fmt.Fprintf(stderr, "asc2maf: failed to open catalog %s: %v\n", path, err)
			return exitFailed
		}
		defer catalog.Close()
		driver.Catalog = catalog
	}

	if o.watch {
		return runWatch(ctx, driver, paths[0], cfg, stderr)
	}

	inputs, err := convert.CollectInputs(fsys, paths, cfg.GetInputExt())
	if err != nil {
		fmt.Fprintf(stderr, "asc2maf: %v\n", err)
		return exitFailed
	}
	sum, err := driver.Run(ctx, inputs)
	if err != nil {
		fmt.Fprintf(stderr, "asc2maf: %v\n", err)
		return exitFailed
	}
	if sum.Failed > 0 {
		monitoring.Logf("%d of %d files failed", sum.Failed, len(sum.Results))
		return exitFailed
	}
	return exitOK
}

func runWatch(ctx context.Context, driver *convert.Driver, dir string, cfg *config.ConverterConfig, stderr io.Writer) int {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(stderr, "asc2maf: -watch needs a directory, got %s\n", dir)
		return exitUsage
	}

	w := watch.New(dir, cfg.GetInputExt(), cfg.GetWatchDebounce(), timeutil.RealClock{})
	err = w.Run(ctx, func(paths []string) {
		if _, err := driver.Run(ctx, paths); err != nil {
			monitoring.Logf("watch: %v", err)
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "asc2maf: %v\n", err)
		return exitFailed
	}
	return exitOK
}
