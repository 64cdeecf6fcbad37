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
	"path/filepath"
	"syscall"

	"github.com/banshee-data/jetmet/internal/config"
	"github.com/banshee-data/jetmet/internal/diag"
	"github.com/banshee-data/jetmet/internal/event"
	"github.com/banshee-data/jetmet/internal/failure"
	"github.com/banshee-data/jetmet/internal/jetmet"
	"github.com/banshee-data/jetmet/internal/jetmet/jec"
	"github.com/banshee-data/jetmet/internal/jetmet/jer"
	"github.com/banshee-data/jetmet/internal/jetmet/jes"
	"github.com/banshee-data/jetmet/internal/ntuple"
	"github.com/banshee-data/jetmet/internal/pipeline"
	"github.com/banshee-data/jetmet/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON job configuration")
	eventsIn    = flag.String("events", "-", "Input events (JSON Lines); - reads stdin")
	eventsOut   = flag.String("out", "", "Output events (JSON Lines); - writes stdout (overrides outputs.events)")
	dbFile      = flag.String("db", "", "Path to the SQLite ntuple (overrides outputs.ntuple)")
	plotsDir    = flag.String("plots", "", "Directory for diagnostic PNG plots (overrides outputs.plots)")
	reportFile  = flag.String("report", "", "Path of the HTML diagnostics report (overrides outputs.report)")
	seed        = flag.Int64("seed", -1, "Random seed (overrides the config when >= 0)")
	workers     = flag.Int("workers", 0, "Number of workers (overrides the config when > 0)")
	progress    = flag.Int("progress", 10000, "Log progress every n events (0 disables)")
	debug       = flag.Bool("debug", false, "Log setup and per-stage diagnostics")
	trace       = flag.Bool("trace", false, "Log per-jet stage values (very verbose)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options are the resolved command-line settings of one run.
type options struct {
	Config   *config.JobConfig
	Events   string
	Out      string
	DB       string
	Plots    string
	Report   string
	Workers  int
	Progress int
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	setLogWriters(os.Stderr, *debug, *trace)
	log.Printf("%s starting", version.String())

	cfg, err := config.LoadJobConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *seed >= 0 {
		s := uint64(*seed)
		cfg.Seed = &s
	}
	if *workers > 0 {
		cfg.Workers = workers
	}

	outs := cfg.GetOutputs()
	opts := options{
		Config:   cfg,
		Events:   *eventsIn,
		Out:      override(*eventsOut, outs.Events),
		DB:       override(*dbFile, outs.Ntuple),
		Plots:    override(*plotsDir, outs.Plots),
		Report:   override(*reportFile, outs.Report),
		Workers:  cfg.GetWorkers(),
		Progress: *progress,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := run(ctx, opts)
	if err != nil {
		if failure.IsFatal(err) {
			log.Fatalf("fatal configuration error: %v", err)
		}
		log.Fatalf("run failed: %v", err)
	}
	log.Printf("processed %d events (%d skipped, %d jets, %d numeric guards)",
		stats.Events, stats.Skipped, stats.Jets, stats.Guards)
}

func override(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// setLogWriters routes the ops stream of every engine to w and enables the
// diag and trace streams on request.
func setLogWriters(w io.Writer, debug, trace bool) {
	var diagW, traceW io.Writer
	if debug || trace {
		diagW = w
	}
	if trace {
		traceW = w
	}
	jec.SetLogWriters(w, diagW, traceW)
	jer.SetLogWriters(w, diagW, traceW)
	jes.SetLogWriters(w, diagW, traceW)
	jetmet.SetLogWriters(w, diagW, traceW)
}

// run sets up the engines, streams the events through the pipeline and
// writes the requested outputs.
func run(ctx context.Context, o options) (pipeline.Stats, error) {
	var stats pipeline.Stats
	cfg := o.Config

	d := diag.New(diag.Options{ResolutionMeasurement: cfg.GetResolutionMeasurement()})
	engines, err := jetmet.Setup(cfg.Modifier(), cfg.ParameterFiles(), d)
	if err != nil {
		return stats, err
	}
	for _, w := range engines.Warnings {
		log.Printf("warning: %v", w)
	}

	in, closeIn, err := openInput(o.Events)
	if err != nil {
		return stats, err
	}
	defer closeIn()

	var sink pipeline.Sink
	if o.Out != "" {
		out, closeOut, err := openOutput(o.Out)
		if err != nil {
			return stats, err
		}
		defer closeOut()
		sink = event.NewWriter(out)
	}

	popts := pipeline.Options{Workers: o.Workers, ProgressEvery: o.Progress}
	var store *ntuple.Store
	if o.DB != "" {
		store, err = ntuple.Open(o.DB)
		if err != nil {
			return stats, fmt.Errorf("failed to open ntuple: %w", err)
		}
		defer store.Close()

		mc := engines.Config
		if _, err := store.BeginRun(ctx, ntuple.RunInfo{
			IsData:      mc.IsData,
			Corrections: mc.Corrections.String(),
			Systematic:  mc.Systematic.String(),
			NSigma:      mc.NSigma,
			Era:         mc.Era.String(),
			Seed:        mc.Seed,
			Workers:     o.Workers,
		}); err != nil {
			return stats, err
		}
		popts.Summaries = store
	}

	factory := func(worker int) (pipeline.Processor, error) {
		return engines.NewModifier(worker)
	}
	stats, err = pipeline.Run(ctx, event.NewReader(in), sink, factory, popts)
	if err != nil {
		return stats, err
	}

	if store != nil {
		if err := store.FinishRun(ctx, stats.Events, stats.Skipped, stats.Guards); err != nil {
			return stats, err
		}
	}
	if o.Plots != "" {
		files, err := d.SavePlots(o.Plots)
		if err != nil {
			return stats, fmt.Errorf("failed to save plots: %w", err)
		}
		log.Printf("wrote %d plots to %s", len(files), o.Plots)
	}
	if o.Report != "" {
		if err := writeReport(d, o.Report, cfg); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func writeReport(d *diag.Set, path string, cfg *config.JobConfig) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	mc := cfg.Modifier()
	title := fmt.Sprintf("jet/MET corrections [%s] systematic=%s", mc.Corrections, mc.Systematic)
	if err := d.WriteReport(f, title); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open events: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create events output: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			log.Printf("failed to close %s: %v", path, err)
		}
	}, nil
}
