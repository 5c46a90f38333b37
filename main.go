package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/feed"
	"github.com/pthm-cable/ecosys/persistence"
	"github.com/pthm-cable/ecosys/scenario"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/telemetry"
)

type options struct {
	input       string
	output      string
	time        float64
	dt          float64
	mode        string
	configPath  string
	seed        int64
	outputDir   string
	dbPath      string
	serve       string
	pace        float64
	snapshotDir string
	logStats    bool
}

func main() {
	var opts options

	// CLI flags
	flag.StringVar(&opts.input, "i", "", "Initial scenario file (JSON or YAML)")
	flag.StringVar(&opts.output, "o", "", "Output file for the batch result (empty = stdout)")
	flag.Float64Var(&opts.time, "t", 0, "Simulated seconds to run (0 = use config)")
	flag.Float64Var(&opts.dt, "dt", 0, "Simulated seconds per step (0 = use config)")
	flag.StringVar(&opts.mode, "m", "batch", "Execution mode: batch")
	flag.StringVar(&opts.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flag.Int64Var(&opts.seed, "seed", 0, "RNG seed (0 = use config)")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite archive for run telemetry and snapshots")
	flag.StringVar(&opts.serve, "serve", "", "Address for the observer feed, e.g. :8080")
	flag.Float64Var(&opts.pace, "pace", 0, "Simulated seconds per wall-clock second (0 = as fast as possible)")
	flag.StringVar(&opts.snapshotDir, "snapshot-dir", "", "Directory for bookmark snapshot files")
	flag.BoolVar(&opts.logStats, "log-stats", false, "Output stats via slog")

	flag.Parse()

	// Logs go to stderr so the batch result can go to stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(opts); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	switch opts.mode {
	case "batch":
	case "gui":
		return errors.New("gui mode is not available in this build; use -serve to stream state")
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.input == "" {
		return errors.New("batch mode requires an input file (-i)")
	}

	// Initialize config before anything else
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()

	simTime := cfg.Run.Time
	if opts.time > 0 {
		simTime = opts.time
	}
	dt := cfg.Run.DT
	if opts.dt > 0 {
		dt = opts.dt
	}
	seed := cfg.Run.Seed
	if opts.seed != 0 {
		seed = opts.seed
	}

	doc, err := scenario.ReadFile(opts.input)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	s, err := sim.New(cfg, rng)
	if err != nil {
		return err
	}

	// Telemetry
	monitor := telemetry.NewMonitor(cfg, s, seed)
	monitor.SetLogStats(opts.logStats)
	monitor.SetPerf(telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow))
	if opts.snapshotDir != "" {
		monitor.SetSnapshotDir(opts.snapshotDir, true)
	}

	om, err := telemetry.NewOutputManager(opts.outputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := om.Close(); err != nil {
			slog.Error("closing outputs", "error", err)
		}
	}()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	monitor.SetOutput(om)

	var archived *persistence.Run
	if opts.dbPath != "" {
		archive, err := persistence.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer archive.Close()

		cfgYAML, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		archived, err = archive.StartRun(persistence.RunInfo{
			Seed:     seed,
			DT:       dt,
			Scenario: opts.input,
			Config:   string(cfgYAML),
		})
		if err != nil {
			return err
		}
		monitor.AddSink(archived)
		slog.Info("archiving run", "db", opts.dbPath, "run", archived.ID)
	}
	monitor.Attach()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.serve != "" {
		hub := feed.NewHub(cfg.Feed)
		s.Subscribe(hub)
		monitor.OnWindow(hub.PublishWindow)

		mux := http.NewServeMux()
		mux.Handle("/feed", hub.Handler())
		mux.Handle("/state", hub.StateHandler())
		srv := &http.Server{Addr: opts.serve, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			slog.Info("serving feed", "addr", opts.serve)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("feed server", "error", err)
				stop()
			}
		}()
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := scenario.Load(s, doc, scenario.NewFactories(cfg, rng)); err != nil {
		return err
	}

	slog.Info("starting batch simulation",
		"input", opts.input,
		"seed", seed,
		"time", simTime,
		"dt", dt,
		"animals", s.Len(),
	)

	result, runErr := scenario.RunContext(ctx, s, simTime, dt, opts.pace)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	monitor.Flush()
	if archived != nil {
		if err := archived.Finish(s.Time()); err != nil {
			slog.Error("finishing archived run", "error", err)
		}
	}
	if runErr != nil {
		slog.Info("interrupted", "time", s.Time())
	}

	if err := writeResult(opts.output, result); err != nil {
		return err
	}
	slog.Info("simulation finished",
		"time", s.Time(),
		"animals", s.Len(),
		"windows", monitor.Windows(),
	)
	return nil
}

// writeResult writes the batch document to path, or stdout when path is empty.
func writeResult(path string, doc sim.BatchDoc) (err error) {
	if path == "" {
		return scenario.WriteBatch(os.Stdout, doc)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()
	return scenario.WriteBatch(f, doc)
}
