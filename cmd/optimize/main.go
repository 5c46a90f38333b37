// Command optimize searches species and food-supply parameters with
// CMA-ES for configurations where sheep and wolves coexist.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/scenario"
	"github.com/pthm-cable/ecosys/telemetry"
)

type options struct {
	configPath string
	input      string
	maxTime    float64
	seeds      int
	maxEvals   int
	population int
	outputDir  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.StringVar(&opts.input, "i", "", "Scenario file every evaluation starts from")
	flag.Float64Var(&opts.maxTime, "max-time", 300, "Maximum simulated seconds per run")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = gonum default)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(opts); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if opts.input == "" {
		return errors.New("-i is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	baseCfg := config.Cfg()

	doc, err := scenario.ReadFile(opts.input)
	if err != nil {
		return err
	}

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, doc, opts.maxTime, evalSeeds(opts.seeds), baseCfg)

	logFile, err := os.Create(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating evaluation log: %w", err)
	}
	defer logFile.Close()
	tr, err := newTracker(params, logFile)
	if err != nil {
		return err
	}

	// The search runs in the normalized [0, 1] space of every parameter.
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			survival, quality := evaluator.Last()
			if err := tr.record(raw, fitness, survival, quality); err != nil {
				slog.Warn("evaluation log", "error", err)
			}
			slog.Info("evaluated",
				"eval", tr.evals,
				"survival", math.Round(survival),
				"quality", quality,
				"best", tr.best,
			)
			return fitness
		},
	}
	settings := &optimize.Settings{FuncEvaluations: opts.maxEvals}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: opts.population}
	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"max_time", opts.maxTime,
	)
	if _, err := optimize.Minimize(problem, initX, settings, method); err != nil {
		slog.Info("optimization ended", "reason", err)
	}
	if tr.bestX == nil {
		return errors.New("no evaluation completed")
	}
	for i, spec := range params.Specs {
		slog.Info("best parameter", "name", spec.Name, "path", spec.Path, "value", tr.bestX[i])
	}

	best := *baseCfg
	params.ApplyToConfig(&best, tr.bestX)
	cfgPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := best.WriteYAML(cfgPath); err != nil {
		return err
	}
	slog.Info("best config saved", "path", cfgPath, "fitness", tr.best)

	return saveWindows(filepath.Join(opts.outputDir, "best_run"), evaluator.BestWindows())
}

// evalSeeds returns n fixed seeds so every evaluation sees the same worlds.
func evalSeeds(n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	return seeds
}

// tracker writes one CSV row per evaluation and keeps the best parameters.
type tracker struct {
	w     *csv.Writer
	evals int
	best  float64
	bestX []float64
}

func newTracker(params *ParamVector, w io.Writer) (*tracker, error) {
	header := []string{"eval", "fitness", "survival", "quality"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	t := &tracker{w: csv.NewWriter(w), best: math.Inf(1)}
	if err := t.w.Write(header); err != nil {
		return nil, fmt.Errorf("writing evaluation log header: %w", err)
	}
	return t, nil
}

// record logs the clamped values an evaluation ran with.
func (t *tracker) record(raw []float64, fitness, survival, quality float64) error {
	t.evals++
	if fitness < t.best {
		t.best = fitness
		t.bestX = append(t.bestX[:0], raw...)
	}

	row := []string{
		strconv.Itoa(t.evals),
		strconv.FormatFloat(fitness, 'f', 3, 64),
		strconv.FormatFloat(survival, 'f', 3, 64),
		strconv.FormatFloat(quality, 'f', 4, 64),
	}
	for _, v := range raw {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

// saveWindows writes the telemetry of the best run through the usual
// output manager. Nothing is written when there are no windows.
func saveWindows(dir string, windows []telemetry.WindowStats) error {
	if len(windows) == 0 {
		return nil
	}
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return err
	}
	for _, w := range windows {
		if err := om.WriteTelemetry(w); err != nil {
			om.Close()
			return err
		}
	}
	if err := om.Close(); err != nil {
		return err
	}
	slog.Info("best run telemetry saved", "dir", dir, "windows", len(windows))
	return nil
}
