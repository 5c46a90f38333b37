// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Run       RunConfig       `yaml:"run"`
	Animals   AnimalsConfig   `yaml:"animals"`
	Sheep     SpeciesConfig   `yaml:"sheep"`
	Wolf      SpeciesConfig   `yaml:"wolf"`
	Regions   RegionsConfig   `yaml:"regions"`
	Fertility FertilityConfig `yaml:"fertility"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Bookmarks BookmarksConfig `yaml:"bookmarks"`
	Feed      FeedConfig      `yaml:"feed"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds map dimensions and the region grid.
type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Rows   int `yaml:"rows"`
	Cols   int `yaml:"cols"`
}

// RunConfig holds batch run defaults.
type RunConfig struct {
	DT   float64 `yaml:"dt"`
	Time float64 `yaml:"time"` // simulated seconds to run in batch mode
	Seed int64   `yaml:"seed"`
}

// AnimalsConfig holds parameters shared by every species.
type AnimalsConfig struct {
	MaxEnergy           float64 `yaml:"max_energy"`
	MaxDesire           float64 `yaml:"max_desire"`
	MateDesire          float64 `yaml:"mate_desire"`          // desire above which animals look for a mate
	InteractionDistance float64 `yaml:"interaction_distance"` // contact threshold for mating, killing, destinations
	BirthProbability    float64 `yaml:"birth_probability"`
	EnergySpeedFactor   float64 `yaml:"energy_speed_factor"` // speed *= exp((energy-max)*factor)
	SpeedJitter         float64 `yaml:"speed_jitter"`        // relative jitter of speed at creation
	OffspringJitter     float64 `yaml:"offspring_jitter"`    // relative jitter of inherited sight and speed
	OffspringSpread     float64 `yaml:"offspring_spread"`    // scale of the birth offset from the parent
}

// SpeciesConfig holds per-species baselines and multipliers.
type SpeciesConfig struct {
	Code         string  `yaml:"code"`
	Sight        float64 `yaml:"sight"`
	Speed        float64 `yaml:"speed"`
	MaxAge       float64 `yaml:"max_age"`
	EnergyDrain  float64 `yaml:"energy_drain"`  // energy lost per second at pace 1
	DesireGain   float64 `yaml:"desire_gain"`   // desire gained per second
	PursuitSpeed float64 `yaml:"pursuit_speed"` // speed multiplier when fleeing or chasing
	PursuitDrain float64 `yaml:"pursuit_drain"` // energy drain multiplier when fleeing or chasing

	// Carnivores only
	HungerThreshold float64 `yaml:"hunger_threshold"`
	KillReward      float64 `yaml:"kill_reward"`
	MatingPenalty   float64 `yaml:"mating_penalty"`
}

// RegionsConfig holds food supply parameters.
type RegionsConfig struct {
	Yield          float64 `yaml:"yield"`           // herbivore food per second in an uncrowded region
	CrowdThreshold float64 `yaml:"crowd_threshold"` // herbivores a region feeds without penalty
	CrowdDecay     float64 `yaml:"crowd_decay"`     // exponential penalty per extra herbivore
	DynamicFood    float64 `yaml:"dynamic_food"`    // default stock of a dynamic region
	DynamicFactor  float64 `yaml:"dynamic_factor"`  // default regrowth of a dynamic region
	RegrowChance   float64 `yaml:"regrow_chance"`   // probability a dynamic region regrows in a step
}

// FertilityConfig holds noise parameters for seeding dynamic regions.
type FertilityConfig struct {
	Frequency   float64 `yaml:"frequency"`   // noise frequency per grid cell
	Octaves     int     `yaml:"octaves"`     // FBM octaves
	Persistence float64 `yaml:"persistence"` // amplitude multiplier per octave
	MinFood     float64 `yaml:"min_food"`
	MaxFood     float64 `yaml:"max_food"`
	MinFactor   float64 `yaml:"min_factor"`
	MaxFactor   float64 `yaml:"max_factor"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // seconds of simulated time per window
	BookmarkHistorySize int     `yaml:"bookmark_history_size"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	PreyCrash        PreyCrashConfig        `yaml:"prey_crash"`
	PredatorRecovery PredatorRecoveryConfig `yaml:"predator_recovery"`
	StableEcosystem  StableEcosystemConfig  `yaml:"stable_ecosystem"`
}

// PreyCrashConfig holds prey crash detection parameters.
type PreyCrashConfig struct {
	DropPercent float64 `yaml:"drop_percent"`
	MinDrop     int     `yaml:"min_drop"`
}

// PredatorRecoveryConfig holds predator recovery detection parameters.
type PredatorRecoveryConfig struct {
	MinPopulation      int `yaml:"min_population"`
	RecoveryMultiplier int `yaml:"recovery_multiplier"`
	MinFinal           int `yaml:"min_final"`
}

// StableEcosystemConfig holds stable ecosystem detection parameters.
type StableEcosystemConfig struct {
	MinPrey       int     `yaml:"min_prey"`
	MinPred       int     `yaml:"min_pred"`
	CVThreshold   float64 `yaml:"cv_threshold"`
	StableWindows int     `yaml:"stable_windows"`
}

// FeedConfig holds observer feed parameters.
type FeedConfig struct {
	ClientBuffer int `yaml:"client_buffer"` // frames queued per client before dropping
	Every        int `yaml:"every"`         // publish one frame per this many steps
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StepsPerWindow int     // Telemetry.StatsWindow / Run.DT, at least 1
	CellWidth      int     // World.Width / World.Cols
	CellHeight     int     // World.Height / World.Rows
	InteractionSq  float64 // InteractionDistance squared
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world size must be positive, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.World.Rows <= 0 || c.World.Cols <= 0 {
		return fmt.Errorf("world grid must be positive, got %d rows x %d cols", c.World.Rows, c.World.Cols)
	}
	if c.Run.DT <= 0 {
		return fmt.Errorf("run.dt must be positive, got %g", c.Run.DT)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.StepsPerWindow = 1
	if c.Run.DT > 0 {
		if n := int(c.Telemetry.StatsWindow / c.Run.DT); n > 1 {
			c.Derived.StepsPerWindow = n
		}
	}
	if c.World.Cols > 0 {
		c.Derived.CellWidth = c.World.Width / c.World.Cols
	}
	if c.World.Rows > 0 {
		c.Derived.CellHeight = c.World.Height / c.World.Rows
	}
	d := c.Animals.InteractionDistance
	c.Derived.InteractionSq = d * d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
