// Package config provides configuration loading and access for the race engine.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Track     TrackConfig     `yaml:"track"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Race      RaceConfig      `yaml:"race"`
	Genetics  GeneticsConfig  `yaml:"genetics"`
	Valuation ValuationConfig `yaml:"valuation"`
	Shop      ShopConfig      `yaml:"shop"`
	Course    CourseConfig    `yaml:"course"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Career    CareerConfig    `yaml:"career"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// TrackConfig holds tile-sequence track parameters.
type TrackConfig struct {
	Length float64 `yaml:"length"` // Nominal track length in logical units
	Finish float64 `yaml:"finish"` // Finish distance (0 = use length)
}

// PhysicsConfig holds the per-tick movement and energy parameters.
type PhysicsConfig struct {
	BaseCost           float64 `yaml:"base_cost"`            // Energy drained per active tick on open ground
	TerrainBaseline    float64 `yaml:"terrain_baseline"`     // Swim/climb value that moves at full speed
	MinTerrainModifier float64 `yaml:"min_terrain_modifier"` // Floor for the water/rough modifier
	Jitter             float64 `yaml:"jitter"`               // Half-width of the multiplicative jitter (0 = deterministic)
}

// RaceConfig holds race loop parameters.
type RaceConfig struct {
	MaxTicks        int     `yaml:"max_ticks"`
	TickRate        int     `yaml:"tick_rate"`        // Physics ticks per second at 1x
	BroadcastRate   int     `yaml:"broadcast_rate"`   // Snapshots per second sent to spectators
	Lookahead       int     `yaml:"lookahead"`        // Terrain segments reported in snapshots
	LookaheadLength float64 `yaml:"lookahead_length"` // Length of each reported segment
	LaneSpacing     float64 `yaml:"lane_spacing"`     // Visual lane offset per entrant
	Prizes          []int   `yaml:"prizes"`           // Earnings by finishing place, first place first
	Participation   int     `yaml:"participation"`    // Earnings for every other placing
}

// Prize returns the earnings for placing at rank.
func (r RaceConfig) Prize(rank int) int {
	if rank >= 1 && rank <= len(r.Prizes) {
		return r.Prizes[rank-1]
	}
	return r.Participation
}

// GeneticsConfig holds mutation parameters.
type GeneticsConfig struct {
	MutationRate  float64 `yaml:"mutation_rate"`  // Probability a targeted gene is redrawn
	BreedMutation bool    `yaml:"breed_mutation"` // Mutate one random trait of every bred child
}

// ValuationConfig holds cost estimator weights.
type ValuationConfig struct {
	BaseCost       float64 `yaml:"base_cost"`
	SpeedWeight    float64 `yaml:"speed_weight"`
	PositionWeight float64 `yaml:"position_weight"` // Penalty per unit of Manhattan distance from the ideal position
	IdealX         float64 `yaml:"ideal_x"`
	IdealY         float64 `yaml:"ideal_y"`
}

// ShopConfig holds shop stock generation and pricing parameters.
type ShopConfig struct {
	BasePrice      int     `yaml:"base_price"`
	PriceScale     float64 `yaml:"price_scale"`
	EnergyDivisor  float64 `yaml:"energy_divisor"`   // Energy points per stat point
	BudgetBase     int     `yaml:"budget_base"`      // Stat points at level 0
	BudgetPerLevel int     `yaml:"budget_per_level"` // Extra stat points per level
	StockSize      int     `yaml:"stock_size"`
	MaxLevel       int     `yaml:"max_level"` // Highest level stock can be generated at
}

// CourseConfig holds the checkpoint track layout.
type CourseConfig struct {
	Width       float64            `yaml:"width"`
	Height      float64            `yaml:"height"`
	StartX      float64            `yaml:"start_x"`
	StartY      float64            `yaml:"start_y"`
	Checkpoints []CheckpointConfig `yaml:"checkpoints"`
	Zones       []ZoneConfig       `yaml:"zones"`
}

// CheckpointConfig defines one circular checkpoint.
type CheckpointConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// ZoneConfig defines a rectangular terrain zone on the checkpoint course.
type ZoneConfig struct {
	MinX    float64 `yaml:"min_x"`
	MinY    float64 `yaml:"min_y"`
	MaxX    float64 `yaml:"max_x"`
	MaxY    float64 `yaml:"max_y"`
	Terrain string  `yaml:"terrain"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow     int              `yaml:"perf_window"`
	WindowRaces    int              `yaml:"window_races"` // Races aggregated per windows.csv row
	HallOfFameSize int              `yaml:"hall_of_fame_size"`
	HallOfFame     HallOfFameConfig `yaml:"hall_of_fame"`
}

// HallOfFameConfig holds fitness weights for the hall of fame.
type HallOfFameConfig struct {
	WinWeight    float64 `yaml:"win_weight"`
	PodiumWeight float64 `yaml:"podium_weight"`
	FinishWeight float64 `yaml:"finish_weight"`
}

// ServerConfig holds spectator server parameters.
type ServerConfig struct {
	Addr            string  `yaml:"addr"`
	Speed           int     `yaml:"speed"`        // Initial speed multiplier (1, 2 or 4)
	IntermissionSec float64 `yaml:"intermission"` // Pause between live races
	Entrants        int     `yaml:"entrants"`
	Level           int     `yaml:"level"`
}

// CareerConfig holds the stable management rules used by batch runs.
type CareerConfig struct {
	StartingMoney int  `yaml:"starting_money"`
	RosterSize    int  `yaml:"roster_size"`
	RetireAge     int  `yaml:"retire_age"` // Turtles retire once they reach this age
	Bet           int  `yaml:"bet"`        // Staked on the racer each race; a win pays double
	Breed         bool `yaml:"breed"`      // Fill empty roster slots by breeding before buying
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	Finish            float64 // Effective finish distance
	Intermission      time.Duration
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

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects parameter combinations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.Physics.Validate(); err != nil {
		return err
	}
	switch {
	case c.Track.Length < 0:
		return fmt.Errorf("track.length must not be negative, got %v", c.Track.Length)
	case c.Race.TickRate <= 0:
		return fmt.Errorf("race.tick_rate must be positive, got %d", c.Race.TickRate)
	case c.Race.BroadcastRate <= 0:
		return fmt.Errorf("race.broadcast_rate must be positive, got %d", c.Race.BroadcastRate)
	case c.Genetics.MutationRate < 0 || c.Genetics.MutationRate > 1:
		return fmt.Errorf("genetics.mutation_rate must be in [0, 1], got %v", c.Genetics.MutationRate)
	}
	switch {
	case c.Shop.EnergyDivisor <= 0:
		return fmt.Errorf("shop.energy_divisor must be positive, got %v", c.Shop.EnergyDivisor)
	case c.Shop.BudgetBase < 0 || c.Shop.BudgetPerLevel < 0:
		return fmt.Errorf("shop.budget_base and shop.budget_per_level must not be negative")
	case c.Shop.MaxLevel < 0:
		return fmt.Errorf("shop.max_level must not be negative, got %d", c.Shop.MaxLevel)
	case c.Server.Level < 0 || c.Server.Level > c.Shop.MaxLevel:
		return fmt.Errorf("server.level must be between 0 and shop.max_level (%d), got %d", c.Shop.MaxLevel, c.Server.Level)
	}
	switch {
	case c.Career.RosterSize < 1:
		return fmt.Errorf("career.roster_size must be at least 1, got %d", c.Career.RosterSize)
	case c.Career.StartingMoney < 0 || c.Career.Bet < 0:
		return fmt.Errorf("career.starting_money and career.bet must not be negative")
	}
	if !ValidSpeed(c.Server.Speed) {
		return fmt.Errorf("server.speed must be 1, 2 or 4, got %d", c.Server.Speed)
	}
	return nil
}

// Validate rejects physics parameters that would stall or reverse a race.
func (p PhysicsConfig) Validate() error {
	switch {
	case p.BaseCost < 0:
		return fmt.Errorf("physics.base_cost must not be negative, got %v", p.BaseCost)
	case p.TerrainBaseline <= 0:
		return fmt.Errorf("physics.terrain_baseline must be positive, got %v", p.TerrainBaseline)
	case p.MinTerrainModifier <= 0:
		return fmt.Errorf("physics.min_terrain_modifier must be positive, got %v", p.MinTerrainModifier)
	case p.Jitter < 0 || p.Jitter >= 1:
		return fmt.Errorf("physics.jitter must be in [0, 1), got %v", p.Jitter)
	}
	return nil
}

// ValidSpeed reports whether n is a supported real-time speed multiplier.
func ValidSpeed(n int) bool {
	return n == 1 || n == 2 || n == 4
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TickInterval = time.Second / time.Duration(c.Race.TickRate)
	c.Derived.BroadcastInterval = time.Second / time.Duration(c.Race.BroadcastRate)
	c.Derived.Intermission = time.Duration(c.Server.IntermissionSec * float64(time.Second))

	c.Derived.Finish = c.Track.Finish
	if c.Derived.Finish <= 0 {
		c.Derived.Finish = c.Track.Length
	}
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
