package evo

import (
	"errors"
	"fmt"

	"cachega/internal/genome"
	"cachega/internal/lrucache"
	"cachega/internal/model"
	"cachega/internal/trace"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrEmptyPopulation = errors.New("population is empty")
	ErrPopulationSize  = errors.New("population size invariant violated")
)

const (
	DefaultPopulationSize       = 100
	DefaultElitismPercentage    = 5
	DefaultMutationRate         = 0.05
	DefaultMaxGenerations       = 400
	DefaultConvergenceAllowance = 25
	DefaultSelectionPoolRatio   = 0.5
	DefaultCrossover            = "UX"
)

// Config is the complete parameter set of one run. It is passed by value and
// never modified by the controller.
type Config struct {
	PopulationSize       int
	ElitismPercentage    int
	MutationRate         float64
	SegmentSwitchRate    float64
	MaxGenerations       int
	ConvergenceAllowance int
	ChromosomeLength     int
	CacheSets            int
	CacheWays            int
	SelectionPoolRatio   float64
	Crossover            string
	Seed                 int64
	Workers              int
}

func DefaultConfig() Config {
	geometry := lrucache.DefaultGeometry()
	return Config{
		PopulationSize:       DefaultPopulationSize,
		ElitismPercentage:    DefaultElitismPercentage,
		MutationRate:         DefaultMutationRate,
		SegmentSwitchRate:    genome.DefaultSegmentSwitchRate,
		MaxGenerations:       DefaultMaxGenerations,
		ConvergenceAllowance: DefaultConvergenceAllowance,
		ChromosomeLength:     geometry.IndexWidth() * trace.DefaultLength,
		CacheSets:            geometry.Sets,
		CacheWays:            geometry.Ways,
		SelectionPoolRatio:   DefaultSelectionPoolRatio,
		Crossover:            DefaultCrossover,
		Workers:              1,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrConfiguration)
	}
	if c.ElitismPercentage < 0 || c.ElitismPercentage > 100 {
		return fmt.Errorf("%w: elitism percentage must be in [0,100], got %d", ErrConfiguration, c.ElitismPercentage)
	}
	if c.MaxGenerations <= 0 {
		return fmt.Errorf("%w: max generations must be > 0", ErrConfiguration)
	}
	if c.ConvergenceAllowance <= 0 {
		return fmt.Errorf("%w: convergence allowance must be > 0", ErrConfiguration)
	}
	if c.ChromosomeLength <= 0 {
		return fmt.Errorf("%w: chromosome length must be > 0", ErrConfiguration)
	}
	if c.SelectionPoolRatio <= 0 || c.SelectionPoolRatio > 1 {
		return fmt.Errorf("%w: selection pool ratio must be in (0,1], got %v", ErrConfiguration, c.SelectionPoolRatio)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrConfiguration)
	}
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if _, err := genome.NewCrossover(c.Crossover, c.rates()); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func (c Config) Geometry() lrucache.Geometry {
	return lrucache.Geometry{Sets: c.CacheSets, Ways: c.CacheWays}
}

// EliteCount is the number of top genomes copied unchanged into the next
// generation, rounded down.
func (c Config) EliteCount() int {
	n := c.PopulationSize * c.ElitismPercentage / 100
	if n > c.PopulationSize {
		n = c.PopulationSize
	}
	if n < 0 {
		n = 0
	}
	return n
}

func (c Config) rates() genome.Rates {
	return genome.Rates{MutationRate: c.MutationRate, SegmentSwitchRate: c.SegmentSwitchRate}
}

// Snapshot converts the config into its persisted form.
func (c Config) Snapshot() model.RunConfig {
	return model.RunConfig{
		PopulationSize:       c.PopulationSize,
		ElitismPercentage:    c.ElitismPercentage,
		MutationRate:         c.MutationRate,
		SegmentSwitchRate:    c.SegmentSwitchRate,
		MaxGenerations:       c.MaxGenerations,
		ConvergenceAllowance: c.ConvergenceAllowance,
		ChromosomeLength:     c.ChromosomeLength,
		CacheSets:            c.CacheSets,
		CacheWays:            c.CacheWays,
		SelectionPoolRatio:   c.SelectionPoolRatio,
		Crossover:            c.Crossover,
		Seed:                 c.Seed,
		Workers:              c.Workers,
	}
}

func ConfigFromSnapshot(s model.RunConfig) Config {
	return Config{
		PopulationSize:       s.PopulationSize,
		ElitismPercentage:    s.ElitismPercentage,
		MutationRate:         s.MutationRate,
		SegmentSwitchRate:    s.SegmentSwitchRate,
		MaxGenerations:       s.MaxGenerations,
		ConvergenceAllowance: s.ConvergenceAllowance,
		ChromosomeLength:     s.ChromosomeLength,
		CacheSets:            s.CacheSets,
		CacheWays:            s.CacheWays,
		SelectionPoolRatio:   s.SelectionPoolRatio,
		Crossover:            s.Crossover,
		Seed:                 s.Seed,
		Workers:              s.Workers,
	}
}
