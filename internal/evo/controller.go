package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"cachega/internal/genome"
	"cachega/internal/lrucache"
	"cachega/internal/model"
	"cachega/internal/trace"
)

type State int

const (
	Running State = iota
	SolutionFound
	Converged
	MaxGenReached
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case SolutionFound:
		return "solution_found"
	case Converged:
		return "converged"
	case MaxGenReached:
		return "max_generations"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s != Running
}

// Result describes a finished run. Best is the top genome of the last ranked
// generation, so Best.Fitness() equals the last BestByGeneration entry.
type Result struct {
	State            State
	Generation       int
	Best             genome.Genome
	BestByGeneration []int
	Diagnostics      []model.GenerationDiagnostics
}

// Controller evolves one population until a solution is found, the best
// fitness stops moving, or the generation cap is hit.
type Controller struct {
	cfg       Config
	oracle    genome.FitnessOracle
	crossover genome.Crossover
	selector  Selector
	rng       *rand.Rand
	logger    *slog.Logger

	mu          sync.RWMutex
	population  []genome.Genome
	generation  int
	state       State
	prevBest    int
	champion    *genome.Genome
	stale       int
	history     []int
	diagnostics []model.GenerationDiagnostics
}

func NewController(cfg Config, oracle genome.FitnessOracle, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: fitness oracle is required", ErrConfiguration)
	}
	if got := oracle.ChromosomeLength(); got != cfg.ChromosomeLength {
		return nil, fmt.Errorf("%w: %w: oracle expects %d bits, config has %d",
			ErrConfiguration, lrucache.ErrTraceMismatch, got, cfg.ChromosomeLength)
	}
	crossover, err := genome.NewCrossover(cfg.Crossover, cfg.rates())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		cfg:       cfg,
		oracle:    oracle,
		crossover: crossover,
		selector:  TopPoolSelector{Ratio: cfg.SelectionPoolRatio},
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    logger.With("crossover", crossover.Name(), "seed", cfg.Seed),
	}, nil
}

// NewTraceController builds the cache oracle for tr from cfg's geometry.
func NewTraceController(cfg Config, tr trace.Trace, logger *slog.Logger) (*Controller, *lrucache.Oracle, error) {
	oracle, err := lrucache.NewOracle(cfg.Geometry(), tr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := oracle.CheckLength(cfg.ChromosomeLength); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	c, err := NewController(cfg, oracle, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, oracle, nil
}

// Init replaces any existing population with random genomes.
func (c *Controller) Init(ctx context.Context) error {
	chromosomes := make([]genome.Chromosome, c.cfg.PopulationSize)
	for i := range chromosomes {
		chromosomes[i] = genome.RandomChromosome(c.rng, c.cfg.ChromosomeLength)
	}
	population, err := genome.EvaluateAll(ctx, c.oracle, chromosomes, c.cfg.Workers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.population = population
	c.generation = 0
	c.state = Running
	c.stale = 0
	c.champion = nil
	c.history = c.history[:0]
	c.diagnostics = c.diagnostics[:0]
	return nil
}

// Step runs one generation and reports the resulting state. Once a terminal
// state is reached further calls are no-ops.
func (c *Controller) Step(ctx context.Context) (State, error) {
	c.mu.RLock()
	state, generation := c.state, c.generation
	ranked := make([]genome.Genome, len(c.population))
	copy(ranked, c.population)
	c.mu.RUnlock()

	if state.Terminal() {
		return state, nil
	}
	if len(ranked) == 0 {
		return state, ErrEmptyPopulation
	}
	if len(ranked) != c.cfg.PopulationSize {
		return state, fmt.Errorf("%w: got=%d want=%d", ErrPopulationSize, len(ranked), c.cfg.PopulationSize)
	}

	genome.Sort(ranked)
	champion := ranked[0].Clone()
	best := champion.Fitness()
	stale := 0
	if generation > 0 && best == c.prevBest {
		stale = c.stale + 1
	}
	diag := summarizeGeneration(ranked, generation, stale, c.cfg.EliteCount())
	c.logger.Debug("generation evaluated",
		"generation", generation,
		"best", best,
		"mean", diag.MeanFitness,
		"stale", stale,
	)

	switch {
	case best == 0:
		state = SolutionFound
	case generation == c.cfg.MaxGenerations:
		state = MaxGenReached
	}
	if state.Terminal() {
		c.mu.Lock()
		c.population = ranked
		c.state = state
		c.champion = &champion
		c.history = append(c.history, best)
		c.diagnostics = append(c.diagnostics, diag)
		c.mu.Unlock()
		c.logFinished(state, generation, best)
		return state, nil
	}

	next, err := c.nextGeneration(ctx, ranked)
	if err != nil {
		return Running, err
	}
	if stale >= c.cfg.ConvergenceAllowance {
		state = Converged
	}

	c.mu.Lock()
	c.population = next
	c.generation++
	c.state = state
	c.prevBest = best
	c.champion = &champion
	c.stale = stale
	c.history = append(c.history, best)
	c.diagnostics = append(c.diagnostics, diag)
	generation = c.generation
	c.mu.Unlock()

	if state.Terminal() {
		c.logFinished(state, generation, best)
	}
	return state, nil
}

// Run initializes the population if needed and steps until a terminal state.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	c.mu.RLock()
	empty := len(c.population) == 0
	c.mu.RUnlock()
	if empty {
		if err := c.Init(ctx); err != nil {
			return Result{}, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		state, err := c.Step(ctx)
		if err != nil {
			return Result{}, err
		}
		if state.Terminal() {
			break
		}
	}

	best, err := c.Best()
	if err != nil {
		return Result{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Result{
		State:            c.state,
		Generation:       c.generation,
		Best:             best,
		BestByGeneration: append([]int(nil), c.history...),
		Diagnostics:      append([]model.GenerationDiagnostics(nil), c.diagnostics...),
	}, nil
}

func (c *Controller) nextGeneration(ctx context.Context, ranked []genome.Genome) ([]genome.Genome, error) {
	size := c.cfg.PopulationSize
	eliteCount := c.cfg.EliteCount()

	next := make([]genome.Genome, 0, size)
	for i := 0; i < eliteCount; i++ {
		next = append(next, ranked[i].Clone())
	}

	remaining := size - eliteCount
	offspring := make([]genome.Chromosome, 0, remaining)
	for i := 0; i < remaining/2; i++ {
		a, b, err := c.selector.PickParents(c.rng, ranked)
		if err != nil {
			return nil, err
		}
		c1, c2, err := c.crossover.Cross(c.rng, ranked[a].Chromosome(), ranked[b].Chromosome())
		if err != nil {
			return nil, err
		}
		offspring = append(offspring, c1)
		if eliteCount+len(offspring) < size {
			offspring = append(offspring, c2)
		}
	}

	var filler *genome.Genome
	if eliteCount+len(offspring) < size {
		idx, err := c.selector.PickParent(c.rng, ranked)
		if err != nil {
			return nil, err
		}
		clone := ranked[idx].Clone()
		filler = &clone
	}

	scored, err := genome.EvaluateAll(ctx, c.oracle, offspring, c.cfg.Workers)
	if err != nil {
		return nil, err
	}
	next = append(next, scored...)
	if filler != nil {
		next = append(next, *filler)
	}

	if len(next) != size {
		return nil, fmt.Errorf("%w: built %d genomes, want %d", ErrPopulationSize, len(next), size)
	}
	return next, nil
}

func (c *Controller) logFinished(state State, generation, best int) {
	c.logger.Info("run finished",
		"state", state.String(),
		"generation", generation,
		"best", best,
	)
}

// Best returns the best genome of the most recently ranked generation, the
// one whose fitness ends the best-by-generation history. Before the first
// Step it is the best of the initial population.
func (c *Controller) Best() (genome.Genome, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.population) == 0 {
		return genome.Genome{}, ErrEmptyPopulation
	}
	if c.champion != nil {
		return *c.champion, nil
	}
	best := c.population[0]
	for _, g := range c.population[1:] {
		if g.Less(best) {
			best = g
		}
	}
	return best, nil
}

func (c *Controller) Generation() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) SolutionFound() bool {
	return c.State() == SolutionFound
}

func (c *Controller) Converged() bool {
	return c.State() == Converged
}

// Population returns a copy of the current generation.
func (c *Controller) Population() []genome.Genome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]genome.Genome(nil), c.population...)
}

func (c *Controller) Config() Config {
	return c.cfg
}
