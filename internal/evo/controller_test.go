package evo

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"cachega/internal/genome"
	"cachega/internal/lrucache"
	"cachega/internal/trace"
)

type constantOracle struct {
	length  int
	fitness int
}

func (o constantOracle) ChromosomeLength() int { return o.length }

func (o constantOracle) Evictions(lrucache.Bits) (int, error) { return o.fitness, nil }

// degradingOracle scores the first cutoff evaluations as good and every later
// one as bad.
type degradingOracle struct {
	length int
	cutoff int64
	calls  atomic.Int64
}

func (o *degradingOracle) ChromosomeLength() int { return o.length }

func (o *degradingOracle) Evictions(lrucache.Bits) (int, error) {
	if o.calls.Add(1) <= o.cutoff {
		return 5, nil
	}
	return 9, nil
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 20
	cfg.ElitismPercentage = 10
	cfg.MaxGenerations = 50
	cfg.ConvergenceAllowance = 10
	cfg.Seed = 1
	return cfg
}

func generatedTrace(t *testing.T, seed int64) trace.Trace {
	t.Helper()
	tr, err := trace.Generate(rand.New(rand.NewSource(seed)), trace.DefaultLength, 4)
	if err != nil {
		t.Fatalf("generate trace: %v", err)
	}
	return tr
}

func TestNewControllerRejectsConfigurationErrors(t *testing.T) {
	cfg := smallConfig()
	cfg.ChromosomeLength = 30
	_, err := NewController(cfg, constantOracle{length: 300}, nil)
	if !errors.Is(err, ErrConfiguration) || !errors.Is(err, lrucache.ErrTraceMismatch) {
		t.Fatalf("expected length mismatch configuration error, got %v", err)
	}

	cfg = smallConfig()
	cfg.Crossover = "nope"
	_, err = NewController(cfg, constantOracle{length: 300}, nil)
	if !errors.Is(err, ErrConfiguration) || !errors.Is(err, genome.ErrUnknownCrossover) {
		t.Fatalf("expected unknown crossover configuration error, got %v", err)
	}

	_, err = NewController(smallConfig(), nil, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected missing oracle configuration error, got %v", err)
	}

	short := trace.New(make([]trace.Address, 50))
	_, _, err = NewTraceController(smallConfig(), short, nil)
	if !errors.Is(err, ErrConfiguration) || !errors.Is(err, lrucache.ErrTraceMismatch) {
		t.Fatalf("expected trace mismatch, got %v", err)
	}
}

func TestStepBeforeInitFails(t *testing.T) {
	c, err := NewController(smallConfig(), constantOracle{length: 300, fitness: 3}, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if _, err := c.Step(context.Background()); !errors.Is(err, ErrEmptyPopulation) {
		t.Fatalf("expected empty population error, got %v", err)
	}
	if _, err := c.Best(); !errors.Is(err, ErrEmptyPopulation) {
		t.Fatalf("expected empty population error from Best, got %v", err)
	}
}

func TestSolutionFoundOnZeroEvictions(t *testing.T) {
	addrs := make([]trace.Address, trace.DefaultLength)
	for i := range addrs {
		addrs[i] = 0x40
	}
	c, _, err := NewTraceController(smallConfig(), trace.New(addrs), nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != SolutionFound || !c.SolutionFound() || c.Converged() {
		t.Fatalf("expected solution found, got %s", result.State)
	}
	if result.Generation != 0 || result.Best.Fitness() != 0 {
		t.Fatalf("unexpected result: generation=%d best=%d", result.Generation, result.Best.Fitness())
	}
	if len(result.BestByGeneration) != 1 || len(result.Diagnostics) != 1 {
		t.Fatalf("expected one recorded generation, got %d/%d", len(result.BestByGeneration), len(result.Diagnostics))
	}
}

func TestConvergenceFiresExactlyAtAllowance(t *testing.T) {
	for _, allowance := range []int{1, 3, 7} {
		cfg := smallConfig()
		cfg.ConvergenceAllowance = allowance
		c, err := NewController(cfg, constantOracle{length: 300, fitness: 4}, nil)
		if err != nil {
			t.Fatalf("new controller: %v", err)
		}
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
		for step := 0; step < allowance; step++ {
			state, err := c.Step(context.Background())
			if err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
			if state != Running {
				t.Fatalf("allowance=%d: converged early at step %d", allowance, step)
			}
		}
		state, err := c.Step(context.Background())
		if err != nil {
			t.Fatalf("final step: %v", err)
		}
		if state != Converged || !c.Converged() {
			t.Fatalf("allowance=%d: expected converged, got %s", allowance, state)
		}
		if c.Generation() != allowance+1 {
			t.Fatalf("allowance=%d: expected generation %d, got %d", allowance, allowance+1, c.Generation())
		}
		if again, _ := c.Step(context.Background()); again != Converged || c.Generation() != allowance+1 {
			t.Fatal("terminal state must not advance")
		}
	}
}

func TestMaxGenerationsReached(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxGenerations = 2
	cfg.ConvergenceAllowance = 100
	c, err := NewController(cfg, constantOracle{length: 300, fitness: 9}, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != MaxGenReached || result.Generation != 2 {
		t.Fatalf("expected max generations at 2, got %s at %d", result.State, result.Generation)
	}
	if len(result.BestByGeneration) != 3 {
		t.Fatalf("expected 3 recorded generations, got %d", len(result.BestByGeneration))
	}
}

func TestPopulationSizeConstantForAllCrossovers(t *testing.T) {
	sizes := []struct{ size, elitism int }{
		{20, 10},
		{10, 10},
		{11, 0},
		{7, 50},
		{3, 5},
	}
	tr := generatedTrace(t, 3)
	for _, name := range genome.ListCrossovers() {
		for _, sz := range sizes {
			cfg := smallConfig()
			cfg.Crossover = name
			cfg.PopulationSize = sz.size
			cfg.ElitismPercentage = sz.elitism
			cfg.MaxGenerations = 5
			c, _, err := NewTraceController(cfg, tr, nil)
			if err != nil {
				t.Fatalf("%s: new controller: %v", name, err)
			}
			if err := c.Init(context.Background()); err != nil {
				t.Fatalf("%s: init: %v", name, err)
			}
			for !c.State().Terminal() {
				if _, err := c.Step(context.Background()); err != nil {
					t.Fatalf("%s size=%d: step: %v", name, sz.size, err)
				}
				if got := len(c.Population()); got != sz.size {
					t.Fatalf("%s: population size %d, want %d", name, got, sz.size)
				}
			}
		}
	}
}

func TestElitismKeepsBestFitnessMonotonic(t *testing.T) {
	cfg := smallConfig()
	cfg.Crossover = "SX"
	c, _, err := NewTraceController(cfg, generatedTrace(t, 21), nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.State.Terminal() {
		t.Fatalf("expected terminal state, got %s", result.State)
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] > result.BestByGeneration[i-1] {
			t.Fatalf("best fitness regressed at generation %d: %v", i, result.BestByGeneration)
		}
	}
	last := result.BestByGeneration[len(result.BestByGeneration)-1]
	if result.Best.Fitness() > last {
		t.Fatalf("best genome %d worse than last recorded best %d", result.Best.Fitness(), last)
	}
}

func TestRunIsReproducibleAcrossWorkerCounts(t *testing.T) {
	tr := generatedTrace(t, 5)
	run := func(workers int) Result {
		cfg := smallConfig()
		cfg.Crossover = "BAX"
		cfg.Seed = 77
		cfg.Workers = workers
		c, _, err := NewTraceController(cfg, tr, nil)
		if err != nil {
			t.Fatalf("new controller: %v", err)
		}
		result, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	serial, parallel := run(1), run(4)
	if serial.State != parallel.State || serial.Generation != parallel.Generation {
		t.Fatalf("runs diverged: %s@%d vs %s@%d", serial.State, serial.Generation, parallel.State, parallel.Generation)
	}
	if !serial.Best.Chromosome().Equal(parallel.Best.Chromosome()) {
		t.Fatal("best chromosome differs between worker counts")
	}
	for i := range serial.BestByGeneration {
		if serial.BestByGeneration[i] != parallel.BestByGeneration[i] {
			t.Fatalf("history diverged at %d", i)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	c, err := NewController(smallConfig(), constantOracle{length: 300, fitness: 2}, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestDiagnosticsTrackGenerations(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxGenerations = 3
	cfg.ConvergenceAllowance = 100
	c, err := NewController(cfg, constantOracle{length: 300, fitness: 6}, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, d := range result.Diagnostics {
		if d.Generation != i || d.BestFitness != 6 || d.WorstFitness != 6 || d.MeanFitness != 6 {
			t.Fatalf("unexpected diagnostics at %d: %+v", i, d)
		}
		if d.Stale != i {
			t.Fatalf("generation %d: stale=%d", i, d.Stale)
		}
		if d.EliteCount != 2 || d.Diversity < 1 {
			t.Fatalf("generation %d: unexpected diagnostics %+v", i, d)
		}
	}
}

func TestConvergedResultKeepsLastRankedBest(t *testing.T) {
	cfg := smallConfig()
	cfg.PopulationSize = 10
	cfg.ElitismPercentage = 0
	cfg.ConvergenceAllowance = 1
	oracle := &degradingOracle{length: 300, cutoff: 20}
	c, err := NewController(cfg, oracle, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != Converged {
		t.Fatalf("expected converged, got %s", result.State)
	}
	last := result.BestByGeneration[len(result.BestByGeneration)-1]
	if last != 5 || result.Best.Fitness() != last {
		t.Fatalf("best fitness %d does not match last recorded best %d", result.Best.Fitness(), last)
	}
	for _, g := range c.Population() {
		if g.Fitness() != 9 {
			t.Fatalf("expected the unranked next generation to score 9, got %d", g.Fitness())
		}
	}
}
