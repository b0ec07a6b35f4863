// Package genome defines candidate set-index encodings and the crossover
// operators that recombine them.
package genome

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"cachega/internal/lrucache"
)

// FitnessOracle scores a chromosome. *lrucache.Oracle satisfies it.
type FitnessOracle interface {
	ChromosomeLength() int
	Evictions(bits lrucache.Bits) (int, error)
}

// Genome pairs a chromosome with its eviction count. Fitness is computed
// once by New and never recomputed.
type Genome struct {
	chromosome Chromosome
	fitness    int
}

func New(c Chromosome, oracle FitnessOracle) (Genome, error) {
	if oracle == nil {
		return Genome{}, fmt.Errorf("fitness oracle is required")
	}
	if want := oracle.ChromosomeLength(); c.Len() != want {
		return Genome{}, fmt.Errorf("%w: chromosome length %d, want %d", lrucache.ErrTraceMismatch, c.Len(), want)
	}
	fitness, err := oracle.Evictions(c)
	if err != nil {
		return Genome{}, err
	}
	return Genome{chromosome: c, fitness: fitness}, nil
}

func (g Genome) Fitness() int {
	return g.fitness
}

func (g Genome) Chromosome() Chromosome {
	return g.chromosome
}

// Clone returns a genome with its own copy of the chromosome.
func (g Genome) Clone() Genome {
	return Genome{chromosome: NewChromosome(g.chromosome.bits), fitness: g.fitness}
}

// Less orders genomes by ascending eviction count.
func (g Genome) Less(other Genome) bool {
	return g.fitness < other.fitness
}

// Sort orders genomes best first, keeping the relative order of ties.
func Sort(genomes []Genome) {
	sort.SliceStable(genomes, func(i, j int) bool {
		return genomes[i].Less(genomes[j])
	})
}

// EvaluateAll scores chromosomes into genomes, preserving input order. With
// workers > 1 the scoring runs concurrently; results do not depend on the
// worker count.
func EvaluateAll(ctx context.Context, oracle FitnessOracle, chromosomes []Chromosome, workers int) ([]Genome, error) {
	out := make([]Genome, len(chromosomes))
	if workers <= 1 || len(chromosomes) < 2 {
		for i, c := range chromosomes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			g, err := New(c, oracle)
			if err != nil {
				return nil, err
			}
			out[i] = g
		}
		return out, nil
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError().WithFirstError()
	for i := range chromosomes {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, err := New(chromosomes[i], oracle)
			if err != nil {
				return fmt.Errorf("evaluate genome %d: %w", i, err)
			}
			out[i] = g
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
