package evo

import (
	"fmt"
	"math/rand"

	"cachega/internal/genome"
)

// Selector chooses parents from a population ranked best first.
type Selector interface {
	Name() string
	PickParents(rng *rand.Rand, ranked []genome.Genome) (int, int, error)
	PickParent(rng *rand.Rand, ranked []genome.Genome) (int, error)
}

// TopPoolSelector picks uniformly from the best Ratio share of the ranking.
type TopPoolSelector struct {
	Ratio float64
}

func (TopPoolSelector) Name() string {
	return "top_pool"
}

// PoolSize is floor(Ratio*n), widened to two when possible so that two
// distinct parents exist.
func (s TopPoolSelector) PoolSize(n int) int {
	size := int(s.Ratio * float64(n))
	if size < 2 {
		size = 2
	}
	if size > n {
		size = n
	}
	return size
}

func (s TopPoolSelector) PickParents(rng *rand.Rand, ranked []genome.Genome) (int, int, error) {
	if rng == nil {
		return 0, 0, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return 0, 0, ErrEmptyPopulation
	}
	poolSize := s.PoolSize(len(ranked))
	a := rng.Intn(poolSize)
	if poolSize == 1 {
		return a, a, nil
	}
	b := rng.Intn(poolSize - 1)
	if b >= a {
		b++
	}
	return a, b, nil
}

func (s TopPoolSelector) PickParent(rng *rand.Rand, ranked []genome.Genome) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return 0, ErrEmptyPopulation
	}
	return rng.Intn(s.PoolSize(len(ranked))), nil
}
