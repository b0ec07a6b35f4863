package genome

import (
	"fmt"
	"math/rand"
)

// Crossover recombines two parents of equal length into two offspring.
// Every random draw comes from rng.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b Chromosome) (Chromosome, Chromosome, error)
}

// Mate crosses two parent genomes and scores both offspring.
func Mate(rng *rand.Rand, op Crossover, oracle FitnessOracle, p1, p2 Genome) (Genome, Genome, error) {
	if op == nil {
		return Genome{}, Genome{}, fmt.Errorf("crossover operator is required")
	}
	c1, c2, err := op.Cross(rng, p1.chromosome, p2.chromosome)
	if err != nil {
		return Genome{}, Genome{}, err
	}
	o1, err := New(c1, oracle)
	if err != nil {
		return Genome{}, Genome{}, err
	}
	o2, err := New(c2, oracle)
	if err != nil {
		return Genome{}, Genome{}, err
	}
	return o1, o2, nil
}

func checkParents(rng *rand.Rand, a, b Chromosome) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if a.Len() != b.Len() {
		return fmt.Errorf("parent length mismatch: %d != %d", a.Len(), b.Len())
	}
	if a.Len() == 0 {
		return fmt.Errorf("parents must not be empty")
	}
	return nil
}

// Uniform decides every position independently: keep, swap or mutate both.
type Uniform struct {
	MutationRate float64
}

func (Uniform) Name() string {
	return "UX"
}

func (u Uniform) Cross(rng *rand.Rand, a, b Chromosome) (Chromosome, Chromosome, error) {
	if err := checkParents(rng, a, b); err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	keepBelow := (1 - u.MutationRate) / 2
	swapBelow := 1 - u.MutationRate

	n := a.Len()
	c1, c2 := make([]bool, n), make([]bool, n)
	for i := 0; i < n; i++ {
		p := rng.Float64()
		switch {
		case p < keepBelow:
			c1[i], c2[i] = a.bits[i], b.bits[i]
		case p < swapBelow:
			c1[i], c2[i] = b.bits[i], a.bits[i]
		default:
			c1[i], c2[i] = randomGene(rng), randomGene(rng)
		}
	}
	return Chromosome{bits: c1}, Chromosome{bits: c2}, nil
}

// TwoPoint swaps the segment between two cut points.
type TwoPoint struct {
	MutationRate float64
}

func (TwoPoint) Name() string {
	return "2PX"
}

func (t TwoPoint) Cross(rng *rand.Rand, a, b Chromosome) (Chromosome, Chromosome, error) {
	if err := checkParents(rng, a, b); err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	n := a.Len()
	if n < 2 {
		return Chromosome{}, Chromosome{}, fmt.Errorf("two-point crossover needs at least 2 genes, got %d", n)
	}
	lo, hi := cutPoints(rng, n)
	c1, c2 := t.crossAt(rng, a, b, lo, hi)
	return c1, c2, nil
}

// cutPoints draws two distinct positions in [0,n), every pair equally likely,
// and returns them in ascending order.
func cutPoints(rng *rand.Rand, n int) (int, int) {
	x, y := rng.Intn(n), rng.Intn(n)
	for x == y {
		x, y = rng.Intn(n), rng.Intn(n)
	}
	if x > y {
		x, y = y, x
	}
	return x, y
}

// crossAt swaps positions in [lo,hi) unless the position mutates.
func (t TwoPoint) crossAt(rng *rand.Rand, a, b Chromosome, lo, hi int) (Chromosome, Chromosome) {
	n := a.Len()
	c1, c2 := make([]bool, n), make([]bool, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < t.MutationRate {
			c1[i], c2[i] = randomGene(rng), randomGene(rng)
			continue
		}
		if i < lo || i >= hi {
			c1[i], c2[i] = a.bits[i], b.bits[i]
		} else {
			c1[i], c2[i] = b.bits[i], a.bits[i]
		}
	}
	return Chromosome{bits: c1}, Chromosome{bits: c2}
}

// Segmented hands dominance back and forth between the parents.
type Segmented struct {
	MutationRate float64
	SwitchRate   float64
}

func (Segmented) Name() string {
	return "SX"
}

func (s Segmented) Cross(rng *rand.Rand, a, b Chromosome) (Chromosome, Chromosome, error) {
	if err := checkParents(rng, a, b); err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	n := a.Len()
	c1, c2 := make([]bool, n), make([]bool, n)
	firstDominant := true
	for i := 0; i < n; i++ {
		if rng.Float64() < s.MutationRate {
			c1[i], c2[i] = randomGene(rng), randomGene(rng)
			continue
		}
		if rng.Float64() < s.SwitchRate {
			firstDominant = !firstDominant
		}
		if firstDominant {
			c1[i], c2[i] = a.bits[i], b.bits[i]
		} else {
			c1[i], c2[i] = b.bits[i], a.bits[i]
		}
	}
	return Chromosome{bits: c1}, Chromosome{bits: c2}, nil
}

// Adaptive picks UX or 2PX from the parents' last genes: both set means UX,
// both clear means 2PX, and a disagreement is a coin flip.
type Adaptive struct {
	Uniform  Uniform
	TwoPoint TwoPoint
}

func (Adaptive) Name() string {
	return "BAX"
}

func (x Adaptive) Cross(rng *rand.Rand, a, b Chromosome) (Chromosome, Chromosome, error) {
	if err := checkParents(rng, a, b); err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	return x.choose(rng, a, b).Cross(rng, a, b)
}

func (x Adaptive) choose(rng *rand.Rand, a, b Chromosome) Crossover {
	last := a.Len() - 1
	lastA, lastB := a.bits[last], b.bits[last]
	switch {
	case lastA != lastB:
		if rng.Float64() < 0.5 {
			return x.Uniform
		}
		return x.TwoPoint
	case lastA:
		return x.Uniform
	default:
		return x.TwoPoint
	}
}
