package genome

import (
	"fmt"
	"math/rand"
	"strings"
)

// GenePool lists the symbols a chromosome position may take.
const GenePool = "01"

// Chromosome is a fixed-length bit string. Its length is fixed when it is
// built and its bits are never modified afterwards.
type Chromosome struct {
	bits []bool
}

func NewChromosome(bits []bool) Chromosome {
	owned := make([]bool, len(bits))
	copy(owned, bits)
	return Chromosome{bits: owned}
}

// ParseChromosome reads a string of '0' and '1' characters, position 0 first.
func ParseChromosome(s string) (Chromosome, error) {
	bits := make([]bool, len(s))
	for i, r := range s {
		switch r {
		case '0':
		case '1':
			bits[i] = true
		default:
			return Chromosome{}, fmt.Errorf("invalid gene %q at position %d", r, i)
		}
	}
	return Chromosome{bits: bits}, nil
}

// RandomChromosome draws every bit uniformly from the gene pool.
func RandomChromosome(rng *rand.Rand, n int) Chromosome {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = randomGene(rng)
	}
	return Chromosome{bits: bits}
}

func randomGene(rng *rand.Rand) bool {
	return GenePool[rng.Intn(len(GenePool))] == '1'
}

func (c Chromosome) Len() int {
	return len(c.bits)
}

func (c Chromosome) Bit(i int) bool {
	return c.bits[i]
}

func (c Chromosome) Bits() []bool {
	out := make([]bool, len(c.bits))
	copy(out, c.bits)
	return out
}

func (c Chromosome) Equal(other Chromosome) bool {
	if len(c.bits) != len(other.bits) {
		return false
	}
	for i := range c.bits {
		if c.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

func (c Chromosome) String() string {
	var b strings.Builder
	b.Grow(len(c.bits))
	for _, bit := range c.bits {
		if bit {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
