// Package lrucache implements the set-associative LRU cache used to score
// chromosomes by the evictions they cause.
package lrucache

import (
	"errors"
	"fmt"
	"math/bits"

	"cachega/internal/trace"
)

const (
	DefaultSets = 8
	DefaultWays = 2
)

var (
	ErrInvalidGeometry     = errors.New("invalid cache geometry")
	ErrTraceMismatch       = errors.New("trace and chromosome length mismatch")
	ErrSimulationInvariant = errors.New("simulation invariant violated")
)

// Geometry describes the cache shape. Sets must be a power of two so that
// every index field of the chromosome maps onto an existing set.
type Geometry struct {
	Sets int `json:"sets"`
	Ways int `json:"ways"`
}

func DefaultGeometry() Geometry {
	return Geometry{Sets: DefaultSets, Ways: DefaultWays}
}

func (g Geometry) Validate() error {
	if g.Sets <= 0 {
		return fmt.Errorf("%w: sets must be > 0, got %d", ErrInvalidGeometry, g.Sets)
	}
	if g.Ways <= 0 {
		return fmt.Errorf("%w: ways must be > 0, got %d", ErrInvalidGeometry, g.Ways)
	}
	if g.Sets < 2 || g.Sets&(g.Sets-1) != 0 {
		return fmt.Errorf("%w: sets must be a power of two >= 2, got %d", ErrInvalidGeometry, g.Sets)
	}
	return nil
}

// IndexWidth is the number of chromosome bits consumed per address.
func (g Geometry) IndexWidth() int {
	return bits.TrailingZeros(uint(g.Sets))
}

// Capacity is the total number of resident addresses the cache can hold.
func (g Geometry) Capacity() int {
	return g.Sets * g.Ways
}

type Cache struct {
	sets      []*Set
	evictions int
}

func New(g Geometry) (*Cache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	sets := make([]*Set, g.Sets)
	for i := range sets {
		sets[i] = NewSet(g.Ways)
	}
	return &Cache{sets: sets}, nil
}

// Reference routes addr to the given set and counts any eviction.
func (c *Cache) Reference(setIndex int, addr trace.Address) (Outcome, trace.Address, error) {
	if setIndex < 0 || setIndex >= len(c.sets) {
		return 0, 0, fmt.Errorf("%w: set index %d out of range [0,%d)", ErrSimulationInvariant, setIndex, len(c.sets))
	}
	outcome, victim := c.sets[setIndex].Reference(addr)
	if outcome == Evict {
		c.evictions++
	}
	return outcome, victim, nil
}

func (c *Cache) Evictions() int {
	return c.evictions
}

func (c *Cache) NumSets() int {
	return len(c.sets)
}

func (c *Cache) Contents(setIndex int) []trace.Address {
	return c.sets[setIndex].Contents()
}

func (c *Cache) Reset() {
	c.evictions = 0
	for _, s := range c.sets {
		s.Clear()
	}
}
