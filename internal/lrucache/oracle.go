package lrucache

import (
	"fmt"

	"cachega/internal/trace"
)

// Bits is a read-only view of a chromosome.
type Bits interface {
	Len() int
	Bit(i int) bool
}

// SetIndex decodes the width-bit field for address i. Bit width*i is the
// least significant.
func SetIndex(b Bits, i, width int) (int, error) {
	base := i * width
	if base < 0 || base+width > b.Len() {
		return 0, fmt.Errorf("%w: bits [%d,%d) outside chromosome of length %d", ErrSimulationInvariant, base, base+width, b.Len())
	}
	index := 0
	for j := 0; j < width; j++ {
		if b.Bit(base + j) {
			index |= 1 << j
		}
	}
	return index, nil
}

// Oracle scores chromosomes against a fixed trace and cache geometry.
// It holds no mutable state and may be shared between goroutines.
type Oracle struct {
	addrs trace.Trace
	geom  Geometry
}

func NewOracle(g Geometry, tr trace.Trace) (*Oracle, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if tr.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTraceMismatch, trace.ErrEmptyTrace)
	}
	return &Oracle{addrs: tr, geom: g}, nil
}

func (o *Oracle) Geometry() Geometry {
	return o.geom
}

func (o *Oracle) Trace() trace.Trace {
	return o.addrs
}

// ChromosomeLength is the exact bit length a chromosome must have.
func (o *Oracle) ChromosomeLength() int {
	return o.geom.IndexWidth() * o.addrs.Len()
}

// CheckLength reports ErrTraceMismatch unless n matches ChromosomeLength.
func (o *Oracle) CheckLength(n int) error {
	if want := o.ChromosomeLength(); n != want {
		return fmt.Errorf("%w: chromosome length %d, trace of %d addresses needs %d bits",
			ErrTraceMismatch, n, o.addrs.Len(), want)
	}
	return nil
}

// Evictions replays the trace through a fresh cache.
func (o *Oracle) Evictions(b Bits) (int, error) {
	if err := o.checkBits(b); err != nil {
		return 0, err
	}
	cache, err := New(o.geom)
	if err != nil {
		return 0, err
	}
	width := o.geom.IndexWidth()
	for i := 0; i < o.addrs.Len(); i++ {
		setIndex, err := SetIndex(b, i, width)
		if err != nil {
			return 0, err
		}
		if _, _, err := cache.Reference(setIndex, o.addrs.At(i)); err != nil {
			return 0, err
		}
	}
	return cache.Evictions(), nil
}

// Step records one reference of a replay.
type Step struct {
	Index    int             `json:"index"`
	Address  trace.Address   `json:"address"`
	SetIndex int             `json:"set_index"`
	Outcome  Outcome         `json:"outcome"`
	Evicted  *trace.Address  `json:"evicted,omitempty"`
	Contents []trace.Address `json:"contents"`
}

// Replay is Evictions with a per-address record of what happened.
func (o *Oracle) Replay(b Bits) ([]Step, int, error) {
	if err := o.checkBits(b); err != nil {
		return nil, 0, err
	}
	cache, err := New(o.geom)
	if err != nil {
		return nil, 0, err
	}
	width := o.geom.IndexWidth()
	steps := make([]Step, 0, o.addrs.Len())
	for i := 0; i < o.addrs.Len(); i++ {
		setIndex, err := SetIndex(b, i, width)
		if err != nil {
			return nil, 0, err
		}
		addr := o.addrs.At(i)
		outcome, victim, err := cache.Reference(setIndex, addr)
		if err != nil {
			return nil, 0, err
		}
		step := Step{
			Index:    i,
			Address:  addr,
			SetIndex: setIndex,
			Outcome:  outcome,
			Contents: cache.Contents(setIndex),
		}
		if outcome == Evict {
			step.Evicted = &victim
		}
		steps = append(steps, step)
	}
	return steps, cache.Evictions(), nil
}

func (o *Oracle) checkBits(b Bits) error {
	if b == nil {
		return fmt.Errorf("%w: chromosome is required", ErrSimulationInvariant)
	}
	if want := o.ChromosomeLength(); b.Len() != want {
		return fmt.Errorf("%w: chromosome length %d, want %d", ErrSimulationInvariant, b.Len(), want)
	}
	return nil
}
