package lrucache

import (
	"fmt"

	"cachega/internal/trace"
)

// Outcome classifies a single reference.
type Outcome int

const (
	Hit Outcome = iota
	Miss
	Evict
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Evict:
		return "evict"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hit":
		*o = Hit
	case "miss":
		*o = Miss
	case "evict":
		*o = Evict
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Set is one fixed-capacity LRU set. Residents are kept MRU-first.
type Set struct {
	capacity  int
	residents []trace.Address
}

func NewSet(ways int) *Set {
	return &Set{capacity: ways, residents: make([]trace.Address, 0, ways)}
}

// Reference touches addr. On Evict the displaced LRU address is returned.
func (s *Set) Reference(addr trace.Address) (Outcome, trace.Address) {
	for i, resident := range s.residents {
		if resident != addr {
			continue
		}
		copy(s.residents[1:i+1], s.residents[:i])
		s.residents[0] = addr
		return Hit, 0
	}

	if len(s.residents) < s.capacity {
		s.residents = append(s.residents, 0)
		copy(s.residents[1:], s.residents[:len(s.residents)-1])
		s.residents[0] = addr
		return Miss, 0
	}

	victim := s.residents[len(s.residents)-1]
	copy(s.residents[1:], s.residents[:len(s.residents)-1])
	s.residents[0] = addr
	return Evict, victim
}

func (s *Set) Len() int {
	return len(s.residents)
}

func (s *Set) Capacity() int {
	return s.capacity
}

// Contents returns the residents, most recently used first.
func (s *Set) Contents() []trace.Address {
	out := make([]trace.Address, len(s.residents))
	copy(out, s.residents)
	return out
}

func (s *Set) Clear() {
	s.residents = s.residents[:0]
}
