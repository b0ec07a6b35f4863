// Package trace holds the fixed address workload every genome is scored against.
package trace

import (
	"errors"
	"fmt"
	"math/rand"
)

// DefaultLength is the number of addresses in a standard experiment trace.
const DefaultLength = 100

// AddressBits is the fixed width of an Address.
const AddressBits = 32

var ErrEmptyTrace = errors.New("address trace is empty")

// Address is an opaque 32-bit value used only as a cache key.
type Address uint32

func (a Address) String() string {
	return fmt.Sprintf("%08x", uint32(a))
}

// Trace is an immutable ordered sequence of addresses. It is safe to share
// across goroutines.
type Trace struct {
	addrs []Address
}

func New(addrs []Address) Trace {
	owned := make([]Address, len(addrs))
	copy(owned, addrs)
	return Trace{addrs: owned}
}

// FromUint32 builds a trace from raw address values.
func FromUint32(values []uint32) Trace {
	addrs := make([]Address, len(values))
	for i, v := range values {
		addrs[i] = Address(v)
	}
	return Trace{addrs: addrs}
}

func (t Trace) Len() int {
	return len(t.addrs)
}

func (t Trace) At(i int) Address {
	return t.addrs[i]
}

func (t Trace) Addresses() []Address {
	out := make([]Address, len(t.addrs))
	copy(out, t.addrs)
	return out
}

func (t Trace) Uint32s() []uint32 {
	out := make([]uint32, len(t.addrs))
	for i, a := range t.addrs {
		out[i] = uint32(a)
	}
	return out
}

// Distinct reports how many different addresses appear in the trace.
func (t Trace) Distinct() int {
	seen := make(map[Address]struct{}, len(t.addrs))
	for _, a := range t.addrs {
		seen[a] = struct{}{}
	}
	return len(seen)
}

// Generate builds a trace with temporal locality. A pool of count/locality
// random addresses is sampled uniformly, and after the first position each
// address repeats its predecessor with probability locality/10.
func Generate(rng *rand.Rand, count, locality int) (Trace, error) {
	if rng == nil {
		return Trace{}, fmt.Errorf("random source is required")
	}
	if count < 0 {
		return Trace{}, fmt.Errorf("trace length must be >= 0, got %d", count)
	}
	if count == 0 {
		return Trace{}, nil
	}
	if locality <= 0 {
		locality = 1
	}

	poolSize := count / locality
	if poolSize < 1 {
		poolSize = 1
	}
	pool := make([]Address, poolSize)
	for i := range pool {
		pool[i] = Address(rng.Uint32())
	}

	addrs := make([]Address, 0, count)
	var last Address
	for i := 0; i < count; i++ {
		if i > 0 && rng.Intn(10) < locality {
			addrs = append(addrs, last)
			continue
		}
		last = pool[rng.Intn(poolSize)]
		addrs = append(addrs, last)
	}
	return Trace{addrs: addrs}, nil
}
