package genome

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const DefaultSegmentSwitchRate = 0.40

var ErrUnknownCrossover = errors.New("unknown crossover")

// Rates parameterizes every crossover operator.
type Rates struct {
	MutationRate      float64
	SegmentSwitchRate float64
}

type crossoverFactory func(Rates) Crossover

var crossoverFactories = map[string]crossoverFactory{
	"UX": func(r Rates) Crossover {
		return Uniform{MutationRate: r.MutationRate}
	},
	"2PX": func(r Rates) Crossover {
		return TwoPoint{MutationRate: r.MutationRate}
	},
	"SX": func(r Rates) Crossover {
		return Segmented{MutationRate: r.MutationRate, SwitchRate: r.SegmentSwitchRate}
	},
	"BAX": func(r Rates) Crossover {
		return Adaptive{
			Uniform:  Uniform{MutationRate: r.MutationRate},
			TwoPoint: TwoPoint{MutationRate: r.MutationRate},
		}
	},
}

var crossoverAliases = map[string]string{
	"TWOPX": "2PX",
}

// NewCrossover resolves a crossover by name (UX, 2PX, SX or BAX).
func NewCrossover(name string, rates Rates) (Crossover, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := crossoverAliases[key]; ok {
		key = alias
	}
	factory, ok := crossoverFactories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCrossover, name)
	}
	if rates.MutationRate < 0 || rates.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0,1], got %v", rates.MutationRate)
	}
	if rates.SegmentSwitchRate < 0 || rates.SegmentSwitchRate > 1 {
		return nil, fmt.Errorf("segment switch rate must be in [0,1], got %v", rates.SegmentSwitchRate)
	}
	return factory(rates), nil
}

func ListCrossovers() []string {
	names := make([]string, 0, len(crossoverFactories))
	for name := range crossoverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
