package evo

import (
	"cachega/internal/genome"
	"cachega/internal/model"
)

func summarizeGeneration(ranked []genome.Genome, generation, stale, eliteCount int) model.GenerationDiagnostics {
	if len(ranked) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	total := 0
	worst := ranked[0].Fitness()
	distinct := make(map[string]struct{}, len(ranked))
	for _, g := range ranked {
		total += g.Fitness()
		if g.Fitness() > worst {
			worst = g.Fitness()
		}
		distinct[g.Chromosome().String()] = struct{}{}
	}

	return model.GenerationDiagnostics{
		Generation:   generation,
		BestFitness:  ranked[0].Fitness(),
		MeanFitness:  float64(total) / float64(len(ranked)),
		WorstFitness: worst,
		Diversity:    len(distinct),
		Stale:        stale,
		EliteCount:   eliteCount,
	}
}
