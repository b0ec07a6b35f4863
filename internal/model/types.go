package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunConfig is the configuration snapshot stored with a run.
type RunConfig struct {
	PopulationSize       int     `json:"population_size"`
	ElitismPercentage    int     `json:"elitism_percentage"`
	MutationRate         float64 `json:"mutation_rate"`
	SegmentSwitchRate    float64 `json:"segment_switch_rate"`
	MaxGenerations       int     `json:"max_generations"`
	ConvergenceAllowance int     `json:"convergence_allowance"`
	ChromosomeLength     int     `json:"chromosome_length"`
	CacheSets            int     `json:"cache_sets"`
	CacheWays            int     `json:"cache_ways"`
	SelectionPoolRatio   float64 `json:"selection_pool_ratio"`
	Crossover            string  `json:"crossover"`
	Seed                 int64   `json:"seed"`
	Workers              int     `json:"workers"`
}

type RunRecord struct {
	VersionedRecord
	ID               string    `json:"id"`
	CreatedAtUTC     string    `json:"created_at_utc"`
	Config           RunConfig `json:"config"`
	Trace            []uint32  `json:"trace"`
	State            string    `json:"state"`
	Generations      int       `json:"generations"`
	BestFitness      int       `json:"best_fitness"`
	BestChromosome   string    `json:"best_chromosome"`
	BestByGeneration []int     `json:"best_by_generation"`
	SolutionFound    bool      `json:"solution_found"`
	Converged        bool      `json:"converged"`
}

type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	BestFitness  int     `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	WorstFitness int     `json:"worst_fitness"`
	Diversity    int     `json:"diversity"`
	Stale        int     `json:"stale"`
	EliteCount   int     `json:"elite_count"`
}
