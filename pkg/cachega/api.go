// Package cachega runs cache-index genetic searches and keeps their results.
package cachega

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"cachega/internal/evo"
	"cachega/internal/genome"
	"cachega/internal/lrucache"
	"cachega/internal/model"
	"cachega/internal/storage"
	"cachega/internal/trace"
)

const (
	defaultDBPath   = "cachega.db"
	DefaultLocality = 4
	defaultRunsList = 20

	// createdAtLayout is fixed width so stored timestamps sort as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// RunRequest describes one search. Zero values fall back to defaults; the
// rate fields are pointers so an explicit zero can be told apart from unset.
type RunRequest struct {
	RunID string

	// Addresses, when non-empty, is the trace. Otherwise a trace of
	// TraceLength addresses is generated from TraceSeed and Locality.
	Addresses   []uint32
	TraceLength int
	TraceSeed   int64
	Locality    int

	Crossover            string
	PopulationSize       int
	ElitismPercentage    *int
	MutationRate         *float64
	SegmentSwitchRate    *float64
	MaxGenerations       int
	ConvergenceAllowance int
	SelectionPoolRatio   float64
	CacheSets            int
	CacheWays            int
	Seed                 int64
	Workers              int
}

type RunSummary struct {
	RunID            string
	State            string
	Generations      int
	BestFitness      int
	BestChromosome   string
	BestByGeneration []int
	TraceLength      int
	DistinctAddrs    int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Crossover      string
	Seed           int64
	PopulationSize int
	Generations    int
	State          string
	BestFitness    int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ReplayRequest struct {
	RunID  string
	Latest bool
}

type ReplaySummary struct {
	RunID     string
	Geometry  lrucache.Geometry
	Evictions int
	Steps     []lrucache.Step
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	tr, err := traceFromRequest(req)
	if err != nil {
		return RunSummary{}, err
	}
	cfg, err := configFromRequest(req, tr)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run_id", runID)
	logger.Info("run started",
		"crossover", cfg.Crossover,
		"population", cfg.PopulationSize,
		"trace_length", tr.Len(),
		"distinct_addresses", tr.Distinct(),
	)

	controller, _, err := evo.NewTraceController(cfg, tr, logger)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := controller.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	record := storage.Stamp(model.RunRecord{
		ID:               runID,
		CreatedAtUTC:     time.Now().UTC().Format(createdAtLayout),
		Config:           cfg.Snapshot(),
		Trace:            tr.Uint32s(),
		State:            result.State.String(),
		Generations:      result.Generation,
		BestFitness:      result.Best.Fitness(),
		BestChromosome:   result.Best.Chromosome().String(),
		BestByGeneration: result.BestByGeneration,
		SolutionFound:    result.State == evo.SolutionFound,
		Converged:        result.State == evo.Converged,
	})
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := c.store.SaveDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics %s: %w", runID, err)
	}

	return RunSummary{
		RunID:            runID,
		State:            record.State,
		Generations:      record.Generations,
		BestFitness:      record.BestFitness,
		BestChromosome:   record.BestChromosome,
		BestByGeneration: append([]int(nil), result.BestByGeneration...),
		TraceLength:      tr.Len(),
		DistinctAddrs:    tr.Distinct(),
	}, nil
}

// Runs lists stored runs newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunsList
	}

	runs, err := c.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:          run.ID,
			CreatedAtUTC:   run.CreatedAtUTC,
			Crossover:      run.Config.Crossover,
			Seed:           run.Config.Seed,
			PopulationSize: run.Config.PopulationSize,
			Generations:    run.Generations,
			State:          run.State,
			BestFitness:    run.BestFitness,
		})
	}
	return out, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no diagnostics for run id %s", ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

// Replay re-runs the stored best chromosome of a run through the cache and
// returns every access. The recomputed eviction count must match the stored
// fitness.
func (c *Client) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ReplaySummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ReplaySummary{}, err
	}
	if !ok {
		return ReplaySummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	chromosome, err := genome.ParseChromosome(run.BestChromosome)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	geometry := lrucache.Geometry{Sets: run.Config.CacheSets, Ways: run.Config.CacheWays}
	oracle, err := lrucache.NewOracle(geometry, trace.FromUint32(run.Trace))
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	steps, evictions, err := oracle.Replay(chromosome)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	if evictions != run.BestFitness {
		return ReplaySummary{}, fmt.Errorf("%w: run %s replayed %d evictions, stored fitness %d",
			lrucache.ErrSimulationInvariant, runID, evictions, run.BestFitness)
	}

	return ReplaySummary{
		RunID:     runID,
		Geometry:  geometry,
		Evictions: evictions,
		Steps:     steps,
	}, nil
}

// Crossovers lists the registered crossover operator names.
func (c *Client) Crossovers() []string {
	return genome.ListCrossovers()
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", fmt.Errorf("%w: no runs available", ErrRunNotFound)
		}
		return runs[0].ID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func traceFromRequest(req RunRequest) (trace.Trace, error) {
	if len(req.Addresses) > 0 {
		return trace.FromUint32(req.Addresses), nil
	}
	length := req.TraceLength
	if length <= 0 {
		length = trace.DefaultLength
	}
	locality := req.Locality
	if locality <= 0 {
		locality = DefaultLocality
	}
	return trace.Generate(rand.New(rand.NewSource(req.TraceSeed)), length, locality)
}

func configFromRequest(req RunRequest, tr trace.Trace) (evo.Config, error) {
	cfg := evo.DefaultConfig()
	if req.Crossover != "" {
		cfg.Crossover = req.Crossover
	}
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.ElitismPercentage != nil {
		cfg.ElitismPercentage = *req.ElitismPercentage
	}
	if req.MutationRate != nil {
		cfg.MutationRate = *req.MutationRate
	}
	if req.SegmentSwitchRate != nil {
		cfg.SegmentSwitchRate = *req.SegmentSwitchRate
	}
	if req.MaxGenerations > 0 {
		cfg.MaxGenerations = req.MaxGenerations
	}
	if req.ConvergenceAllowance > 0 {
		cfg.ConvergenceAllowance = req.ConvergenceAllowance
	}
	if req.SelectionPoolRatio > 0 {
		cfg.SelectionPoolRatio = req.SelectionPoolRatio
	}
	if req.CacheSets > 0 {
		cfg.CacheSets = req.CacheSets
	}
	if req.CacheWays > 0 {
		cfg.CacheWays = req.CacheWays
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}
	cfg.Seed = req.Seed

	geometry := cfg.Geometry()
	if err := geometry.Validate(); err != nil {
		return evo.Config{}, fmt.Errorf("%w: %w", evo.ErrConfiguration, err)
	}
	cfg.ChromosomeLength = geometry.IndexWidth() * tr.Len()
	if err := cfg.Validate(); err != nil {
		return evo.Config{}, err
	}
	return cfg, nil
}
