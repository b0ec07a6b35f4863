package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"cachega/internal/evo"
	"cachega/internal/genome"
	"cachega/internal/storage"
	"cachega/internal/trace"
	"cachega/pkg/cachega"
)

const defaultDBPath = "cachega.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "crossovers":
		return runCrossovers(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind     *string
	dbPath   *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:   fs.String("db-path", defaultDBPath, "sqlite database path"),
		logLevel: fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) client() (*cachega.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return cachega.New(cachega.Options{
		StoreKind: *f.kind,
		DBPath:    *f.dbPath,
		Logger:    logger,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func runRun(ctx context.Context, args []string) error {
	defaults := evo.DefaultConfig()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional, defaults to a uuid)")
	traceFile := fs.String("trace-file", "", "address trace file, one address per line")
	traceLength := fs.Int("trace-length", trace.DefaultLength, "generated trace length")
	traceSeed := fs.Int64("trace-seed", 1, "rng seed for the generated trace")
	locality := fs.Int("locality", cachega.DefaultLocality, "generated trace locality (0-10)")
	crossover := fs.String("crossover", defaults.Crossover, "crossover operator: "+strings.Join(genome.ListCrossovers(), "|"))
	population := fs.Int("pop", defaults.PopulationSize, "population size")
	generations := fs.Int("gens", defaults.MaxGenerations, "maximum generation count")
	elitism := fs.Int("elitism", defaults.ElitismPercentage, "percentage of the population kept as elites")
	mutation := fs.Float64("mutation", defaults.MutationRate, "per-gene mutation rate")
	switchRate := fs.Float64("switch-rate", defaults.SegmentSwitchRate, "segment switch rate for SX")
	allowance := fs.Int("allowance", defaults.ConvergenceAllowance, "generations without improvement before convergence")
	poolRatio := fs.Float64("pool-ratio", defaults.SelectionPoolRatio, "fraction of the ranked population eligible as parents")
	sets := fs.Int("sets", defaults.CacheSets, "cache sets (power of two)")
	ways := fs.Int("ways", defaults.CacheWays, "cache ways per set")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", defaults.Workers, "fitness evaluation workers")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	flagValues := map[string]any{
		"run-id":       *runID,
		"trace-length": *traceLength,
		"trace-seed":   *traceSeed,
		"locality":     *locality,
		"crossover":    *crossover,
		"pop":          *population,
		"gens":         *generations,
		"elitism":      *elitism,
		"mutation":     *mutation,
		"switch-rate":  *switchRate,
		"allowance":    *allowance,
		"pool-ratio":   *poolRatio,
		"sets":         *sets,
		"ways":         *ways,
		"seed":         *seed,
		"workers":      *workers,
	}
	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		for name := range flagValues {
			setFlags[name] = true
		}
	}
	if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}
	if *traceFile != "" {
		addrs, err := readTraceFile(*traceFile)
		if err != nil {
			return err
		}
		req.Addresses = addrs
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runSummaryJSON{
			RunID:            summary.RunID,
			State:            summary.State,
			Generations:      summary.Generations,
			BestFitness:      summary.BestFitness,
			BestChromosome:   summary.BestChromosome,
			BestByGeneration: summary.BestByGeneration,
			TraceLength:      summary.TraceLength,
			DistinctAddrs:    summary.DistinctAddrs,
		})
	}

	fmt.Printf("run completed run_id=%s state=%s generations=%d trace_length=%d distinct_addresses=%d\n",
		summary.RunID, summary.State, summary.Generations, summary.TraceLength, summary.DistinctAddrs)
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_evictions=%d\n", i, best)
	}
	fmt.Printf("best_evictions=%d\n", summary.BestFitness)
	fmt.Printf("best_chromosome=%s\n", summary.BestChromosome)
	return nil
}

type runSummaryJSON struct {
	RunID            string `json:"run_id"`
	State            string `json:"state"`
	Generations      int    `json:"generations"`
	BestFitness      int    `json:"best_fitness"`
	BestChromosome   string `json:"best_chromosome"`
	BestByGeneration []int  `json:"best_by_generation"`
	TraceLength      int    `json:"trace_length"`
	DistinctAddrs    int    `json:"distinct_addresses"`
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		type runsItem struct {
			RunID          string `json:"run_id"`
			CreatedAtUTC   string `json:"created_at_utc"`
			Crossover      string `json:"crossover"`
			Seed           int64  `json:"seed"`
			PopulationSize int    `json:"population_size"`
			Generations    int    `json:"generations"`
			State          string `json:"state"`
			BestFitness    int    `json:"best_fitness"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem(r))
		}
		return writeJSON(items)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s crossover=%s seed=%d pop=%d gens=%d state=%s best_evictions=%d\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Crossover,
			r.Seed,
			r.PopulationSize,
			r.Generations,
			r.State,
			r.BestFitness,
		)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, cachega.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%d mean=%.4f worst=%d diversity=%d stale=%d elites=%d\n",
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.WorstFitness,
			d.Diversity,
			d.Stale,
			d.EliteCount,
		)
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "replay the most recent run")
	jsonOut := fs.Bool("json", false, "emit replay steps as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("replay requires --run-id or --latest")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	replay, err := client.Replay(ctx, cachega.ReplayRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(replay.Steps)
	}

	fmt.Printf("replay run_id=%s sets=%d ways=%d evictions=%d\n",
		replay.RunID, replay.Geometry.Sets, replay.Geometry.Ways, replay.Evictions)
	for _, step := range replay.Steps {
		evicted := "-"
		if step.Evicted != nil {
			evicted = step.Evicted.String()
		}
		fmt.Printf("step=%d address=%s set=%d outcome=%s evicted=%s\n",
			step.Index, step.Address, step.SetIndex, step.Outcome, evicted)
	}
	return nil
}

func runCrossovers(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("crossovers", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range genome.ListCrossovers() {
		fmt.Println(name)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cachegactl <run|runs|diagnostics|replay|crossovers> [flags]", msg)
}
