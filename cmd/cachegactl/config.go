package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"cachega/pkg/cachega"
)

func loadRunRequestFromConfig(path string) (cachega.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cachega.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cachega.RunRequest{}, err
	}

	var req cachega.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["crossover"]); ok {
		req.Crossover = v
	}
	if v, ok := asInt(raw["population_size"]); ok {
		req.PopulationSize = v
	}
	if v, ok := asInt(raw["elitism_percentage"]); ok {
		req.ElitismPercentage = &v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = &v
	}
	if v, ok := asFloat64(raw["segment_switch_rate"]); ok {
		req.SegmentSwitchRate = &v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		req.MaxGenerations = v
	}
	if v, ok := asInt(raw["convergence_allowance"]); ok {
		req.ConvergenceAllowance = v
	}
	if v, ok := asFloat64(raw["selection_pool_ratio"]); ok {
		req.SelectionPoolRatio = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}

	if cacheMap, ok := raw["cache"].(map[string]any); ok {
		if v, ok := asInt(cacheMap["sets"]); ok {
			req.CacheSets = v
		}
		if v, ok := asInt(cacheMap["ways"]); ok {
			req.CacheWays = v
		}
	}

	if traceMap, ok := raw["trace"].(map[string]any); ok {
		if v, ok := asInt(traceMap["length"]); ok {
			req.TraceLength = v
		}
		if v, ok := asInt64(traceMap["seed"]); ok {
			req.TraceSeed = v
		}
		if v, ok := asInt(traceMap["locality"]); ok {
			req.Locality = v
		}
		if list, ok := traceMap["addresses"].([]any); ok {
			addrs := make([]uint32, 0, len(list))
			for i, item := range list {
				addr, err := asAddress(item)
				if err != nil {
					return cachega.RunRequest{}, fmt.Errorf("trace address %d: %w", i, err)
				}
				addrs = append(addrs, addr)
			}
			req.Addresses = addrs
		}
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// asAddress accepts a JSON number or a string such as "0x1f40".
func asAddress(v any) (uint32, error) {
	switch x := v.(type) {
	case float64:
		if x < 0 || x > math.MaxUint32 || x != math.Trunc(x) {
			return 0, fmt.Errorf("address %v is not a 32-bit unsigned integer", x)
		}
		return uint32(x), nil
	case string:
		return parseAddress(x)
	default:
		return 0, fmt.Errorf("unsupported address value %v", v)
	}
}

func parseAddress(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", s, err)
	}
	return uint32(n), nil
}

// readTraceFile reads one address per line. Blank lines and lines starting
// with # are skipped.
func readTraceFile(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var addrs []uint32
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		addr, err := parseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		addrs = append(addrs, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s: no addresses", path)
	}
	return addrs, nil
}

func overrideFromFlags(req *cachega.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "trace-length":
			req.TraceLength = v.(int)
		case "trace-seed":
			req.TraceSeed = v.(int64)
		case "locality":
			req.Locality = v.(int)
		case "crossover":
			req.Crossover = v.(string)
		case "pop":
			req.PopulationSize = v.(int)
		case "gens":
			req.MaxGenerations = v.(int)
		case "elitism":
			elitism := v.(int)
			req.ElitismPercentage = &elitism
		case "mutation":
			rate := v.(float64)
			req.MutationRate = &rate
		case "switch-rate":
			rate := v.(float64)
			req.SegmentSwitchRate = &rate
		case "allowance":
			req.ConvergenceAllowance = v.(int)
		case "pool-ratio":
			req.SelectionPoolRatio = v.(float64)
		case "sets":
			req.CacheSets = v.(int)
		case "ways":
			req.CacheWays = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (cachega.RunRequest, error) {
	if configPath == "" {
		return cachega.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return cachega.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
