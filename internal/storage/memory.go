package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cachega/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

type memoryRun struct {
	seq    int
	record model.RunRecord
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	seq         int
	runs        map[string]memoryRun
	diagnostics map[string][]model.GenerationDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.seq = 0
	s.runs = make(map[string]memoryRun)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	entry, ok := s.runs[run.ID]
	if !ok {
		s.seq++
		entry.seq = s.seq
	}
	entry.record = cloneRun(run)
	s.runs[run.ID] = entry
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.RunRecord{}, false, ErrNotInitialized
	}

	entry, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(entry.record), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	entries := make([]memoryRun, 0, len(s.runs))
	for _, entry := range s.runs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.record.CreatedAtUTC != b.record.CreatedAtUTC {
			return a.record.CreatedAtUTC > b.record.CreatedAtUTC
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	runs := make([]model.RunRecord, 0, len(entries))
	for _, entry := range entries {
		runs = append(runs, cloneRun(entry.record))
	}
	return runs, nil
}

func (s *MemoryStore) SaveDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.diagnostics[runID] = append([]model.GenerationDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, false, ErrNotInitialized
	}

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationDiagnostics(nil), diagnostics...), true, nil
}

func cloneRun(run model.RunRecord) model.RunRecord {
	run.Trace = append([]uint32(nil), run.Trace...)
	run.BestByGeneration = append([]int(nil), run.BestByGeneration...)
	return run
}
