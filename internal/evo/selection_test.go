package evo

import (
	"math/rand"
	"testing"

	"cachega/internal/genome"
)

func TestTopPoolSelectorPoolSize(t *testing.T) {
	s := TopPoolSelector{Ratio: 0.5}
	cases := map[int]int{100: 50, 11: 5, 3: 2, 2: 2, 1: 1}
	for n, want := range cases {
		if got := s.PoolSize(n); got != want {
			t.Fatalf("n=%d: got %d want %d", n, got, want)
		}
	}
}

func TestTopPoolSelectorPicksDistinctParentsFromPool(t *testing.T) {
	s := TopPoolSelector{Ratio: 0.5}
	ranked := make([]genome.Genome, 10)
	rng := rand.New(rand.NewSource(1))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		a, b, err := s.PickParents(rng, ranked)
		if err != nil {
			t.Fatalf("pick parents: %v", err)
		}
		if a == b {
			t.Fatalf("parents must differ: %d", a)
		}
		if a >= 5 || b >= 5 || a < 0 || b < 0 {
			t.Fatalf("parent outside top half: %d %d", a, b)
		}
		seen[a] = true
		seen[b] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every pool index to be picked, got %v", seen)
	}
}

func TestTopPoolSelectorErrors(t *testing.T) {
	s := TopPoolSelector{Ratio: 0.5}
	if _, _, err := s.PickParents(nil, make([]genome.Genome, 4)); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := s.PickParent(rand.New(rand.NewSource(1)), nil); err == nil {
		t.Fatal("expected empty population error")
	}
	a, b, err := s.PickParents(rand.New(rand.NewSource(1)), make([]genome.Genome, 1))
	if err != nil || a != 0 || b != 0 {
		t.Fatalf("single genome should pair with itself: %d %d %v", a, b, err)
	}
}
