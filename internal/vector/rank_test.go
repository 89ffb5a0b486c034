package vector

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"slices"
	"testing"
)

func TestRank_OrderAndTruncation(t *testing.T) {
	ctx := context.Background()
	candidates := []Candidate{
		{ID: "c", Vector: []float32{0, 1}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 1}},
	}
	results, err := Rank(ctx, []float32{1, 0}, candidates, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %+v", results)
	}
}

func TestRank_TiesByAscendingID(t *testing.T) {
	ctx := context.Background()
	candidates := []Candidate{
		{ID: "z", Vector: []float32{1, 0}},
		{ID: "m", Vector: []float32{2, 0}},
		{ID: "a", Vector: []float32{3, 0}},
		{ID: "q", Vector: []float32{0, 1}},
	}
	results, err := Rank(ctx, []float32{1, 0}, candidates, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{results[0].ID, results[1].ID, results[2].ID, results[3].ID}
	want := []string{"a", "m", "z", "q"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRank_TruncatesAfterFullRanking(t *testing.T) {
	ctx := context.Background()
	// The best match is last; truncating before sorting would lose it.
	candidates := []Candidate{
		{ID: "x", Vector: []float32{0, 1}},
		{ID: "y", Vector: []float32{0.5, 0.5}},
		{ID: "best", Vector: []float32{1, 0}},
	}
	results, err := Rank(ctx, []float32{1, 0}, candidates, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "best" {
		t.Errorf("got %+v, want best", results)
	}
}

func TestRank_Empty(t *testing.T) {
	results, err := Rank(context.Background(), []float32{1}, nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRank_ParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	candidates := randomCandidates(rng, 1000, 16)
	query := randomVector(rng, 16)

	seq, err := Ranker{ParallelThreshold: -1}.Rank(ctx, query, candidates, 50)
	if err != nil {
		t.Fatal(err)
	}
	par, err := Ranker{ParallelThreshold: 10, Workers: 7}.Rank(ctx, query, candidates, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("parallel ranking differs from sequential ranking")
	}
	for i := 1; i < len(seq); i++ {
		if Compare(seq[i-1], seq[i]) > 0 {
			t.Fatalf("results not ordered at %d: %+v then %+v", i, seq[i-1], seq[i])
		}
	}
}

func TestCompare_TransitiveNearTolerance(t *testing.T) {
	results := []Result{
		{ID: "a", Score: 0.5},
		{ID: "b", Score: 0.5 + 0.6*TieTolerance},
		{ID: "c", Score: 0.5 + 1.2*TieTolerance},
		{ID: "d", Score: 0.5 + 1.8*TieTolerance},
	}
	for _, x := range results {
		for _, y := range results {
			for _, z := range results {
				if Compare(x, y) <= 0 && Compare(y, z) <= 0 && Compare(x, z) > 0 {
					t.Fatalf("not transitive: %v <= %v <= %v but %v > %v", x, y, z, x, z)
				}
			}
		}
		if Compare(x, x) != 0 {
			t.Errorf("Compare(%v, %v) != 0", x, x)
		}
	}

	var want []Result
	for _, perm := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}} {
		got := make([]Result, 0, len(perm))
		for _, i := range perm {
			got = append(got, results[i])
		}
		slices.SortFunc(got, Compare)
		if want == nil {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("order depends on input: %v vs %v", got, want)
		}
	}
}

func TestRank_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	candidates := []Candidate{{ID: "a", Vector: []float32{1}}}
	if _, err := Rank(ctx, []float32{1}, candidates, 1); err == nil {
		t.Error("expected context error")
	}
	rng := rand.New(rand.NewSource(1))
	if _, err := (Ranker{ParallelThreshold: 1}).Rank(ctx, []float32{1, 0}, randomCandidates(rng, 10, 2), 1); err == nil {
		t.Error("expected context error from parallel ranking")
	}
}

func randomVector(rng *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func randomCandidates(rng *rand.Rand, n, dims int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{ID: fmt.Sprintf("item-%04d", i), Vector: randomVector(rng, dims)}
	}
	return out
}
