package vector

import (
	"cmp"
	"context"
	"math"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// TieTolerance is the width of the score grid used for ordering. Scores that snap to
// the same grid step are tied.
const TieTolerance = 1e-9

// DefaultParallelThreshold is the candidate count above which scoring is split across goroutines.
const DefaultParallelThreshold = 4096

// Candidate is a vector eligible for ranking.
type Candidate struct {
	ID     string
	Vector []float32
}

// Result is a single ranked hit.
type Result struct {
	ID    string
	Score float64
}

// Compare orders results by descending score; ties order by ascending id.
// Scores are snapped to the TieTolerance grid first, which keeps the order transitive.
func Compare(a, b Result) int {
	if c := cmp.Compare(tieKey(b.Score), tieKey(a.Score)); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func tieKey(score float64) float64 {
	return math.Round(score / TieTolerance)
}

// Ranker scores candidates by cosine similarity.
type Ranker struct {
	// ParallelThreshold is the candidate count above which scoring runs in shards.
	// Zero means DefaultParallelThreshold; negative disables parallel scoring.
	ParallelThreshold int
	// Workers caps the number of shards. Zero means GOMAXPROCS.
	Workers int
}

// Rank ranks candidates with the default Ranker.
func Rank(ctx context.Context, query []float32, candidates []Candidate, k int) ([]Result, error) {
	return Ranker{}.Rank(ctx, query, candidates, k)
}

// Rank scores every candidate against query, sorts the full list and then truncates to k.
// A non-positive k returns every candidate.
func (r Ranker) Rank(ctx context.Context, query []float32, candidates []Candidate, k int) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}
	results := make([]Result, len(candidates))
	qn := L2Norm(query)

	threshold := r.ParallelThreshold
	if threshold == 0 {
		threshold = DefaultParallelThreshold
	}
	if threshold < 0 || len(candidates) <= threshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scoreRange(query, qn, candidates, results, 0, len(candidates))
	} else if err := r.scoreParallel(ctx, query, qn, candidates, results); err != nil {
		return nil, err
	}

	slices.SortFunc(results, Compare)
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (r Ranker) scoreParallel(ctx context.Context, query []float32, qn float64, candidates []Candidate, results []Result) error {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	shard := (len(candidates) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(candidates); start += shard {
		end := min(start+shard, len(candidates))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreRange(query, qn, candidates, results, start, end)
			return nil
		})
	}
	return g.Wait()
}

func scoreRange(query []float32, qn float64, candidates []Candidate, results []Result, start, end int) {
	for i := start; i < end; i++ {
		c := candidates[i]
		results[i] = Result{ID: c.ID, Score: cosineWithNorm(query, qn, c.Vector)}
	}
}
