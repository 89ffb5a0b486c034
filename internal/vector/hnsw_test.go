package vector

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestHNSWIndex_ExactForSmallStores(t *testing.T) {
	idx, err := NewHNSWIndex(2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "a", []float32{1, 0})
	_ = idx.Upsert(ctx, "b", []float32{0.7, 0.7})
	_ = idx.Upsert(ctx, "c", []float32{0, 1})

	results, err := idx.Search(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestHNSWIndex_MatchesMemoryIndex(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	idx, err := NewHNSWIndex(32, Options{})
	if err != nil {
		t.Fatal(err)
	}
	exact, _ := NewMemoryIndex(32, Ranker{})
	for _, c := range randomCandidates(rng, 3000, 32) {
		_ = idx.Upsert(ctx, c.ID, c.Vector)
		_ = exact.Upsert(ctx, c.ID, c.Vector)
	}

	for q := 0; q < 50; q++ {
		query := randomVector(rng, 32)
		got, err := idx.Search(ctx, query, 10, nil)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := exact.Search(ctx, query, 10, nil)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("query %d: hnsw %+v, exact %+v", q, got, want)
		}
	}
}

func TestHNSWIndex_ReAddOnlyNodeThenAdd(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewHNSWIndex(2, Options{})
	if err := idx.Upsert(ctx, "a", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, "a", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, "b", []float32{1, 1}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestHNSWIndex_ChurnMatchesMemoryIndex(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))
	idx, _ := NewHNSWIndex(8, Options{Oversample: 2})
	exact, _ := NewMemoryIndex(8, Ranker{})

	for step := 0; step < 600; step++ {
		id := fmt.Sprintf("item-%03d", rng.Intn(120))
		switch r := rng.Intn(10); {
		case r < 2:
			_ = idx.Remove(ctx, id)
			_ = exact.Remove(ctx, id)
		case r < 3:
			zero := make([]float32, 8)
			_ = idx.Upsert(ctx, id, zero)
			_ = exact.Upsert(ctx, id, zero)
		default:
			vec := randomVector(rng, 8)
			_ = idx.Upsert(ctx, id, vec)
			_ = exact.Upsert(ctx, id, vec)
		}
		if idx.Size() != exact.Size() {
			t.Fatalf("step %d: size %d, want %d", step, idx.Size(), exact.Size())
		}
		if step%10 != 0 {
			continue
		}
		query := randomVector(rng, 8)
		got, err := idx.Search(ctx, query, 3, nil)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		want, _ := exact.Search(ctx, query, 3, nil)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("step %d: hnsw %+v, exact %+v", step, got, want)
		}
	}
}

func TestHNSWIndex_RemoveAllButZeroVectors(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewHNSWIndex(2, Options{Oversample: 1})
	_ = idx.Upsert(ctx, "a", []float32{1, 0})
	_ = idx.Upsert(ctx, "z1", []float32{0, 0})
	_ = idx.Upsert(ctx, "z2", []float32{0, 0})
	_ = idx.Remove(ctx, "a")
	if err := idx.Upsert(ctx, "b", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestHNSWIndex_FilterIsExact(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	idx, _ := NewHNSWIndex(4, Options{})
	exact, _ := NewMemoryIndex(4, Ranker{})
	for _, c := range randomCandidates(rng, 200, 4) {
		_ = idx.Upsert(ctx, c.ID, c.Vector)
		_ = exact.Upsert(ctx, c.ID, c.Vector)
	}
	accept := func(id string) bool { return id != "item-0000" }
	query := randomVector(rng, 4)
	got, _ := idx.Search(ctx, query, 5, accept)
	want, _ := exact.Search(ctx, query, 5, accept)
	if len(got) != len(want) {
		t.Fatalf("len %d != %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("result %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestHNSWIndex_ReplaceAndRemove(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewHNSWIndex(2, Options{})
	_ = idx.Upsert(ctx, "a", []float32{1, 0})
	_ = idx.Upsert(ctx, "a", []float32{0, 1})
	_ = idx.Upsert(ctx, "zero", []float32{0, 0})
	if idx.Size() != 2 {
		t.Fatalf("expected size 2, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1, nil)
	if results[0].ID != "a" || results[0].Score < 0.999 {
		t.Errorf("replacement not applied: %+v", results)
	}
	_ = idx.Remove(ctx, "a")
	_ = idx.Remove(ctx, "zero")
	if idx.Size() != 0 {
		t.Errorf("expected empty index, got %d", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 1, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected no results from empty index, got %+v, %v", results, err)
	}
}
