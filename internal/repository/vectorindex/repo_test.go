package vectorindex

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// --- SearchReviews ---

func TestSearchReviews_SimilarityFromDistance(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.K != 3 || q.EFRuntime != 64 {
			t.Errorf("unexpected K=%d EF=%d", q.K, q.EFRuntime)
		}
		if q.VectorField != "vector" {
			t.Errorf("unexpected field %s", q.VectorField)
		}
		return &db.SearchResult{
			Total: 4,
			Entries: []db.SearchEntry{
				{Key: "reviewsearch:review:0", Score: 0},
				{Key: "reviewsearch:review:2", Score: 0.2929},
				{Key: "reviewsearch:review:1", Score: 1},
				{Key: "someone-else:7", Score: 0.5}, // foreign key skipped
			},
		}, nil
	}

	hits, err := repo.SearchReviews(context.Background(), []float32{1, 0}, 3, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	wantIDs := []int64{0, 2, 1}
	wantSims := []float64{1, 0.7071, 0}
	for i, h := range hits {
		if h.VectorID != wantIDs[i] {
			t.Errorf("hit[%d].VectorID = %d, want %d", i, h.VectorID, wantIDs[i])
		}
		if math.Abs(h.Similarity-wantSims[i]) > 1e-4 {
			t.Errorf("hit[%d].Similarity = %f, want %f", i, h.Similarity, wantSims[i])
		}
	}
}

func TestSearchReviews_DimMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be called")
		return nil, nil
	}

	_, err := repo.SearchReviews(context.Background(), []float32{1, 0, 0}, 3, 0)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("dimension mismatch must be an integrity error, got %v", err)
	}
}

func TestSearchReviews_BackendError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("i/o timeout")
	}

	_, err := repo.SearchReviews(context.Background(), []float32{1, 0}, 3, 0)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestSearchReviews_ConcurrentBeamWidths(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		// the beam width travels with the query; echo it back as the ID
		return &db.SearchResult{Entries: []db.SearchEntry{
			{Key: domain.ReviewDocKey(int64(q.EFRuntime)), Score: 0},
		}}, nil
	}

	var wg sync.WaitGroup
	for ef := 1; ef <= 50; ef++ {
		wg.Add(1)
		go func(ef int) {
			defer wg.Done()
			hits, err := repo.SearchReviews(context.Background(), []float32{1, 0}, 1, ef)
			if err != nil {
				t.Errorf("ef=%d: %v", ef, err)
				return
			}
			if len(hits) != 1 || hits[0].VectorID != int64(ef) {
				t.Errorf("ef=%d searched with another query's beam width: %+v", ef, hits)
			}
		}(ef)
	}
	wg.Wait()
}

// --- Recreate / Load ---

func TestRecreate_DropsWithDocsAndCreatesHNSW(t *testing.T) {
	repo, ms := newTestRepo(t)

	var calls []string
	ms.dropIndexFn = func(_ context.Context, name string, deleteDocs bool) error {
		calls = append(calls, "drop")
		if !deleteDocs {
			t.Error("expected deleteDocs=true")
		}
		return db.ErrIndexNotFound
	}
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		calls = append(calls, "create")
		f := def.Fields[0]
		if f.HNSW == nil || f.HNSW.Dim != 2 || f.HNSW.Distance != db.DistanceIP ||
			f.HNSW.M != 32 || f.HNSW.EFConstruction != 200 {
			t.Errorf("unexpected vector field %+v", f)
		}
		return nil
	}

	if err := repo.Recreate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[0] != "drop" || calls[1] != "create" {
		t.Errorf("unexpected call order %v", calls)
	}
}

func TestLoad_KeysFollowRowOffsets(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		got = items
		return nil
	}

	err := repo.Load(context.Background(), 10, [][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Key != "reviewsearch:review:10" || got[1].Key != "reviewsearch:review:11" {
		t.Errorf("unexpected keys %s %s", got[0].Key, got[1].Key)
	}
	if len(got[0].Fields["vector"]) != 8 {
		t.Errorf("expected 8 vector bytes, got %d", len(got[0].Fields["vector"]))
	}
}

func TestLoad_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Load(context.Background(), 0, [][]float32{{1, 0, 0}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

// --- Stats / WaitIndexed ---

func TestWaitIndexed(t *testing.T) {
	repo, ms := newTestRepo(t)

	polls := 0
	ms.indexInfoFn = func(_ context.Context, _ string) (db.IndexStats, error) {
		polls++
		if polls < 3 {
			return db.IndexStats{NumDocs: int64(polls), Indexing: true}, nil
		}
		return db.IndexStats{NumDocs: 3, PercentIndexed: 1}, nil
	}

	stats, err := repo.WaitIndexed(context.Background(), 3, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.NumDocs != 3 || polls != 3 {
		t.Errorf("stats=%+v polls=%d", stats, polls)
	}
}

func TestWaitIndexed_ContextDone(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexInfoFn = func(_ context.Context, _ string) (db.IndexStats, error) {
		return db.IndexStats{NumDocs: 1, Indexing: true}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := repo.WaitIndexed(ctx, 3, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStats_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexInfoFn = func(_ context.Context, _ string) (db.IndexStats, error) {
		return db.IndexStats{}, db.ErrIndexNotFound
	}

	if _, err := repo.Stats(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
