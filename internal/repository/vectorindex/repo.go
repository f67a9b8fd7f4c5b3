// Package vectorindex keeps review embeddings in a Redis HNSW index (inner product)
// and answers KNN queries with a per-call query beam width.
package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

const vectorField = "vector"

// store is the consumer interface for vector index operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexInfo(ctx context.Context, name string) (db.IndexStats, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the semantic stage backend and the index builder target.
type Repo struct {
	store     store
	indexName string
	params    domain.IndexParams
}

// New creates a vector index repository.
func New(s store, indexName string, params domain.IndexParams) *Repo {
	return &Repo{store: s, indexName: indexName, params: params}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.indexName }

// Params returns the build parameters the repository was configured with.
func (r *Repo) Params() domain.IndexParams { return r.params }

// SearchReviews returns the k nearest review vectors to vec, searched with the given
// beam width (0 keeps the index default). Similarity is 1 - distance, i.e. the inner
// product of unit vectors.
func (r *Repo) SearchReviews(ctx context.Context, vec []float32, k, beamWidth int) ([]domain.VectorHit, error) {
	if len(vec) != r.params.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d",
			domain.ErrVectorDimMismatch, len(vec), r.params.Dimensions)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  vectorField,
		Vector:       vec,
		K:            k,
		EFRuntime:    beamWidth,
		ReturnFields: []string{"__" + vectorField + "_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("search reviews: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]domain.VectorHit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id, ok := parseVectorID(e.Key)
		if !ok {
			continue
		}
		hits = append(hits, domain.VectorHit{VectorID: id, Similarity: 1 - e.Score})
	}
	return hits, nil
}

// Recreate drops the index together with its documents and creates an empty one.
// A rebuild is always a full rebuild.
func (r *Repo) Recreate(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w: %w", r.indexName, domain.ErrBackendUnavailable, err)
	}

	metric, err := db.ParseDistanceMetric(r.params.Metric)
	if err != nil {
		return fmt.Errorf("index metric: %w", err)
	}

	def, err := db.NewIndex(r.indexName).
		Prefix(domain.ReviewKeyPrefix).
		Vector(vectorField, db.HNSWParams{
			Dim:            r.params.Dimensions,
			Distance:       metric,
			M:              r.params.Connectivity,
			EFConstruction: r.params.ConstructionBeamWidth,
			EFRuntime:      r.params.DefaultQueryBeamWidth,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("review index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w: %w", r.indexName, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Load writes vectors as review documents with IDs firstID, firstID+1, ...
func (r *Repo) Load(ctx context.Context, firstID int64, vectors [][]float32) error {
	items := make([]db.HashSetItem, len(vectors))
	for i, v := range vectors {
		if len(v) != r.params.Dimensions {
			return fmt.Errorf("%w: row %d has %d, index has %d",
				domain.ErrVectorDimMismatch, firstID+int64(i), len(v), r.params.Dimensions)
		}
		items[i] = db.HashSetItem{
			Key:    domain.ReviewDocKey(firstID + int64(i)),
			Fields: map[string]string{vectorField: vectorToBytes(v)},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("load vectors at %d: %w: %w", firstID, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Stats returns the indexed document count and indexing progress.
func (r *Repo) Stats(ctx context.Context) (db.IndexStats, error) {
	stats, err := r.store.IndexInfo(ctx, r.indexName)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return db.IndexStats{}, fmt.Errorf("index %s: %w", r.indexName, domain.ErrNotFound)
		}
		return db.IndexStats{}, fmt.Errorf("index info %s: %w: %w", r.indexName, domain.ErrBackendUnavailable, err)
	}
	return stats, nil
}

// WaitIndexed polls until background indexing finished and want documents are indexed.
func (r *Repo) WaitIndexed(ctx context.Context, want int64, poll time.Duration) (db.IndexStats, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		stats, err := r.Stats(ctx)
		if err != nil {
			return stats, err
		}
		if !stats.Indexing && stats.NumDocs >= want {
			return stats, nil
		}

		select {
		case <-ctx.Done():
			return stats, fmt.Errorf("wait for index %s (%d/%d docs): %w",
				r.indexName, stats.NumDocs, want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func parseVectorID(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, domain.ReviewKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
