// Package verify cross-checks the persisted artifacts of a pipeline run: the
// vector file, the ID file, the metadata store, the sidecar and the live index.
package verify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/artifact"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/textnorm"
)

// DefaultSampleQueries are run against the index when no queries are given.
var DefaultSampleQueries = []string{
	"long battery life",
	"poor customer support",
	"screen cracked",
	"fast charging",
	"easy setup",
}

const sampleTopK = 5

// Metadata is the read side of the metadata store used by the checks.
type Metadata interface {
	Count(ctx context.Context) (int64, error)
	IDRange(ctx context.Context) (lo, hi int64, err error)
	ReviewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ReviewMeta, error)
}

// Index is the read side of the vector index used by the checks.
type Index interface {
	Stats(ctx context.Context) (db.IndexStats, error)
	SearchReviews(ctx context.Context, vec []float32, k, beamWidth int) ([]domain.VectorHit, error)
}

// Inputs names the files to verify.
type Inputs struct {
	Vectors string
	IDs     string
	Sidecar string
}

// Sample is the outcome of one sample query.
type Sample struct {
	Query          string
	BestSimilarity float64
	Hits           []domain.Review
	Low            bool // best similarity below the configured minimum
}

// Report lists what was checked.
type Report struct {
	Rows      int64
	Dimension int
	Samples   []Sample
}

// Verifier runs the integrity checks.
type Verifier struct {
	meta          Metadata
	index         Index
	embed         domain.Embedder // nil skips sample queries
	minSimilarity float64
	logger        *zap.Logger
}

// New creates a verifier.
func New(meta Metadata, index Index, embed domain.Embedder, minSimilarity float64, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{meta: meta, index: index, embed: embed, minSimilarity: minSimilarity, logger: logger}
}

// Run checks that the vector file, ID file, metadata store, sidecar and index
// agree on the row count, that IDs are exactly 0..N-1 and that the sidecar
// dimension matches the vector file. Every failed check is reported; the
// returned error wraps domain.ErrIntegrity when any count or ID check fails.
// Sample queries only log, they never fail the run.
func (v *Verifier) Run(ctx context.Context, in Inputs, queries []string) (Report, error) {
	rows, dim, err := artifact.VectorFileInfo(in.Vectors)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Rows: rows, Dimension: dim}
	v.logger.Info("Vector file", zap.Int64("rows", rows), zap.Int("dimension", dim))

	var errs []error
	fail := func(check string, want, got int64) {
		err := domain.NewIntegrityError(check, want, got)
		v.logger.Error("Integrity check failed", zap.Error(err))
		errs = append(errs, err)
	}

	ids, err := artifact.ReadIDs(in.IDs)
	if err != nil {
		return rep, err
	}
	if int64(len(ids)) != rows {
		fail("id file rows", rows, int64(len(ids)))
	}
	for i, id := range ids {
		if id != int64(i) {
			fail(fmt.Sprintf("id file row %d", i), int64(i), id)
			break
		}
	}

	count, err := v.meta.Count(ctx)
	if err != nil {
		return rep, fmt.Errorf("count metadata: %w", err)
	}
	if count != rows {
		fail("metadata rows", rows, count)
	}
	lo, hi, err := v.meta.IDRange(ctx)
	if err != nil {
		return rep, fmt.Errorf("metadata id range: %w", err)
	}
	// count unique IDs are exactly 0..count-1 iff lo == 0 and hi == count-1
	if count > 0 {
		if lo != 0 {
			fail("metadata min id", 0, lo)
		}
		if hi != count-1 {
			fail("metadata max id", count-1, hi)
		}
	}

	sc, err := artifact.ReadSidecar(in.Sidecar)
	if err != nil {
		return rep, err
	}
	if sc.Count != rows {
		fail("sidecar count", rows, sc.Count)
	}
	if sc.Dimension != dim {
		fail("sidecar dimension", int64(dim), int64(sc.Dimension))
	}

	stats, err := v.index.Stats(ctx)
	if err != nil {
		return rep, fmt.Errorf("index stats: %w", err)
	}
	if stats.NumDocs != rows {
		fail("indexed documents", rows, stats.NumDocs)
	}

	if len(errs) > 0 {
		return rep, errors.Join(errs...)
	}
	v.logger.Info("Integrity checks passed", zap.Int64("rows", rows))

	if v.embed == nil || rows == 0 {
		return rep, nil
	}
	for _, q := range queries {
		s, err := v.sample(ctx, q, sc.DefaultQueryBeamWidth)
		if err != nil {
			return rep, fmt.Errorf("sample query %q: %w", q, err)
		}
		rep.Samples = append(rep.Samples, s)
	}
	return rep, nil
}

func (v *Verifier) sample(ctx context.Context, query string, beamWidth int) (Sample, error) {
	res, err := v.embed.Embed(ctx, query)
	if err != nil {
		return Sample{}, err
	}
	hits, err := v.index.SearchReviews(ctx, res.Embedding, sampleTopK, beamWidth)
	if err != nil {
		return Sample{}, err
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.VectorID
	}
	metas, err := v.meta.ReviewsByIDs(ctx, ids)
	if err != nil {
		return Sample{}, err
	}

	s := Sample{Query: query}
	for i, h := range hits {
		if i == 0 || h.Similarity > s.BestSimilarity {
			s.BestSimilarity = h.Similarity
		}
		m, ok := metas[h.VectorID]
		if !ok {
			continue
		}
		s.Hits = append(s.Hits, domain.ReviewFromMeta(m, h.Similarity))
		v.logger.Info("Sample hit",
			zap.String("query", query),
			zap.Int64("vector_id", h.VectorID),
			zap.Float64("similarity", h.Similarity),
			zap.String("product", m.ProductKey),
			zap.String("text", textnorm.Truncate(m.Text, 120)),
		)
	}

	s.Low = len(hits) == 0 || s.BestSimilarity < v.minSimilarity
	if s.Low {
		v.logger.Warn("Low top similarity for sample query",
			zap.String("query", query),
			zap.Float64("best", s.BestSimilarity),
			zap.Float64("min", v.minSimilarity),
		)
	}
	return s, nil
}
