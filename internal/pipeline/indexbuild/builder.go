// Package indexbuild rebuilds the review vector index from the generator's
// vector and ID files and records the build parameters in a sidecar.
package indexbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/artifact"
)

const stage = "index"

// VectorIndex is the write side of the HNSW review index.
type VectorIndex interface {
	IndexName() string
	Params() domain.IndexParams
	Recreate(ctx context.Context) error
	Load(ctx context.Context, firstID int64, vectors [][]float32) error
	WaitIndexed(ctx context.Context, want int64, poll time.Duration) (db.IndexStats, error)
}

// Paths names the builder's inputs and the sidecar it writes.
type Paths struct {
	Vectors string
	IDs     string
	Sidecar string
}

// Options tune the load.
type Options struct {
	BatchSize int           // vectors per pipeline round trip (default 1000)
	Poll      time.Duration // indexing progress poll interval (default 500ms)
}

// Builder performs full rebuilds. Connectivity and construction beam width
// come from the index parameters and are fixed for the life of the index.
type Builder struct {
	index   VectorIndex
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Pipeline
	now     func() time.Time
}

// New creates a builder.
func New(index VectorIndex, opts Options, logger *zap.Logger, m *metrics.Pipeline) *Builder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Poll <= 0 {
		opts.Poll = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{index: index, opts: opts, logger: logger, metrics: m, now: time.Now}
}

// Build drops and recreates the index, loads every vector under its ID, waits
// for background indexing and writes the sidecar. The ID file must hold the
// contiguous range 0..N-1 matching the vector file row for row.
func (b *Builder) Build(ctx context.Context, p Paths) (artifact.Sidecar, error) {
	start := time.Now()
	params := b.index.Params()

	vr, err := artifact.OpenVectors(p.Vectors)
	if err != nil {
		return artifact.Sidecar{}, err
	}
	defer func() { _ = vr.Close() }()

	if vr.Dim() != params.Dimensions {
		return artifact.Sidecar{}, fmt.Errorf("%w: vector file has %d dimensions, index expects %d",
			domain.ErrVectorDimMismatch, vr.Dim(), params.Dimensions)
	}
	if err := checkIDs(p.IDs, vr.Rows()); err != nil {
		return artifact.Sidecar{}, err
	}

	b.logger.Info("Rebuilding vector index",
		zap.String("index", b.index.IndexName()),
		zap.Int64("vectors", vr.Rows()),
		zap.Int("dimension", params.Dimensions),
		zap.Int("m", params.Connectivity),
		zap.Int("ef_construction", params.ConstructionBeamWidth),
	)

	if err := b.index.Recreate(ctx); err != nil {
		return artifact.Sidecar{}, err
	}

	var loaded int64
	for {
		batch, err := vr.NextBatch(b.opts.BatchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return artifact.Sidecar{}, err
		}

		batchStart := time.Now()
		if err := b.index.Load(ctx, loaded, batch); err != nil {
			b.metrics.Failed(stage, "load")
			return artifact.Sidecar{}, err
		}
		loaded += int64(len(batch))
		b.metrics.Processed(stage, len(batch))
		b.metrics.ObserveBatch(stage, batchStart)

		b.logger.Info("Index batch loaded",
			zap.Int64("loaded", loaded),
			zap.Int64("total", vr.Rows()),
		)
	}
	if loaded != vr.Rows() {
		return artifact.Sidecar{}, domain.NewIntegrityError("loaded vectors", vr.Rows(), loaded)
	}

	stats, err := b.index.WaitIndexed(ctx, loaded, b.opts.Poll)
	if err != nil {
		return artifact.Sidecar{}, err
	}
	if stats.NumDocs != loaded {
		return artifact.Sidecar{}, domain.NewIntegrityError("indexed documents", loaded, stats.NumDocs)
	}

	sc := artifact.NewSidecar(b.index.IndexName(), loaded, params, b.now())
	if err := artifact.WriteSidecar(p.Sidecar, sc); err != nil {
		return artifact.Sidecar{}, err
	}

	b.logger.Info("Vector index built",
		zap.Int64("count", loaded),
		zap.String("sidecar", p.Sidecar),
		zap.Duration("duration", time.Since(start)),
	)
	return sc, nil
}

func checkIDs(path string, rows int64) error {
	ids, err := artifact.ReadIDs(path)
	if err != nil {
		return err
	}
	if int64(len(ids)) != rows {
		return domain.NewIntegrityError("id file rows", rows, int64(len(ids)))
	}
	for i, id := range ids {
		if id != int64(i) {
			return domain.NewIntegrityError(fmt.Sprintf("id at row %d", i), int64(i), id)
		}
	}
	return nil
}
