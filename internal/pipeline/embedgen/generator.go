// Package embedgen turns the review dataset into the vector file, the ID file
// and the metadata store, keeping the three in identical row order.
package embedgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/artifact"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
)

const stage = "embed"

// DefaultBatchSize is the number of reviews embedded per provider call.
const DefaultBatchSize = 128

// MetadataWriter is the write side of the vector-ID -> review metadata store.
type MetadataWriter interface {
	Reset(ctx context.Context) error
	InsertBatch(ctx context.Context, rows []domain.ReviewMeta) error
}

// Paths names the generator's input dataset and output files.
type Paths struct {
	Reviews string
	Vectors string
	IDs     string
}

// Result summarizes a generator run.
type Result struct {
	Rows         int64
	Dimension    int
	PromptTokens int
	TotalTokens  int
	Duration     time.Duration
}

// Generator embeds every review of the dataset. Vector IDs are assigned
// sequentially from 0 in dataset order.
type Generator struct {
	embed     domain.Embedder
	meta      MetadataWriter
	dim       int
	batchSize int
	logger    *zap.Logger
	metrics   *metrics.Pipeline
}

// New creates a generator. embed must return unit vectors of dimension dim
// (wrap the provider in the normalizing embedder).
func New(
	embed domain.Embedder, meta MetadataWriter, dim, batchSize int,
	logger *zap.Logger, m *metrics.Pipeline,
) *Generator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{embed: embed, meta: meta, dim: dim, batchSize: batchSize, logger: logger, metrics: m}
}

// Run rewrites all three outputs. Any failure aborts the run: a partially
// written output set must be regenerated, never served.
func (g *Generator) Run(ctx context.Context, p Paths) (res Result, err error) {
	start := time.Now()

	total, err := dataset.Count(p.Reviews)
	if err != nil {
		return Result{}, fmt.Errorf("count reviews: %w", err)
	}
	if err := g.meta.Reset(ctx); err != nil {
		return Result{}, fmt.Errorf("reset metadata: %w", err)
	}

	vw, err := artifact.CreateVectors(p.Vectors, g.dim)
	if err != nil {
		return Result{}, err
	}
	iw, err := artifact.CreateIDs(p.IDs)
	if err != nil {
		_ = vw.Close()
		return Result{}, err
	}
	defer func() {
		err = errors.Join(err, vw.Close(), iw.Close())
	}()

	g.logger.Info("Embedding reviews",
		zap.Int64("reviews", total),
		zap.Int("batch_size", g.batchSize),
		zap.Int("dimension", g.dim),
	)

	w := &batchWriter{g: g, vectors: vw, ids: iw, total: total}
	batch := make([]dataset.ReviewRow, 0, g.batchSize)

	err = dataset.Each(p.Reviews, func(_ int, row dataset.ReviewRow) error {
		batch = append(batch, row)
		if len(batch) < g.batchSize {
			return nil
		}
		ferr := w.flush(ctx, batch)
		batch = batch[:0]
		return ferr
	})
	if err == nil && len(batch) > 0 {
		err = w.flush(ctx, batch)
	}
	if err != nil {
		return Result{}, fmt.Errorf("embed reviews at vector id %d: %w", w.nextID, err)
	}

	if vw.Rows() != w.nextID || iw.Rows() != w.nextID {
		return Result{}, domain.NewIntegrityError("vector/id rows", w.nextID, min(vw.Rows(), iw.Rows()))
	}

	res = Result{
		Rows:         w.nextID,
		Dimension:    g.dim,
		PromptTokens: w.promptTokens,
		TotalTokens:  w.totalTokens,
		Duration:     time.Since(start),
	}
	g.logger.Info("Embeddings written",
		zap.Int64("rows", res.Rows),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

type batchWriter struct {
	g       *Generator
	vectors *artifact.VectorWriter
	ids     *artifact.IDWriter
	total   int64

	nextID       int64
	promptTokens int
	totalTokens  int
}

// flush embeds one batch and appends it to all three outputs.
func (w *batchWriter) flush(ctx context.Context, rows []dataset.ReviewRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	// Empty texts are embedded like any other row; dropping them would shift IDs.
	// The OpenAI adapter sends "" as " " because the API rejects empty input;
	// any other provider must also answer for "" to keep rows aligned.
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.ReviewText
	}

	res, err := domain.EmbedBatch(ctx, w.g.embed, texts)
	if err != nil {
		w.g.metrics.Failed(stage, "embedding")
		return err
	}
	if len(res.Embeddings) != len(rows) {
		return domain.NewIntegrityError("embedding batch size", int64(len(rows)), int64(len(res.Embeddings)))
	}
	for i, v := range res.Embeddings {
		if len(v) != w.g.dim {
			return fmt.Errorf("%w: vector id %d has %d dimensions, want %d",
				domain.ErrVectorDimMismatch, w.nextID+int64(i), len(v), w.g.dim)
		}
	}

	ids := make([]int64, len(rows))
	metas := make([]domain.ReviewMeta, len(rows))
	for i, r := range rows {
		id := w.nextID + int64(i)
		ids[i] = id
		metas[i] = domain.ReviewMeta{
			VectorID:   id,
			ProductKey: r.ASIN,
			ReviewerID: r.ReviewerID,
			Text:       r.ReviewText,
			Summary:    r.Summary,
			Timestamp:  r.UnixReviewTime,
		}
	}

	if err := w.vectors.Write(res.Embeddings...); err != nil {
		return err
	}
	if err := w.ids.Write(ids...); err != nil {
		return err
	}
	if err := w.g.meta.InsertBatch(ctx, metas); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}

	w.nextID += int64(len(rows))
	w.promptTokens += res.PromptTokens
	w.totalTokens += res.TotalTokens
	w.g.metrics.Processed(stage, len(rows))
	w.g.metrics.ObserveBatch(stage, start)

	w.g.logger.Info("Embedding batch written",
		zap.Int64("done", w.nextID),
		zap.Int64("total", w.total),
		zap.Duration("batch_duration", time.Since(start)),
	)
	return nil
}
