// Package productload loads the sampled product dataset into the lexical
// index and the relational product store.
package productload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
)

const stage = "load_products"

// Defaults for Options.
const (
	DefaultWorkers   = 4
	DefaultBatchSize = 500
)

// LexicalIndex is the write side of the product FT index.
type LexicalIndex interface {
	EnsureIndex(ctx context.Context) error
	UpsertProducts(ctx context.Context, docs []domain.ProductDoc) error
}

// Catalog is the write side of the relational product store.
type Catalog interface {
	EnsureSchema(ctx context.Context) error
	UpsertProducts(ctx context.Context, docs []domain.ProductDoc) error
}

// Options tune the loader's worker pool.
type Options struct {
	Workers   int
	BatchSize int
}

// Result summarizes a load.
type Result struct {
	Loaded   int64
	Batches  int64
	Duration time.Duration
}

// Loader upserts product batches into both stores from a bounded worker pool.
// Loading is idempotent: re-running it overwrites rows by product key.
type Loader struct {
	lexical LexicalIndex
	catalog Catalog
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Pipeline
}

// New creates a loader.
func New(lexical LexicalIndex, catalog Catalog, opts Options, logger *zap.Logger, m *metrics.Pipeline) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{lexical: lexical, catalog: catalog, opts: opts, logger: logger, metrics: m}
}

// Run creates the lexical index and the products table if absent and loads
// every row of the product dataset at path. The first failed batch cancels
// the remaining ones and is returned.
func (l *Loader) Run(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	if err := l.lexical.EnsureIndex(ctx); err != nil {
		return Result{}, fmt.Errorf("ensure lexical index: %w", err)
	}
	if err := l.catalog.EnsureSchema(ctx); err != nil {
		return Result{}, fmt.Errorf("ensure catalog schema: %w", err)
	}

	pool, err := ants.NewPool(l.opts.Workers)
	if err != nil {
		return Result{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg      sync.WaitGroup
		loaded  atomic.Int64
		batches atomic.Int64
	)

	submit := func(docs []domain.ProductDoc) error {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := l.upsert(ctx, docs); err != nil {
				cancel(err)
				return
			}
			total := loaded.Add(int64(len(docs)))
			batches.Add(1)
			l.logger.Debug("Product batch loaded", zap.Int64("loaded", total))
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("submit batch: %w", err)
		}
		return nil
	}

	batch := make([]domain.ProductDoc, 0, l.opts.BatchSize)
	readErr := dataset.Each(path, func(_ int, row dataset.ProductRow) error {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		batch = append(batch, row.Doc())
		if len(batch) < l.opts.BatchSize {
			return nil
		}
		err := submit(batch)
		batch = make([]domain.ProductDoc, 0, l.opts.BatchSize)
		return err
	})
	if readErr == nil && len(batch) > 0 {
		readErr = submit(batch)
	}

	wg.Wait()

	res := Result{Loaded: loaded.Load(), Batches: batches.Load(), Duration: time.Since(start)}
	if cause := context.Cause(ctx); cause != nil {
		return res, fmt.Errorf("load products: %w", cause)
	}
	if readErr != nil {
		return res, fmt.Errorf("load products: %w", readErr)
	}

	l.logger.Info("Products loaded",
		zap.Int64("loaded", res.Loaded),
		zap.Int64("batches", res.Batches),
		zap.Int("workers", l.opts.Workers),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (l *Loader) upsert(ctx context.Context, docs []domain.ProductDoc) error {
	start := time.Now()
	defer l.metrics.ObserveBatch(stage, start)

	if err := l.lexical.UpsertProducts(ctx, docs); err != nil {
		l.metrics.Failed(stage, "lexical")
		return fmt.Errorf("lexical upsert: %w", err)
	}
	if err := l.catalog.UpsertProducts(ctx, docs); err != nil {
		l.metrics.Failed(stage, "catalog")
		return fmt.Errorf("catalog upsert: %w", err)
	}
	l.metrics.Processed(stage, len(docs))
	return nil
}
