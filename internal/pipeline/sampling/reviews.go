package sampling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/rawrecord"
)

// ReviewConfig bounds the review dataset.
type ReviewConfig struct {
	Target        int // total reviews R
	PerProductCap int // first-pass cap c per product
}

// ReviewStats describes a dataset construction run.
type ReviewStats struct {
	FirstPass   int
	SecondPass  int
	Duplicates  int
	ParseErrors int
}

// Total returns the number of emitted rows.
func (s ReviewStats) Total() int { return s.FirstPass + s.SecondPass }

// BuildReviewDataset selects at most cfg.Target reviews of sampled products.
//
// Pass 1 accepts a review when its product is sampled, its dedupe key is new and
// its product has fewer than cfg.PerProductCap accepted reviews. If pass 1 falls
// short of the target, pass 2 re-reads the stream and fills the rest ignoring the
// cap. Rows are emitted in stream order. Failing to open src aborts the run.
func BuildReviewDataset(
	ctx context.Context, src rawrecord.Source, keys map[string]struct{},
	cfg ReviewConfig, emit func(dataset.ReviewRow) error, opts Options,
) (ReviewStats, error) {
	if cfg.Target < 0 || cfg.PerProductCap < 1 {
		return ReviewStats{}, fmt.Errorf("%w: target %d, per-product cap %d",
			domain.ErrInvalidRequest, cfg.Target, cfg.PerProductCap)
	}

	b := &reviewBuilder{
		keys:   keys,
		cfg:    cfg,
		emit:   emit,
		opts:   opts,
		log:    opts.logger(),
		seen:   make(map[rawrecord.DedupeKey]struct{}, cfg.Target),
		counts: make(map[string]int, len(keys)),
	}
	if cfg.Target == 0 || len(keys) == 0 {
		return b.stats, nil
	}

	if err := b.pass(ctx, src, 1); err != nil {
		return b.stats, err
	}
	b.log.Info("Review first pass done",
		zap.Int("written", b.stats.FirstPass), zap.Int("target", cfg.Target))

	if b.total() >= cfg.Target {
		return b.stats, nil
	}

	b.log.Info("Review second pass starting", zap.Int("needed", cfg.Target-b.total()))
	if err := b.pass(ctx, src, 2); err != nil {
		return b.stats, err
	}
	b.log.Info("Review second pass done",
		zap.Int("written", b.stats.SecondPass), zap.Int("total", b.total()))

	return b.stats, nil
}

type reviewBuilder struct {
	keys   map[string]struct{}
	cfg    ReviewConfig
	emit   func(dataset.ReviewRow) error
	opts   Options
	log    *zap.Logger
	seen   map[rawrecord.DedupeKey]struct{}
	counts map[string]int
	stats  ReviewStats
}

func (b *reviewBuilder) total() int { return b.stats.Total() }

func (b *reviewBuilder) pass(ctx context.Context, src rawrecord.Source, n int) error {
	capped := n == 1
	var emitErr error

	err := rawrecord.ScanLines(ctx, src, func(line int, data []byte) bool {
		if b.total() >= b.cfg.Target {
			return false
		}
		if b.opts.progress(line) {
			b.log.Info("Review pass progress",
				zap.Int("pass", n), zap.Int("lines", line), zap.Int("written", b.total()))
		}

		r, err := rawrecord.ParseReview(line, data)
		if err != nil {
			if capped {
				b.stats.ParseErrors++
				b.opts.Metrics.Failed(stageReviews, "parse")
				b.log.Debug("Skipping review line", zap.Error(err))
			}
			return true
		}
		key := r.ProductKey()
		if _, ok := b.keys[key]; !ok {
			return true
		}
		if capped && b.counts[key] >= b.cfg.PerProductCap {
			return true
		}
		dk := r.Key(line)
		if _, dup := b.seen[dk]; dup {
			if capped {
				b.stats.Duplicates++
				b.opts.Metrics.Failed(stageReviews, "duplicate")
			}
			return true
		}

		if emitErr = b.emit(r.Row(line)); emitErr != nil {
			return false
		}
		b.seen[dk] = struct{}{}
		b.counts[key]++
		if capped {
			b.stats.FirstPass++
		} else {
			b.stats.SecondPass++
		}
		b.opts.Metrics.Processed(stageReviews, 1)
		return true
	})
	if err != nil {
		return fmt.Errorf("review pass %d: %w", n, err)
	}
	if emitErr != nil {
		return fmt.Errorf("review pass %d: %w", n, emitErr)
	}
	return nil
}
