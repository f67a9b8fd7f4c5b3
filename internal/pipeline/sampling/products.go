package sampling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/rawrecord"
)

// ProductSample is the result of sampling the catalog stream.
type ProductSample struct {
	Keys        []string // sampled product keys, reservoir order
	Seen        int      // valid records offered to the reservoir
	ParseErrors int
}

// KeySet returns the sampled keys as a set.
func (s ProductSample) KeySet() map[string]struct{} {
	return KeySet(s.Keys)
}

// KeySet builds a set from a key list.
func KeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// SampleProductKeys reservoir-samples k product keys in one pass. Lines that do
// not parse or have no key are skipped and do not advance the reservoir's
// position counter. Failing to open src is fatal.
func SampleProductKeys(
	ctx context.Context, src rawrecord.Source, k int, seed uint64, opts Options,
) (ProductSample, error) {
	log := opts.logger()
	res := NewReservoir[string](k, seed)
	parseErrors := 0

	err := rawrecord.ScanLines(ctx, src, func(line int, data []byte) bool {
		p, err := rawrecord.ParseProduct(line, data)
		if err != nil {
			parseErrors++
			opts.Metrics.Failed(stageProducts, "parse")
			log.Debug("Skipping product line", zap.Error(err))
		} else {
			res.Offer(p.Key())
			opts.Metrics.Processed(stageProducts, 1)
		}
		if opts.progress(line) {
			log.Info("Reservoir progress",
				zap.Int("lines", line),
				zap.Int("valid", res.Seen()),
				zap.Int("reservoir", len(res.Items())),
			)
		}
		return true
	})
	if err != nil {
		return ProductSample{}, fmt.Errorf("sample product keys: %w", err)
	}

	log.Info("Product keys sampled",
		zap.Int("valid", res.Seen()),
		zap.Int("sampled", len(res.Items())),
		zap.Int("parse_errors", parseErrors),
	)

	return ProductSample{Keys: res.Items(), Seen: res.Seen(), ParseErrors: parseErrors}, nil
}

// WriteSampledProducts re-scans the catalog and emits the cleaned row of every
// sampled key once, at its first occurrence.
func WriteSampledProducts(
	ctx context.Context, src rawrecord.Source, keys map[string]struct{},
	emit func(dataset.ProductRow) error, opts Options,
) (int, error) {
	log := opts.logger()
	written := make(map[string]struct{}, len(keys))
	var emitErr error

	err := rawrecord.ScanLines(ctx, src, func(line int, data []byte) bool {
		if opts.progress(line) {
			log.Info("Product rows progress", zap.Int("lines", line), zap.Int("written", len(written)))
		}
		p, err := rawrecord.ParseProduct(line, data)
		if err != nil {
			return true
		}
		key := p.Key()
		if _, ok := keys[key]; !ok {
			return true
		}
		if _, dup := written[key]; dup {
			return true
		}
		if emitErr = emit(p.Row()); emitErr != nil {
			return false
		}
		written[key] = struct{}{}
		return len(written) < len(keys)
	})
	if err != nil {
		return len(written), fmt.Errorf("write sampled products: %w", err)
	}
	if emitErr != nil {
		return len(written), fmt.Errorf("write sampled products: %w", emitErr)
	}

	log.Info("Sampled products written", zap.Int("written", len(written)), zap.Int("sampled", len(keys)))
	return len(written), nil
}
