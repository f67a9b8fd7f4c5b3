package sampling

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/metrics"
)

// Pipeline stage labels.
const (
	stageProducts = "sample_products"
	stageReviews  = "sample_reviews"
)

// Options carries the telemetry of a sampling run.
type Options struct {
	Logger        *zap.Logger
	Metrics       *metrics.Pipeline // nil disables counters
	ProgressEvery int               // log every N input lines; <= 0 disables
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) progress(line int) bool {
	return o.ProgressEvery > 0 && line%o.ProgressEvery == 0
}
