package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds offline pipeline counters. Stages register into their own
// registry so a CLI run can dump or push them without a running server.
type Pipeline struct {
	RowsProcessed *prometheus.CounterVec
	RowsFailed    *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
}

// NewPipeline creates pipeline metrics and registers them in reg (nil = unregistered).
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		RowsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewsearch",
			Subsystem: "pipeline",
			Name:      "rows_processed_total",
			Help:      "Total rows successfully processed",
		}, []string{"stage"}),

		RowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewsearch",
			Subsystem: "pipeline",
			Name:      "rows_failed_total",
			Help:      "Total rows skipped or failed",
		}, []string{"stage", "reason"}),

		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reviewsearch",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Batch duration (embedding call, index load, product upsert)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(p.RowsProcessed, p.RowsFailed, p.BatchDuration)
	}
	return p
}

// Processed adds n successful rows for stage.
func (p *Pipeline) Processed(stage string, n int) {
	if p == nil {
		return
	}
	p.RowsProcessed.WithLabelValues(stage).Add(float64(n))
}

// Failed counts one skipped row for stage.
func (p *Pipeline) Failed(stage, reason string) {
	if p == nil {
		return
	}
	p.RowsFailed.WithLabelValues(stage, reason).Inc()
}

// ObserveBatch records a batch duration since start.
func (p *Pipeline) ObserveBatch(stage string, start time.Time) {
	if p == nil {
		return
	}
	p.BatchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
