package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// BreakerConfig configures the circuit breaker around the query-time provider.
type BreakerConfig struct {
	Name        string
	MaxFailures uint32        // consecutive failures that open the circuit
	OpenTimeout time.Duration // time in open state before a half-open probe
}

// BreakerEmbedder fails fast while the provider is down instead of letting every
// request wait for its own timeout. Query-time embedding is never retried.
type BreakerEmbedder struct {
	inner domain.Embedder
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerEmbedder wraps inner. state (optional) receives the breaker state
// as 0 closed, 1 half-open, 2 open.
func NewBreakerEmbedder(
	inner domain.Embedder, cfg BreakerConfig, state *prometheus.GaugeVec, logger *zap.Logger,
) *BreakerEmbedder {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled request says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if state != nil {
				state.WithLabelValues(name).Set(float64(to))
			}
			if logger != nil {
				logger.Warn("Embedding circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	}

	return &BreakerEmbedder{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// Embed calls inner through the breaker. An open circuit is reported as a provider error.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return domain.EmbeddingResult{}, err
	}
	return res.(domain.EmbeddingResult), nil
}

// State returns the current breaker state.
func (b *BreakerEmbedder) State() gobreaker.State { return b.cb.State() }
