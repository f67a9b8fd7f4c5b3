package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// RetryConfig configures exponential backoff for offline embedding batches.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the offline defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
	}
}

// RetryingEmbedder retries failed calls with exponential backoff. Used by the
// offline pipeline only: a batch that still fails aborts the run.
type RetryingEmbedder struct {
	inner  domain.Embedder
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryingEmbedder wraps inner.
func NewRetryingEmbedder(inner domain.Embedder, cfg RetryConfig, logger *zap.Logger) *RetryingEmbedder {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &RetryingEmbedder{inner: inner, cfg: cfg, logger: logger}
}

// Embed retries a single text.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return retryWithBackoff(ctx, r.cfg, r.logger, func() (domain.EmbeddingResult, error) {
		return r.inner.Embed(ctx, text)
	})
}

// BatchEmbed retries the whole batch; partial results are never returned.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return retryWithBackoff(ctx, r.cfg, r.logger, func() (domain.BatchEmbeddingResult, error) {
		return domain.EmbedBatch(ctx, r.inner, texts)
	})
}

func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn func() (T, error)) (T, error) {
	var zero T
	backoff := cfg.BaseDelay

	for attempt := 0; ; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("embedding aborted: %w", ctx.Err())
		}
		// a wrong dimension will not fix itself
		if errors.Is(err, domain.ErrIntegrity) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			return zero, fmt.Errorf("embedding failed after %d attempts: %w", attempt+1, err)
		}

		if logger != nil {
			logger.Warn("Embedding attempt failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("embedding aborted: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && backoff > cfg.MaxDelay {
			backoff = cfg.MaxDelay
		}
	}
}
