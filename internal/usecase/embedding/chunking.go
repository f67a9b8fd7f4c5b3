// Package embedding holds the embedder decorators used at query time and
// offline: batch chunking with input truncation, L2 normalization,
// in-process memoization, circuit breaking and retries.
package embedding

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// Provider request limits.
const (
	DefaultMaxBatch      = 256
	DefaultMaxInputRunes = 8000
)

// ChunkConfig bounds what a single provider request may carry.
type ChunkConfig struct {
	MaxBatch      int // texts per request; <= 0 uses DefaultMaxBatch
	MaxInputRunes int // longer texts are cut; <= 0 uses DefaultMaxInputRunes
}

// ChunkingEmbedder keeps requests inside the provider's limits. Batches are
// split into requests of at most MaxBatch texts and each text is truncated
// to MaxInputRunes, so a single long review cannot fail a whole batch.
type ChunkingEmbedder struct {
	inner  domain.Embedder
	cfg    ChunkConfig
	logger *zap.Logger
}

// NewChunkingEmbedder wraps inner.
func NewChunkingEmbedder(inner domain.Embedder, cfg ChunkConfig, logger *zap.Logger) *ChunkingEmbedder {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = DefaultMaxInputRunes
	}
	return &ChunkingEmbedder{inner: inner, cfg: cfg, logger: logger}
}

// Embed truncates text and delegates.
func (c *ChunkingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return c.inner.Embed(ctx, c.truncate(text)) //nolint:wrapcheck // decorator
}

// BatchEmbed embeds texts chunk by chunk and concatenates the results in
// input order. The first failed chunk fails the call.
func (c *ChunkingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for offset := 0; offset < len(texts); offset += c.cfg.MaxBatch {
		chunk := texts[offset:min(offset+c.cfg.MaxBatch, len(texts))]
		input := make([]string, len(chunk))
		for i, t := range chunk {
			input[i] = c.truncate(t)
		}

		start := time.Now()
		res, err := domain.EmbedBatch(ctx, c.inner, input)
		if err != nil {
			c.logger.Error("Embedding chunk failed",
				zap.Int("offset", offset), zap.Int("size", len(chunk)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk at %d: %w", offset, err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, &domain.IntegrityError{
				Check: fmt.Sprintf("embeddings for chunk at %d", offset),
				Want:  int64(len(chunk)),
				Got:   int64(len(res.Embeddings)),
			}
		}
		c.logger.Debug("Embedding chunk done",
			zap.Int("offset", offset), zap.Int("size", len(chunk)),
			zap.Int("tokens", res.TotalTokens), zap.Duration("took", time.Since(start)))

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// truncate cuts s to MaxInputRunes without splitting a UTF-8 sequence.
func (c *ChunkingEmbedder) truncate(s string) string {
	if len(s) <= c.cfg.MaxInputRunes || utf8.RuneCountInString(s) <= c.cfg.MaxInputRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == c.cfg.MaxInputRunes {
			return s[:i]
		}
		n++
	}
	return s
}
