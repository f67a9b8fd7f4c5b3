package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

func TestChunking_Defaults(t *testing.T) {
	c := NewChunkingEmbedder(&mockEmbedder{}, ChunkConfig{MaxBatch: -1}, zap.NewNop())
	assert.Equal(t, DefaultMaxBatch, c.cfg.MaxBatch)
	assert.Equal(t, DefaultMaxInputRunes, c.cfg.MaxInputRunes)
}

func TestChunking_SplitsBatches(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, PromptTokens: 1, TotalTokens: 1}}
	c := NewChunkingEmbedder(inner, ChunkConfig{MaxBatch: 2}, zap.NewNop())

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, res.Embeddings, 5)
	assert.Equal(t, []int{2, 2, 1}, inner.batchSizes)
	assert.Equal(t, 5, res.TotalTokens)
	assert.Equal(t, 5, res.PromptTokens)
}

func TestChunking_PreservesOrderWithFallback(t *testing.T) {
	inner := &lengthEmbedder{}
	c := NewChunkingEmbedder(inner, ChunkConfig{MaxBatch: 2}, zap.NewNop())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	res, err := c.BatchEmbed(context.Background(), texts)
	require.NoError(t, err)
	for i, v := range res.Embeddings {
		assert.InDelta(t, len(texts[i]), v[0], 0, "row %d", i)
	}
	assert.Equal(t, 5, inner.calls)
}

func TestChunking_TruncatesLongInputs(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	c := NewChunkingEmbedder(inner, ChunkConfig{MaxInputRunes: 4}, zap.NewNop())

	_, err := c.Embed(context.Background(), "très bien")
	require.NoError(t, err)
	_, err = c.BatchEmbed(context.Background(), []string{"ok", "€€€€€€"})
	require.NoError(t, err)

	assert.Equal(t, []string{"très", "ok", "€€€€"}, inner.seen)
}

func TestChunking_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	c := NewChunkingEmbedder(inner, ChunkConfig{}, zap.NewNop())

	res, err := c.BatchEmbed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Embeddings)
	assert.Zero(t, inner.batchCalls)
}

func TestChunking_ChunkErrorStops(t *testing.T) {
	inner := &mockEmbedder{batchErr: domain.ErrEmbeddingProviderError}
	c := NewChunkingEmbedder(inner, ChunkConfig{MaxBatch: 1}, zap.NewNop())

	_, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestChunking_ShortAnswerIsIntegrityError(t *testing.T) {
	inner := &mockEmbedder{batchResult: domain.BatchEmbeddingResult{Embeddings: [][]float32{{0.1}}}}
	c := NewChunkingEmbedder(inner, ChunkConfig{}, zap.NewNop())

	_, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, domain.ErrIntegrity)
	var ie *domain.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.True(t, strings.HasPrefix(ie.Check, "embeddings for chunk"))
}
