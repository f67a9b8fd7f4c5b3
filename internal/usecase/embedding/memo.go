package embedding

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

const memoLayer = "memo"

// MemoEmbedder keeps the most recent query embeddings in process memory.
// Safe for concurrent use.
type MemoEmbedder struct {
	inner      domain.Embedder
	cache      *lru.Cache[string, []float32]
	cacheTotal *prometheus.CounterVec
}

// NewMemoEmbedder creates an LRU memo of the given size.
func NewMemoEmbedder(inner domain.Embedder, size int, cacheTotal *prometheus.CounterVec) (*MemoEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create memo cache: %w", err)
	}
	return &MemoEmbedder{inner: inner, cache: cache, cacheTotal: cacheTotal}, nil
}

// Embed returns a memoized vector or calls the inner embedder. Callers get a copy.
func (m *MemoEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := m.cache.Get(text); ok {
		m.inc("hit")
		return domain.EmbeddingResult{Embedding: slices.Clone(vec)}, nil
	}
	m.inc("miss")

	res, err := m.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	m.cache.Add(text, slices.Clone(res.Embedding))
	return res, nil
}

// Len returns the number of memoized entries.
func (m *MemoEmbedder) Len() int { return m.cache.Len() }

func (m *MemoEmbedder) inc(result string) {
	if m.cacheTotal != nil {
		m.cacheTotal.WithLabelValues(memoLayer, result).Inc()
	}
}
