package embedding

import (
	"context"
	"sync"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// mockEmbedder returns result for every text; batchResult, when set,
// replaces the per-text batch answer.
type mockEmbedder struct {
	mu          sync.Mutex
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	calls       int
	batchCalls  int
	batchSizes  []int
	seen        []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.seen = append(m.seen, text)
	m.mu.Unlock()
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	m.seen = append(m.seen, texts...)
	m.mu.Unlock()
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// lengthEmbedder encodes len(text) so ordering and truncation are visible.
// It has no batch endpoint.
type lengthEmbedder struct{ calls int }

func (l *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	l.calls++
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}
