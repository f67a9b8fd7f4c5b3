// Package embedtest provides a deterministic in-process embedder for tests.
package embedtest

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// HashEmbedder embeds text as the normalized sum of per-word random vectors seeded
// by the word's hash. Texts that share words get a positive similarity; the same
// text always gets the same vector. Safe for concurrent use.
type HashEmbedder struct {
	Dim int
	// Err, when set, is returned by every call.
	Err error

	mu         sync.Mutex
	calls      int
	batchSizes []int
}

// New creates a hash embedder of dimension dim.
func New(dim int) *HashEmbedder { return &HashEmbedder{Dim: dim} }

// Vector returns the embedding of text without recording a call.
func (h *HashEmbedder) Vector(text string) []float32 {
	v := make([]float32, h.Dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(w))
		seed := f.Sum64()
		rng := rand.New(rand.NewPCG(seed, seed>>1))
		for i := range v {
			v[i] += float32(rng.NormFloat64())
		}
	}
	if len(v) > 0 && domain.Dot(v, v) == 0 {
		v[0] = 1 // empty text
	}
	return domain.NormalizeL2(v)
}

// Embed implements domain.Embedder.
func (h *HashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.Err != nil {
		return domain.EmbeddingResult{}, h.Err
	}
	tokens := len(strings.Fields(text))
	return domain.EmbeddingResult{Embedding: h.Vector(text), PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (h *HashEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	h.mu.Lock()
	h.calls++
	h.batchSizes = append(h.batchSizes, len(texts))
	h.mu.Unlock()
	if h.Err != nil {
		return domain.BatchEmbeddingResult{}, h.Err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = h.Vector(t)
		n := len(strings.Fields(t))
		out.PromptTokens += n
		out.TotalTokens += n
	}
	return out, nil
}

// Calls returns the number of Embed and BatchEmbed calls.
func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// BatchSizes returns the input size of every BatchEmbed call in order.
func (h *HashEmbedder) BatchSizes() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.batchSizes...)
}
