package embedding

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// NormalizingEmbedder L2-normalizes every vector and enforces a fixed dimension.
// Reviews and queries go through the same decorator, so inner product over the
// index equals cosine similarity.
type NormalizingEmbedder struct {
	inner domain.Embedder
	dims  int
}

// NewNormalizingEmbedder wraps inner; dims <= 0 disables the dimension check.
func NewNormalizingEmbedder(inner domain.Embedder, dims int) *NormalizingEmbedder {
	return &NormalizingEmbedder{inner: inner, dims: dims}
}

// Dimensions returns the enforced vector dimension.
func (n *NormalizingEmbedder) Dimensions() int { return n.dims }

// Embed returns a unit vector of the configured dimension.
func (n *NormalizingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := n.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	vec, err := n.normalize(res.Embedding)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	res.Embedding = vec
	return res, nil
}

// BatchEmbed normalizes every vector of the batch.
func (n *NormalizingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	res, err := domain.EmbedBatch(ctx, n.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}

	for i, v := range res.Embeddings {
		vec, err := n.normalize(v)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("row %d: %w", i, err)
		}
		res.Embeddings[i] = vec
	}
	return res, nil
}

// normalize works on a copy; inner layers may hand out shared slices.
func (n *NormalizingEmbedder) normalize(v []float32) ([]float32, error) {
	if n.dims > 0 && len(v) != n.dims {
		return nil, fmt.Errorf("%w: model returned %d, expected %d",
			domain.ErrVectorDimMismatch, len(v), n.dims)
	}
	return domain.NormalizeL2(slices.Clone(v)), nil
}
