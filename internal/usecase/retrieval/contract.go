package retrieval

import (
	"context"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// LexicalSearcher returns the top products for a free-text query, best first.
type LexicalSearcher interface {
	SearchProducts(ctx context.Context, query string, topK int) ([]domain.ProductHit, error)
}

// VectorSearcher returns the nearest review vectors. beamWidth is applied to this
// call only.
type VectorSearcher interface {
	SearchReviews(ctx context.Context, vec []float32, k, beamWidth int) ([]domain.VectorHit, error)
}

// MetadataReader resolves review metadata for many vector IDs at once.
// IDs without a row are absent from the map.
type MetadataReader interface {
	ReviewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ReviewMeta, error)
}

// CatalogReader fetches canonical product records by key.
type CatalogReader interface {
	ProductsByKeys(ctx context.Context, keys []string) (map[string]domain.ProductRecord, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
