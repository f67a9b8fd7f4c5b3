// Package retrieval answers hybrid queries: lexical product ranking enriched with
// the semantically closest reviews.
package retrieval

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/domain/search/request"
	"github.com/kailas-cloud/reviewsearch/internal/logger"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
)

// Service runs the hybrid query pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	lexical LexicalSearcher
	vectors VectorSearcher
	meta    MetadataReader
	catalog CatalogReader
	embed   Embedder
	timeout time.Duration
}

// New creates a Service. timeout <= 0 leaves the caller's deadline untouched.
func New(
	lexical LexicalSearcher, vectors VectorSearcher, meta MetadataReader,
	catalog CatalogReader, embed Embedder, timeout time.Duration,
) *Service {
	return &Service{
		lexical: lexical,
		vectors: vectors,
		meta:    meta,
		catalog: catalog,
		embed:   embed,
		timeout: timeout,
	}
}

// Search runs the stages strictly in order: lexical, semantic, candidate
// resolution, membership filter, per-product aggregation, enrichment, assembly.
// Products keep their lexical order; semantic scores never re-rank them.
func (s *Service) Search(ctx context.Context, req *request.Request) (domain.QueryResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = logger.With(ctx, zap.String("query", req.Query()))
	log := logger.FromContext(ctx)

	// 1. lexical
	var hits []domain.ProductHit
	err := observe(metrics.StageLexical, func() error {
		var err error
		hits, err = s.lexical.SearchProducts(ctx, req.Query(), req.TopProducts())
		return err
	})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("lexical search: %w", err)
	}
	keys := make([]string, 0, len(hits))
	for _, h := range hits {
		keys = append(keys, h.Key)
	}

	// 2. semantic; runs even when the lexical stage found nothing
	var emb domain.EmbeddingResult
	err = observe(metrics.StageEmbed, func() error {
		var err error
		emb, err = s.embed.Embed(ctx, req.Query())
		return err
	})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("embed query: %w", err)
	}

	metrics.SearchBeamWidth.Observe(float64(req.BeamWidth()))
	var vhits []domain.VectorHit
	err = observe(metrics.StageVector, func() error {
		var err error
		vhits, err = s.vectors.SearchReviews(ctx, emb.Embedding, req.VectorK(), req.BeamWidth())
		return err
	})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("vector search: %w", err)
	}

	// 3. candidate resolution, one lookup for all IDs
	candidates, err := s.resolve(ctx, vhits)
	if err != nil {
		return domain.QueryResult{}, err
	}

	// 4. membership filter
	candidates = filterByMembership(candidates, keys, req.FilterByProducts())

	// 5. aggregation
	groups := aggregate(candidates, req.TopReviews())

	// 6. enrichment, only for lexical keys
	var records map[string]domain.ProductRecord
	if len(keys) > 0 {
		err = observe(metrics.StageCatalog, func() error {
			var err error
			records, err = s.catalog.ProductsByKeys(ctx, keys)
			return err
		})
		if err != nil {
			return domain.QueryResult{}, fmt.Errorf("fetch products: %w", err)
		}
	}

	// 7. assembly
	products := make([]domain.Product, 0, len(hits))
	for _, h := range hits {
		products = append(products, enrich(h, records[h.Key], groups[h.Key]))
	}

	log.Debug("Hybrid query completed",
		zap.Int("lexical_hits", len(hits)),
		zap.Int("vector_hits", len(vhits)),
		zap.Int("candidates", len(candidates)),
		zap.Int("beam_width", req.BeamWidth()),
	)

	return domain.QueryResult{Query: req.Query(), Products: products}, nil
}

// resolve maps vector hits to reviews in hit order. Hits without metadata are dropped.
func (s *Service) resolve(ctx context.Context, vhits []domain.VectorHit) ([]domain.Review, error) {
	if len(vhits) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(vhits))
	for i, h := range vhits {
		ids[i] = h.VectorID
	}

	var metas map[int64]domain.ReviewMeta
	err := observe(metrics.StageMetadata, func() error {
		var err error
		metas, err = s.meta.ReviewsByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	out := make([]domain.Review, 0, len(vhits))
	missing := 0
	for _, h := range vhits {
		m, ok := metas[h.VectorID]
		if !ok {
			missing++
			continue
		}
		out = append(out, domain.ReviewFromMeta(m, h.Similarity))
	}
	if missing > 0 {
		metrics.SearchCandidatesDropped.WithLabelValues(metrics.DropMissingMetadata).Add(float64(missing))
		logger.FromContext(ctx).Warn("Vector IDs without metadata",
			zap.Int("missing", missing), zap.Int("total", len(vhits)))
	}
	return out, nil
}

// filterByMembership keeps reviews of lexical products. An empty key list or a
// disabled filter keeps everything.
func filterByMembership(reviews []domain.Review, keys []string, enabled bool) []domain.Review {
	if !enabled || len(keys) == 0 {
		return reviews
	}
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	out := reviews[:0]
	for _, r := range reviews {
		if _, ok := allowed[r.ProductKey]; ok {
			out = append(out, r)
		}
	}
	if dropped := len(reviews) - len(out); dropped > 0 {
		metrics.SearchCandidatesDropped.WithLabelValues(metrics.DropFiltered).Add(float64(dropped))
	}
	return out
}

// aggregate groups reviews by product, sorts each group by descending similarity
// (ties keep hit order) and truncates to topReviews.
func aggregate(reviews []domain.Review, topReviews int) map[string][]domain.Review {
	groups := make(map[string][]domain.Review)
	for _, r := range reviews {
		groups[r.ProductKey] = append(groups[r.ProductKey], r)
	}
	truncated := 0
	for k, g := range groups {
		slices.SortStableFunc(g, func(a, b domain.Review) int {
			switch {
			case a.Similarity > b.Similarity:
				return -1
			case a.Similarity < b.Similarity:
				return 1
			default:
				return 0
			}
		})
		if len(g) > topReviews {
			truncated += len(g) - topReviews
			g = g[:topReviews]
		}
		groups[k] = g
	}
	if truncated > 0 {
		metrics.SearchCandidatesDropped.WithLabelValues(metrics.DropTruncated).Add(float64(truncated))
	}
	return groups
}

// enrich prefers non-empty canonical values and falls back to the lexical copy.
func enrich(h domain.ProductHit, rec domain.ProductRecord, reviews []domain.Review) domain.Product {
	score := h.Score
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return domain.Product{
		Key:          h.Key,
		Title:        domain.FirstNonEmpty(rec.Title, h.Title),
		Brand:        domain.FirstNonEmpty(rec.Brand, h.Brand),
		Category:     domain.FirstNonEmpty(rec.Category, h.Category),
		Price:        domain.CoercePrice(domain.FirstNonEmpty(rec.Price, h.Price)),
		LexicalScore: &score,
		Reviews:      reviews,
	}
}

func observe(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchStageDuration.WithLabelValues(stage, status).Observe(time.Since(start).Seconds())
	return err
}
