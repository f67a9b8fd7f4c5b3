// Package lexical stores the denormalized product copy in a Redis FT index and
// answers weighted multi-field BM25 queries over it.
package lexical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// Hash fields of a product document.
const (
	fieldASIN        = "asin"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldBrand       = "brand"
	fieldCategory    = "category"
	fieldPrice       = "price"
)

// searchFields are matched by every query; title carries the extra weight.
var searchFields = []string{fieldTitle, fieldDescription, fieldBrand, fieldCategory}

// store is the consumer interface for lexical operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Config holds lexical index settings.
type Config struct {
	IndexName   string
	TitleWeight float64
	Scorer      string
}

// Repo implements the lexical stage backend.
type Repo struct {
	store store
	cfg   Config
}

// New creates a lexical repository.
func New(s store, cfg Config) *Repo {
	if cfg.TitleWeight <= 0 {
		cfg.TitleWeight = 3
	}
	return &Repo{store: s, cfg: cfg}
}

// IndexDefinition returns the FT schema of the product index.
func (r *Repo) IndexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.cfg.IndexName).
		Prefix(domain.ProductKeyPrefix).
		Tag(fieldASIN).
		Text(fieldTitle, r.cfg.TitleWeight).
		Text(fieldDescription, 0).
		Text(fieldBrand, 0).
		Text(fieldCategory, 0).
		Build()
	if err != nil {
		return nil, fmt.Errorf("product index definition: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the product index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w: %w", r.cfg.IndexName, domain.ErrBackendUnavailable, err)
	}
	if exists {
		return nil
	}

	def, err := r.IndexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w: %w", r.cfg.IndexName, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// UpsertProducts writes the lexical copy of each product in one pipelined round-trip.
func (r *Repo) UpsertProducts(ctx context.Context, docs []domain.ProductDoc) error {
	items := make([]db.HashSetItem, 0, len(docs))
	for _, d := range docs {
		if d.Key == "" {
			continue
		}
		items = append(items, db.HashSetItem{
			Key: domain.ProductDocKey(d.Key),
			Fields: map[string]string{
				fieldASIN:        d.Key,
				fieldTitle:       d.Title,
				fieldDescription: d.Description,
				fieldBrand:       d.Brand,
				fieldCategory:    d.Category,
				fieldPrice:       d.Price,
			},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert products: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// SearchProducts returns up to topK products ranked by relevance. A query with
// no searchable terms yields no hits and no error.
func (r *Repo) SearchProducts(ctx context.Context, query string, topK int) ([]domain.ProductHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName: r.cfg.IndexName,
		Query:     query,
		Fields:    searchFields,
		TopK:      topK,
		Scorer:    r.cfg.Scorer,
	})
	if err != nil {
		return nil, fmt.Errorf("search products: %w: %w", domain.ErrBackendUnavailable, err)
	}

	return parseHits(sr), nil
}

func parseHits(sr *db.SearchResult) []domain.ProductHit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]domain.ProductHit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		key := e.Fields[fieldASIN]
		if key == "" {
			key = strings.TrimPrefix(e.Key, domain.ProductKeyPrefix)
		}
		hits = append(hits, domain.ProductHit{
			Key:      key,
			Title:    e.Fields[fieldTitle],
			Brand:    e.Fields[fieldBrand],
			Category: e.Fields[fieldCategory],
			Price:    e.Fields[fieldPrice],
			Score:    e.Score,
		})
	}
	return hits
}
