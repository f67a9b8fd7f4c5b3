// Package app assembles the components shared by the API server and the
// pipeline CLI from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/config"
	dbRedis "github.com/kailas-cloud/reviewsearch/internal/db/redis"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/domain/search/request"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/artifact"
	"github.com/kailas-cloud/reviewsearch/internal/repository/catalog"
	"github.com/kailas-cloud/reviewsearch/internal/repository/embcache"
	"github.com/kailas-cloud/reviewsearch/internal/repository/lexical"
	"github.com/kailas-cloud/reviewsearch/internal/repository/metadata"
	"github.com/kailas-cloud/reviewsearch/internal/repository/vectorindex"
	openaiEmb "github.com/kailas-cloud/reviewsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/reviewsearch/internal/usecase/embedding"
)

const providerName = "openai"

// ConnectStore creates the Redis store and waits until it answers.
func ConnectStore(ctx context.Context, cfg config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,

		DialTimeout:  time.Duration(cfg.Database.DialTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Database.WriteTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	return store, nil
}

// OpenMetadata opens the configured metadata store.
func OpenMetadata(cfg config.Config, logger *zap.Logger) (metadata.Store, error) {
	return metadata.Open(cfg.Metadata.Driver, cfg.Metadata.Path, logger.Named("metadata"))
}

// OpenCatalog opens the relational product store.
func OpenCatalog(ctx context.Context, cfg config.Config) (*catalog.Repo, error) {
	return catalog.Open(ctx, catalog.Config{
		DSN:          cfg.Catalog.DSN,
		MaxOpenConns: cfg.Catalog.MaxOpenConns,
		MaxIdleConns: cfg.Catalog.MaxIdleConns,
	})
}

// Lexical creates the product FT index repository.
func Lexical(store *dbRedis.Store, cfg config.Config) *lexical.Repo {
	return lexical.New(store, lexical.Config{
		IndexName:   cfg.Lexical.IndexName,
		TitleWeight: cfg.Lexical.TitleWeight,
		Scorer:      cfg.Lexical.Scorer,
	})
}

// VectorIndex creates the review HNSW index repository.
func VectorIndex(store *dbRedis.Store, params domain.IndexParams, cfg config.Config) *vectorindex.Repo {
	return vectorindex.New(store, cfg.Vector.IndexName, params)
}

// IndexParams returns the build parameters from configuration.
func IndexParams(cfg config.Config) domain.IndexParams {
	p := domain.DefaultIndexParams()
	p.Dimensions = cfg.Embedding.Dimensions
	p.Connectivity = cfg.Vector.Connectivity
	p.ConstructionBeamWidth = cfg.Vector.ConstructionBeamWidth
	p.DefaultQueryBeamWidth = cfg.Vector.DefaultQueryBeamWidth
	return p
}

// ServingIndexParams prefers the parameters recorded by the last build. A
// missing sidecar falls back to configuration; a dimension that disagrees with
// the embedding model is an integrity error.
func ServingIndexParams(cfg config.Config, logger *zap.Logger) (domain.IndexParams, error) {
	p := IndexParams(cfg)
	sc, err := artifact.ReadSidecar(cfg.Vector.SidecarPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("No index sidecar, using configured index parameters",
			zap.String("sidecar", cfg.Vector.SidecarPath))
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if sc.Dimension != cfg.Embedding.Dimensions {
		return p, fmt.Errorf("%w: index built with %d dimensions, embedding model has %d",
			domain.ErrVectorDimMismatch, sc.Dimension, cfg.Embedding.Dimensions)
	}
	logger.Info("Index sidecar loaded",
		zap.String("index", sc.IndexName),
		zap.Int64("count", sc.Count),
		zap.Time("built_at", sc.BuiltAt),
	)
	return sc.Params(), nil
}

// Limits returns the query parameter ranges. The default beam width comes
// from the index parameters.
func Limits(cfg config.Config, params domain.IndexParams) request.Limits {
	return request.Limits{
		DefaultTopProducts: cfg.Search.DefaultTopProducts,
		MaxTopProducts:     cfg.Search.MaxTopProducts,
		DefaultTopReviews:  cfg.Search.DefaultTopReviews,
		MaxTopReviews:      cfg.Search.MaxTopReviews,
		DefaultVectorK:     cfg.Search.DefaultVectorK,
		MaxVectorK:         cfg.Search.MaxVectorK,
		DefaultBeamWidth:   min(params.DefaultQueryBeamWidth, cfg.Search.MaxBeamWidth),
		MaxBeamWidth:       cfg.Search.MaxBeamWidth,
	}
}

func provider(cfg config.Config, logger *zap.Logger) *openaiEmb.Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   providerName,
		Logger:     logger,
	})
}

// QueryEmbedder assembles the request-time decorator chain:
// OpenAI -> Breaker -> Redis cache -> Chunking -> Normalizing -> Memo.
// Nothing in it retries; an open breaker fails the request immediately.
// The provider is returned for health checks.
func QueryEmbedder(
	cfg config.Config, store *dbRedis.Store, logger *zap.Logger,
) (domain.Embedder, *openaiEmb.Embedder, error) {
	base := provider(cfg, logger)

	var e domain.Embedder = embeddinguc.NewBreakerEmbedder(base, embeddinguc.BreakerConfig{
		Name:        providerName,
		MaxFailures: cfg.Embedding.Breaker.MaxFailures,
		OpenTimeout: time.Duration(cfg.Embedding.Breaker.OpenSec) * time.Second,
	}, metrics.EmbeddingBreakerState, logger)

	if store != nil {
		e = embcache.New(e, store, embcache.Options{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			TTL:        time.Duration(cfg.Embedding.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	e = embeddinguc.NewChunkingEmbedder(e, chunkConfig(cfg), logger)
	e = embeddinguc.NewNormalizingEmbedder(e, cfg.Embedding.Dimensions)

	memo, err := embeddinguc.NewMemoEmbedder(e, cfg.Embedding.MemoCacheSize, metrics.EmbeddingCacheTotal)
	if err != nil {
		return nil, nil, err
	}
	return memo, base, nil
}

// OfflineEmbedder assembles the pipeline chain:
// OpenAI -> Retrying -> Chunking -> Normalizing.
func OfflineEmbedder(cfg config.Config, logger *zap.Logger) domain.Embedder {
	retry := embeddinguc.DefaultRetryConfig()
	retry.MaxRetries = cfg.Embedding.MaxRetries
	retry.BaseDelay = time.Duration(cfg.Embedding.RetryBackoffMs) * time.Millisecond

	var e domain.Embedder = embeddinguc.NewRetryingEmbedder(provider(cfg, logger), retry, logger)
	e = embeddinguc.NewChunkingEmbedder(e, chunkConfig(cfg), logger)
	return embeddinguc.NewNormalizingEmbedder(e, cfg.Embedding.Dimensions)
}

func chunkConfig(cfg config.Config) embeddinguc.ChunkConfig {
	return embeddinguc.ChunkConfig{
		MaxBatch:      cfg.Embedding.BatchSize,
		MaxInputRunes: cfg.Embedding.MaxInputRunes,
	}
}
