// Package embcache keeps query embeddings in Redis so a repeated query string
// skips the provider across restarts and replicas.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

const (
	cacheLayer = "redis"

	resultHit     = "hit"
	resultMiss    = "miss"
	resultCorrupt = "corrupt"
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options identify the vector space an entry belongs to. An entry written
// under one model or dimension count is invisible under another.
type Options struct {
	Model      string
	Dimensions int
	TTL        time.Duration // <= 0 stores without expiry
}

// CachedEmbedder is a read-through cache in front of the provider. Cache
// failures degrade to provider calls and are only logged.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	opts   Options
	prefix string
	total  *prometheus.CounterVec
	logger *zap.Logger
}

// New wraps inner. total takes labels ("layer", "result") and may be nil.
func New(
	inner domain.Embedder, s store, opts Options, total *prometheus.CounterVec, logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		store:  s,
		opts:   opts,
		prefix: domain.KeyPrefix + "emb_cache:" + opts.Model + ":" + strconv.Itoa(opts.Dimensions) + ":",
		total:  total,
		logger: logger,
	}
}

// Embed serves a cached vector with zero token usage, or embeds and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // decorator
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed answers hits from the cache and sends the misses to the inner
// embedder as one batch. Output order follows texts; token usage covers the
// misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var misses []int
	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	missTexts := make([]string, len(misses))
	for j, i := range misses {
		missTexts[j] = texts[i]
	}
	res, err := domain.EmbedBatch(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // decorator
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, &domain.IntegrityError{
			Check: "cached batch embedding size", Want: int64(len(misses)), Got: int64(len(res.Embeddings)),
		}
	}

	for j, i := range misses {
		out[i] = res.Embeddings[j]
		c.save(ctx, keys[i], res.Embeddings[j])
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		c.count(resultMiss)
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		c.count(resultMiss)
		return nil, false
	}

	vec, ok := decode(data, c.opts.Dimensions)
	if !ok {
		c.logger.Warn("Discarding malformed cached embedding",
			zap.String("key", key), zap.Int("bytes", len(data)))
		c.count(resultCorrupt)
		return nil, false
	}
	c.count(resultHit)
	return vec, true
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		return // rejected further up by the normalizing decorator
	}
	if err := c.store.Put(ctx, key, encode(vec), c.opts.TTL); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.total != nil {
		c.total.WithLabelValues(cacheLayer, result).Inc()
	}
}

// encode stores the vector as little-endian float32, the same layout as the
// vector field of the review index.
func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decode rejects empty payloads, partial floats, and when dims > 0 any other
// vector length.
func decode(data []byte, dims int) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	if dims > 0 && len(data) != 4*dims {
		return nil, false
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, true
}
