package embcache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/reviewsearch/internal/db"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// fakeProvider returns vec(text) for every text and counts calls.
type fakeProvider struct {
	vec        func(text string) []float32
	err        error
	tokens     int
	embedCalls int
	batchCalls int
	batchSizes []int
}

func (p *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	p.embedCalls++
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	return domain.EmbeddingResult{Embedding: p.vec(text), PromptTokens: p.tokens, TotalTokens: p.tokens}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.batchCalls++
	p.batchSizes = append(p.batchSizes, len(texts))
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vec(t)
	}
	n := p.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

// memStore is a map-backed cache store with injectable failures.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	putErr error
	puts   int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}
