// Package db defines the storage contract shared by the lexical index, the
// vector index and the query embedding cache. Repositories declare their own
// narrow interfaces; Store exists so one driver can be checked against all of
// them at compile time.
package db

import (
	"context"
	"time"
)

//nolint:interfacebloat
type Store interface {
	Pinger
	HashWriter
	Cache
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one document hash: product fields or a review vector.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashWriter writes indexed documents.
type HashWriter interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// Cache is a byte-valued KV used for query embeddings.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value; ttl <= 0 means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; deleteDocs also deletes the indexed hashes (DD).
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (IndexStats, error)
}

// Searcher runs KNN and BM25 queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
