package db

import (
	"errors"
	"strings"
)

// DefaultVectorField is the vector attribute name used when a query leaves it empty.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // empty means DefaultVectorField
	Vector       []float32
	K            int
	EFRuntime    int // HNSW query beam width for this call only; 0 keeps the index default
	ReturnFields []string
}

// Field returns the vector attribute the query targets.
func (q *KNNQuery) Field() string {
	if q.VectorField == "" {
		return DefaultVectorField
	}
	return q.VectorField
}

// Validate rejects queries the engine would refuse or answer with nothing.
func (q *KNNQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("index name is required")
	case len(q.Vector) == 0:
		return errors.New("vector is required")
	case q.K <= 0:
		return errors.New("k must be positive")
	case q.EFRuntime < 0:
		return errors.New("ef_runtime must not be negative")
	}
	return nil
}

// TextQuery is the input for BM25 search over one or more TEXT fields.
// Field weights come from the index schema.
type TextQuery struct {
	IndexName    string
	Query        string
	Fields       []string // empty searches all TEXT fields
	TopK         int
	Scorer       string // e.g. BM25STD; empty keeps the server default
	ReturnFields []string
}

// Validate rejects queries without an index, text or result size.
func (q *TextQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("index name is required")
	case strings.TrimSpace(q.Query) == "":
		return errors.New("query is required")
	case q.TopK <= 0:
		return errors.New("topK must be positive")
	}
	return nil
}

// SearchResult is the output of a search. Total is the engine's match
// count, which can exceed len(Entries).
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one document hit. For KNN queries Score is the raw
// distance reported by the engine; for BM25 it is the text score.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// IndexStats is the subset of FT.INFO used for integrity checks.
type IndexStats struct {
	NumDocs        int64
	Indexing       bool
	PercentIndexed float64
}
