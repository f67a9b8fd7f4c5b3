package domain

// VectorHit is one nearest neighbour returned by the vector index.
type VectorHit struct {
	VectorID   int64
	Similarity float64
}

// ReviewMeta is the metadata row stored per vector ID.
// Timestamp is nil when the source record had none.
type ReviewMeta struct {
	VectorID   int64
	ProductKey string
	ReviewerID string
	Text       string
	Summary    string
	Timestamp  *int64
}

// Review is a resolved semantic candidate attached to a product.
type Review struct {
	VectorID   int64
	ProductKey string
	Text       string
	Summary    string
	Timestamp  *int64
	Similarity float64
}

// ReviewFromMeta builds a query-scoped review from its metadata and similarity score.
func ReviewFromMeta(m ReviewMeta, similarity float64) Review {
	return Review{
		VectorID:   m.VectorID,
		ProductKey: m.ProductKey,
		Text:       m.Text,
		Summary:    m.Summary,
		Timestamp:  m.Timestamp,
		Similarity: similarity,
	}
}
