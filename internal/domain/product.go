package domain

// ProductHit is one lexical-stage result: the denormalized product copy and its relevance score.
type ProductHit struct {
	Key      string
	Title    string
	Brand    string
	Category string
	Price    string
	Score    float64
}

// ProductRecord is the canonical product row owned by the relational store.
// Empty strings mean the column is null or blank.
type ProductRecord struct {
	Key      string
	Title    string
	Brand    string
	Category string
	Price    string
}

// Product is an enriched product in a query result.
type Product struct {
	Key          string
	Title        string
	Brand        string
	Category     string
	Price        *float64
	LexicalScore *float64
	Reviews      []Review
}

// QueryResult is the request-scoped answer of a hybrid query.
type QueryResult struct {
	Query    string
	Products []Product
}

// ProductDoc is a sampled product as loaded into the lexical index and the relational store.
type ProductDoc struct {
	Key         string
	Title       string
	Brand       string
	Category    string
	Price       string
	Description string
}

// Record returns the canonical columns of the product.
func (d ProductDoc) Record() ProductRecord {
	return ProductRecord{
		Key:      d.Key,
		Title:    d.Title,
		Brand:    d.Brand,
		Category: d.Category,
		Price:    d.Price,
	}
}
