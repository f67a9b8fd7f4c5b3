package chi

import "github.com/kailas-cloud/reviewsearch/internal/domain"

// ErrorCode is a machine-readable error category.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeBackendUnavailable     ErrorCode = "backend_unavailable"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeTimeout                ErrorCode = "timeout"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query    string            `json:"query"`
	Products []ProductResponse `json:"products"`
}

// ProductResponse is one ranked product. Price and LexicalScore serialize as null when unknown.
type ProductResponse struct {
	Key          string           `json:"key"`
	Title        string           `json:"title"`
	Brand        string           `json:"brand"`
	Category     string           `json:"category"`
	Price        *float64         `json:"price"`
	LexicalScore *float64         `json:"lexical_score"`
	Reviews      []ReviewResponse `json:"reviews"`
}

// ReviewResponse is one review attached to a product.
type ReviewResponse struct {
	VectorID        int64   `json:"vector_id"`
	ProductKey      string  `json:"product_key"`
	Text            string  `json:"text"`
	Summary         string  `json:"summary"`
	Timestamp       *int64  `json:"timestamp"`
	SimilarityScore float64 `json:"similarity_score"`
}

func queryResultToResponse(res domain.QueryResult) SearchResponse {
	products := make([]ProductResponse, len(res.Products))
	for i, p := range res.Products {
		reviews := make([]ReviewResponse, len(p.Reviews))
		for j, r := range p.Reviews {
			reviews[j] = ReviewResponse{
				VectorID:        r.VectorID,
				ProductKey:      r.ProductKey,
				Text:            r.Text,
				Summary:         r.Summary,
				Timestamp:       r.Timestamp,
				SimilarityScore: r.Similarity,
			}
		}
		products[i] = ProductResponse{
			Key:          p.Key,
			Title:        p.Title,
			Brand:        p.Brand,
			Category:     p.Category,
			Price:        p.Price,
			LexicalScore: p.LexicalScore,
			Reviews:      reviews,
		}
	}
	return SearchResponse{Query: res.Query, Products: products}
}
