package domain

// IndexParams are the vector index build parameters recorded next to the index.
type IndexParams struct {
	Dimensions            int
	Metric                string
	Connectivity          int // HNSW M
	ConstructionBeamWidth int // HNSW EF_CONSTRUCTION
	DefaultQueryBeamWidth int // EF_RUNTIME used when the request does not set one
}

// DefaultIndexParams returns the parameters used for the review index
// (all-MiniLM-L6-v2 sized vectors, inner product over unit vectors).
func DefaultIndexParams() IndexParams {
	return IndexParams{
		Dimensions:            384,
		Metric:                "IP",
		Connectivity:          32,
		ConstructionBeamWidth: 200,
		DefaultQueryBeamWidth: 200,
	}
}
