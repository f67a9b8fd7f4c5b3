package request

import (
	"fmt"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// MaxQueryLength is the maximum allowed query length in bytes.
const MaxQueryLength = 4096

// Limits holds the default and maximum value of every tunable parameter.
// Minimum is 1 for all of them.
type Limits struct {
	DefaultTopProducts int
	MaxTopProducts     int
	DefaultTopReviews  int
	MaxTopReviews      int
	DefaultVectorK     int
	MaxVectorK         int
	DefaultBeamWidth   int
	MaxBeamWidth       int
}

// DefaultLimits returns the public API ranges.
func DefaultLimits() Limits {
	return Limits{
		DefaultTopProducts: 5,
		MaxTopProducts:     50,
		DefaultTopReviews:  5,
		MaxTopReviews:      50,
		DefaultVectorK:     50,
		MaxVectorK:         1000,
		DefaultBeamWidth:   200,
		MaxBeamWidth:       2000,
	}
}

// Params are the optional raw parameters of a hybrid query. Nil means "use the default".
type Params struct {
	TopProducts      *int
	TopReviews       *int
	VectorK          *int
	BeamWidth        *int
	FilterByProducts *bool
}

// Request is a validated hybrid query.
type Request struct {
	query            string
	topProducts      int
	topReviews       int
	vectorK          int
	beamWidth        int
	filterByProducts bool
}

// New validates the parameters against lim and fills defaults.
// Out-of-range values are rejected rather than clamped.
func New(query string, p Params, lim Limits) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrInvalidRequest, MaxQueryLength)
	}

	topProducts, err := resolve("top_products", p.TopProducts, lim.DefaultTopProducts, lim.MaxTopProducts)
	if err != nil {
		return Request{}, err
	}
	topReviews, err := resolve("top_reviews", p.TopReviews, lim.DefaultTopReviews, lim.MaxTopReviews)
	if err != nil {
		return Request{}, err
	}
	vectorK, err := resolve("vector_oversample_k", p.VectorK, lim.DefaultVectorK, lim.MaxVectorK)
	if err != nil {
		return Request{}, err
	}
	beamWidth, err := resolve("query_beam_width", p.BeamWidth, lim.DefaultBeamWidth, lim.MaxBeamWidth)
	if err != nil {
		return Request{}, err
	}

	filter := true
	if p.FilterByProducts != nil {
		filter = *p.FilterByProducts
	}

	return Request{
		query:            query,
		topProducts:      topProducts,
		topReviews:       topReviews,
		vectorK:          vectorK,
		beamWidth:        beamWidth,
		filterByProducts: filter,
	}, nil
}

func resolve(name string, v *int, def, maxVal int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < 1 || *v > maxVal {
		return 0, fmt.Errorf("%w: %s must be between 1 and %d, got %d", domain.ErrInvalidRequest, name, maxVal, *v)
	}
	return *v, nil
}

// Query returns the query text.
func (r *Request) Query() string { return r.query }

// TopProducts returns how many lexical hits to keep.
func (r *Request) TopProducts() int { return r.topProducts }

// TopReviews returns the per-product review cap.
func (r *Request) TopReviews() int { return r.topReviews }

// VectorK returns how many nearest review vectors to fetch.
func (r *Request) VectorK() int { return r.vectorK }

// BeamWidth returns the query-time HNSW beam width (EF_RUNTIME).
func (r *Request) BeamWidth() int { return r.beamWidth }

// FilterByProducts reports whether reviews outside the lexical product set are dropped.
func (r *Request) FilterByProducts() bool { return r.filterByProducts }
