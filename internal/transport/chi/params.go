package chi

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/reviewsearch/internal/domain/search/request"
)

// SearchParams are the raw query parameters of GET /search.
type SearchParams struct {
	Q                 string
	TopProducts       *int
	TopReviews        *int
	VectorOversampleK *int
	QueryBeamWidth    *int
	FilterByProducts  *bool
}

// bindSearchParams parses typed query parameters. Range checks happen in request.New.
func bindSearchParams(r *http.Request) (SearchParams, error) {
	var p SearchParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "q", query, &p.Q); err != nil {
		return SearchParams{}, fmt.Errorf("invalid format for parameter q: %w", err)
	}

	optional := []struct {
		name string
		dest any
	}{
		{"top_products", &p.TopProducts},
		{"top_reviews", &p.TopReviews},
		{"vector_oversample_k", &p.VectorOversampleK},
		{"query_beam_width", &p.QueryBeamWidth},
		{"filter_by_products", &p.FilterByProducts},
	}
	for _, o := range optional {
		if err := runtime.BindQueryParameter("form", true, false, o.name, query, o.dest); err != nil {
			return SearchParams{}, fmt.Errorf("invalid format for parameter %s: %w", o.name, err)
		}
	}
	return p, nil
}

func (p SearchParams) request() request.Params {
	return request.Params{
		TopProducts:      p.TopProducts,
		TopReviews:       p.TopReviews,
		VectorK:          p.VectorOversampleK,
		BeamWidth:        p.QueryBeamWidth,
		FilterByProducts: p.FilterByProducts,
	}
}
