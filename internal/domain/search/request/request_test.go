package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestNew_Defaults(t *testing.T) {
	r, err := New("wireless headphones", Params{}, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "wireless headphones" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.TopProducts() != 5 {
		t.Errorf("TopProducts() = %d, want 5", r.TopProducts())
	}
	if r.TopReviews() != 5 {
		t.Errorf("TopReviews() = %d, want 5", r.TopReviews())
	}
	if r.VectorK() != 50 {
		t.Errorf("VectorK() = %d, want 50", r.VectorK())
	}
	if r.BeamWidth() != 200 {
		t.Errorf("BeamWidth() = %d, want 200", r.BeamWidth())
	}
	if !r.FilterByProducts() {
		t.Error("FilterByProducts() = false, want true")
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	r, err := New("q", Params{
		TopProducts:      intp(50),
		TopReviews:       intp(1),
		VectorK:          intp(1000),
		BeamWidth:        intp(2000),
		FilterByProducts: boolp(false),
	}, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TopProducts() != 50 || r.TopReviews() != 1 || r.VectorK() != 1000 || r.BeamWidth() != 2000 {
		t.Errorf("unexpected values: %+v", r)
	}
	if r.FilterByProducts() {
		t.Error("FilterByProducts() = true, want false")
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
		p     Params
	}{
		{"empty query", "", Params{}},
		{"query too long", strings.Repeat("a", MaxQueryLength+1), Params{}},
		{"top_products zero", "q", Params{TopProducts: intp(0)}},
		{"top_products too big", "q", Params{TopProducts: intp(51)}},
		{"top_reviews negative", "q", Params{TopReviews: intp(-1)}},
		{"vector k too big", "q", Params{VectorK: intp(1001)}},
		{"beam width too big", "q", Params{BeamWidth: intp(2001)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.query, tc.p, DefaultLimits())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestNew_CustomLimits(t *testing.T) {
	lim := DefaultLimits()
	lim.MaxVectorK = 100
	lim.DefaultVectorK = 20

	r, err := New("q", Params{}, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.VectorK() != 20 {
		t.Errorf("VectorK() = %d, want 20", r.VectorK())
	}
	if _, err := New("q", Params{VectorK: intp(101)}, lim); err == nil {
		t.Error("expected error above custom max")
	}
}
