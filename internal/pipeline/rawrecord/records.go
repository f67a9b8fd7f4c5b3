package rawrecord

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/textnorm"
)

// MaxDescriptionLen caps sampled product descriptions, in characters.
const MaxDescriptionLen = 32000

// Product is one raw catalog line. Only the fields the pipeline reads are kept.
type Product struct {
	ASIN         Field `json:"asin"`
	Title        Field `json:"title"`
	Brand        Field `json:"brand"`
	Manufacturer Field `json:"manufacturer"`
	Price        Field `json:"price"`
	Category     Field `json:"category"`
	MainCat      Field `json:"main_cat"`
	Description  Field `json:"description"`
	Tech1        Field `json:"tech1"`
	Feature      Field `json:"feature"`
}

// Review is one raw review line.
type Review struct {
	ASIN           Field `json:"asin"`
	ReviewerID     Field `json:"reviewerID"`
	UnixReviewTime Field `json:"unixReviewTime"`
	Overall        Field `json:"overall"`
	ReviewText     Field `json:"reviewText"`
	Summary        Field `json:"summary"`
}

// ParseProduct decodes a catalog line. A line that is not a JSON object or has
// no asin is a ParseError.
func ParseProduct(line int, data []byte) (Product, error) {
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, &domain.ParseError{Line: line, Reason: err.Error()}
	}
	if p.Key() == "" {
		return Product{}, &domain.ParseError{Line: line, Reason: "missing asin"}
	}
	return p, nil
}

// ParseReview decodes a review line. A line without asin is a ParseError.
func ParseReview(line int, data []byte) (Review, error) {
	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return Review{}, &domain.ParseError{Line: line, Reason: err.Error()}
	}
	if r.ProductKey() == "" {
		return Review{}, &domain.ParseError{Line: line, Reason: "missing asin"}
	}
	return r, nil
}

// Key returns the product key.
func (p Product) Key() string { return p.ASIN.String("") }

// Row builds the sampled product dataset row.
func (p Product) Row() dataset.ProductRow {
	d := p.Doc()
	return dataset.ProductRow{
		ASIN:        d.Key,
		Title:       d.Title,
		Brand:       d.Brand,
		Price:       d.Price,
		Category:    d.Category,
		Description: d.Description,
	}
}

// Doc builds the cleaned product row: brand falls back to manufacturer,
// category to main_cat, description to tech1 then feature.
func (p Product) Doc() domain.ProductDoc {
	brand, _ := FirstNonEmpty(p.Brand, p.Manufacturer)
	desc, _ := FirstNonEmpty(p.Description, p.Tech1, p.Feature)

	return domain.ProductDoc{
		Key:         p.Key(),
		Title:       textnorm.Clean(p.Title.String(" ")),
		Brand:       textnorm.Clean(brand.String(" ")),
		Category:    p.category(),
		Price:       p.price(),
		Description: textnorm.Truncate(textnorm.Clean(desc.String(" ")), MaxDescriptionLen),
	}
}

func (p Product) category() string {
	c, ok := FirstNonEmpty(p.Category, p.MainCat)
	if !ok {
		return ""
	}
	if c.IsList() {
		return textnorm.JoinCategory(c.Strings())
	}
	return textnorm.NormalizeCategory(c.String(""))
}

func (p Product) price() string {
	if p.Price.Empty() {
		return ""
	}
	if x, ok := p.Price.Float(); ok && !p.Price.IsString() {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return textnorm.NormalizePrice(p.Price.String(""))
}

// ProductKey returns the reviewed product's key.
func (r Review) ProductKey() string { return r.ASIN.String("") }

// Reviewer returns the reviewer ID, or anon_<line> when it is missing.
func (r Review) Reviewer(line int) string {
	if id := r.ReviewerID.String(""); id != "" {
		return id
	}
	return "anon_" + strconv.Itoa(line)
}

// Timestamp returns the unix review time, nil when absent or unparsable.
func (r Review) Timestamp() *int64 {
	ts, ok := r.UnixReviewTime.Int()
	if !ok {
		return nil
	}
	return &ts
}

// Rating returns the star rating, nil when absent.
func (r Review) Rating() *float64 {
	x, ok := r.Overall.Float()
	if !ok {
		return nil
	}
	return &x
}

// DedupeKey identifies a review by (reviewer, product, timestamp). A missing
// timestamp counts as 0, so distinct undated reviews by the same reviewer of
// the same product collapse onto one key.
type DedupeKey struct {
	Reviewer   string
	ProductKey string
	Timestamp  int64
}

// Key returns the dedupe key of the review read at the given line.
func (r Review) Key(line int) DedupeKey {
	var ts int64
	if t := r.Timestamp(); t != nil {
		ts = *t
	}
	return DedupeKey{Reviewer: r.Reviewer(line), ProductKey: r.ProductKey(), Timestamp: ts}
}

// Row builds the cleaned review row.
func (r Review) Row(line int) dataset.ReviewRow {
	return dataset.ReviewRow{
		ReviewerID:     r.Reviewer(line),
		ASIN:           r.ProductKey(),
		Overall:        r.Rating(),
		ReviewText:     textnorm.Clean(r.ReviewText.String(" ")),
		Summary:        textnorm.Clean(r.Summary.String(" ")),
		UnixReviewTime: r.Timestamp(),
	}
}
