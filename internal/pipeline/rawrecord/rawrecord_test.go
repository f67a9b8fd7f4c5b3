package rawrecord

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

func field(t *testing.T, raw string) Field {
	t.Helper()
	var holder struct {
		V Field `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":`+raw+`}`), &holder))
	return holder.V
}

func TestField_Empty(t *testing.T) {
	tests := []struct {
		raw   string
		empty bool
	}{
		{`null`, true},
		{`""`, true},
		{`[]`, true},
		{`{}`, true},
		{`[ ]`, true},
		{`"x"`, false},
		{`0`, false},
		{`["a"]`, false},
		{`{"a":1}`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.empty, field(t, tt.raw).Empty(), "raw %s", tt.raw)
	}
	assert.True(t, Field{}.Empty(), "absent field")
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "a \"b\"", field(t, `"a \"b\""`).String(" "))
	assert.Equal(t, "12.5", field(t, `12.5`).String(" "))
	assert.Equal(t, "a|b", field(t, `["a", "", null, "b"]`).String("|"))
	assert.Equal(t, "", field(t, `{"k":"v"}`).String(" "))
	assert.Equal(t, "", field(t, `null`).String(" "))
}

func TestField_Int(t *testing.T) {
	n, ok := field(t, `1700000000`).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), n)

	n, ok = field(t, `"1700000000"`).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), n)

	_, ok = field(t, `"07 17, 2002"`).Int()
	assert.False(t, ok)

	_, ok = Field{}.Int()
	assert.False(t, ok)
}

func TestFirstNonEmpty(t *testing.T) {
	f, ok := FirstNonEmpty(field(t, `""`), field(t, `[]`), field(t, `"Acme"`))
	require.True(t, ok)
	assert.Equal(t, "Acme", f.String(""))

	_, ok = FirstNonEmpty(field(t, `null`), Field{})
	assert.False(t, ok)
}

func TestParseProduct(t *testing.T) {
	line := `{"asin":"B001","title":"<b>USB-C</b> &amp; cable","brand":"","manufacturer":"Acme",` +
		`"price":"$1,299.00","category":["Electronics","Cables"],"description":[],"tech1":"",` +
		`"feature":["Fast","Durable"]}`

	p, err := ParseProduct(1, []byte(line))
	require.NoError(t, err)

	doc := p.Doc()
	assert.Equal(t, "B001", doc.Key)
	assert.Equal(t, "USB-C & cable", doc.Title)
	assert.Equal(t, "Acme", doc.Brand)
	assert.Equal(t, "1299.00", doc.Price)
	assert.Equal(t, "Electronics|Cables", doc.Category)
	assert.Equal(t, "Fast Durable", doc.Description)

	row := p.Row()
	assert.Equal(t, "B001", row.ASIN)
	assert.Equal(t, doc.Description, row.Description)
}

func TestParseProduct_Fallbacks(t *testing.T) {
	p, err := ParseProduct(1, []byte(`{"asin":"B002","main_cat":"Toys","price":9.5,"description":"<p>Fun</p>"}`))
	require.NoError(t, err)

	doc := p.Doc()
	assert.Equal(t, "Toys", doc.Category)
	assert.Equal(t, "9.5", doc.Price)
	assert.Equal(t, "Fun", doc.Description)
	assert.Equal(t, "", doc.Brand)
}

func TestParseProduct_CategoryAsJSONString(t *testing.T) {
	p, err := ParseProduct(1, []byte(`{"asin":"B003","category":"[\"A\", \"B\"]"}`))
	require.NoError(t, err)
	assert.Equal(t, "A|B", p.Doc().Category)
}

func TestParseProduct_DescriptionTruncated(t *testing.T) {
	long := strings.Repeat("x", MaxDescriptionLen+10)
	p, err := ParseProduct(1, []byte(`{"asin":"B004","description":"`+long+`"}`))
	require.NoError(t, err)
	assert.Len(t, p.Doc().Description, MaxDescriptionLen)
}

func TestParseProduct_Errors(t *testing.T) {
	_, err := ParseProduct(7, []byte(`{not json`))
	require.ErrorIs(t, err, domain.ErrParse)
	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 7, pe.Line)

	_, err = ParseProduct(8, []byte(`{"title":"no key"}`))
	require.ErrorIs(t, err, domain.ErrParse)

	_, err = ParseProduct(9, []byte(`{"asin":""}`))
	require.ErrorIs(t, err, domain.ErrParse)
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview(3, []byte(`{"asin":"B001","reviewerID":"R1","unixReviewTime":1400000000,`+
		`"overall":5.0,"reviewText":"Works&nbsp;great\n","summary":"Nice"}`))
	require.NoError(t, err)

	row := r.Row(3)
	assert.Equal(t, "R1", row.ReviewerID)
	assert.Equal(t, "B001", row.ASIN)
	assert.Equal(t, "Works great", row.ReviewText)
	require.NotNil(t, row.UnixReviewTime)
	assert.Equal(t, int64(1400000000), *row.UnixReviewTime)
	require.NotNil(t, row.Overall)
	assert.InDelta(t, 5.0, *row.Overall, 0)

	assert.Equal(t, DedupeKey{Reviewer: "R1", ProductKey: "B001", Timestamp: 1400000000}, r.Key(3))
}

func TestParseReview_MissingFields(t *testing.T) {
	r, err := ParseReview(42, []byte(`{"asin":"B001"}`))
	require.NoError(t, err)

	row := r.Row(42)
	assert.Equal(t, "anon_42", row.ReviewerID)
	assert.Nil(t, row.UnixReviewTime)
	assert.Nil(t, row.Overall)
	assert.Equal(t, "", row.ReviewText)
	// missing timestamp is 0 in the dedupe key only
	assert.Equal(t, int64(0), r.Key(42).Timestamp)

	_, err = ParseReview(43, []byte(`{"reviewerID":"R"}`))
	require.ErrorIs(t, err, domain.ErrParse)
}

func TestScanLines(t *testing.T) {
	src := StringSource("a\n\n  \nb\nc\n")
	var lines []int
	var data []string
	err := ScanLines(context.Background(), src, func(line int, b []byte) bool {
		lines = append(lines, line)
		data = append(data, string(b))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 5}, lines)
	assert.Equal(t, []string{"a", "b", "c"}, data)
}

func TestScanLines_StopEarly(t *testing.T) {
	calls := 0
	err := ScanLines(context.Background(), StringSource("a\nb\nc\n"), func(int, []byte) bool {
		calls++
		return calls < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFileSource_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("{\"asin\":\"A\"}\n{\"asin\":\"B\"}\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	count := 0
	require.NoError(t, ScanLines(context.Background(), FileSource(path), func(int, []byte) bool {
		count++
		return true
	}))
	assert.Equal(t, 2, count)
}

func TestFileSource_Missing(t *testing.T) {
	err := ScanLines(context.Background(), FileSource(filepath.Join(t.TempDir(), "nope.json")),
		func(int, []byte) bool { return true })
	require.Error(t, err)
}
