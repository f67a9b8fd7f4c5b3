package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "USB cable", "USB cable"},
		{"tags", "<p>Fast<br/>charging</p>", "Fast charging"},
		{"entities", "Tom &amp; Jerry &quot;classic&quot;", `Tom & Jerry "classic"`},
		{"nbsp", "a&nbsp;&nbsp;b", "a b"},
		{"whitespace", "  line one\n\n\tline two  ", "line one line two"},
		{"escaped markup stays text", "&lt;b&gt;bold&lt;/b&gt;", "<b>bold</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Electronics ", "Electronics"},
		{`["Electronics", "Cables", ""]`, "Electronics|Cables"},
		{`["Toys", 3]`, "Toys|3"},
		{"[not json", "[not json"},
		{"[broken]", "[broken]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCategory(tt.in), "input %q", tt.in)
	}
}

func TestJoinCategory(t *testing.T) {
	assert.Equal(t, "A|B", JoinCategory([]string{" A ", "", "B"}))
	assert.Equal(t, "", JoinCategory(nil))
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"$12.50", "12.50"},
		{"$1,299.00", "1299.00"},
		{"12345.67", "12345.67"},
		{"from $5 to $10", "5"},
		{"call for price", ""},
		{"9", "9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePrice(tt.in), "input %q", tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("héééé", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
