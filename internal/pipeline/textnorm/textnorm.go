// Package textnorm cleans raw catalog and review text before it is sampled.
package textnorm

import (
	"html"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

const categorySep = "|"

var (
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[\s\p{Zs}]+`)
	numberRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
)

// Clean replaces markup tags with spaces, unescapes HTML entities, collapses
// whitespace runs to a single space and trims.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// JoinCategory joins category path elements with "|", skipping blanks.
func JoinCategory(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, categorySep)
}

// NormalizeCategory turns a category string into "a|b|c" form. A string that
// looks like a JSON list is parsed and joined; anything else is returned trimmed.
func NormalizeCategory(s string) string {
	c := strings.TrimSpace(s)
	if strings.HasPrefix(c, "[") && strings.HasSuffix(c, "]") {
		var parts []any
		if err := json.Unmarshal([]byte(c), &parts); err == nil {
			strs := make([]string, 0, len(parts))
			for _, p := range parts {
				if p == nil {
					continue
				}
				strs = append(strs, toString(p))
			}
			return JoinCategory(strs)
		}
	}
	return c
}

// NormalizePrice extracts the first number from strings like "$1,299.00".
// Thousands separators are removed. Returns "" when there is no number.
func NormalizePrice(s string) string {
	m := numberRe.FindString(s)
	if m == "" {
		return ""
	}
	return strings.ReplaceAll(m, ",", "")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
