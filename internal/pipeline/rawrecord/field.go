// Package rawrecord decodes raw catalog and review JSON lines into closed
// records of optional fields with explicit presence checks.
package rawrecord

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Field is an optional JSON value kept raw until an accessor interprets it.
type Field struct {
	raw []byte
}

// UnmarshalJSON stores a copy of the raw value.
func (f *Field) UnmarshalJSON(b []byte) error {
	f.raw = append(f.raw[:0], b...)
	return nil
}

// Present reports whether the key appeared with a non-null value.
func (f Field) Present() bool {
	return len(f.raw) > 0 && !bytes.Equal(f.raw, []byte("null"))
}

// Empty reports whether the field is absent, null, "", [] or {}.
func (f Field) Empty() bool {
	if !f.Present() {
		return true
	}
	t := bytes.TrimSpace(f.raw)
	switch {
	case bytes.Equal(t, []byte(`""`)):
		return true
	case t[0] == '[' || t[0] == '{':
		inner := bytes.TrimSpace(t[1 : len(t)-1])
		return len(inner) == 0
	}
	return false
}

// IsList reports whether the value is a JSON array.
func (f Field) IsList() bool {
	t := bytes.TrimSpace(f.raw)
	return len(t) > 0 && t[0] == '['
}

// IsString reports whether the value is a JSON string.
func (f Field) IsString() bool {
	t := bytes.TrimSpace(f.raw)
	return len(t) > 0 && t[0] == '"'
}

// String returns a string value as is, a number or bool in its JSON text,
// and a list joined with sep. Objects and nulls yield "".
func (f Field) String(sep string) string {
	if !f.Present() {
		return ""
	}
	t := bytes.TrimSpace(f.raw)
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return ""
		}
		return s
	case '[':
		return strings.Join(f.Strings(), sep)
	case '{':
		return ""
	default:
		return string(t)
	}
}

// Strings returns the non-empty elements of a list as strings, or the value
// itself as a one-element slice.
func (f Field) Strings() []string {
	if !f.Present() {
		return nil
	}
	if !f.IsList() {
		if s := f.String(""); s != "" {
			return []string{s}
		}
		return nil
	}
	var items []Field
	if err := json.Unmarshal(f.raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Empty() {
			continue
		}
		if s := it.String(" "); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Int returns an integer from a JSON number or a numeric string.
func (f Field) Int() (int64, bool) {
	if !f.Present() {
		return 0, false
	}
	s := strings.TrimSpace(f.String(""))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(x), true
	}
	return 0, false
}

// Float returns a number from a JSON number or a numeric string.
func (f Field) Float() (float64, bool) {
	s := strings.TrimSpace(f.String(""))
	if s == "" {
		return 0, false
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

// FirstNonEmpty returns the first field that is not Empty, in priority order.
func FirstNonEmpty(fields ...Field) (Field, bool) {
	for _, f := range fields {
		if !f.Empty() {
			return f, true
		}
	}
	return Field{}, false
}
