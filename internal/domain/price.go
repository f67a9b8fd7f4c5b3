package domain

import (
	"math"
	"strconv"
	"strings"
)

// CoercePrice converts a loosely typed price into a number.
// Empty, null, unparsable and non-finite values become nil; it never fails.
func CoercePrice(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	case *string:
		if x == nil {
			return nil
		}
		return CoercePrice(*x)
	case []byte:
		return CoercePrice(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
