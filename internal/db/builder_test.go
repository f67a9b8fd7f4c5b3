package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return def
}

func TestNewIndex_ProductFields(t *testing.T) {
	def := mustBuild(t, NewIndex("products-idx").
		Prefix("reviewsearch:product:").
		Tag("asin").
		Text("title", 3).
		Text("description", 0))

	if len(def.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(def.Fields))
	}
	if def.Fields[0].Type != IndexFieldTag {
		t.Errorf("asin type = %d, want tag", def.Fields[0].Type)
	}
	if def.Fields[1].Weight != 3 {
		t.Errorf("title weight = %v", def.Fields[1].Weight)
	}
	if def.Fields[2].Weight != 0 || def.Fields[2].HNSW != nil {
		t.Errorf("description = %+v", def.Fields[2])
	}
}

func TestNewIndex_VectorCopiesParams(t *testing.T) {
	p := HNSWParams{Dim: 384, Distance: DistanceIP, M: 32, EFConstruction: 200, EFRuntime: 50}
	def := mustBuild(t, NewIndex("reviews-idx").Vector("vector", p))

	p.Dim = 1
	got := def.Fields[0].HNSW
	if got == nil || got.Dim != 384 || got.EFRuntime != 50 {
		t.Errorf("hnsw = %+v", got)
	}
}

func TestBuild_ReturnsIndependentCopy(t *testing.T) {
	b := NewIndex("idx").Prefix("a:").Tag("f")
	first := mustBuild(t, b)
	b.Prefix("b:").Tag("g")

	if len(first.Prefixes) != 1 || len(first.Fields) != 1 {
		t.Errorf("earlier definition changed: %+v", first)
	}
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("f"), "index name is required"},
		{"bad name", NewIndex("bad name!").Tag("f"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"unnamed field", NewIndex("idx").Tag(""), "name is required"},
		{"zero dim", NewIndex("idx").Vector("v", HNSWParams{}), "positive dimension"},
		{"negative m", NewIndex("idx").Vector("v", HNSWParams{Dim: 4, M: -1}), "must not be negative"},
		{"negative weight", NewIndex("idx").Text("t", -1), "must not be negative"},
		{"duplicate", NewIndex("idx").Text("t", 0).Tag("t"), "duplicate field name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_UnknownFieldType(t *testing.T) {
	def := &IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "x", Type: IndexFieldType(9)}}}
	if err := def.Validate(); err == nil || !strings.Contains(err.Error(), "unknown field type") {
		t.Errorf("err = %v", err)
	}
}

func TestParseDistanceMetric(t *testing.T) {
	for in, want := range map[string]DistanceMetric{"IP": DistanceIP, "cosine": DistanceCosine, "l2": DistanceL2} {
		if m, err := ParseDistanceMetric(in); err != nil || m != want {
			t.Errorf("ParseDistanceMetric(%q) = %q, %v", in, m, err)
		}
	}
	if _, err := ParseDistanceMetric("dot"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
