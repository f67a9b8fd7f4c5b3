package db

import (
	"errors"
	"fmt"
	"strings"
)

// DistanceMetric is the FT vector DISTANCE_METRIC.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP" // 1 - dot product; cosine on unit vectors
	DistanceCosine DistanceMetric = "COSINE"
)

// ParseDistanceMetric validates a metric name from configuration or a sidecar.
func ParseDistanceMetric(s string) (DistanceMetric, error) {
	switch m := DistanceMetric(strings.ToUpper(s)); m {
	case DistanceL2, DistanceIP, DistanceCosine:
		return m, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// IndexFieldType enumerates the schema field kinds this service creates.
type IndexFieldType int

const (
	IndexFieldTag IndexFieldType = iota
	IndexFieldText
	IndexFieldVector
)

// HNSWParams configure a FLOAT32 HNSW vector field. M and EFConstruction are
// fixed when the index is created; EFRuntime is only the default for queries
// that do not pass their own.
type HNSWParams struct {
	Dim            int
	Distance       DistanceMetric // empty means IP
	M              int            // 0 keeps the server default
	EFConstruction int            // 0 keeps the server default
	EFRuntime      int            // 0 keeps the server default
}

// IndexField is one attribute of an FT schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	Weight float64     // TEXT: BM25 weight, 0 keeps the server default of 1
	HNSW   *HNSWParams // VECTOR: required
}

// IndexDefinition is an FT index over hashes whose keys start with one of
// Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks the definition before it is sent to FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case strings.ContainsFunc(idx.Name, invalidNameRune):
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	case len(idx.Fields) == 0:
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if err := f.validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func (f *IndexField) validate() error {
	switch f.Type {
	case IndexFieldTag:
		return nil
	case IndexFieldText:
		if f.Weight < 0 {
			return errors.New("text weight must not be negative")
		}
		return nil
	case IndexFieldVector:
		if f.HNSW == nil || f.HNSW.Dim <= 0 {
			return errors.New("vector field requires a positive dimension")
		}
		if f.HNSW.M < 0 || f.HNSW.EFConstruction < 0 || f.HNSW.EFRuntime < 0 {
			return errors.New("hnsw parameters must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unknown field type %d", f.Type)
	}
}

// invalidNameRune reports runes outside [A-Za-z0-9_:-].
func invalidNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '_' || r == ':' || r == '-':
		return false
	}
	return true
}
