package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// Sidecar describes a built vector index. It is written next to the index by
// the builder and read back by the verifier.
type Sidecar struct {
	IndexName             string    `yaml:"index_name"`
	Count                 int64     `yaml:"count"`
	Dimension             int       `yaml:"dimension"`
	Metric                string    `yaml:"metric"`
	Connectivity          int       `yaml:"connectivity"`
	ConstructionBeamWidth int       `yaml:"construction_beam_width"`
	DefaultQueryBeamWidth int       `yaml:"default_query_beam_width"`
	BuiltAt               time.Time `yaml:"built_at"`
}

// NewSidecar describes an index built with params over count vectors.
func NewSidecar(indexName string, count int64, params domain.IndexParams, builtAt time.Time) Sidecar {
	return Sidecar{
		IndexName:             indexName,
		Count:                 count,
		Dimension:             params.Dimensions,
		Metric:                params.Metric,
		Connectivity:          params.Connectivity,
		ConstructionBeamWidth: params.ConstructionBeamWidth,
		DefaultQueryBeamWidth: params.DefaultQueryBeamWidth,
		BuiltAt:               builtAt.UTC(),
	}
}

// Params returns the index parameters recorded in the sidecar.
func (s Sidecar) Params() domain.IndexParams {
	return domain.IndexParams{
		Dimensions:            s.Dimension,
		Metric:                s.Metric,
		Connectivity:          s.Connectivity,
		ConstructionBeamWidth: s.ConstructionBeamWidth,
		DefaultQueryBeamWidth: s.DefaultQueryBeamWidth,
	}
}

// WriteSidecar writes the descriptor atomically (temp file + rename).
func WriteSidecar(path string, s Sidecar) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads a descriptor.
func ReadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar: %w", err)
	}
	var s Sidecar
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	return s, nil
}
