package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reviewsearch/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if redisErrContains(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: def.Name, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. With deleteDocs the indexed hashes are deleted too.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Key: name, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
	return true, nil
}

// IndexInfo returns document count and background indexing progress from FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (db.IndexStats, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return db.IndexStats{}, db.ErrIndexNotFound
		}
		return db.IndexStats{}, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
	return parseIndexInfo(raw), nil
}

func isUnknownIndex(err error) bool {
	return redisErrContains(err, "unknown index name", "no such index")
}

// parseIndexInfo reads the flat key/value reply of FT.INFO. Numbers may arrive as
// integers or strings depending on the server version.
func parseIndexInfo(raw []rueidis.RedisMessage) db.IndexStats {
	var stats db.IndexStats
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		val, ok := messageText(raw[i+1])
		if !ok {
			continue
		}
		switch key {
		case "num_docs":
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				stats.NumDocs = int64(n)
			}
		case "indexing":
			stats.Indexing = val != "0" && val != ""
		case "percent_indexed":
			if p, err := strconv.ParseFloat(val, 64); err == nil {
				stats.PercentIndexed = p
			}
		}
	}
	return stats
}

func messageText(m rueidis.RedisMessage) (string, bool) {
	if s, err := m.ToString(); err == nil {
		return s, true
	}
	if n, err := m.AsInt64(); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	if f, err := m.AsFloat64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// buildCreateArgs renders FT.CREATE arguments. Every index here is over
// hashes.
func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fa, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	switch f.Type {
	case db.IndexFieldTag:
		return []string{f.Name, "TAG"}, nil
	case db.IndexFieldText:
		if f.Weight > 0 {
			return []string{f.Name, "TEXT", "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64)}, nil
		}
		return []string{f.Name, "TEXT"}, nil
	case db.IndexFieldVector:
		if f.HNSW == nil || f.HNSW.Dim <= 0 {
			return nil, fmt.Errorf("vector field %s: dimension must be positive", f.Name)
		}
		return append([]string{f.Name}, hnswArgs(f.HNSW)...), nil
	default:
		return nil, fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
	}
}

// hnswArgs renders "VECTOR HNSW <n> TYPE FLOAT32 DIM ... ", where n counts
// the attribute tokens that follow.
func hnswArgs(p *db.HNSWParams) []string {
	distance := p.Distance
	if distance == "" {
		distance = db.DistanceIP
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(p.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	for _, opt := range []struct {
		name string
		val  int
	}{
		{"M", p.M},
		{"EF_CONSTRUCTION", p.EFConstruction},
		{"EF_RUNTIME", p.EFRuntime},
	} {
		if opt.val > 0 {
			attrs = append(attrs, opt.name, strconv.Itoa(opt.val))
		}
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
