// Package metadata maps vector IDs to review metadata. Two drivers are available:
// sqlite (modernc, pure Go) and badger (embedded LSM key-value store).
package metadata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Store is the vector-ID keyed review metadata store.
type Store interface {
	// ReviewsByIDs resolves all ids in one batched lookup. Missing IDs are absent from the map.
	ReviewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ReviewMeta, error)
	// Reset removes every row; the embedding generator always rewrites the full ID space.
	Reset(ctx context.Context) error
	InsertBatch(ctx context.Context, rows []domain.ReviewMeta) error
	Count(ctx context.Context) (int64, error)
	// IDRange returns the smallest and largest stored vector ID (0, -1 when empty).
	IDRange(ctx context.Context) (lo, hi int64, err error)
	Ping(ctx context.Context) error
	Close() error
}

// Open opens the store for driver at path. path ":memory:" (sqlite) or "" (badger)
// opens an in-memory store.
func Open(driver, path string, logger *zap.Logger) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverBadger:
		s, err := OpenBadger(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown metadata driver %q", driver)
	}
}

// chunk splits ids into slices of at most n.
func chunk(ids []int64, n int) [][]int64 {
	var out [][]int64
	for len(ids) > n {
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func backendErr(op string, err error) error {
	return fmt.Errorf("metadata %s: %w: %w", op, domain.ErrBackendUnavailable, err)
}
