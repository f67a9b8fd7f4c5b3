package metadata

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// reviewPrefix + big-endian vector ID keeps keys in ID order for range scans.
var reviewPrefix = []byte("r/")

// badgerRecord is the stored value; the vector ID lives in the key.
type badgerRecord struct {
	ProductKey string `json:"product_key"`
	ReviewerID string `json:"reviewer_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Timestamp  *int64 `json:"timestamp,omitempty"`
}

// BadgerStore keeps review metadata in BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	l *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (b *badgerLogger) Errorf(msg string, args ...any)   { b.l.Errorf(msg, args...) }
func (b *badgerLogger) Warningf(msg string, args ...any) { b.l.Warnf(msg, args...) }
func (b *badgerLogger) Infof(msg string, args ...any)    { b.l.Debugf(msg, args...) }
func (b *badgerLogger) Debugf(msg string, args ...any)   { b.l.Debugf(msg, args...) }

// OpenBadger opens a BadgerDB directory at path, or an in-memory instance when path is "".
func OpenBadger(path string, logger *zap.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &badgerLogger{l: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func reviewKey(id int64) []byte {
	k := make([]byte, len(reviewPrefix)+8)
	copy(k, reviewPrefix)
	binary.BigEndian.PutUint64(k[len(reviewPrefix):], uint64(id)) //nolint:gosec // vector IDs are non-negative
	return k
}

func idFromKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k[len(reviewPrefix):])) //nolint:gosec // written by reviewKey
}

// ReviewsByIDs resolves ids inside a single read transaction.
func (s *BadgerStore) ReviewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ReviewMeta, error) {
	out := make(map[int64]domain.ReviewMeta, len(ids))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get(reviewKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec badgerRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("decode %d: %w", id, err)
			}
			out[id] = domain.ReviewMeta{
				VectorID:   id,
				ProductKey: rec.ProductKey,
				ReviewerID: rec.ReviewerID,
				Text:       rec.Text,
				Summary:    rec.Summary,
				Timestamp:  rec.Timestamp,
			}
		}
		return nil
	})
	if err != nil {
		return nil, backendErr("get", err)
	}
	return out, nil
}

// Reset drops every key.
func (s *BadgerStore) Reset(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return backendErr("reset", err)
	}
	return nil
}

// InsertBatch writes rows through a WriteBatch.
func (s *BadgerStore) InsertBatch(_ context.Context, rows []domain.ReviewMeta) error {
	if len(rows) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range rows {
		val, err := json.Marshal(badgerRecord{
			ProductKey: r.ProductKey,
			ReviewerID: r.ReviewerID,
			Text:       r.Text,
			Summary:    r.Summary,
			Timestamp:  r.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("encode %d: %w", r.VectorID, err)
		}
		if err := wb.Set(reviewKey(r.VectorID), val); err != nil {
			return backendErr(fmt.Sprintf("set %d", r.VectorID), err)
		}
	}

	if err := wb.Flush(); err != nil {
		return backendErr("flush", err)
	}
	return nil
}

// Count walks the key space without fetching values.
func (s *BadgerStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = reviewPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
			if n%100000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, backendErr("count", err)
	}
	return n, nil
}

// IDRange reads the first key forward and the last key with a reverse iterator.
func (s *BadgerStore) IDRange(_ context.Context) (int64, int64, error) {
	lo, hi := int64(0), int64(-1)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = reviewPrefix

		fwd := txn.NewIterator(opts)
		fwd.Rewind()
		if !fwd.Valid() {
			fwd.Close()
			return nil
		}
		lo = idFromKey(fwd.Item().Key())
		fwd.Close()

		opts.Reverse = true
		rev := txn.NewIterator(opts)
		defer rev.Close()
		rev.Seek(append(append([]byte{}, reviewPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF))
		if rev.Valid() {
			hi = idFromKey(rev.Item().Key())
		}
		return nil
	})
	if err != nil {
		return 0, 0, backendErr("id range", err)
	}
	return lo, hi, nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return backendErr("ping", errors.New("badger is closed"))
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
