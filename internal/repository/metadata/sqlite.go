package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver, registers "sqlite"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

const sqliteDriverName = "sqlite"

// maxVars keeps IN (...) lists well below SQLite's bound-parameter limit.
const maxVars = 900

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	vector_id   INTEGER PRIMARY KEY,
	product_key TEXT NOT NULL,
	reviewer_id TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	review_time INTEGER
);
CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(product_key);
`

// sqliteBusyTimeoutMs is how long a writer waits on a locked database.
const sqliteBusyTimeoutMs = 5000

// sqliteDSN puts the pragmas in the DSN so the driver applies them to every
// pooled connection, not only the one that happens to run a PRAGMA statement.
func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMs))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// SQLiteStore keeps review metadata in a SQLite table keyed by vector ID.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the SQLite database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	inMemory := path == "" || path == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create metadata dir: %w", err)
			}
		}
	}

	dsn := sqliteDSN(path)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if inMemory {
		// every pooled connection would get its own empty :memory: database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply metadata schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ReviewsByIDs resolves ids with IN (...) queries of at most maxVars parameters each.
func (s *SQLiteStore) ReviewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ReviewMeta, error) {
	out := make(map[int64]domain.ReviewMeta, len(ids))

	for _, part := range chunk(ids, maxVars) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}

		//nolint:gosec // placeholders only, values are bound
		query := `SELECT vector_id, product_key, reviewer_id, text, summary, review_time
			FROM reviews WHERE vector_id IN (` + placeholders + `)`

		if err := s.scanInto(ctx, out, query, args...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) scanInto(ctx context.Context, out map[int64]domain.ReviewMeta, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return backendErr("select", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			m  domain.ReviewMeta
			ts sql.NullInt64
		)
		if err := rows.Scan(&m.VectorID, &m.ProductKey, &m.ReviewerID, &m.Text, &m.Summary, &ts); err != nil {
			return backendErr("scan", err)
		}
		if ts.Valid {
			v := ts.Int64
			m.Timestamp = &v
		}
		out[m.VectorID] = m
	}
	if err := rows.Err(); err != nil {
		return backendErr("rows", err)
	}
	return nil
}

// Reset deletes every row.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reviews"); err != nil {
		return backendErr("reset", err)
	}
	return nil
}

// InsertBatch inserts rows in one transaction. Re-inserting an ID replaces the row.
func (s *SQLiteStore) InsertBatch(ctx context.Context, rows []domain.ReviewMeta) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backendErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO reviews
		(vector_id, product_key, reviewer_id, text, summary, review_time) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return backendErr("prepare", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		var ts sql.NullInt64
		if r.Timestamp != nil {
			ts = sql.NullInt64{Int64: *r.Timestamp, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.VectorID, r.ProductKey, r.ReviewerID, r.Text, r.Summary, ts); err != nil {
			return backendErr(fmt.Sprintf("insert %d", r.VectorID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return backendErr("commit", err)
	}
	return nil
}

// Count returns the number of rows.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&n); err != nil {
		return 0, backendErr("count", err)
	}
	return n, nil
}

// IDRange returns MIN and MAX of vector_id.
func (s *SQLiteStore) IDRange(ctx context.Context) (int64, int64, error) {
	var lo, hi sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MIN(vector_id), MAX(vector_id) FROM reviews").Scan(&lo, &hi)
	if err != nil {
		return 0, 0, backendErr("id range", err)
	}
	if !lo.Valid {
		return 0, -1, nil
	}
	return lo.Int64, hi.Int64, nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return backendErr("ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
