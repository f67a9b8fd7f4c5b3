// Package catalog reads and writes canonical product rows in PostgreSQL
// (or any wire-compatible database such as CockroachDB) through lib/pq.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

const driverName = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	asin     TEXT PRIMARY KEY,
	title    TEXT,
	brand    TEXT,
	category TEXT,
	price    TEXT
)`

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repo is the relational product store. *sql.DB pools connections, so a single
// Repo is shared by all request goroutines.
type Repo struct {
	db *sql.DB
}

// Open opens a pooled connection and pings it.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog dsn is required")
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w: %w", domain.ErrBackendUnavailable, err)
	}

	return &Repo{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// EnsureSchema creates the products table when absent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create products table: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// ProductsByKeys fetches canonical rows for keys in one query. Unknown keys are absent.
func (r *Repo) ProductsByKeys(ctx context.Context, keys []string) (map[string]domain.ProductRecord, error) {
	out := make(map[string]domain.ProductRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT asin, title, brand, category, price FROM products WHERE asin = ANY($1)`,
		pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("select products: %w: %w", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			key                           string
			title, brand, category, price sql.NullString
		)
		if err := rows.Scan(&key, &title, &brand, &category, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w: %w", domain.ErrBackendUnavailable, err)
		}
		out[key] = domain.ProductRecord{
			Key:      key,
			Title:    title.String,
			Brand:    brand.String,
			Category: category.String,
			Price:    price.String,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read products: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return out, nil
}

// UpsertProducts writes docs in one statement via unnest over array parameters.
// Blank values are stored as NULL.
func (r *Repo) UpsertProducts(ctx context.Context, docs []domain.ProductDoc) error {
	cols := toColumns(docs)
	if len(cols.keys) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (asin, title, brand, category, price)
		SELECT k, NULLIF(t, ''), NULLIF(b, ''), NULLIF(c, ''), NULLIF(p, '')
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[]) AS u(k, t, b, c, p)
		ON CONFLICT (asin) DO UPDATE SET
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			price = EXCLUDED.price`,
		pq.Array(cols.keys), pq.Array(cols.titles), pq.Array(cols.brands),
		pq.Array(cols.categories), pq.Array(cols.prices))
	if err != nil {
		return fmt.Errorf("upsert %d products: %w: %w", len(cols.keys), domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close closes the pool.
func (r *Repo) Close() error {
	return r.db.Close()
}

type columns struct {
	keys, titles, brands, categories, prices []string
}

// toColumns transposes docs into parallel arrays. Empty keys are skipped; a key
// seen twice keeps its last row, since one INSERT ... ON CONFLICT cannot touch a row twice.
func toColumns(docs []domain.ProductDoc) columns {
	pos := make(map[string]int, len(docs))
	var c columns

	for _, d := range docs {
		if d.Key == "" {
			continue
		}
		if i, ok := pos[d.Key]; ok {
			c.titles[i], c.brands[i], c.categories[i], c.prices[i] = d.Title, d.Brand, d.Category, d.Price
			continue
		}
		pos[d.Key] = len(c.keys)
		c.keys = append(c.keys, d.Key)
		c.titles = append(c.titles, d.Title)
		c.brands = append(c.brands, d.Brand)
		c.categories = append(c.categories, d.Category)
		c.prices = append(c.prices, d.Price)
	}
	return c
}
