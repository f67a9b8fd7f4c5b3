// Package dataset reads and writes the sampled product and review datasets
// as parquet files, plus the plain-text product key list.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

// ProductRow is one sampled product.
type ProductRow struct {
	ASIN        string `parquet:"asin"`
	Title       string `parquet:"title"`
	Brand       string `parquet:"brand"`
	Price       string `parquet:"price"`
	Category    string `parquet:"category"`
	Description string `parquet:"description"`
}

// Doc returns the product as loaded into the lexical index and the relational store.
func (r ProductRow) Doc() domain.ProductDoc {
	return domain.ProductDoc{
		Key:         r.ASIN,
		Title:       r.Title,
		Brand:       r.Brand,
		Category:    r.Category,
		Price:       r.Price,
		Description: r.Description,
	}
}

// ReviewRow is one sampled review. Row order is the vector ID order downstream.
type ReviewRow struct {
	ReviewerID     string   `parquet:"reviewer_id"`
	ASIN           string   `parquet:"asin"`
	Overall        *float64 `parquet:"overall"`
	ReviewText     string   `parquet:"review_text"`
	Summary        string   `parquet:"summary"`
	UnixReviewTime *int64   `parquet:"unix_review_time"`
}

// readBatch is the number of rows decoded per read call.
const readBatch = 1000

// Writer streams rows of type T into a parquet file.
type Writer[T any] struct {
	file *os.File
	w    *parquet.GenericWriter[T]
	rows int
}

// Create creates (or truncates) a parquet file at path, making parent directories.
func Create[T any](path string) (*Writer[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer[T]{file: f, w: parquet.NewGenericWriter[T](f)}, nil
}

// Write appends rows.
func (w *Writer[T]) Write(rows ...T) error {
	n, err := w.w.Write(rows)
	w.rows += n
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer[T]) Rows() int { return w.rows }

// Close flushes the footer and closes the file.
func (w *Writer[T]) Close() error {
	werr := w.w.Close()
	ferr := w.file.Close()
	if werr != nil {
		return fmt.Errorf("close parquet writer: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("close file: %w", ferr)
	}
	return nil
}

// Each streams every row of the file at path to fn in file order.
// Iteration stops at the first error returned by fn.
func Each[T any](path string, fn func(i int, row T) error) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := parquet.NewGenericReader[T](f)
	defer func() { _ = r.Close() }()

	buf := make([]T, readBatch)
	idx := 0
	for {
		n, readErr := r.Read(buf)
		for _, row := range buf[:n] {
			if err := fn(idx, row); err != nil {
				return err
			}
			idx++
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		if n == 0 {
			return nil
		}
	}
}

// ReadAll loads every row of the file at path.
func ReadAll[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// Count returns the number of rows without decoding them.
func Count(path string) (int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return 0, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return pf.NumRows(), nil
}

// WriteKeys writes keys one per line in sorted order.
func WriteKeys(path string, keys []string) error {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	for _, k := range sorted {
		_, _ = bw.WriteString(k)
		_ = bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadKeys reads a key list written by WriteKeys, skipping blank lines.
func ReadKeys(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return keys, nil
}
