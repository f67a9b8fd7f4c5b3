package artifact

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/reviewsearch/internal/domain"
)

type vectorHeader struct {
	header
	Dim uint32
}

const vectorHeaderLen = 20

// VectorWriter streams fixed-dimension float32 rows to a vector file.
// The row count in the header is filled in by Close.
type VectorWriter struct {
	f    *os.File
	w    *bufio.Writer
	dim  int
	rows uint64
	buf  []byte
}

// CreateVectors creates (or truncates) a vector file of the given dimension.
func CreateVectors(path string, dim int) (*VectorWriter, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("create vector file: dimension %d", dim)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create vector file: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create vector file: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)
	h := vectorHeader{header: header{Magic: vectorMagic, Version: formatVersion}, Dim: uint32(dim)} //nolint:gosec // dim > 0
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write vector header: %w", err)
	}
	return &VectorWriter{f: f, w: w, dim: dim, buf: make([]byte, 4*dim)}, nil
}

// Write appends rows. Every row must have the file's dimension.
func (vw *VectorWriter) Write(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) != vw.dim {
			return fmt.Errorf("%w: row %d has %d values, file dimension is %d",
				domain.ErrVectorDimMismatch, vw.rows, len(v), vw.dim)
		}
		for i, x := range v {
			binary.LittleEndian.PutUint32(vw.buf[4*i:], math.Float32bits(x))
		}
		if _, err := vw.w.Write(vw.buf); err != nil {
			return fmt.Errorf("write vector row %d: %w", vw.rows, err)
		}
		vw.rows++
	}
	return nil
}

// Rows returns the number of rows written so far.
func (vw *VectorWriter) Rows() int64 { return int64(vw.rows) } //nolint:gosec // row counts fit int64

// Close flushes buffered rows and records the final row count in the header.
func (vw *VectorWriter) Close() error {
	err := vw.w.Flush()
	if err == nil {
		err = patchRows(vw.f, vw.rows)
	}
	if cerr := vw.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close vector file: %w", err)
	}
	return nil
}

// VectorReader reads a vector file row by row.
type VectorReader struct {
	f    *os.File
	r    *bufio.Reader
	h    vectorHeader
	read uint64
	buf  []byte
}

// OpenVectors opens a vector file and validates its header against the file size.
func OpenVectors(path string) (*VectorReader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	r := bufio.NewReaderSize(f, 1<<20)
	var h vectorHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read vector header: %w", ErrFormat, err)
	}
	if err := h.check(vectorMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if h.Dim == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: zero dimension", ErrFormat)
	}
	if err := checkSize(f, vectorHeaderLen, 4*int64(h.Dim), h.Rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &VectorReader{f: f, r: r, h: h, buf: make([]byte, 4*int(h.Dim))}, nil
}

// Rows returns the row count recorded in the header.
func (vr *VectorReader) Rows() int64 { return int64(vr.h.Rows) } //nolint:gosec // validated against file size

// Dim returns the vector dimension.
func (vr *VectorReader) Dim() int { return int(vr.h.Dim) }

// Next returns the next row or io.EOF after the last one.
func (vr *VectorReader) Next() ([]float32, error) {
	if vr.read >= vr.h.Rows {
		return nil, io.EOF
	}
	if _, err := io.ReadFull(vr.r, vr.buf); err != nil {
		return nil, fmt.Errorf("read vector row %d: %w", vr.read, err)
	}
	v := make([]float32, vr.h.Dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(vr.buf[4*i:]))
	}
	vr.read++
	return v, nil
}

// NextBatch returns up to n rows; an empty slice with io.EOF ends the file.
func (vr *VectorReader) NextBatch(n int) ([][]float32, error) {
	out := make([][]float32, 0, n)
	for len(out) < n {
		v, err := vr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// Close closes the underlying file.
func (vr *VectorReader) Close() error { return vr.f.Close() }

// VectorFileInfo reads only the header of a vector file.
func VectorFileInfo(path string) (rows int64, dim int, err error) {
	vr, err := OpenVectors(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = vr.Close() }()
	return vr.Rows(), vr.Dim(), nil
}
