package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const idHeaderLen = 16

// IDWriter streams vector IDs to an ID file. Row i of the ID file belongs to
// row i of the vector file written in the same run.
type IDWriter struct {
	f    *os.File
	w    *bufio.Writer
	rows uint64
}

// CreateIDs creates (or truncates) an ID file.
func CreateIDs(path string) (*IDWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create id file: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create id file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, header{Magic: idMagic, Version: formatVersion}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write id header: %w", err)
	}
	return &IDWriter{f: f, w: w}, nil
}

// Write appends IDs.
func (iw *IDWriter) Write(ids ...int64) error {
	if err := binary.Write(iw.w, binary.LittleEndian, ids); err != nil {
		return fmt.Errorf("write ids at row %d: %w", iw.rows, err)
	}
	iw.rows += uint64(len(ids))
	return nil
}

// Rows returns the number of IDs written so far.
func (iw *IDWriter) Rows() int64 { return int64(iw.rows) } //nolint:gosec // row counts fit int64

// Close flushes and records the final row count.
func (iw *IDWriter) Close() error {
	err := iw.w.Flush()
	if err == nil {
		err = patchRows(iw.f, iw.rows)
	}
	if cerr := iw.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close id file: %w", err)
	}
	return nil
}

// ReadIDs loads a whole ID file.
func ReadIDs(path string) ([]int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open id file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: read id header: %w", ErrFormat, err)
	}
	if err := h.check(idMagic); err != nil {
		return nil, err
	}
	if err := checkSize(f, idHeaderLen, 8, h.Rows); err != nil {
		return nil, err
	}

	ids := make([]int64, h.Rows)
	if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return ids, nil
}
