// Package artifact reads and writes the files the offline pipeline hands to the
// index builder and the verifier: the vector file, the ID file and the index
// sidecar descriptor.
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const formatVersion uint32 = 1

var (
	vectorMagic = [4]byte{'R', 'S', 'V', 'F'}
	idMagic     = [4]byte{'R', 'S', 'I', 'D'}
)

// ErrFormat signals a file that is not a pipeline artifact or has an unsupported version.
var ErrFormat = errors.New("invalid artifact format")

// rowsOffset is the position of the row count in both headers.
const rowsOffset = 8

type header struct {
	Magic   [4]byte
	Version uint32
	Rows    uint64
}

func (h header) check(magic [4]byte) error {
	if h.Magic != magic {
		return fmt.Errorf("%w: magic %q, want %q", ErrFormat, h.Magic[:], magic[:])
	}
	if h.Version != formatVersion {
		return fmt.Errorf("%w: version %d", ErrFormat, h.Version)
	}
	return nil
}

// patchRows rewrites the row count of a finished file.
func patchRows(f *os.File, rows uint64) error {
	if _, err := f.Seek(rowsOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, rows); err != nil {
		return fmt.Errorf("write row count: %w", err)
	}
	return nil
}

// checkSize compares the on-disk size with the size implied by the header.
func checkSize(f *os.File, headerLen, rowLen int64, rows uint64) error {
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	want := headerLen + rowLen*int64(rows) //nolint:gosec // rows bounded by file size
	if st.Size() != want {
		return fmt.Errorf("%w: %s is %d bytes, header implies %d", ErrFormat, f.Name(), st.Size(), want)
	}
	return nil
}
