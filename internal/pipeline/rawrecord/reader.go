package rawrecord

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxLineBytes bounds a single JSON line; some catalog entries carry very long descriptions.
const maxLineBytes = 64 << 20

// Source opens a fresh stream over the same records. Multi-pass readers call it once per pass.
type Source func() (io.ReadCloser, error)

// FileSource opens path, transparently decompressing *.gz files.
func FileSource(path string) Source {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if !strings.HasSuffix(path, ".gz") {
			return f, nil
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &gzipFile{Reader: zr, f: f}, nil
	}
}

// StringSource serves an in-memory stream.
func StringSource(s string) Source {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.f.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// ScanLines calls fn for every non-blank line with its 1-based line number.
// fn returning false stops the scan early. The data slice is only valid during the call.
// A context cancellation aborts the scan between lines.
func ScanLines(ctx context.Context, src Source, fn func(line int, data []byte) bool) error {
	rc, err := src()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if line&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		data := sc.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if !fn(line, data) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan at line %d: %w", line+1, err)
	}
	return nil
}
