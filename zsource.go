// Transparent decompression of compressed stream files.
//
// Log streams are routinely rotated through gzip or zstd, so decode and
// grep accept compressed inputs directly. The container is detected by
// magic bytes rather than file extension, which also covers compressed
// data arriving on stdin. A decompressed source is forward-only: the
// inflater cannot seek, so Tail and EndPos report ErrNotSeekable and
// tailing requires the uncompressed file.
package au

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// openInput wraps r in a decompressor when its leading bytes identify a
// gzip or zstd container, and builds a Source either way. f is the
// underlying file when there is one; it is only retained (for seeking)
// when the input is uncompressed.
func openInput(r io.Reader, f *os.File, opts SourceOptions) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read: %w", err)
	}

	switch {
	case hasMagic(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return NewSource(withCloser{zr, f}, opts), nil
	case hasMagic(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return NewSource(withCloser{zr.IOReadCloser(), f}, opts), nil
	case f != nil:
		// Plain file: bypass the peek buffer so the Source can seek the
		// fd directly.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		return newFileSource(f, opts), nil
	default:
		return NewSource(withCloser{io.NopCloser(br), nil}, opts), nil
	}
}

func hasMagic(b, magic []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i := range magic {
		if b[i] != magic[i] {
			return false
		}
	}
	return true
}

// withCloser pairs a decompressing reader with the file it drains, so
// closing the Source closes both.
type withCloser struct {
	r io.ReadCloser
	f *os.File
}

func (w withCloser) Read(p []byte) (int, error) { return w.r.Read(p) }

func (w withCloser) Close() error {
	err := w.r.Close()
	if w.f != nil {
		if ferr := w.f.Close(); err == nil {
			err = ferr
		}
	}
	return err
}
