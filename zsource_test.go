// Compressed input tests.
package au

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func compressedFixture(t *testing.T) ([]byte, []any) {
	t.Helper()
	data := encodeStream(t, EncoderOptions{InternThreshold: 1},
		func(w *Writer) error {
			w.BeginObject().Key("compressed key").String("compressed value").EndObject()
			return nil
		},
		func(w *Writer) error {
			w.String("compressed value")
			return nil
		},
	)
	want := []any{
		obj{{"compressed key", "compressed value"}},
		"compressed value",
	}
	return data, want
}

func decodePath(t *testing.T, path string) []any {
	t.Helper()
	src, err := OpenSource(path, SourceOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	d := NewDecoder(src)
	tb := &treeBuilder{dict: d}
	if err := d.Decode(tb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return tb.records
}

func TestDecodeGzipInput(t *testing.T) {
	plain, want := compressedFixture(t)

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	zw.Write(plain)
	zw.Close()

	got := decodePath(t, tempFile(t, zbuf.Bytes()))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("gzip decode = %#v\nwant %#v", got, want)
	}
}

func TestDecodeZstdInput(t *testing.T) {
	plain, want := compressedFixture(t)

	zw, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	compressed := zw.EncodeAll(plain, nil)

	got := decodePath(t, tempFile(t, compressed))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("zstd decode = %#v\nwant %#v", got, want)
	}
}

// Compressed sources cannot seek, so tailing one is refused up front.
func TestTailCompressedInputRefused(t *testing.T) {
	plain, _ := compressedFixture(t)

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	zw.Write(plain)
	zw.Close()

	_, err := OpenTail(tempFile(t, zbuf.Bytes()), TailOptions{})
	if !errors.Is(err, ErrNotSeekable) {
		t.Errorf("tail of gzip input = %v, want ErrNotSeekable", err)
	}
}

// Plain files pass through the sniffer untouched.
func TestSnifferPassesPlainFiles(t *testing.T) {
	plain, want := compressedFixture(t)
	got := decodePath(t, tempFile(t, plain))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("plain decode = %#v", got)
	}
}
