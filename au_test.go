// Shared test helpers.
//
// Decoded records are compared as Go trees. Objects are ordered
// key/value slices rather than maps because the format preserves key
// order and the round-trip tests check it. Integer normalisation
// follows the wire: non-negative integers decode through OnUint and
// appear as uint64, negatives as int64 — expectations are written in
// those types.
package au

import (
	"bytes"
	"testing"
	"time"
)

// obj is an ordered JSON-like object.
type obj []kv

type kv struct {
	k string
	v any
}

// arr is a JSON-like array.
type arr []any

// treeBuilder assembles decoded events into Go trees, one per record.
type treeBuilder struct {
	dict    DictResolver
	records []any
	stack   []any // *objFrame / *arrFrame
	str     []byte
}

type objFrame struct {
	o       obj
	key     string
	haveKey bool
}

type arrFrame struct {
	a arr
}

func (b *treeBuilder) add(v any) error {
	if len(b.stack) == 0 {
		b.records = append(b.records, v)
		return nil
	}
	switch f := b.stack[len(b.stack)-1].(type) {
	case *objFrame:
		if !f.haveKey {
			f.key = v.(string)
			f.haveKey = true
		} else {
			f.o = append(f.o, kv{f.key, v})
			f.haveKey = false
		}
	case *arrFrame:
		f.a = append(f.a, v)
	}
	return nil
}

func (b *treeBuilder) OnObjectStart() error {
	b.stack = append(b.stack, &objFrame{})
	return nil
}

func (b *treeBuilder) OnObjectEnd() error {
	f := b.stack[len(b.stack)-1].(*objFrame)
	b.stack = b.stack[:len(b.stack)-1]
	return b.add(f.o)
}

func (b *treeBuilder) OnArrayStart() error {
	b.stack = append(b.stack, &arrFrame{})
	return nil
}

func (b *treeBuilder) OnArrayEnd() error {
	f := b.stack[len(b.stack)-1].(*arrFrame)
	b.stack = b.stack[:len(b.stack)-1]
	return b.add(f.a)
}

func (b *treeBuilder) OnNull(int64) error              { return b.add(nil) }
func (b *treeBuilder) OnBool(_ int64, v bool) error    { return b.add(v) }
func (b *treeBuilder) OnInt(_ int64, v int64) error    { return b.add(v) }
func (b *treeBuilder) OnUint(_ int64, v uint64) error  { return b.add(v) }
func (b *treeBuilder) OnDouble(_ int64, v float64) error { return b.add(v) }
func (b *treeBuilder) OnTime(_ int64, t time.Time) error { return b.add(t) }

func (b *treeBuilder) OnDictRef(pos int64, idx uint64) error {
	s, ok := b.dict.DictString(idx)
	if !ok {
		return parseErr(pos, "test: dict index %d unresolved", idx)
	}
	return b.add(s)
}

func (b *treeBuilder) OnStringStart(int64, uint64) error {
	b.str = b.str[:0]
	return nil
}

func (b *treeBuilder) OnStringFragment(frag []byte) error {
	b.str = append(b.str, frag...)
	return nil
}

func (b *treeBuilder) OnStringEnd() error {
	return b.add(string(b.str))
}

// encodeStream runs each producer as one record and returns the raw
// stream bytes.
func encodeStream(t *testing.T, opts EncoderOptions, produce ...func(*Writer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, opts)
	for i, fn := range produce {
		if _, err := enc.Encode(fn); err != nil {
			t.Fatalf("encode record %d: %v", i, err)
		}
	}
	return buf.Bytes()
}

// decodeRecords decodes a full stream into one tree per value record.
func decodeRecords(t *testing.T, data []byte) []any {
	t.Helper()
	records, err := tryDecodeRecords(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return records
}

func tryDecodeRecords(data []byte) ([]any, error) {
	src := NewSource(bytes.NewReader(data), SourceOptions{})
	d := NewDecoder(src)
	tb := &treeBuilder{dict: d}
	if err := d.Decode(tb); err != nil {
		return tb.records, err
	}
	return tb.records, nil
}
