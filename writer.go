// Value writer: builds the wire bytes for one value tree.
//
// A Writer appends into a per-record buffer owned by the Encoder. Small
// integers, short strings, and low dict indices get single-byte compact
// forms; everything else goes through the lettered markers. The only
// constraint the Writer enforces is the nesting depth bound — matching
// braces and key/value alternation are the caller's responsibility,
// exactly as on the decode side they are the stream's.
package au

import (
	"encoding/binary"
	"math"
	"time"
)

// Writer emits one value tree into an encoder's record buffer.
type Writer struct {
	buf    []byte
	intern *internTable
	depth  int
	err    error
}

// Err returns the first error recorded by any write. Writes after an
// error are no-ops, so call sites can chain freely and check once.
func (w *Writer) Err() error { return w.err }

func (w *Writer) put(b byte) {
	if w.err == nil {
		w.buf = append(w.buf, b)
	}
}

func (w *Writer) varint(v uint64) {
	if w.err == nil {
		w.buf = appendVarint(w.buf, v)
	}
}

// Null appends a null.
func (w *Writer) Null() *Writer {
	w.put(markerNull)
	return w
}

// Bool appends a boolean.
func (w *Writer) Bool(b bool) *Writer {
	if b {
		w.put(markerTrue)
	} else {
		w.put(markerFalse)
	}
	return w
}

// Int appends a signed integer.
func (w *Writer) Int(i int64) *Writer {
	neg := i < 0
	var magnitude uint64
	if neg {
		magnitude = -uint64(i)
	} else {
		magnitude = uint64(i)
	}
	w.integer(magnitude, neg)
	return w
}

// Uint appends an unsigned integer.
func (w *Writer) Uint(u uint64) *Writer {
	w.integer(u, false)
	return w
}

// integer picks the shortest non-colliding form: a small-int byte, a
// varint, or the 8-byte fixed form for magnitudes of 48 bits and up.
func (w *Writer) integer(magnitude uint64, neg bool) {
	if b, ok := smallIntByte(magnitude, neg); ok {
		w.put(b)
		return
	}
	if magnitude >= 1<<48 {
		if neg {
			w.put(markerNegInt64)
		} else {
			w.put(markerPosInt64)
		}
		if w.err == nil {
			w.buf = binary.LittleEndian.AppendUint64(w.buf, magnitude)
		}
		return
	}
	if neg {
		w.put(markerNegVarint)
	} else {
		w.put(markerVarint)
	}
	w.varint(magnitude)
}

// Double appends an IEEE-754 binary64 value. NaN bit patterns pass
// through unchanged.
func (w *Writer) Double(f float64) *Writer {
	w.put(markerDouble)
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(f))
	}
	return w
}

// Time appends t as nanoseconds since the Unix epoch.
func (w *Writer) Time(t time.Time) *Writer {
	return w.Nanos(uint64(t.UnixNano()))
}

// Nanos appends a raw nanosecond timestamp.
func (w *Writer) Nanos(n uint64) *Writer {
	w.put(markerTimestamp)
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, n)
	}
	return w
}

// String appends a string, interning it when its observed frequency
// warrants.
func (w *Writer) String(s string) *Writer {
	w.string(s, InternAdaptive)
	return w
}

// InternString appends a string, forcing a dictionary entry (tiny
// strings still stay inline).
func (w *Writer) InternString(s string) *Writer {
	w.string(s, InternAlways)
	return w
}

// InlineString appends a string verbatim, bypassing the dictionary.
func (w *Writer) InlineString(s string) *Writer {
	w.inline(s)
	return w
}

func (w *Writer) string(s string, mode InternMode) {
	idx, ok := w.intern.idx(s, mode)
	if !ok {
		w.inline(s)
		return
	}
	if idx < 0x80 {
		w.put(shortDictRef | byte(idx))
		return
	}
	w.put(markerDictRef)
	w.varint(uint64(idx))
}

func (w *Writer) inline(s string) {
	if w.err == nil {
		w.buf = appendInlineString(w.buf, s)
	}
}

// Key appends an object key. Keys are prime interning candidates: they
// recur on every record, so they are always offered to the dictionary.
func (w *Writer) Key(s string) *Writer {
	w.string(s, InternAlways)
	return w
}

// BeginObject opens an object. Every BeginObject must be matched by an
// EndObject with alternating Key/value pairs between them.
func (w *Writer) BeginObject() *Writer {
	w.push(objectStart)
	return w
}

// EndObject closes the innermost object.
func (w *Writer) EndObject() *Writer {
	w.pop(objectEnd)
	return w
}

// BeginArray opens an array.
func (w *Writer) BeginArray() *Writer {
	w.push(arrayStart)
	return w
}

// EndArray closes the innermost array.
func (w *Writer) EndArray() *Writer {
	w.pop(arrayEnd)
	return w
}

func (w *Writer) push(marker byte) {
	w.depth++
	if w.depth > MaxDepth && w.err == nil {
		w.err = ErrTooDeep
	}
	w.put(marker)
}

func (w *Writer) pop(marker byte) {
	w.depth--
	w.put(marker)
}

// term appends the record terminator. Called by the encoder when
// finalizing, never by value producers.
func (w *Writer) term() {
	w.put(recordEnd)
	w.put('\n')
}
