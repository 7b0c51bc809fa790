// JSON rendering of decoded values.
//
// JSONHandler turns the event stream back into JSON text, one line per
// record. Dict references resolve through a DictResolver (normally the
// Decoder itself, which tracks the epoch of the record in flight).
// Strings pass through goccy's marshaller for escaping; numbers render
// via strconv. NaN and the infinities have no JSON spelling, so they
// render as strconv produces them (NaN, +Inf, -Inf) — lossy JSON is
// preferable to silently rewriting values.
package au

import (
	"fmt"
	"io"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// DictResolver resolves dictionary indices for the record being
// decoded.
type DictResolver interface {
	DictString(idx uint64) (string, bool)
}

// JSONHandler renders decoded values as JSON, one value per line.
type JSONHandler struct {
	w    io.Writer
	dict DictResolver

	buf    []byte
	strBuf []byte
	stack  []jsonFrame
}

type jsonFrame struct {
	object bool
	n      int // elements emitted so far (keys and values both count)
}

// NewJSONHandler renders to w, resolving dict references through dict.
func NewJSONHandler(w io.Writer, dict DictResolver) *JSONHandler {
	return &JSONHandler{w: w, dict: dict}
}

// pre emits the separator owed before a new element: a comma between
// siblings, a colon between a key and its value.
func (j *JSONHandler) pre() {
	if len(j.stack) == 0 {
		return
	}
	top := &j.stack[len(j.stack)-1]
	switch {
	case top.n == 0:
	case top.object && top.n%2 == 1:
		j.buf = append(j.buf, ':')
	default:
		j.buf = append(j.buf, ',')
	}
}

// post closes out an element; a completed top-level value is a whole
// record, flushed with its newline.
func (j *JSONHandler) post() error {
	if len(j.stack) > 0 {
		j.stack[len(j.stack)-1].n++
		return nil
	}
	j.buf = append(j.buf, '\n')
	_, err := j.w.Write(j.buf)
	j.buf = j.buf[:0]
	return err
}

func (j *JSONHandler) scalar(text []byte) error {
	j.pre()
	j.buf = append(j.buf, text...)
	return j.post()
}

func (j *JSONHandler) str(s string) error {
	j.pre()
	escaped, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal string: %w", err)
	}
	j.buf = append(j.buf, escaped...)
	return j.post()
}

func (j *JSONHandler) OnObjectStart() error {
	j.pre()
	j.buf = append(j.buf, '{')
	j.stack = append(j.stack, jsonFrame{object: true})
	return nil
}

func (j *JSONHandler) OnObjectEnd() error {
	j.buf = append(j.buf, '}')
	j.stack = j.stack[:len(j.stack)-1]
	return j.post()
}

func (j *JSONHandler) OnArrayStart() error {
	j.pre()
	j.buf = append(j.buf, '[')
	j.stack = append(j.stack, jsonFrame{})
	return nil
}

func (j *JSONHandler) OnArrayEnd() error {
	j.buf = append(j.buf, ']')
	j.stack = j.stack[:len(j.stack)-1]
	return j.post()
}

func (j *JSONHandler) OnNull(int64) error {
	return j.scalar([]byte("null"))
}

func (j *JSONHandler) OnBool(_ int64, v bool) error {
	if v {
		return j.scalar([]byte("true"))
	}
	return j.scalar([]byte("false"))
}

func (j *JSONHandler) OnInt(_ int64, v int64) error {
	return j.scalar(strconv.AppendInt(nil, v, 10))
}

func (j *JSONHandler) OnUint(_ int64, v uint64) error {
	return j.scalar(strconv.AppendUint(nil, v, 10))
}

func (j *JSONHandler) OnDouble(_ int64, v float64) error {
	return j.scalar(strconv.AppendFloat(nil, v, 'g', -1, 64))
}

func (j *JSONHandler) OnTime(_ int64, t time.Time) error {
	return j.str(t.Format(time.RFC3339Nano))
}

func (j *JSONHandler) OnDictRef(pos int64, idx uint64) error {
	s, ok := j.dict.DictString(idx)
	if !ok {
		return parseErr(pos, "dict index %d out of range", idx)
	}
	return j.str(s)
}

func (j *JSONHandler) OnStringStart(_ int64, length uint64) error {
	j.strBuf = j.strBuf[:0]
	if cap(j.strBuf) == 0 {
		j.strBuf = make([]byte, 0, min(length, 64*1024))
	}
	return nil
}

func (j *JSONHandler) OnStringFragment(frag []byte) error {
	j.strBuf = append(j.strBuf, frag...)
	return nil
}

func (j *JSONHandler) OnStringEnd() error {
	return j.str(string(j.strBuf))
}
