// Grep: predicate-filtered decode.
//
// Records decode exactly once. As each value streams through, its
// events are captured in resolved form (dict references become their
// strings — matching is intern-neutral by construction) while the
// matcher tests scalars against the compiled pattern. A matched record
// replays its captured events into the output sink: a JSON renderer
// normally, or a fresh encoder with -e. Capturing events rather than
// rendered text keeps before/after context windows cheap and lets both
// output modes share one path.
//
// A pattern with no typed flags matches anything it can be parsed as:
// the string form always, plus integer, double, timestamp, or atom
// forms when the text parses as one. Typed flags restrict matching to
// that interpretation and make an unparseable pattern an error.
package au

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// GrepOptions configures a grep run.
type GrepOptions struct {
	Pattern string
	Key     string // restrict matches to values under this object key

	MatchString    bool
	MatchSubstring bool // implies string matching
	MatchInt       bool
	MatchDouble    bool
	MatchTime      bool
	MatchAtom      bool

	Matches int // stop after this many matching records (0 = all)
	Before  int // context records before each match
	After   int // context records after each match
	Count   bool
	Encode  bool // emit matches re-encoded as au rather than JSON
}

// Grep decodes the stream at path and writes matching records to out.
// It returns the number of matching records, which is all the output
// there is in count mode.
func Grep(path string, opts GrepOptions, out io.Writer) (int64, error) {
	pat, err := opts.compile()
	if err != nil {
		return 0, err
	}

	src, err := OpenSource(path, SourceOptions{})
	if err != nil {
		return 0, err
	}
	defer src.Close()

	d := NewDecoder(src)
	g := &grepHandler{opts: &opts, pat: pat, dict: d}
	if opts.Encode {
		meta := fmt.Sprintf("au grep output from %s", path)
		g.sinkEnc = NewEncoder(out, EncoderOptions{Metadata: meta})
	} else {
		g.sinkJSON = NewJSONHandler(out, d)
	}

	err = d.Decode(g)
	if errors.Is(err, errStopDecode) {
		err = nil
	}
	return g.count, err
}

// errStopDecode aborts the decode once the match limit is satisfied.
var errStopDecode = errors.New("match limit reached")

// pattern is a GrepOptions.Pattern compiled into its typed
// interpretations. Nil/zero fields do not participate.
type pattern struct {
	str       string
	strSet    bool
	substring bool

	intPat  *int64
	uintPat *uint64
	dblPat  *float64
	atom    byte // markerTrue/markerFalse/markerNull, 0 when unset

	tStart, tEnd time.Time
}

func (o *GrepOptions) compile() (*pattern, error) {
	p := &pattern{}
	explicitStr := o.MatchString || o.MatchSubstring
	typed := o.MatchInt || o.MatchDouble || o.MatchTime || o.MatchAtom
	def := !explicitStr && !typed

	if o.MatchSubstring && typed {
		return nil, errors.New("substring matching is not compatible with typed matching")
	}

	if def || explicitStr {
		p.str = o.Pattern
		p.strSet = true
		p.substring = o.MatchSubstring
	}
	if def || o.MatchInt {
		iOK := false
		if v, err := strconv.ParseInt(o.Pattern, 10, 64); err == nil {
			p.intPat = &v
			iOK = true
		}
		if v, err := strconv.ParseUint(o.Pattern, 10, 64); err == nil {
			p.uintPat = &v
			iOK = true
		}
		if o.MatchInt && !iOK {
			return nil, fmt.Errorf("pattern %q is not an integer", o.Pattern)
		}
	}
	if def || o.MatchDouble {
		if v, err := strconv.ParseFloat(o.Pattern, 64); err == nil {
			p.dblPat = &v
		} else if o.MatchDouble {
			return nil, fmt.Errorf("pattern %q is not a double", o.Pattern)
		}
	}
	if def || o.MatchTime {
		if start, end, ok := parseTimePattern(o.Pattern); ok {
			p.tStart, p.tEnd = start, end
		} else if o.MatchTime {
			return nil, fmt.Errorf("pattern %q is not a date/time prefix", o.Pattern)
		}
	}
	if def || o.MatchAtom {
		switch o.Pattern {
		case "true":
			p.atom = markerTrue
		case "false":
			p.atom = markerFalse
		case "null":
			p.atom = markerNull
		default:
			if o.MatchAtom {
				return nil, fmt.Errorf("pattern %q is not true, false or null", o.Pattern)
			}
		}
	}
	return p, nil
}

func (p *pattern) matchString(s string) bool {
	if !p.strSet {
		return false
	}
	if p.substring {
		return strings.Contains(s, p.str)
	}
	return s == p.str
}

func (p *pattern) matchInt(v int64) bool {
	return p.intPat != nil && v == *p.intPat
}

func (p *pattern) matchUint(v uint64) bool {
	if p.uintPat != nil && v == *p.uintPat {
		return true
	}
	return p.intPat != nil && *p.intPat >= 0 && v == uint64(*p.intPat)
}

func (p *pattern) matchDouble(v float64) bool {
	return p.dblPat != nil && v == *p.dblPat
}

func (p *pattern) matchTime(t time.Time) bool {
	return !p.tStart.IsZero() && !t.Before(p.tStart) && t.Before(p.tEnd)
}

// replayOp is one captured value event, re-playable into any handler.
type replayOp func(ValueHandler) error

// gframe tracks container nesting for key-position bookkeeping.
type gframe struct {
	object bool
	n      int    // elements emitted so far, keys included
	key    string // last key completed in this object
}

// grepHandler consumes one stream, capturing and matching each record.
type grepHandler struct {
	NoopValueHandler
	opts *GrepOptions
	pat  *pattern
	dict DictResolver

	sinkJSON *JSONHandler
	sinkEnc  *Encoder

	ops     []replayOp
	stack   []gframe
	str     []byte
	strPos  int64
	matched bool

	ring      [][]replayOp // before-context, oldest first
	afterLeft int
	count     int64
	emitted   int64 // matches whose output (incl. after-context) started
}

// keyed reports whether the value position currently satisfies the -k
// restriction: no restriction, or the nearest enclosing object's
// current key equals it.
func (g *grepHandler) keyed() bool {
	if g.opts.Key == "" {
		return true
	}
	for i := len(g.stack) - 1; i >= 0; i-- {
		if g.stack[i].object {
			return g.stack[i].key == g.opts.Key
		}
	}
	return false
}

// keyPosition reports whether the next element is an object key.
func (g *grepHandler) keyPosition() bool {
	if len(g.stack) == 0 {
		return false
	}
	top := g.stack[len(g.stack)-1]
	return top.object && top.n%2 == 0
}

// element closes out one element and finishes the record when the
// value tree completes.
func (g *grepHandler) element() error {
	if len(g.stack) > 0 {
		g.stack[len(g.stack)-1].n++
		return nil
	}
	return g.finish()
}

func (g *grepHandler) capture(op replayOp) {
	g.ops = append(g.ops, op)
}

func (g *grepHandler) OnObjectStart() error {
	g.capture(func(h ValueHandler) error { return h.OnObjectStart() })
	g.stack = append(g.stack, gframe{object: true})
	return nil
}

func (g *grepHandler) OnObjectEnd() error {
	g.capture(func(h ValueHandler) error { return h.OnObjectEnd() })
	g.stack = g.stack[:len(g.stack)-1]
	return g.element()
}

func (g *grepHandler) OnArrayStart() error {
	g.capture(func(h ValueHandler) error { return h.OnArrayStart() })
	g.stack = append(g.stack, gframe{})
	return nil
}

func (g *grepHandler) OnArrayEnd() error {
	g.capture(func(h ValueHandler) error { return h.OnArrayEnd() })
	g.stack = g.stack[:len(g.stack)-1]
	return g.element()
}

func (g *grepHandler) OnNull(pos int64) error {
	g.capture(func(h ValueHandler) error { return h.OnNull(pos) })
	if g.keyed() && g.pat.atom == markerNull {
		g.matched = true
	}
	return g.element()
}

func (g *grepHandler) OnBool(pos int64, v bool) error {
	g.capture(func(h ValueHandler) error { return h.OnBool(pos, v) })
	want := byte(markerFalse)
	if v {
		want = markerTrue
	}
	if g.keyed() && g.pat.atom == want {
		g.matched = true
	}
	return g.element()
}

func (g *grepHandler) OnInt(pos int64, v int64) error {
	g.capture(func(h ValueHandler) error { return h.OnInt(pos, v) })
	if g.keyed() && g.pat.matchInt(v) {
		g.matched = true
	}
	return g.element()
}

func (g *grepHandler) OnUint(pos int64, v uint64) error {
	g.capture(func(h ValueHandler) error { return h.OnUint(pos, v) })
	if g.keyed() && g.pat.matchUint(v) {
		g.matched = true
	}
	return g.element()
}

func (g *grepHandler) OnDouble(pos int64, v float64) error {
	g.capture(func(h ValueHandler) error { return h.OnDouble(pos, v) })
	if g.keyed() && g.pat.matchDouble(v) {
		g.matched = true
	}
	return g.element()
}

func (g *grepHandler) OnTime(pos int64, t time.Time) error {
	g.capture(func(h ValueHandler) error { return h.OnTime(pos, t) })
	if g.keyed() && g.pat.matchTime(t) {
		g.matched = true
	}
	return g.element()
}

// OnDictRef resolves the reference immediately: matching and replay
// both want the string, and the governing epoch may have moved on by
// the time a held context record is emitted.
func (g *grepHandler) OnDictRef(pos int64, idx uint64) error {
	s, ok := g.dict.DictString(idx)
	if !ok {
		return parseErr(pos, "dict index %d out of range", idx)
	}
	g.strPos = pos
	return g.completeString(s)
}

func (g *grepHandler) OnStringStart(pos int64, _ uint64) error {
	g.str = g.str[:0]
	g.strPos = pos
	return nil
}

func (g *grepHandler) OnStringFragment(frag []byte) error {
	g.str = append(g.str, frag...)
	return nil
}

func (g *grepHandler) OnStringEnd() error {
	return g.completeString(string(g.str))
}

// completeString handles a fully assembled string: a key updates its
// object's key slot, a value is a match candidate. Either way the
// string replays as an inline string event.
func (g *grepHandler) completeString(s string) error {
	pos := g.strPos
	g.capture(func(h ValueHandler) error {
		if err := h.OnStringStart(pos, uint64(len(s))); err != nil {
			return err
		}
		if err := h.OnStringFragment([]byte(s)); err != nil {
			return err
		}
		return h.OnStringEnd()
	})
	if g.keyPosition() {
		g.stack[len(g.stack)-1].key = s
	} else if g.keyed() && g.pat.matchString(s) {
		g.matched = true
	}
	return g.element()
}

// finish decides a completed record's fate: emit, hold as potential
// before-context, or drop.
func (g *grepHandler) finish() error {
	rec := g.ops
	g.ops = nil
	matched := g.matched
	g.matched = false

	switch {
	case matched:
		g.count++
		if g.opts.Count {
			return nil
		}
		for _, held := range g.ring {
			if err := g.emit(held); err != nil {
				return err
			}
		}
		g.ring = g.ring[:0]
		if err := g.emit(rec); err != nil {
			return err
		}
		g.emitted++
		g.afterLeft = g.opts.After
	case g.afterLeft > 0 && !g.opts.Count:
		if err := g.emit(rec); err != nil {
			return err
		}
		g.afterLeft--
	case g.opts.Before > 0 && !g.opts.Count:
		if len(g.ring) >= g.opts.Before {
			g.ring = g.ring[1:]
		}
		g.ring = append(g.ring, rec)
	}

	if g.opts.Matches > 0 && g.emitted >= int64(g.opts.Matches) && g.afterLeft == 0 && !g.opts.Count {
		return errStopDecode
	}
	return nil
}

// emit replays one record's events into the configured sink.
func (g *grepHandler) emit(rec []replayOp) error {
	if g.sinkEnc != nil {
		_, err := g.sinkEnc.Encode(func(w *Writer) error {
			eh := encodeHandler{w: w}
			for _, op := range rec {
				if err := op(&eh); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	}
	for _, op := range rec {
		if err := op(g.sinkJSON); err != nil {
			return err
		}
	}
	return nil
}

// encodeHandler bridges replayed value events onto a Writer, restoring
// key/value positions so keys go back through the interning path.
type encodeHandler struct {
	NoopValueHandler
	w     *Writer
	stack []gframe
	str   []byte
}

func (e *encodeHandler) element() {
	if len(e.stack) > 0 {
		e.stack[len(e.stack)-1].n++
	}
}

func (e *encodeHandler) keyPosition() bool {
	if len(e.stack) == 0 {
		return false
	}
	top := e.stack[len(e.stack)-1]
	return top.object && top.n%2 == 0
}

func (e *encodeHandler) OnObjectStart() error {
	e.w.BeginObject()
	e.stack = append(e.stack, gframe{object: true})
	return e.w.Err()
}

func (e *encodeHandler) OnObjectEnd() error {
	e.w.EndObject()
	e.stack = e.stack[:len(e.stack)-1]
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnArrayStart() error {
	e.w.BeginArray()
	e.stack = append(e.stack, gframe{})
	return e.w.Err()
}

func (e *encodeHandler) OnArrayEnd() error {
	e.w.EndArray()
	e.stack = e.stack[:len(e.stack)-1]
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnNull(int64) error {
	e.w.Null()
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnBool(_ int64, v bool) error {
	e.w.Bool(v)
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnInt(_ int64, v int64) error {
	e.w.Int(v)
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnUint(_ int64, v uint64) error {
	e.w.Uint(v)
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnDouble(_ int64, v float64) error {
	e.w.Double(v)
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnTime(_ int64, t time.Time) error {
	e.w.Time(t)
	e.element()
	return e.w.Err()
}

func (e *encodeHandler) OnStringStart(int64, uint64) error {
	e.str = e.str[:0]
	return nil
}

func (e *encodeHandler) OnStringFragment(frag []byte) error {
	e.str = append(e.str, frag...)
	return nil
}

func (e *encodeHandler) OnStringEnd() error {
	s := string(e.str)
	if e.keyPosition() {
		e.w.Key(s)
	} else {
		e.w.String(s)
	}
	e.element()
	return e.w.Err()
}

// parseTimePattern interprets a timestamp prefix like
// "2018-03-27T18:45:00.123456789", or any prefix thereof, as a
// half-open UTC time range covering every instant the prefix could
// denote: "2018-03" spans March 2018, "2018-03-27T18:4" spans
// 18:40:00 through 18:49:59.999999999.
func parseTimePattern(s string) (start, end time.Time, ok bool) {
	type field struct {
		width int
		delim byte
		max   int
		min   int
	}
	fields := []field{
		{4, '-', 9999, 1000},
		{2, '-', 12, 1},
		{2, 'T', 31, 1},
		{2, ':', 23, 0},
		{2, ':', 59, 0},
		{2, '.', 59, 0},
		{9, 0, 999999999, 0},
	}

	lo := make([]int, len(fields))
	hi := make([]int, len(fields))
	rest := s
	for i, f := range fields {
		a, b, valid := parsePrefix(&rest, f.width, f.delim, f.max, f.min)
		if !valid {
			return time.Time{}, time.Time{}, false
		}
		lo[i], hi[i] = a, b
	}

	// time.Date normalises out-of-range components, so carrying (month
	// 13, second 60) falls out for free.
	start = time.Date(lo[0], time.Month(lo[1]), lo[2], lo[3], lo[4], lo[5], lo[6], time.UTC)
	end = time.Date(hi[0], time.Month(hi[1]), hi[2], hi[3], hi[4], hi[5], hi[6], time.UTC)
	if !end.After(start) {
		end = start.Add(time.Nanosecond)
	}
	return start, end, true
}

// parsePrefix consumes up to width digits of one timestamp component.
// A full component must be followed by its delimiter (or end the
// pattern); a partial component must end the pattern and widens the
// range by the unread digits. An absent component contributes its
// minimum to both bounds.
func parsePrefix(s *string, width int, delim byte, max, min int) (lo, hi int, ok bool) {
	if *s == "" {
		return min, min, true
	}
	str := *s
	n := 0
	i := 0
	for ; i < width && i < len(str); i++ {
		c := str[i]
		if c < '0' || c > '9' {
			return 0, 0, false
		}
		n = 10*n + int(c-'0')
	}
	str = str[i:]
	lo, hi = n, n
	if str == "" {
		hi++
	} else {
		if delim == 0 || str[0] != delim {
			return 0, 0, false
		}
		str = str[1:]
		if str == "" {
			return 0, 0, false
		}
	}
	for ; i < width; i++ {
		lo *= 10
		hi *= 10
	}
	if lo < min || lo > max {
		return 0, 0, false
	}
	*s = str
	return lo, hi, true
}
