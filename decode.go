// Decoder: streaming decode with dictionary resolution.
//
// The Decoder owns a byte source and a dictionary cache, and drives the
// record parser. Per value record it resolves the backref to the
// governing dictionary epoch, then runs the value parser with a
// bounds-checking wrapper so no consumer ever sees a dict index outside
// the resolved epoch. Consumers that need the referenced strings (the
// JSON renderer, grep) resolve indices through the Decoder, which
// always reflects the record currently being decoded.
package au

import "time"

// Decoder reads an au stream. Not safe for concurrent use.
type Decoder struct {
	src    *Source
	dicts  *Dictionary
	active *Dict // epoch governing the value record being decoded

	// RequireHeader makes the first record have to be a valid header.
	// NewDecoder sets it; tail clears it (a tail starts mid-stream).
	RequireHeader bool
}

// NewDecoder wraps src. The caller keeps ownership of nothing: closing
// the decoder's source is the way to cancel a follow-mode decode.
func NewDecoder(src *Source) *Decoder {
	return &Decoder{src: src, dicts: &Dictionary{}, RequireHeader: true}
}

// Source returns the decoder's byte source.
func (d *Decoder) Source() *Source { return d.src }

// DictString resolves a dict index against the epoch of the value
// record currently being decoded.
func (d *Decoder) DictString(idx uint64) (string, bool) {
	if d.active == nil {
		return "", false
	}
	return d.active.Lookup(idx)
}

// Decode parses records until EOF, reporting value events to h.
func (d *Decoder) Decode(h ValueHandler) error {
	p := recordParser{src: d.src, h: &streamHandler{d: d, out: h}}
	return p.parseStream()
}

// streamHandler is the RecordHandler behind Decode: it maintains the
// dictionary cache and forwards value events.
type streamHandler struct {
	d         *Decoder
	out       ValueHandler
	sor       int64 // start of the record in progress
	sawHeader bool
}

func (s *streamHandler) OnRecordStart(pos int64) error {
	s.sor = pos
	return nil
}

func (s *streamHandler) OnHeader(Header) error {
	s.sawHeader = true
	return nil
}

// gate rejects non-header records before the header when one is
// required. Decode's exit contract depends on this: a stream with no
// valid header must fail, not be skimmed for salvageable records.
func (s *streamHandler) gate() error {
	if s.d.RequireHeader && !s.sawHeader {
		return parseErr(s.sor, "record before stream header")
	}
	return nil
}

func (s *streamHandler) OnDictClear(pos int64) error {
	if err := s.gate(); err != nil {
		return err
	}
	s.d.dicts.clear(pos)
	return nil
}

func (s *streamHandler) OnDictAddStart(pos int64, backref uint32) error {
	if err := s.gate(); err != nil {
		return err
	}
	cur := s.d.dicts.current()
	if cur == nil {
		return parseErr(pos, "dict-add before any dict-clear")
	}
	if pos-int64(backref) != cur.lastDictPos {
		return parseErr(pos, "dict-add backref %d does not reach the previous dictionary record", backref)
	}
	return nil
}

func (s *streamHandler) OnDictEntry(entry string) error {
	s.d.dicts.current().add(s.sor, entry)
	return nil
}

func (s *streamHandler) OnValue(backref uint32, length int64, src *Source) error {
	if err := s.gate(); err != nil {
		return err
	}
	dict, err := s.d.dicts.find(s.sor, backref)
	if err != nil {
		return err
	}
	s.d.active = dict
	p := valueParser{src: src, h: &boundedHandler{out: s.out, dict: dict}}
	return p.value()
}

func (s *streamHandler) OnParseEnd() error { return nil }

// boundedHandler passes events through, rejecting dict indices outside
// the resolved epoch before any consumer sees them.
type boundedHandler struct {
	out  ValueHandler
	dict *Dict
}

func (b *boundedHandler) OnObjectStart() error                { return b.out.OnObjectStart() }
func (b *boundedHandler) OnObjectEnd() error                  { return b.out.OnObjectEnd() }
func (b *boundedHandler) OnArrayStart() error                 { return b.out.OnArrayStart() }
func (b *boundedHandler) OnArrayEnd() error                   { return b.out.OnArrayEnd() }
func (b *boundedHandler) OnNull(pos int64) error              { return b.out.OnNull(pos) }
func (b *boundedHandler) OnBool(pos int64, v bool) error      { return b.out.OnBool(pos, v) }
func (b *boundedHandler) OnInt(pos int64, v int64) error      { return b.out.OnInt(pos, v) }
func (b *boundedHandler) OnUint(pos int64, v uint64) error    { return b.out.OnUint(pos, v) }
func (b *boundedHandler) OnDouble(pos int64, v float64) error { return b.out.OnDouble(pos, v) }

func (b *boundedHandler) OnTime(pos int64, t time.Time) error { return b.out.OnTime(pos, t) }

func (b *boundedHandler) OnDictRef(pos int64, idx uint64) error {
	if idx >= uint64(b.dict.Len()) {
		return parseErr(pos, "dict index %d out of range (dictionary has %d entries)", idx, b.dict.Len())
	}
	return b.out.OnDictRef(pos, idx)
}

func (b *boundedHandler) OnStringStart(pos int64, n uint64) error { return b.out.OnStringStart(pos, n) }
func (b *boundedHandler) OnStringFragment(frag []byte) error      { return b.out.OnStringFragment(frag) }
func (b *boundedHandler) OnStringEnd() error                      { return b.out.OnStringEnd() }
