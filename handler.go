// Handler capability surfaces for the SAX-style parsers.
//
// The value parser reports events through ValueHandler; the record
// parser through RecordHandler. Both have no-op base types meant for
// embedding, so a handler implements only the events it cares about.
// String fragments are borrowed from the source's buffer and are valid
// only for the duration of the callback.
package au

import "time"

// ValueHandler receives value-grammar events. pos arguments are the
// absolute stream offset of the value's first byte. Returning an error
// aborts the parse and propagates to the caller.
type ValueHandler interface {
	OnObjectStart() error
	OnObjectEnd() error
	OnArrayStart() error
	OnArrayEnd() error
	OnNull(pos int64) error
	OnBool(pos int64, b bool) error
	OnInt(pos int64, v int64) error
	OnUint(pos int64, v uint64) error
	OnDouble(pos int64, v float64) error
	OnTime(pos int64, t time.Time) error
	OnDictRef(pos int64, idx uint64) error
	OnStringStart(pos int64, length uint64) error
	OnStringFragment(frag []byte) error
	OnStringEnd() error
}

// NoopValueHandler ignores every event. Embed it to implement
// ValueHandler selectively.
type NoopValueHandler struct{}

func (NoopValueHandler) OnObjectStart() error                  { return nil }
func (NoopValueHandler) OnObjectEnd() error                    { return nil }
func (NoopValueHandler) OnArrayStart() error                   { return nil }
func (NoopValueHandler) OnArrayEnd() error                     { return nil }
func (NoopValueHandler) OnNull(int64) error                    { return nil }
func (NoopValueHandler) OnBool(int64, bool) error              { return nil }
func (NoopValueHandler) OnInt(int64, int64) error              { return nil }
func (NoopValueHandler) OnUint(int64, uint64) error            { return nil }
func (NoopValueHandler) OnDouble(int64, float64) error         { return nil }
func (NoopValueHandler) OnTime(int64, time.Time) error         { return nil }
func (NoopValueHandler) OnDictRef(int64, uint64) error         { return nil }
func (NoopValueHandler) OnStringStart(int64, uint64) error     { return nil }
func (NoopValueHandler) OnStringFragment([]byte) error         { return nil }
func (NoopValueHandler) OnStringEnd() error                    { return nil }

// RecordHandler receives frame-level events. OnValue is handed the
// source positioned at the value's first byte and must consume exactly
// length bytes (the declared length minus the record terminator); the
// record parser verifies the consumption afterwards.
type RecordHandler interface {
	OnRecordStart(pos int64) error
	OnHeader(h Header) error
	OnDictClear(pos int64) error
	OnDictAddStart(pos int64, backref uint32) error
	OnDictEntry(s string) error
	OnValue(backref uint32, length int64, src *Source) error
	OnParseEnd() error
}

// NoopRecordHandler ignores every record event, skipping value bodies.
type NoopRecordHandler struct{}

func (NoopRecordHandler) OnRecordStart(int64) error           { return nil }
func (NoopRecordHandler) OnHeader(Header) error               { return nil }
func (NoopRecordHandler) OnDictClear(int64) error             { return nil }
func (NoopRecordHandler) OnDictAddStart(int64, uint32) error  { return nil }
func (NoopRecordHandler) OnDictEntry(string) error            { return nil }
func (NoopRecordHandler) OnParseEnd() error                   { return nil }

func (NoopRecordHandler) OnValue(_ uint32, length int64, src *Source) error {
	return src.Skip(length)
}
