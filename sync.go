// Resynchronisation: locating a record boundary mid-stream.
//
// A value inside a record can contain any byte, so the terminator
// sequence alone does not identify a boundary — scanning for it only
// nominates candidates. Each candidate must survive the full gauntlet:
// a plausible backref, a dictionary reachable by walking the backref
// chain, and a speculative parse of the whole value under a validating
// handler that bounds every event by the record's declared end. The
// handler exists so a bogus candidate (say, an endless run of 'T's)
// is rejected incrementally rather than after unbounded buffering.
// Rejected candidates are logged and the scan resumes one byte later.
package au

import (
	"log/slog"
	"time"
)

// syncNeedle is the byte sequence nominating a candidate: a record
// terminator immediately followed by a value record marker.
var syncNeedle = []byte{recordEnd, '\n', recordValue}

// Sync scans forward from the source's current position for the next
// valid value record, rebuilding dictionary context as needed, and
// leaves the source positioned at the record's first byte. ErrNoSync
// means the scan exhausted the stream.
func (d *Decoder) Sync() error {
	for {
		found, err := d.src.SeekTo(syncNeedle)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoSync
		}
		sor := d.src.Pos() + 2 // the V after the terminator
		err = d.trySync(sor)
		if err == nil {
			return nil
		}
		if !IsParseError(err) {
			return err
		}
		slog.Debug("resync: candidate rejected", "pos", sor, "err", err)
		if err := d.src.Seek(sor + 1); err != nil {
			return err
		}
	}
}

// trySync validates the candidate record starting at sor. The source
// is positioned at the terminator preceding it. On success the source
// is left at sor; any ParseError means "not actually a record".
func (d *Decoder) trySync(sor int64) error {
	if err := readTerm(d.src); err != nil {
		return err
	}
	if err := expect(d.src, recordValue); err != nil {
		return err
	}
	backref, err := readBackref(d.src)
	if err != nil {
		return err
	}
	if int64(backref) > sor {
		return parseErr(sor, "backref %d reaches before start of file", backref)
	}

	anchor := sor - int64(backref)
	if d.dicts.search(anchor) == nil {
		if err := d.src.Seek(anchor); err != nil {
			return err
		}
		b := dictBuilder{src: d.src, dicts: d.dicts, endOfDict: sor, target: anchor}
		if err := b.build(); err != nil {
			return err
		}
		// The chain checked out; re-read the candidate's frame from
		// the top before validating the value.
		if err := d.src.Seek(sor); err != nil {
			return err
		}
		if err := expect(d.src, recordValue); err != nil {
			return err
		}
		again, err := readBackref(d.src)
		if err != nil {
			return err
		}
		if again != backref {
			return parseErr(sor, "backref changed between reads: %d then %d", backref, again)
		}
	}

	declared, err := readVarint(d.src)
	if err != nil {
		return err
	}
	if declared < 2 {
		return parseErr(sor, "value record declares impossible length %d", declared)
	}
	startOfValue := d.src.Pos()

	dict, err := d.dicts.find(sor, backref)
	if err != nil {
		return err
	}
	vp := valueParser{src: d.src, h: &validatingHandler{
		dict:   dict,
		src:    d.src,
		absEnd: startOfValue + int64(declared),
	}}
	if err := vp.value(); err != nil {
		return err
	}
	if err := readTerm(d.src); err != nil {
		return err
	}
	if consumed := d.src.Pos() - startOfValue; consumed != int64(declared) {
		return parseErr(sor, "value record declared %d bytes but %d were consumed", declared, consumed)
	}

	return d.src.Seek(sor)
}

func expect(src *Source, want byte) error {
	pos := src.Pos()
	b, err := src.Next()
	if err != nil || b != want {
		return parseErr(pos, "expected 0x%02x", want)
	}
	return nil
}

// validatingHandler is a no-op handler with bounds and dict-range
// checks, used only for speculative parses. Every event verifies the
// cursor has not run past the record's declared end, and string starts
// are rejected up front when their length alone would overrun it.
type validatingHandler struct {
	NoopValueHandler
	dict   *Dict
	src    *Source
	absEnd int64
}

func (v *validatingHandler) bounds() error {
	if v.src.Pos() > v.absEnd {
		return parseErr(v.src.Pos(), "value runs past its record's declared end")
	}
	return nil
}

func (v *validatingHandler) OnObjectStart() error          { return v.bounds() }
func (v *validatingHandler) OnObjectEnd() error            { return v.bounds() }
func (v *validatingHandler) OnArrayStart() error           { return v.bounds() }
func (v *validatingHandler) OnArrayEnd() error             { return v.bounds() }
func (v *validatingHandler) OnNull(int64) error            { return v.bounds() }
func (v *validatingHandler) OnBool(int64, bool) error      { return v.bounds() }
func (v *validatingHandler) OnInt(int64, int64) error      { return v.bounds() }
func (v *validatingHandler) OnUint(int64, uint64) error    { return v.bounds() }
func (v *validatingHandler) OnDouble(int64, float64) error { return v.bounds() }

func (v *validatingHandler) OnTime(int64, time.Time) error { return v.bounds() }

func (v *validatingHandler) OnDictRef(pos int64, idx uint64) error {
	if idx >= uint64(v.dict.Len()) {
		return parseErr(pos, "dict index %d out of range (dictionary has %d entries)", idx, v.dict.Len())
	}
	return v.bounds()
}

func (v *validatingHandler) OnStringStart(pos int64, length uint64) error {
	if v.src.Pos()+int64(length) > v.absEnd {
		return parseErr(pos, "string of %d bytes overruns the record", length)
	}
	return v.bounds()
}

func (v *validatingHandler) OnStringFragment([]byte) error { return v.bounds() }
