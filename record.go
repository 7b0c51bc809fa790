// Frame-level record parser.
//
// Records are self-delimited: a leading marker byte (H, C, A, or V), a
// kind-specific payload, and the two-byte terminator "E\n". The value
// record additionally declares its own length, which the parser checks
// against the bytes its handler actually consumed — a cheap end-to-end
// guard that catches both corrupt streams and buggy handlers.
package au

import (
	"io"
	"strings"
)

// recordParser dispatches one record at a time to a RecordHandler.
type recordParser struct {
	src *Source
	h   RecordHandler
}

// parseStream parses records until EOF. A clean EOF at a record
// boundary reports OnParseEnd; EOF anywhere else is a parse error.
func (p *recordParser) parseStream() error {
	for {
		if _, err := p.src.Peek(); err == io.EOF {
			return p.h.OnParseEnd()
		} else if err != nil {
			return err
		}
		if err := p.record(); err != nil {
			return err
		}
	}
}

func (p *recordParser) record() error {
	sor := p.src.Pos()
	c, err := p.src.Next()
	if err != nil {
		return parseErr(sor, "unexpected EOF at start of record")
	}
	if err := p.h.OnRecordStart(sor); err != nil {
		return err
	}
	switch c {
	case recordHeader:
		return p.header(sor)
	case recordDictClear:
		if _, err := readFormatVersion(p.src); err != nil {
			return err
		}
		if err := readTerm(p.src); err != nil {
			return err
		}
		return p.h.OnDictClear(sor)
	case recordDictAdd:
		return p.dictAdd(sor)
	case recordValue:
		return p.valueRecord()
	}
	return parseErr(sor, "unexpected byte 0x%02x at start of record", c)
}

func (p *recordParser) header(sor int64) error {
	for _, want := range []byte{'A', 'U'} {
		b, err := p.src.Next()
		if err != nil || b != want {
			return parseErr(sor, "malformed header magic")
		}
	}
	version, err := readFormatVersion(p.src)
	if err != nil {
		return err
	}
	metadata, err := readInlineString(p.src, MaxMetadataSize)
	if err != nil {
		return err
	}
	if err := readTerm(p.src); err != nil {
		return err
	}
	return p.h.OnHeader(Header{Version: version, Metadata: metadata})
}

func (p *recordParser) dictAdd(sor int64) error {
	backref, err := readBackref(p.src)
	if err != nil {
		return err
	}
	if err := p.h.OnDictAddStart(sor, backref); err != nil {
		return err
	}
	for {
		c, err := p.src.Peek()
		if err != nil {
			return parseErr(p.src.Pos(), "unexpected EOF in dict-add record")
		}
		if c == recordEnd {
			break
		}
		s, err := readInlineString(p.src, 0)
		if err != nil {
			return err
		}
		if err := p.h.OnDictEntry(s); err != nil {
			return err
		}
	}
	return readTerm(p.src)
}

func (p *recordParser) valueRecord() error {
	backref, err := readBackref(p.src)
	if err != nil {
		return err
	}
	declared, err := readVarint(p.src)
	if err != nil {
		return err
	}
	if declared < 2 {
		return parseErr(p.src.Pos(), "value record declares impossible length %d", declared)
	}
	startOfValue := p.src.Pos()
	if err := p.h.OnValue(backref, int64(declared)-2, p.src); err != nil {
		return err
	}
	if err := readTerm(p.src); err != nil {
		return err
	}
	if consumed := p.src.Pos() - startOfValue; consumed != int64(declared) {
		return parseErr(startOfValue,
			"value record declared %d bytes but %d were consumed", declared, consumed)
	}
	return nil
}

// readFormatVersion accepts the small-int or varint encoding of the
// format version and requires it to equal FormatVersion.
func readFormatVersion(src *Source) (uint64, error) {
	pos := src.Pos()
	b, err := src.Next()
	if err != nil {
		return 0, parseErr(pos, "unexpected EOF reading format version")
	}
	var version uint64
	switch {
	case b >= smallPosBase && b < shortDictRef:
		version = uint64(b & 0x1f)
	case b == markerVarint:
		if version, err = readVarint(src); err != nil {
			return 0, err
		}
	default:
		return 0, parseErr(pos, "expected format version, got 0x%02x", b)
	}
	if version != FormatVersion {
		return 0, parseErrWrap(pos, ErrFormatVersion,
			"format version %d, this codec reads version %d", version, FormatVersion)
	}
	return version, nil
}

// readInlineString reads a string in either inline form. maxLen, when
// positive, bounds the declared length; a string claiming more is a
// parse error before any of its bytes are read.
func readInlineString(src *Source, maxLen int64) (string, error) {
	pos := src.Pos()
	c, err := src.Next()
	if err != nil {
		return "", parseErr(pos, "unexpected EOF at start of string")
	}
	var length uint64
	switch {
	case c >= shortStringBase && c < smallNegBase:
		length = uint64(c & 0x1f)
	case c == markerString:
		if length, err = readVarint(src); err != nil {
			return "", err
		}
	default:
		return "", parseErr(pos, "expected a string, got 0x%02x", c)
	}
	if maxLen > 0 && int64(length) > maxLen {
		return "", parseErr(pos, "string of %d bytes exceeds limit %d", length, maxLen)
	}
	var sb strings.Builder
	sb.Grow(int(min(length, 64*1024)))
	err = src.ReadSlices(int64(length), func(frag []byte) error {
		sb.Write(frag)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// readTerm consumes the record terminator.
func readTerm(src *Source) error {
	pos := src.Pos()
	b, err := src.Next()
	if err != nil || b != recordEnd {
		return parseErr(pos, "expected record end")
	}
	b, err = src.Next()
	if err != nil || b != '\n' {
		return parseErr(pos, "expected newline after record end")
	}
	return nil
}
