// Recursive-descent parser for the value grammar.
//
// Dispatch is on the first byte of a value: explicit markers first,
// then the compact ranges (the writer guarantees no compact form ever
// collides with a marker byte, so the two dispatch stages partition the
// byte space). The table is total — any byte matching neither a marker
// nor a range is a parse error. Nesting depth is bounded to keep a
// hostile stream from exhausting the stack.
package au

// valueParser walks one value tree, reporting events to h.
type valueParser struct {
	src   *Source
	h     ValueHandler
	depth int
}

// value parses a single value of any kind.
func (p *valueParser) value() error {
	sov := p.src.Pos()
	c, err := p.src.Next()
	if err != nil {
		return parseErr(sov, "unexpected EOF at start of value")
	}
	if c >= shortDictRef {
		return p.h.OnDictRef(sov, uint64(c&0x7f))
	}
	switch c {
	case markerTrue:
		return p.h.OnBool(sov, true)
	case markerFalse:
		return p.h.OnBool(sov, false)
	case markerNull:
		return p.h.OnNull(sov)
	case markerVarint:
		v, err := readVarint(p.src)
		if err != nil {
			return err
		}
		return p.h.OnUint(sov, v)
	case markerNegVarint:
		v, err := readVarint(p.src)
		if err != nil {
			return err
		}
		if v > 1<<63 {
			return parseErrWrap(sov, ErrOverflow, "negated varint %d overflows int64", v)
		}
		return p.h.OnInt(sov, -int64(v))
	case markerPosInt64:
		v, err := readUint64(p.src)
		if err != nil {
			return err
		}
		return p.h.OnUint(sov, v)
	case markerNegInt64:
		v, err := readUint64(p.src)
		if err != nil {
			return err
		}
		if v > 1<<63 {
			return parseErrWrap(sov, ErrOverflow, "negated int %d overflows int64", v)
		}
		return p.h.OnInt(sov, -int64(v))
	case markerDouble:
		v, err := readDouble(p.src)
		if err != nil {
			return err
		}
		return p.h.OnDouble(sov, v)
	case markerTimestamp:
		t, err := readTime(p.src)
		if err != nil {
			return err
		}
		return p.h.OnTime(sov, t)
	case markerDictRef:
		idx, err := readVarint(p.src)
		if err != nil {
			return err
		}
		return p.h.OnDictRef(sov, idx)
	case markerString:
		length, err := readVarint(p.src)
		if err != nil {
			return err
		}
		return p.stringBody(sov, length)
	case arrayStart:
		return p.parseArray()
	case objectStart:
		return p.parseObject()
	}
	switch {
	case c >= smallPosBase:
		return p.h.OnUint(sov, uint64(c&0x1f))
	case c >= smallNegBase:
		return p.h.OnInt(sov, -int64(c&0x1f))
	case c >= shortStringBase:
		return p.stringBody(sov, uint64(c&0x1f))
	}
	return parseErr(sov, "unexpected byte 0x%02x at start of value", c)
}

// key parses an object key, which the grammar restricts to strings:
// long or short inline form, or either dict-ref form.
func (p *valueParser) key() error {
	sok := p.src.Pos()
	c, err := p.src.Peek()
	if err != nil {
		return parseErr(sok, "unexpected EOF at start of key")
	}
	if c >= shortDictRef || c == markerString || c == markerDictRef ||
		(c >= shortStringBase && c < smallNegBase) {
		return p.value()
	}
	return parseErr(sok, "unexpected byte 0x%02x at start of key", c)
}

// stringBody reports a string of known length, delivering the bytes as
// borrowed fragments.
func (p *valueParser) stringBody(sov int64, length uint64) error {
	if err := p.h.OnStringStart(sov, length); err != nil {
		return err
	}
	if err := p.src.ReadSlices(int64(length), p.h.OnStringFragment); err != nil {
		return err
	}
	return p.h.OnStringEnd()
}

func (p *valueParser) parseArray() error {
	if err := p.push(); err != nil {
		return err
	}
	if err := p.h.OnArrayStart(); err != nil {
		return err
	}
	for {
		c, err := p.src.Peek()
		if err != nil {
			return parseErr(p.src.Pos(), "unexpected EOF in array")
		}
		if c == arrayEnd {
			break
		}
		if err := p.value(); err != nil {
			return err
		}
	}
	p.src.Next()
	p.depth--
	return p.h.OnArrayEnd()
}

func (p *valueParser) parseObject() error {
	if err := p.push(); err != nil {
		return err
	}
	if err := p.h.OnObjectStart(); err != nil {
		return err
	}
	for {
		c, err := p.src.Peek()
		if err != nil {
			return parseErr(p.src.Pos(), "unexpected EOF in object")
		}
		if c == objectEnd {
			break
		}
		if err := p.key(); err != nil {
			return err
		}
		if err := p.value(); err != nil {
			return err
		}
	}
	p.src.Next()
	p.depth--
	return p.h.OnObjectEnd()
}

func (p *valueParser) push() error {
	p.depth++
	if p.depth > MaxDepth {
		return parseErrWrap(p.src.Pos(), ErrTooDeep, "nesting exceeds %d levels", MaxDepth)
	}
	return nil
}
