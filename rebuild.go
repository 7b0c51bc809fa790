// Dictionary rebuilder: reconstructs an epoch by walking backrefs.
//
// When resync finds a value record whose dictionary the decoder has
// never seen, the rebuilder starts at the referenced dict record and
// follows the backref chain backwards, collecting dict-add string lists
// front-to-back so they finish in wire order. The walk ends at the
// epoch's dict-clear — or early, by splicing onto a cached epoch whose
// newest extension is exactly the record the chain reached. Rebuilding
// therefore costs I/O proportional to the epoch, never to the file.
package au

// dictBuilder accumulates entries while walking a backref chain.
type dictBuilder struct {
	src   *Source
	dicts *Dictionary
	// endOfDict bounds every string read during the walk: a valid
	// dictionary for the target record must end before the record
	// itself begins.
	endOfDict int64
	// target is the dict record the chain walk starts from; it becomes
	// the rebuilt epoch's lastDictPos.
	target int64

	entries []string
}

// build walks the chain from the source's current position. On success
// the dictionary cache contains an epoch covering the target record. At
// the top of each iteration the position is a dict record in no known
// epoch — the A branch re-establishes the invariant by bailing out as
// soon as the next link lands in one.
func (b *dictBuilder) build() error {
	for {
		sor := b.src.Pos()
		c, err := b.src.Next()
		if err != nil {
			return parseErr(sor, "unexpected EOF while rebuilding dictionary")
		}
		switch c {
		case recordDictAdd:
			backref, err := readBackref(b.src)
			if err != nil {
				return err
			}
			if int64(backref) > sor {
				return parseErr(sor, "dict-add backref %d reaches before start of file", backref)
			}
			if err := b.collect(); err != nil {
				return err
			}
			prev := sor - int64(backref)
			if d := b.dicts.search(prev); d != nil {
				if prev != d.lastDictPos {
					return parseErr(sor, "backref lands inside a known epoch at %d, expected its end %d",
						prev, d.lastDictPos)
				}
				b.populate(d)
				return nil
			}
			if err := b.src.Seek(prev); err != nil {
				return err
			}
		case recordDictClear:
			if _, err := readFormatVersion(b.src); err != nil {
				return err
			}
			if err := readTerm(b.src); err != nil {
				return err
			}
			// By the loop invariant this epoch cannot already be
			// cached, so register it unconditionally.
			b.populate(b.dicts.clear(sor))
			return nil
		default:
			return parseErr(sor, "expected dict record while rebuilding, got 0x%02x", c)
		}
	}
}

// collect reads one dict-add record's string list and prepends it, so
// entries from earlier records in the chain precede later ones.
func (b *dictBuilder) collect() error {
	var batch []string
	for {
		c, err := b.src.Peek()
		if err != nil {
			return parseErr(b.src.Pos(), "unexpected EOF in dict-add record")
		}
		if c == recordEnd {
			break
		}
		if b.src.Pos() >= b.endOfDict-1 {
			return parseErr(b.src.Pos(), "dictionary extends past the record that references it")
		}
		s, err := readInlineString(b.src, b.endOfDict-b.src.Pos()-1)
		if err != nil {
			return err
		}
		batch = append(batch, s)
	}
	if err := readTerm(b.src); err != nil {
		return err
	}
	b.entries = append(batch, b.entries...)
	return nil
}

// populate applies the accumulated entries, in wire order, to the epoch
// the walk resolved.
func (b *dictBuilder) populate(d *Dict) {
	for _, s := range b.entries {
		d.add(b.target, s)
	}
}
