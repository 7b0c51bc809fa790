// Decoder-side dictionaries.
//
// Each dict-clear record begins a dictionary epoch; dict-add records
// extend it monotonically. A Dict records the epoch anchor (startPos),
// the newest extension (lastDictPos), and the indexed entries. The
// Dictionary keeps every epoch it has seen, keyed by position, because
// resync may need historical context: a value record found by scanning
// backwards can reference an epoch that is no longer current.
package au

// Dict is one dictionary epoch.
type Dict struct {
	startPos    int64 // position of the C record that began the epoch
	lastDictPos int64 // position of the newest A record (or the C itself)
	entries     []string
}

// add appends an entry observed in the dict-add record at pos.
func (d *Dict) add(pos int64, s string) {
	d.entries = append(d.entries, s)
	if pos > d.lastDictPos {
		d.lastDictPos = pos
	}
}

// Len is the number of indexed entries.
func (d *Dict) Len() int { return len(d.entries) }

// Lookup resolves a dict index.
func (d *Dict) Lookup(idx uint64) (string, bool) {
	if idx >= uint64(len(d.entries)) {
		return "", false
	}
	return d.entries[idx], true
}

// Dictionary is the set of epochs a decoder has reconstructed.
type Dictionary struct {
	dicts []*Dict // ordered by startPos
}

// current is the most recent epoch, nil before the first dict-clear.
func (dd *Dictionary) current() *Dict {
	if len(dd.dicts) == 0 {
		return nil
	}
	return dd.dicts[len(dd.dicts)-1]
}

// search returns the epoch whose [startPos, lastDictPos] range contains
// pos, or nil. Epochs never overlap: each begins at a C record strictly
// after its predecessor's last extension.
func (dd *Dictionary) search(pos int64) *Dict {
	for i := len(dd.dicts) - 1; i >= 0; i-- {
		d := dd.dicts[i]
		if d.startPos <= pos && pos <= d.lastDictPos {
			return d
		}
	}
	return nil
}

// clear begins a new epoch anchored at the C record at pos. Earlier
// epochs are superseded, not deleted.
func (dd *Dictionary) clear(pos int64) *Dict {
	d := &Dict{startPos: pos, lastDictPos: pos}
	// Keep the slice ordered: resync can discover an older epoch after
	// a newer one is already cached.
	i := len(dd.dicts)
	for i > 0 && dd.dicts[i-1].startPos > pos {
		i--
	}
	dd.dicts = append(dd.dicts, nil)
	copy(dd.dicts[i+1:], dd.dicts[i:])
	dd.dicts[i] = d
	return d
}

// find resolves a record's backref to its dictionary: the record at sor
// references the dict-modifying record backref bytes earlier.
func (dd *Dictionary) find(sor int64, backref uint32) (*Dict, error) {
	pos := sor - int64(backref)
	if d := dd.search(pos); d != nil {
		return d, nil
	}
	return nil, parseErr(sor, "backref %d references unknown dictionary at %d", backref, pos)
}
