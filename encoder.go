// Encoder: record framing, dictionary deltas, and maintenance.
//
// Each Encode call produces exactly one value record, optionally
// preceded by one dict-add record carrying the strings interned since
// the last delta. Both are staged in a pending buffer together with any
// header or dict-clear records emitted since the last flush, and the
// whole region reaches the sink in a single Write — so a crash or a
// concurrent tail never observes a value record whose dictionary
// context has not landed first.
//
// The backref field tracks the distance from the next record to be
// written back to the start of the most recent dict-modifying record.
// Every emitted record advances it by its own length; dict-add and
// dict-clear records reset it to their own length.
package au

import (
	"io"
)

// Maintenance defaults (see EncoderOptions).
const (
	DefaultPurgeInterval   = 250000
	DefaultPurgeThreshold  = 50
	DefaultReindexInterval = 500000
	DefaultClearThreshold  = 1400
)

// EncoderOptions configures an Encoder. Zero values select the
// defaults; a negative interval disables that maintenance trigger.
type EncoderOptions struct {
	Metadata string // header metadata, truncated to MaxMetadataSize

	PurgeInterval   int // purge the dictionary every this many records
	PurgeThreshold  int // entries used fewer times than this are purged
	ReindexInterval int // reindex (purge + renumber + clear) interval
	ClearThreshold  int // clear when the dictionary outgrows this

	TinyStringSize  int // strings this short are never interned
	InternThreshold int // tracker occurrences before promotion
	InternCacheSize int // tracker capacity in distinct strings
}

func (o *EncoderOptions) defaults() {
	pick := func(p *int, def int) {
		if *p == 0 {
			*p = def
		} else if *p < 0 {
			*p = 0
		}
	}
	pick(&o.PurgeInterval, DefaultPurgeInterval)
	pick(&o.PurgeThreshold, DefaultPurgeThreshold)
	pick(&o.ReindexInterval, DefaultReindexInterval)
	pick(&o.ClearThreshold, DefaultClearThreshold)
	pick(&o.TinyStringSize, DefaultTinyStringSize)
	pick(&o.InternThreshold, DefaultInternThreshold)
	pick(&o.InternCacheSize, DefaultInternCacheSize)
}

// Encoder writes an au stream to a sink. Not safe for concurrent use;
// one value record is produced per Encode call, in program order.
type Encoder struct {
	w      io.Writer
	intern *internTable
	opts   EncoderOptions

	dictBuf  []byte // pending header/C/A records + V record header
	valueBuf []byte // current record's value bytes incl. terminator

	backref      int64 // next record start back to the last A/C start
	lastDictSize int   // intern entries already exported by an A
	records      int64
}

// NewEncoder starts a stream on w. The header record (and the dict-clear
// that begins the first epoch) is staged immediately and reaches w with
// the first flushed record.
func NewEncoder(w io.Writer, opts EncoderOptions) *Encoder {
	opts.defaults()
	e := &Encoder{
		w:      w,
		intern: newInternTable(opts.TinyStringSize, opts.InternThreshold, opts.InternCacheSize),
		opts:   opts,
	}
	e.dictBuf = appendHeader(e.dictBuf, opts.Metadata)
	e.ClearDictionary(false)
	return e
}

// Encode invokes produce with a Writer that emits one value tree. If
// the producer wrote anything, the record is finalized and delivered to
// the sink; an empty producer is a no-op. Returns the number of bytes
// written.
func (e *Encoder) Encode(produce func(*Writer) error) (int, error) {
	w := Writer{buf: e.valueBuf[:0], intern: e.intern}
	err := produce(&w)
	e.valueBuf = w.buf
	if err != nil {
		return 0, err
	}
	if w.err != nil {
		return 0, w.err
	}
	if len(w.buf) == 0 {
		return 0, nil
	}
	w.term()
	e.valueBuf = w.buf
	return e.finalize()
}

// ClearDictionary drops all dictionary entries and stages a dict-clear
// record, beginning a new epoch. resetTracker also forgets the usage
// tracker's occurrence counts.
func (e *Encoder) ClearDictionary(resetTracker bool) {
	e.intern.clear(resetTracker)
	e.stageDictClear()
}

// PurgeDictionary drops entries used fewer than threshold times since
// promotion. Surviving indices keep their positions, so no dict-clear
// is needed: the wire mapping from old indices to old strings stays
// intact until the next epoch.
func (e *Encoder) PurgeDictionary(threshold int) int {
	return e.intern.purge(threshold)
}

// ReIndexDictionary purges, renumbers the survivors hottest-first, and
// stages the dict-clear that must precede any use of the new indices.
func (e *Encoder) ReIndexDictionary(threshold int) int {
	purged := e.intern.reIndex(threshold)
	e.stageDictClear()
	return purged
}

// Stats describes encoder progress and dictionary occupancy.
type Stats struct {
	Records     int64
	DictEntries int // entries exported or pending export
	LookupSize  int // live (unpurged) dictionary strings
	TrackerSize int // candidates under observation
}

func (e *Encoder) Stats() Stats {
	return Stats{
		Records:     e.records,
		DictEntries: e.intern.size(),
		LookupSize:  len(e.intern.lookup),
		TrackerSize: e.intern.tracker.size(),
	}
}

// stageDictClear appends a C record to the pending buffer and resets
// the backref anchor and export mark to it.
func (e *Encoder) stageDictClear() {
	sor := len(e.dictBuf)
	e.dictBuf = append(e.dictBuf, recordDictClear, smallPosBase|FormatVersion, recordEnd, '\n')
	e.backref = int64(len(e.dictBuf) - sor)
	e.lastDictSize = 0
}

// exportDict stages an A record covering intern entries added since the
// last export. Entries are always written inline — a dictionary entry
// cannot reference the dictionary.
func (e *Encoder) exportDict() {
	entries := e.intern.entries
	if len(entries) <= e.lastDictSize {
		return
	}
	sor := len(e.dictBuf)
	e.dictBuf = append(e.dictBuf, recordDictAdd)
	e.dictBuf = appendBackref(e.dictBuf, e.backref)
	for _, s := range entries[e.lastDictSize:] {
		e.dictBuf = appendInlineString(e.dictBuf, s)
	}
	e.dictBuf = append(e.dictBuf, recordEnd, '\n')
	e.backref = int64(len(e.dictBuf) - sor)
	e.lastDictSize = len(entries)
}

// finalize stages the dict delta and the V record header, writes the
// pending region and the value bytes as one Write, then runs the
// periodic maintenance schedule.
func (e *Encoder) finalize() (int, error) {
	e.exportDict()

	sor := len(e.dictBuf)
	e.dictBuf = append(e.dictBuf, recordValue)
	e.dictBuf = appendBackref(e.dictBuf, e.backref)
	e.dictBuf = appendVarint(e.dictBuf, uint64(len(e.valueBuf)))
	e.backref += int64(len(e.dictBuf) - sor)

	out := append(e.dictBuf, e.valueBuf...)
	n, err := e.w.Write(out)
	if err != nil {
		return n, err
	}

	e.records++
	e.backref += int64(len(e.valueBuf))
	e.dictBuf = e.dictBuf[:0]
	e.valueBuf = e.valueBuf[:0]

	if e.opts.ReindexInterval > 0 && e.records%int64(e.opts.ReindexInterval) == 0 {
		e.ReIndexDictionary(e.opts.PurgeThreshold)
	}
	if e.opts.PurgeInterval > 0 && e.records%int64(e.opts.PurgeInterval) == 0 && e.lastDictSize > 0 {
		e.PurgeDictionary(e.opts.PurgeThreshold)
	}
	if e.opts.ClearThreshold > 0 && e.lastDictSize > e.opts.ClearThreshold {
		e.ClearDictionary(true)
	}
	return n, nil
}

// appendBackref appends a 32-bit little-endian backref.
func appendBackref(dst []byte, backref int64) []byte {
	v := uint32(backref)
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
