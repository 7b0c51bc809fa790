// Adaptive string interning for the encoder.
//
// The intern table maps strings to dense dictionary indices. Admission
// is frequency-based: a candidate must be seen internThresh times by
// the usage tracker before it earns an index. The tracker itself is
// bounded to internCacheSize distinct strings with FIFO eviction, which
// makes it an approximate, memory-bounded frequency filter biased
// toward strings that recur within a sliding window.
//
// Tracked candidates are keyed by their xxh3 hash rather than the
// string bytes, so the tracker holds no candidate bytes at all. A
// 64-bit collision at worst promotes a string a few occurrences early,
// which the approximate filter already tolerates.
package au

import (
	"sort"

	"github.com/zeebo/xxh3"
)

// Interning defaults.
const (
	DefaultTinyStringSize  = 4    // strings this short are never interned
	DefaultInternThreshold = 10   // occurrences before a string is promoted
	DefaultInternCacheSize = 1000 // distinct strings the tracker observes
)

// usageTracker counts occurrences of candidate strings in a bounded
// table. When full, the oldest tracked string is evicted.
type usageTracker struct {
	thresh int
	cap    int
	counts map[uint64]int
	queue  []uint64 // insertion order, oldest first
}

func newUsageTracker(thresh, cap int) *usageTracker {
	return &usageTracker{
		thresh: thresh,
		cap:    cap,
		counts: make(map[uint64]int),
	}
}

// shouldIntern records one occurrence of s and reports whether it has
// now reached the promotion threshold: the thresh-th tracked occurrence
// promotes. A promoted string leaves the tracker; its dictionary entry
// takes over counting.
func (u *usageTracker) shouldIntern(s string) bool {
	h := xxh3.HashString(s)
	n, tracked := u.counts[h]
	if !tracked {
		if len(u.queue) >= u.cap {
			delete(u.counts, u.queue[0])
			u.queue = u.queue[1:]
		}
		u.queue = append(u.queue, h)
	}
	n++
	if n >= u.thresh {
		u.remove(h)
		return true
	}
	u.counts[h] = n
	return false
}

func (u *usageTracker) remove(h uint64) {
	delete(u.counts, h)
	for i := range u.queue {
		if u.queue[i] == h {
			u.queue = append(u.queue[:i], u.queue[i+1:]...)
			break
		}
	}
}

func (u *usageTracker) clear() {
	u.counts = make(map[uint64]int)
	u.queue = u.queue[:0]
}

func (u *usageTracker) size() int { return len(u.counts) }

// internEntry is a string's index and its occurrence count since
// promotion. The count drives purge and reindex decisions.
type internEntry struct {
	index int
	count int
}

// internTable is the encoder-side dictionary: a dense ordered entry
// list plus a lookup map, fed by the usage tracker.
type internTable struct {
	tiny    int
	entries []string
	lookup  map[string]internEntry
	tracker *usageTracker
}

func newInternTable(tiny, thresh, cacheSize int) *internTable {
	return &internTable{
		tiny:    tiny,
		lookup:  make(map[string]internEntry),
		tracker: newUsageTracker(thresh, cacheSize),
	}
}

// InternMode selects how the writer treats a string.
type InternMode int8

const (
	InternAdaptive InternMode = iota // intern when frequency warrants
	InternAlways                     // intern regardless of frequency
	InternNever                      // always inline
)

// idx returns the dictionary index for s, interning it if policy
// allows. ok is false when s stays inline: tiny strings always,
// forced-inline strings, and candidates still below the threshold.
func (t *internTable) idx(s string, mode InternMode) (int, bool) {
	if len(s) <= t.tiny || mode == InternNever {
		return 0, false
	}
	if e, ok := t.lookup[s]; ok {
		e.count++
		t.lookup[s] = e
		return e.index, true
	}
	if mode == InternAlways || t.tracker.shouldIntern(s) {
		next := len(t.entries)
		t.lookup[s] = internEntry{index: next, count: 1}
		t.entries = append(t.entries, s)
		return next, true
	}
	return 0, false
}

// purge drops entries used fewer than threshold times since promotion.
// The entry list keeps its positions: emitted indices stay valid until
// the next dict-clear, only the lookup forgets the purged strings.
func (t *internTable) purge(threshold int) int {
	purged := 0
	for s, e := range t.lookup {
		if e.count < threshold {
			delete(t.lookup, s)
			purged++
		}
	}
	return purged
}

// reIndex purges, then renumbers the survivors by descending frequency
// so the hottest strings get the shortest dict-ref encodings. The
// caller must emit a dict-clear before any of the new indices reach the
// wire.
func (t *internTable) reIndex(threshold int) int {
	purged := t.purge(threshold)

	t.entries = t.entries[:0]
	for s := range t.lookup {
		t.entries = append(t.entries, s)
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.lookup[t.entries[i]].count > t.lookup[t.entries[j]].count
	})
	for i, s := range t.entries {
		e := t.lookup[s]
		e.index = i
		t.lookup[s] = e
	}
	return purged
}

// clear drops all entries, optionally resetting the usage tracker too.
func (t *internTable) clear(resetTracker bool) {
	t.entries = t.entries[:0]
	t.lookup = make(map[string]internEntry)
	if resetTracker {
		t.tracker.clear()
	}
}

func (t *internTable) size() int { return len(t.entries) }
