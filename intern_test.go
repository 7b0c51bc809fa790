// Intern table and usage tracker tests.
package au

import (
	"fmt"
	"testing"
)

func testTable() *internTable {
	return newInternTable(DefaultTinyStringSize, DefaultInternThreshold, DefaultInternCacheSize)
}

// A string at or under the tiny floor never earns an index, no matter
// how often it recurs or what mode asks for it.
func TestTinyStringNeverInterned(t *testing.T) {
	tab := testTable()
	for i := 0; i < 100; i++ {
		if _, ok := tab.idx("tiny", InternAdaptive); ok {
			t.Fatal("tiny string interned")
		}
		if _, ok := tab.idx("tiny", InternAlways); ok {
			t.Fatal("tiny string force-interned")
		}
	}
	if tab.size() != 0 {
		t.Errorf("table grew to %d entries on tiny input", tab.size())
	}
}

// The threshold-th occurrence promotes; earlier ones stay inline.
func TestInternThreshold(t *testing.T) {
	tab := testTable()
	for i := 1; i < DefaultInternThreshold; i++ {
		if _, ok := tab.idx("repeated-string", InternAdaptive); ok {
			t.Fatalf("occurrence %d interned before threshold", i)
		}
	}
	idx, ok := tab.idx("repeated-string", InternAdaptive)
	if !ok {
		t.Fatalf("occurrence %d (the threshold) did not intern", DefaultInternThreshold)
	}
	if idx != 0 {
		t.Errorf("first entry got index %d", idx)
	}
	// Every later occurrence resolves to the same index.
	if again, ok := tab.idx("repeated-string", InternAdaptive); !ok || again != idx {
		t.Errorf("re-lookup = (%d, %v), want (%d, true)", again, ok, idx)
	}
}

func TestInternForceModes(t *testing.T) {
	tab := testTable()
	if _, ok := tab.idx("forced entry", InternAlways); !ok {
		t.Fatal("InternAlways did not intern on first sight")
	}
	if _, ok := tab.idx("never entry", InternNever); ok {
		t.Fatal("InternNever interned")
	}
	// InternNever does not even feed the tracker.
	if got := tab.tracker.size(); got != 0 {
		t.Errorf("tracker observed %d strings through InternNever", got)
	}
}

// The tracker holds at most its capacity of distinct strings, evicting
// the oldest. A string pushed out loses its progress toward promotion.
func TestTrackerEviction(t *testing.T) {
	tab := newInternTable(DefaultTinyStringSize, 2, 3)
	tab.idx("victim string", InternAdaptive)
	for i := 0; i < 3; i++ {
		tab.idx(fmt.Sprintf("filler string %d", i), InternAdaptive)
	}
	if got := tab.tracker.size(); got != 3 {
		t.Fatalf("tracker size = %d, want capacity 3", got)
	}
	// With threshold 2 this would promote had the count survived.
	if _, ok := tab.idx("victim string", InternAdaptive); ok {
		t.Error("evicted string kept its count")
	}
}

// Purge forgets cold strings but preserves the index positions of
// survivors: the wire contract maps old indices to old strings until
// the next dict-clear.
func TestPurgePreservesIndices(t *testing.T) {
	tab := testTable()
	tab.idx("cold string", InternAlways)
	hot, _ := tab.idx("hot string", InternAlways)
	for i := 0; i < 10; i++ {
		tab.idx("hot string", InternAdaptive)
	}

	purged := tab.purge(5)
	if purged != 1 {
		t.Fatalf("purged %d entries, want 1", purged)
	}
	if got, ok := tab.idx("hot string", InternAdaptive); !ok || got != hot {
		t.Errorf("survivor index = (%d, %v), want (%d, true)", got, ok, hot)
	}
	if len(tab.entries) != 2 {
		t.Errorf("entry list length changed to %d", len(tab.entries))
	}
}

// Reindex renumbers survivors hottest-first so frequent strings get
// the shortest dict-ref encodings.
func TestReIndexOrdersByFrequency(t *testing.T) {
	tab := testTable()
	tab.idx("lukewarm string", InternAlways)
	tab.idx("hot string", InternAlways)
	for i := 0; i < 20; i++ {
		tab.idx("hot string", InternAdaptive)
	}
	for i := 0; i < 5; i++ {
		tab.idx("lukewarm string", InternAdaptive)
	}

	tab.reIndex(1)
	if idx, _ := tab.idx("hot string", InternAdaptive); idx != 0 {
		t.Errorf("hottest string at index %d, want 0", idx)
	}
	if idx, _ := tab.idx("lukewarm string", InternAdaptive); idx != 1 {
		t.Errorf("lukewarm string at index %d, want 1", idx)
	}
}

func TestClearResetsEntries(t *testing.T) {
	tab := testTable()
	tab.idx("entry one", InternAlways)
	tab.idx("entry two", InternAlways)
	tab.clear(false)
	if tab.size() != 0 {
		t.Fatalf("size = %d after clear", tab.size())
	}
	// Fresh indices start at zero again.
	if idx, ok := tab.idx("entry three", InternAlways); !ok || idx != 0 {
		t.Errorf("post-clear index = (%d, %v), want (0, true)", idx, ok)
	}
}

func TestClearResetTracker(t *testing.T) {
	tab := testTable()
	tab.idx("candidate string", InternAdaptive)
	tab.clear(false)
	if tab.tracker.size() != 1 {
		t.Error("clear(false) touched the tracker")
	}
	tab.clear(true)
	if tab.tracker.size() != 0 {
		t.Error("clear(true) left the tracker populated")
	}
}
