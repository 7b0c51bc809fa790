// End-to-end encode/decode property tests.
package au

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRoundTripScalars(t *testing.T) {
	when := time.Unix(1522176300, 123456789).UTC()
	data := encodeStream(t, EncoderOptions{}, func(w *Writer) error {
		w.BeginArray()
		w.Null()
		w.Bool(true)
		w.Bool(false)
		w.Int(0)
		w.Int(42)
		w.Int(-42)
		w.Int(math.MinInt64)
		w.Int(math.MaxInt64)
		w.Uint(math.MaxUint64)
		w.Double(5.9)
		w.Double(-5.9)
		w.Time(when)
		w.InlineString("")
		w.InlineString("héllo wörld")
		w.EndArray()
		return nil
	})

	records := decodeRecords(t, data)
	want := []any{arr{
		nil, true, false,
		uint64(0), uint64(42), int64(-42),
		int64(math.MinInt64), uint64(math.MaxInt64), uint64(math.MaxUint64),
		5.9, -5.9,
		when,
		"", "héllo wörld",
	}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("decoded %#v\nwant    %#v", records, want)
	}
}

// S2: the boundary integers decode back to their input values.
func TestRoundTripBoundaryIntegers(t *testing.T) {
	data := encodeStream(t, EncoderOptions{}, func(w *Writer) error {
		w.BeginArray()
		for _, v := range []int64{0, 127, 128, -1, -127, -128} {
			w.Int(v)
		}
		w.EndArray()
		return nil
	})
	want := []any{arr{uint64(0), uint64(127), uint64(128), int64(-1), int64(-127), int64(-128)}}
	if records := decodeRecords(t, data); !reflect.DeepEqual(records, want) {
		t.Errorf("decoded %#v\nwant    %#v", records, want)
	}
}

// Every representable small value survives, including the ones the
// writer must detour around marker collisions for.
func TestRoundTripSmallIntSweep(t *testing.T) {
	data := encodeStream(t, EncoderOptions{}, func(w *Writer) error {
		w.BeginArray()
		for v := int64(-40); v <= 40; v++ {
			w.Int(v)
		}
		w.EndArray()
		return nil
	})
	records := decodeRecords(t, data)
	got := records[0].(arr)
	for i, v := int64(-40), 0; i <= 40; i, v = i+1, v+1 {
		var want any
		if i < 0 {
			want = i
		} else {
			want = uint64(i)
		}
		if !reflect.DeepEqual(got[v], want) {
			t.Errorf("value %d decoded as %#v", i, got[v])
		}
	}
}

func TestRoundTripNested(t *testing.T) {
	data := encodeStream(t, EncoderOptions{},
		func(w *Writer) error {
			w.BeginObject()
			w.Key("key1").InlineString("value1")
			w.Key("key2").Int(-5000)
			w.Key("keyToIntern3").Bool(false)
			w.EndObject()
			return nil
		},
		func(w *Writer) error {
			w.BeginArray()
			w.Int(6).Int(1).Int(0).Int(-7).Int(-2)
			w.Double(5.9).Double(-5.9)
			w.EndArray()
			return nil
		},
		func(w *Writer) error {
			w.BeginArray().EndArray()
			return nil
		},
	)

	want := []any{
		obj{
			{"key1", "value1"},
			{"key2", int64(-5000)},
			{"keyToIntern3", false},
		},
		arr{uint64(6), uint64(1), uint64(0), int64(-7), int64(-2), 5.9, -5.9},
		arr(nil),
	}
	if records := decodeRecords(t, data); !reflect.DeepEqual(records, want) {
		t.Errorf("decoded %#v\nwant    %#v", records, want)
	}
}

// S4: NaN bit patterns pass through the codec untouched.
func TestRoundTripNaN(t *testing.T) {
	quiet := math.Float64frombits(0x7ff8000000000000)
	payload := math.Float64frombits(0x7ff8000000000001)
	negQuiet := math.Float64frombits(0xfff8000000000000)

	data := encodeStream(t, EncoderOptions{}, func(w *Writer) error {
		w.BeginArray()
		w.Double(quiet)
		w.Double(payload)
		w.Double(negQuiet)
		w.Double(0 / math.Inf(1)) // 0/inf is zero; the NaN comes next
		w.Double(math.NaN())
		w.EndArray()
		return nil
	})

	got := decodeRecords(t, data)[0].(arr)
	wantBits := []uint64{
		0x7ff8000000000000,
		0x7ff8000000000001,
		0xfff8000000000000,
	}
	for i, bits := range wantBits {
		v := got[i].(float64)
		if !math.IsNaN(v) {
			t.Fatalf("value %d is not NaN: %v", i, v)
		}
		if math.Float64bits(v) != bits {
			t.Errorf("NaN %d bits = %#x, want %#x", i, math.Float64bits(v), bits)
		}
	}
	if got[3].(float64) != 0 {
		t.Errorf("0/inf decoded as %v", got[3])
	}
	if !math.IsNaN(got[4].(float64)) {
		t.Errorf("math.NaN decoded as %v", got[4])
	}
}

// S3: the threshold-th occurrence of a repeated string switches the
// wire form from inline to dict-ref; the decoded values never change.
func TestRoundTripInterning(t *testing.T) {
	const repeated = "valToIntern"
	var produce []func(*Writer) error
	for i := 0; i < 12; i++ {
		produce = append(produce, func(w *Writer) error {
			w.String(repeated)
			return nil
		})
	}
	data := encodeStream(t, EncoderOptions{}, produce...)

	records := decodeRecords(t, data)
	if len(records) != 12 {
		t.Fatalf("decoded %d records", len(records))
	}
	for i, r := range records {
		if r != repeated {
			t.Errorf("record %d = %#v", i, r)
		}
	}

	// Nine inline copies, then one more carried by the dict-add
	// record; dict-refs are a single byte and carry no string.
	if got := bytes.Count(data, []byte(repeated)); got != DefaultInternThreshold {
		t.Errorf("literal appears %d times on the wire, want %d", got, DefaultInternThreshold)
	}
	log := parseLayout(t, data)
	if got := strings.Count(string(log.kinds), "A"); got != 1 {
		t.Errorf("%d dict-add records, want 1", got)
	}
}

// Intern neutrality: the decoded value is the same whether a string
// was inlined or force-interned.
func TestInternNeutrality(t *testing.T) {
	variants := [][]byte{
		encodeStream(t, EncoderOptions{}, func(w *Writer) error {
			w.InlineString("neutral string value")
			return nil
		}),
		encodeStream(t, EncoderOptions{}, func(w *Writer) error {
			w.InternString("neutral string value")
			return nil
		}),
	}
	for i, data := range variants {
		records := decodeRecords(t, data)
		if len(records) != 1 || records[0] != "neutral string value" {
			t.Errorf("variant %d decoded %#v", i, records)
		}
	}
}

func TestDepthLimitEncode(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	_, err := enc.Encode(func(w *Writer) error {
		for i := 0; i < MaxDepth+1; i++ {
			w.BeginArray()
		}
		for i := 0; i < MaxDepth+1; i++ {
			w.EndArray()
		}
		return nil
	})
	if !errors.Is(err, ErrTooDeep) {
		t.Errorf("encode at depth %d: %v, want ErrTooDeep", MaxDepth+1, err)
	}
}

// Decoding is bounded too: 8192 levels parse, 8193 do not. The streams
// are crafted directly since the encoder refuses to produce the deep
// one.
func TestDepthLimitDecode(t *testing.T) {
	nest := func(depth int) []byte {
		var v []byte
		for i := 0; i < depth; i++ {
			v = append(v, arrayStart)
		}
		v = append(v, markerNull)
		for i := 0; i < depth; i++ {
			v = append(v, arrayEnd)
		}
		return v
	}

	run := func(depth int) error {
		p := valueParser{src: srcOf(nest(depth)), h: NoopValueHandler{}}
		return p.value()
	}

	if err := run(MaxDepth); err != nil {
		t.Errorf("depth %d: %v, want success", MaxDepth, err)
	}
	if err := run(MaxDepth + 1); !errors.Is(err, ErrTooDeep) {
		t.Errorf("depth %d: %v, want ErrTooDeep", MaxDepth+1, err)
	}
}

// A writer producing nothing writes nothing — not even the pending
// header, which stays staged for the first real record.
func TestEmptyProduceWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	n, err := enc.Encode(func(w *Writer) error { return nil })
	if err != nil || n != 0 {
		t.Fatalf("empty produce = (%d, %v)", n, err)
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes written for an empty record", buf.Len())
	}
}
