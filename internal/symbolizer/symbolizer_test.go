package symbolizer

import "testing"

func TestFirstFlowOnTuple(t *testing.T) {
	res := Compute(TupleState{}, 1000, 0.05, 100)
	if res.Fragment != "1" {
		t.Fatalf("Fragment = %q, want %q", res.Fragment, "1")
	}
	if res.Next.Symbols != "1" {
		t.Fatalf("Symbols = %q, want %q", res.Next.Symbols, "1")
	}
	if res.Next.HasT1 {
		t.Fatalf("HasT1 should be false after the first flow (no T2 yet)")
	}
}

func TestSecondFlowThreeSecondsLater(t *testing.T) {
	first := Compute(TupleState{}, 1000, 0.05, 100)
	second := Compute(first.Next, 1003, 0.05, 100)
	if second.Fragment != "1." {
		t.Fatalf("Fragment = %q, want %q", second.Fragment, "1.")
	}
	if second.Next.Symbols != "11." {
		t.Fatalf("Symbols = %q, want %q", second.Next.Symbols, "11.")
	}
}

func TestLongSilenceZeroPrefix(t *testing.T) {
	first := Compute(TupleState{}, 1000, 0.05, 100)
	second := Compute(first.Next, 1003, 0.05, 100)
	third := Compute(second.Next, 1003+7200, 0.05, 100)
	if third.Fragment[:2] != "00" {
		t.Fatalf("Fragment = %q, want to start with two zero-prefix chars", third.Fragment)
	}
	if third.Next.Symbols != "11."+third.Fragment {
		t.Fatalf("Symbols = %q, want accumulated history", third.Next.Symbols)
	}
}

func TestUnsortedFlowsDetected(t *testing.T) {
	first := Compute(TupleState{}, 1000, 0.05, 100)
	second := Compute(first.Next, 990, 0.05, 100) // goes backwards in time
	if !second.Unsorted {
		t.Fatalf("Unsorted = false, want true for a negative T2")
	}
}

func TestPeriodicityStrong(t *testing.T) {
	// Three flows exactly 10s apart: T1 == T2 == 10, ratio 1 -> strong periodicity.
	a := Compute(TupleState{}, 0, 0.05, 50)
	b := Compute(a.Next, 10, 0.05, 50)
	c := Compute(b.Next, 20, 0.05, 50)
	if c.Fragment[len(c.Fragment)-2] != 'a' {
		t.Fatalf("Fragment = %q, want strong-periodicity small/short letter 'a'", c.Fragment)
	}
}

func TestDurationSizeBoundaries(t *testing.T) {
	cases := []struct {
		dur, bytes float64
		wantLetter byte
	}{
		{0.1, 250, '1'},   // D=1 (<=td1), S=1 (<=ts1)
		{0.1001, 250, '2'}, // D=2
		{10.0001, 250, '3'}, // D=3
		{0.05, 251, '4'},  // S=2
		{0.05, 1101, '7'}, // S=3
	}
	for _, c := range cases {
		res := Compute(TupleState{}, 0, c.dur, uint64(c.bytes))
		if res.Fragment != string(c.wantLetter) {
			t.Errorf("dur=%v bytes=%v: Fragment = %q, want %q", c.dur, c.bytes, res.Fragment, string(c.wantLetter))
		}
	}
}

func TestEncodeDecodeTupleStateRoundTrip(t *testing.T) {
	st := TupleState{Symbols: "11.", PreviousTime: 1003, HasPrevious: true, T1: 3, HasT1: true}
	encoded := EncodeTupleState(st)
	got, err := DecodeTupleState(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got != st {
		t.Fatalf("round-trip = %+v, want %+v", got, st)
	}
}

func TestDecodeEmptyState(t *testing.T) {
	got, err := DecodeTupleState("")
	if err != nil {
		t.Fatal(err)
	}
	if got != (TupleState{}) {
		t.Fatalf("DecodeTupleState(\"\") = %+v, want zero value", got)
	}
}
