// Package symbolizer computes the behavior-symbol alphabet (letter, time
// modifier, and zero-prefix) for each outbound flow in a conversation
// tuple, and appends it to that tuple's growing symbol string.
package symbolizer

import (
	"fmt"
	"strconv"
	"strings"
)

// Periodicity classes.
const (
	PeriodicityUnknown = -1
	PeriodicityStrong   = 1
	PeriodicityWeak     = 2
	PeriodicityWeakNot  = 3
	PeriodicityNot      = 4
)

// Thresholds learned from the reference implementation's first-version
// Stratosphere model.
const (
	tt1 = 1.05
	tt2 = 1.3
	tt3 = 5.0

	td1 = 0.1
	td2 = 10.0

	ts1 = 250.0
	ts2 = 1100.0

	longSilence = 3600.0 // seconds; T2 at or above this gets a '0' prefix per hour
)

// letterTable is the 5x3x3 alphabet from the spec: indexed by
// periodicity class (via periodicityIndex), then size class (1..3), then
// duration class (1..3).
var letterTable = map[int][3][3]byte{
	PeriodicityUnknown: {{'1', '2', '3'}, {'4', '5', '6'}, {'7', '8', '9'}},
	PeriodicityStrong:  {{'a', 'b', 'c'}, {'d', 'e', 'f'}, {'g', 'h', 'i'}},
	PeriodicityWeak:    {{'A', 'B', 'C'}, {'D', 'E', 'F'}, {'G', 'H', 'I'}},
	PeriodicityWeakNot: {{'r', 's', 't'}, {'u', 'v', 'w'}, {'x', 'y', 'z'}},
	PeriodicityNot:     {{'R', 'S', 'T'}, {'U', 'V', 'W'}, {'X', 'Y', 'Z'}},
}

// TupleState is the per-tupleid state persisted in OutTuples: the growing
// symbol string, the previous flow's timestamp, and T1 (the previous
// flow's T2), used to compute periodicity on the next flow.
type TupleState struct {
	Symbols      string
	PreviousTime float64
	HasPrevious  bool
	T1           float64
	HasT1        bool
}

// EncodeTupleState serializes a TupleState for storage in an OutTuples
// hash field.
func EncodeTupleState(s TupleState) string {
	prev := ""
	if s.HasPrevious {
		prev = strconv.FormatFloat(s.PreviousTime, 'f', -1, 64)
	}
	t1 := ""
	if s.HasT1 {
		t1 = strconv.FormatFloat(s.T1, 'f', -1, 64)
	}
	return strings.Join([]string{s.Symbols, prev, t1}, "\x1f")
}

// DecodeTupleState parses a stored OutTuples field back into a TupleState.
// An empty string decodes to the zero state (no previous flow seen yet).
func DecodeTupleState(s string) (TupleState, error) {
	if s == "" {
		return TupleState{}, nil
	}
	parts := strings.Split(s, "\x1f")
	if len(parts) != 3 {
		return TupleState{}, fmt.Errorf("symbolizer: malformed tuple state %q", s)
	}
	st := TupleState{Symbols: parts[0]}
	if parts[1] != "" {
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return TupleState{}, fmt.Errorf("symbolizer: malformed previous_time in %q: %w", s, err)
		}
		st.PreviousTime, st.HasPrevious = v, true
	}
	if parts[2] != "" {
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return TupleState{}, fmt.Errorf("symbolizer: malformed T1 in %q: %w", s, err)
		}
		st.T1, st.HasT1 = v, true
	}
	return st, nil
}

// Result is what computing one flow's symbol produces.
type Result struct {
	Fragment string // the zero-prefix + letter + modifier appended this step
	Next     TupleState
	Unsorted bool // true if T2 came back negative (out-of-order flows)
}

// Compute implements §4.6: given the tuple's prior state and the new
// flow's timestamp/duration/size, it returns the symbol fragment to
// append and the tuple's updated state.
func Compute(prev TupleState, now, durationSeconds float64, totalBytes uint64) Result {
	var t2 float64
	hasT2 := false
	unsorted := false
	if prev.HasPrevious {
		t2 = now - prev.PreviousTime
		hasT2 = true
		if t2 < 0 {
			unsorted = true
		}
	}

	var zeroPrefix string
	if hasT2 && t2 >= longSilence {
		n := int(t2 / longSilence)
		zeroPrefix = strings.Repeat("0", n)
	}

	periodicity := computePeriodicity(prev.T1, prev.HasT1, t2, hasT2)
	duration := classify(durationSeconds, td1, td2)
	size := classify(float64(totalBytes), ts1, ts2)
	letter := letterTable[periodicity][size-1][duration-1]

	modifier := ""
	if hasT2 {
		modifier = timeModifier(t2)
	}

	fragment := zeroPrefix + string(letter) + modifier

	next := TupleState{
		Symbols:      prev.Symbols + fragment,
		PreviousTime: now,
		HasPrevious:  true,
	}
	if hasT2 {
		next.T1, next.HasT1 = t2, true
	}

	return Result{Fragment: fragment, Next: next, Unsorted: unsorted}
}

func computePeriodicity(t1 float64, hasT1 bool, t2 float64, hasT2 bool) int {
	if !hasT1 || !hasT2 {
		return PeriodicityUnknown
	}
	var r float64
	switch {
	case t1 == 0 || t2 == 0:
		r = 1
	case t2 >= t1:
		r = t2 / t1
	default:
		r = t1 / t2
	}
	switch {
	case r <= tt1:
		return PeriodicityStrong
	case r < tt2:
		return PeriodicityWeak
	case r < tt3:
		return PeriodicityWeakNot
	default:
		return PeriodicityNot
	}
}

// classify buckets v into {1,2,3} given the two ascending thresholds lo/hi:
// v<=lo -> 1, lo<v<=hi -> 2, v>hi -> 3.
func classify(v, lo, hi float64) int {
	switch {
	case v <= lo:
		return 1
	case v <= hi:
		return 2
	default:
		return 3
	}
}

func timeModifier(t2 float64) string {
	switch {
	case t2 <= 5:
		return "."
	case t2 <= 60:
		return ","
	case t2 <= 300:
		return "+"
	case t2 <= 3600:
		return "*"
	default:
		return ""
	}
}
