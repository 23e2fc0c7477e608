// Package aggregate implements the per-time-window counters and the
// conversation-tuple table the spec calls the "Aggregators": SrcIPs,
// DstIPs, SrcPorts, DstPorts and OutTuples, plus the ModifiedTW
// bookkeeping every write must perform exactly once per touched window.
// Evidence is a reserved field name only; nothing here writes it.
package aggregate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flowprofiler/flowprofiler/internal/flow"
	"github.com/flowprofiler/flowprofiler/internal/profile"
	"github.com/flowprofiler/flowprofiler/internal/store"
	"github.com/flowprofiler/flowprofiler/internal/symbolizer"
	"github.com/flowprofiler/flowprofiler/internal/timewindow"
)

// Field names inside the per-(profile,twid) hash, exactly as named in the
// external-interfaces contract.
const (
	FieldSrcIPs    = "SrcIPs"
	FieldDstIPs    = "DstIPs"
	FieldSrcPorts  = "SrcPorts"
	FieldDstPorts  = "DstPorts"
	FieldEvidence  = "Evidence"
	FieldOutTuples = "OutTuples"
)

// Aggregators applies per-window counter and tuple-symbol updates
// against the Store.
type Aggregators struct {
	store store.Store
	sep   byte
}

// New constructs an Aggregators. sep must match the profile registry's
// separator.
func New(s store.Store, sep byte) *Aggregators {
	if sep == 0 {
		sep = profile.DefaultSeparator
	}
	return &Aggregators{store: s, sep: sep}
}

func (a *Aggregators) hashKey(pid profile.ID, twid timewindow.ID) string {
	return store.TWHashKey(pid.Format(a.sep), twid.String(), a.sep)
}

// markModified is the single code path behind the "exactly one
// ModifiedTW membership per touched window" invariant: every aggregate
// write below calls through here.
func (a *Aggregators) markModified(ctx context.Context, pid profile.ID, twid timewindow.ID) error {
	key := store.ModifiedKey(pid.Format(a.sep), twid.String(), a.sep)
	return a.store.SetAdd(ctx, store.ModifiedTWKey, key)
}

func (a *Aggregators) incrementCounter(ctx context.Context, pid profile.ID, twid timewindow.ID, field, member string) error {
	counters, err := a.readCounters(ctx, pid, twid, field)
	if err != nil {
		return err
	}
	counters[member]++
	if err := a.writeCounters(ctx, pid, twid, field, counters); err != nil {
		return err
	}
	return a.markModified(ctx, pid, twid)
}

func (a *Aggregators) readCounters(ctx context.Context, pid profile.ID, twid timewindow.ID, field string) (map[string]int64, error) {
	v, ok, err := a.store.HashGet(ctx, a.hashKey(pid, twid), field)
	if err != nil {
		return nil, fmt.Errorf("aggregate: read %s: %w", field, err)
	}
	if !ok || v == "" {
		return make(map[string]int64), nil
	}
	return decodeCounters(v)
}

func (a *Aggregators) writeCounters(ctx context.Context, pid profile.ID, twid timewindow.ID, field string, counters map[string]int64) error {
	if err := a.store.HashSet(ctx, a.hashKey(pid, twid), field, encodeCounters(counters)); err != nil {
		return fmt.Errorf("aggregate: write %s: %w", field, err)
	}
	return nil
}

// Count returns the current counter value for a member of a counter
// field (SrcIPs/DstIPs/SrcPorts/DstPorts), used by tests checking
// invariant 3 (DstIPs[daddr] equals the number of routed fwd flows).
func (a *Aggregators) Count(ctx context.Context, pid profile.ID, twid timewindow.ID, field, member string) (int64, error) {
	counters, err := a.readCounters(ctx, pid, twid, field)
	if err != nil {
		return 0, err
	}
	return counters[member], nil
}

// AddOutDstIPs increments DstIPs[daddr] for the fwd target.
func (a *Aggregators) AddOutDstIPs(ctx context.Context, pid profile.ID, twid timewindow.ID, daddr string) error {
	return a.incrementCounter(ctx, pid, twid, FieldDstIPs, daddr)
}

// AddOutDstPort increments DstPorts[port] for the fwd target.
func (a *Aggregators) AddOutDstPort(ctx context.Context, pid profile.ID, twid timewindow.ID, port uint16) error {
	return a.incrementCounter(ctx, pid, twid, FieldDstPorts, strconv.Itoa(int(port)))
}

// AddOutSrcPort increments SrcPorts[port] for the fwd target.
func (a *Aggregators) AddOutSrcPort(ctx context.Context, pid profile.ID, twid timewindow.ID, port uint16) error {
	return a.incrementCounter(ctx, pid, twid, FieldSrcPorts, strconv.Itoa(int(port)))
}

// AddInSrcIPs increments SrcIPs[saddr] for the rev target.
func (a *Aggregators) AddInSrcIPs(ctx context.Context, pid profile.ID, twid timewindow.ID, saddr string) error {
	return a.incrementCounter(ctx, pid, twid, FieldSrcIPs, saddr)
}

// AddInDstPort increments DstPorts[port] for the rev target.
func (a *Aggregators) AddInDstPort(ctx context.Context, pid profile.ID, twid timewindow.ID, port uint16) error {
	return a.incrementCounter(ctx, pid, twid, FieldDstPorts, strconv.Itoa(int(port)))
}

// AddInSrcPort increments SrcPorts[port] for the rev target.
func (a *Aggregators) AddInSrcPort(ctx context.Context, pid profile.ID, twid timewindow.ID, port uint16) error {
	return a.incrementCounter(ctx, pid, twid, FieldSrcPorts, strconv.Itoa(int(port)))
}

// AddFlow marks the window modified for a stored flow. The flow's raw
// fields are not themselves re-aggregated here (that is the job of the
// more specific Add* calls); AddFlow exists because every flow write,
// even one that contributes no other aggregate, must still mark its
// window modified.
func (a *Aggregators) AddFlow(ctx context.Context, pid profile.ID, twid timewindow.ID, f flow.Flow) error {
	return a.markModified(ctx, pid, twid)
}

// AddOutTuple computes the next symbol for the flow's tuple and persists
// the updated OutTuples entry.
func (a *Aggregators) AddOutTuple(ctx context.Context, pid profile.ID, twid timewindow.ID, f flow.Flow) (symbolizer.Result, error) {
	key := a.hashKey(pid, twid)
	tupleID := f.TupleID()

	all, _, err := a.store.HashGet(ctx, key, FieldOutTuples)
	if err != nil {
		return symbolizer.Result{}, fmt.Errorf("aggregate: read OutTuples: %w", err)
	}
	tuples, err := decodeTuples(all)
	if err != nil {
		return symbolizer.Result{}, err
	}

	prev, err := symbolizer.DecodeTupleState(tuples[tupleID])
	if err != nil {
		return symbolizer.Result{}, err
	}

	now := float64(f.StartTime.UnixMicro()) / 1e6
	res := symbolizer.Compute(prev, now, f.Duration.Seconds(), f.Bytes)

	tuples[tupleID] = symbolizer.EncodeTupleState(res.Next)
	if err := a.store.HashSet(ctx, key, FieldOutTuples, encodeTuples(tuples)); err != nil {
		return symbolizer.Result{}, fmt.Errorf("aggregate: write OutTuples: %w", err)
	}
	if err := a.markModified(ctx, pid, twid); err != nil {
		return symbolizer.Result{}, err
	}
	return res, nil
}
