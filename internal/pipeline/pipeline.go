// Package pipeline wires the profiler's long-lived workers together:
// one ingest reader, a Normalizer pool turning raw records into
// canonical Flows, a single-threaded Profiler applying home-net policy
// and time-window placement, and a partitioned pool of Store Adapter
// workers performing the actual aggregate writes. Grounded on the
// teacher's ingest muxer's channel-fan-out shape, restructured around
// golang.org/x/sync/errgroup for supervised startup/shutdown the way
// activecm-rita's importer links its per-stage goroutines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/netip"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/flowprofiler/flowprofiler/internal/aggregate"
	"github.com/flowprofiler/flowprofiler/internal/flow"
	"github.com/flowprofiler/flowprofiler/internal/homenet"
	"github.com/flowprofiler/flowprofiler/internal/ingest/flavor"
	"github.com/flowprofiler/flowprofiler/internal/logx"
	"github.com/flowprofiler/flowprofiler/internal/profile"
	"github.com/flowprofiler/flowprofiler/internal/store"
	"github.com/flowprofiler/flowprofiler/internal/timewindow"
)

// rawRecord is one unparsed input item: either a raw text line (a
// CSV/TSV row, or a JSON-encoded Suricata event) or a pre-parsed Zeek
// map, never both. Exactly one of Line/Map is set.
type rawRecord struct {
	Line []byte
	Map  map[string]any
}

// Config parameterizes a Pipeline's stage counts and domain
// collaborators. NumNormalizers and NumStoreWorkers default to 1 and 4
// respectively; Parser and MapParser are each needed only for their own
// kind of source; the remaining collaborators are required.
type Config struct {
	NumNormalizers int
	NumStoreWorkers int

	Store       store.Store
	HomeNet     *homenet.Policy
	Profiles    *profile.Registry
	Windows     *timewindow.Manager
	Aggregators *aggregate.Aggregators
	Log         *logx.Logger

	// Width is the configured time-window width, applied uniformly to
	// every profile this pipeline creates.
	Width float64

	// Parser converts a raw line into a canonical Flow; selected once
	// by the caller after running flavor.Detect against the stream's
	// first line. Required when ingesting from a Lines() source.
	Parser flavor.Parser

	// MapParser converts a pre-parsed record into a canonical Flow;
	// required when ingesting from a Maps() source.
	MapParser flavor.MapParser
}

// Pipeline runs the ingest -> normalize -> profile -> store-adapter
// chain described in §5.
type Pipeline struct {
	cfg Config

	raw       chan rawRecord
	flows     chan flow.Flow
	storeJobs []chan storeJob

	// retryLimiter paces how fast a failed store job may be retried,
	// shared across every Store Adapter worker so a struggling backend
	// can't be hammered by the whole partitioned pool at once.
	retryLimiter *rate.Limiter
}

// storeJob is one unit of work dispatched to a partitioned Store
// Adapter worker; jobs for the same profile always land on the same
// partition so writes to a given (profile, twid) are serialized without
// locks, per §5's "partitioned by a hash of profileid" requirement.
type storeJob struct {
	pid profile.ID
	run func(ctx context.Context) error
}

// New constructs a Pipeline. Channel sizes are small and bounded,
// matching §5's "bounded FIFO channels" requirement: the pipeline
// applies backpressure rather than buffering unboundedly.
func New(cfg Config) *Pipeline {
	if cfg.NumNormalizers <= 0 {
		cfg.NumNormalizers = 1
	}
	if cfg.NumStoreWorkers <= 0 {
		cfg.NumStoreWorkers = 4
	}
	p := &Pipeline{
		cfg:          cfg,
		raw:          make(chan rawRecord, 256),
		flows:        make(chan flow.Flow, 256),
		retryLimiter: rate.NewLimiter(5, 5),
	}
	p.storeJobs = make([]chan storeJob, cfg.NumStoreWorkers)
	for i := range p.storeJobs {
		p.storeJobs[i] = make(chan storeJob, 64)
	}
	return p
}

// Lines feeds raw text lines (Argus/zeek-tabs/Suricata) into the
// pipeline. The caller is responsible for running flavor.Detect against
// the stream's first line beforehand and configuring cfg.Parser
// accordingly; Lines itself does not consume a header line.
func (p *Pipeline) Lines(ctx context.Context, in <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ln, ok := <-in:
			if !ok {
				close(p.raw)
				return nil
			}
			select {
			case p.raw <- rawRecord{Line: ln}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Maps feeds pre-parsed Zeek records into the pipeline.
func (p *Pipeline) Maps(ctx context.Context, in <-chan map[string]any) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-in:
			if !ok {
				close(p.raw)
				return nil
			}
			select {
			case p.raw <- rawRecord{Map: rec}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Run starts every stage and blocks until the ingest side closes (a
// clean shutdown) or any stage returns an error (an abrupt one), per
// §5's shutdown model: closing the raw channel is the sentinel that
// drains normalizers, which close the flow channel in turn once every
// normalizer has exited, draining the profiler, which closes the
// store-job channels.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	var normalizersDone sync.WaitGroup
	normalizersDone.Add(p.cfg.NumNormalizers)
	for i := 0; i < p.cfg.NumNormalizers; i++ {
		g.Go(func() error {
			defer normalizersDone.Done()
			return p.normalizer(ctx)
		})
	}
	// closes p.flows once every normalizer has exited, whether the
	// stream drained cleanly or the group is unwinding after an error.
	g.Go(func() error {
		normalizersDone.Wait()
		close(p.flows)
		return nil
	})

	g.Go(func() error { return p.profiler(ctx) })
	for i := 0; i < p.cfg.NumStoreWorkers; i++ {
		i := i
		g.Go(func() error { return p.storeWorker(ctx, p.storeJobs[i]) })
	}

	return g.Wait()
}

// normalizer is one Normalizer worker: it owns no state of its own,
// applying the configured flavor parser to each raw record it reads.
// Malformed records are logged and dropped, never fatal, per §4.2's
// failure policy.
func (p *Pipeline) normalizer(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-p.raw:
			if !ok {
				return nil
			}
			f, drop, err := p.parse(rec)
			if err != nil {
				p.cfg.Log.Warnf("normalizer: dropping malformed record: %v", err)
				continue
			}
			if drop {
				continue
			}
			select {
			case p.flows <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) parse(rec rawRecord) (f flow.Flow, drop bool, err error) {
	if rec.Map != nil {
		if p.cfg.MapParser == nil {
			return flow.Flow{}, false, fmt.Errorf("pipeline: no map parser configured")
		}
		f, err = p.cfg.MapParser.ParseMap(rec.Map)
	} else {
		if p.cfg.Parser == nil {
			return flow.Flow{}, false, fmt.Errorf("pipeline: no line parser configured")
		}
		f, err = p.cfg.Parser.Parse(rec.Line)
	}
	if errors.Is(err, flavor.ErrDrop) {
		if err != flavor.ErrDrop {
			// wrapped with drop-reason context (e.g. a DNS query type)
			p.cfg.Log.Debugf("normalizer: %v", err)
		}
		return flow.Flow{}, true, nil
	}
	if err == nil && f.UID == "" {
		// Argus and some Zeek-tabs deployments carry no uid field at all;
		// the profiler keys on (pid, twid, tuple) regardless, but every
		// stored flow needs a UID for dedup/logging, so mint one here
		// rather than leaving it empty downstream.
		f.UID = uuid.NewString()
	}
	return f, false, err
}

// profiler is the single-threaded profiler core: home-net resolution,
// profile/time-window placement, and dispatch to the partitioned store
// workers. It is the only stage that ever creates a time window, so
// per-profile state transitions are serialized without locks, per §5.
func (p *Pipeline) profiler(ctx context.Context) error {
	defer func() {
		for _, ch := range p.storeJobs {
			close(ch)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-p.flows:
			if !ok {
				return nil
			}
			if err := p.profileOne(ctx, f); err != nil {
				p.cfg.Log.Errorf("profiler: %v", err)
			}
		}
	}
}

func (p *Pipeline) profileOne(ctx context.Context, f flow.Flow) error {
	if f.HasMAC() {
		return nil
	}
	targets := p.cfg.HomeNet.Resolve(f.SAddr, f.DAddr)

	if targets.Fwd.IsValid() {
		if err := p.placeAndDispatch(ctx, targets.Fwd, f, true); err != nil {
			return err
		}
	}
	if targets.Rev.IsValid() {
		if err := p.placeAndDispatch(ctx, targets.Rev, f, false); err != nil {
			return err
		}
	}
	return nil
}

// placeAndDispatch resolves the profile/time-window for addr and
// enqueues the aggregate writes on the partitioned worker owning that
// profile. fwd selects which side's aggregate operations run.
func (p *Pipeline) placeAndDispatch(ctx context.Context, addr netip.Addr, f flow.Flow, fwd bool) error {
	pid := profile.ID{IP: addr}
	if err := p.cfg.Profiles.AddProfile(ctx, pid, float64(f.StartTime.UnixMicro())/1e6, p.cfg.Width); err != nil {
		return fmt.Errorf("pipeline: add profile: %w", err)
	}
	twid, err := p.cfg.Windows.GetTimeWindow(ctx, pid, float64(f.StartTime.UnixMicro())/1e6, p.cfg.Width)
	if err != nil {
		return fmt.Errorf("pipeline: get time window: %w", err)
	}

	job := storeJob{pid: pid, run: func(ctx context.Context) error {
		if fwd {
			return p.applyFwd(ctx, pid, twid, f)
		}
		return p.applyRev(ctx, pid, twid, f)
	}}

	idx := partitionFor(pid, len(p.storeJobs))
	select {
	case p.storeJobs[idx] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) applyFwd(ctx context.Context, pid profile.ID, twid timewindow.ID, f flow.Flow) error {
	res, err := p.cfg.Aggregators.AddOutTuple(ctx, pid, twid, f)
	if err != nil {
		return err
	}
	if res.Unsorted {
		// InvariantViolation per §7: a negative T2 means flows for this
		// tuple arrived out of order. Logged at high verbosity, never
		// fatal: processing continues with the symbol computed anyway.
		p.cfg.Log.Warnf("profile %s twid %s: out-of-order flow for tuple %s (negative T2)", pid, twid, f.TupleID())
	}
	if err := p.cfg.Aggregators.AddOutDstIPs(ctx, pid, twid, f.DAddr.String()); err != nil {
		return err
	}
	if err := p.cfg.Aggregators.AddOutDstPort(ctx, pid, twid, f.DPort); err != nil {
		return err
	}
	if err := p.cfg.Aggregators.AddOutSrcPort(ctx, pid, twid, f.SPort); err != nil {
		return err
	}
	return p.cfg.Aggregators.AddFlow(ctx, pid, twid, f)
}

func (p *Pipeline) applyRev(ctx context.Context, pid profile.ID, twid timewindow.ID, f flow.Flow) error {
	if err := p.cfg.Aggregators.AddInSrcIPs(ctx, pid, twid, f.SAddr.String()); err != nil {
		return err
	}
	if err := p.cfg.Aggregators.AddInDstPort(ctx, pid, twid, f.DPort); err != nil {
		return err
	}
	if err := p.cfg.Aggregators.AddInSrcPort(ctx, pid, twid, f.SPort); err != nil {
		return err
	}
	return p.cfg.Aggregators.AddFlow(ctx, pid, twid, f)
}

// storeWorker is one partition of the Store Adapter pool: jobs for the
// same profile always land here, so it never needs to coordinate with
// its siblings. A job that fails once is retried a single time, paced
// by the pipeline's shared retry limiter so a struggling store can't be
// retried into the ground by every partition at once; a second failure
// is logged and the job is dropped rather than blocking the partition.
func (p *Pipeline) storeWorker(ctx context.Context, jobs <-chan storeJob) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j, ok := <-jobs:
			if !ok {
				return nil
			}
			if err := j.run(ctx); err != nil {
				if werr := p.retryLimiter.Wait(ctx); werr != nil {
					return werr
				}
				if err := j.run(ctx); err != nil {
					p.cfg.Log.Errorf("store adapter: profile %s: %v", j.pid, err)
				}
			}
		}
	}
}

// partitionFor hashes a profile id onto one of n store-worker
// partitions, per §5's "partitioned by a hash of profileid".
func partitionFor(pid profile.ID, n int) int {
	h := fnv.New32a()
	h.Write([]byte(pid.Format('_')))
	return int(h.Sum32()) % n
}
