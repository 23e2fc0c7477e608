package timewindow

import (
	"context"
	"net/netip"
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/profile"
	"github.com/flowprofiler/flowprofiler/internal/store"
	"github.com/flowprofiler/flowprofiler/internal/store/memstore"
)

func newManager(t *testing.T) (*Manager, profile.ID) {
	t.Helper()
	m := NewManager(memstore.New(), 0)
	return m, profile.ID{IP: netip.MustParseAddr("10.0.0.1")}
}

func windowStarts(t *testing.T, ctx context.Context, s store.Store, pid profile.ID) []float64 {
	t.Helper()
	members, err := s.ZSetRange(ctx, store.TWSetKey(pid.Format(profile.DefaultSeparator)), 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	var starts []float64
	for _, m := range members {
		sc, ok, err := s.ZSetScore(ctx, store.TWSetKey(pid.Format(profile.DefaultSeparator)), m)
		if err != nil || !ok {
			t.Fatalf("missing score for %s", m)
		}
		starts = append(starts, sc)
	}
	return starts
}

func TestBootstrapScenario(t *testing.T) {
	ctx := context.Background()
	backing := memstore.New()
	mgr := NewManager(backing, 0)
	pid := profile.ID{IP: netip.MustParseAddr("10.0.0.1")}

	tw1, err := mgr.GetTimeWindow(ctx, pid, 1000, 300)
	if err != nil {
		t.Fatal(err)
	}
	if tw1 != 1 {
		t.Fatalf("first window id = %v, want 1", tw1)
	}

	tw2, err := mgr.GetTimeWindow(ctx, pid, 1600, 300)
	if err != nil {
		t.Fatal(err)
	}
	if tw2 != 3 {
		t.Fatalf("window for ts=1600 = %v, want 3 (timewindow3, start=1600)", tw2)
	}

	starts := windowStarts(t, ctx, backing, pid)
	want := map[float64]bool{1000: true, 1300: true, 1600: true}
	if len(starts) != 3 {
		t.Fatalf("starts = %v, want 3 windows", starts)
	}
	for _, s := range starts {
		if !want[s] {
			t.Errorf("unexpected window start %v", s)
		}
	}
}

func TestBackfillScenario(t *testing.T) {
	ctx := context.Background()
	backing := memstore.New()
	mgr := NewManager(backing, 0)
	pid := profile.ID{IP: netip.MustParseAddr("10.0.0.1")}

	if _, err := mgr.GetTimeWindow(ctx, pid, 1000, 300); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.GetTimeWindow(ctx, pid, 1600, 300); err != nil {
		t.Fatal(err)
	}

	tw0, err := mgr.GetTimeWindow(ctx, pid, 700, 300)
	if err != nil {
		t.Fatal(err)
	}
	if tw0 != 0 {
		t.Fatalf("backfilled window id = %v, want 0 (timewindow0, start=700)", tw0)
	}

	starts := windowStarts(t, ctx, backing, pid)
	want := map[float64]bool{700: true, 1000: true, 1300: true, 1600: true}
	if len(starts) != 4 {
		t.Fatalf("starts = %v, want 4 windows", starts)
	}
	for _, s := range starts {
		if !want[s] {
			t.Errorf("unexpected window start %v", s)
		}
	}
}

func TestOnlyOneWindowStart(t *testing.T) {
	ctx := context.Background()
	backing := memstore.New()
	mgr := NewManager(backing, 0)
	pid := profile.ID{IP: netip.MustParseAddr("10.0.0.1")}

	if _, err := mgr.GetTimeWindow(ctx, pid, 1_600_000_000, OnlyOneWindowWidth); err != nil {
		t.Fatal(err)
	}
	starts := windowStarts(t, ctx, backing, pid)
	if len(starts) != 1 {
		t.Fatalf("starts = %v, want exactly 1 window", starts)
	}
	want := 1_600_000_000.0 - bootstrapLookback
	if starts[0] != want {
		t.Fatalf("start = %v, want %v", starts[0], want)
	}

	// A later out-of-order flow must still land in the same sentinel window.
	tw, err := mgr.GetTimeWindow(ctx, pid, 1_000_000_000, OnlyOneWindowWidth)
	if err != nil {
		t.Fatal(err)
	}
	if tw != 1 {
		t.Fatalf("out-of-order flow window = %v, want the same sentinel window (1)", tw)
	}
}

func TestBoundaryExactEnd(t *testing.T) {
	ctx := context.Background()
	mgr, pid := newManager(t)

	if _, err := mgr.GetTimeWindow(ctx, pid, 1000, 300); err != nil {
		t.Fatal(err)
	}
	// A flow whose timestamp equals L+width exactly creates one new window.
	tw, err := mgr.GetTimeWindow(ctx, pid, 1300, 300)
	if err != nil {
		t.Fatal(err)
	}
	if tw != 2 {
		t.Fatalf("ts==L+width window = %v, want 2 (a new window)", tw)
	}
}

func TestBoundaryExactStart(t *testing.T) {
	ctx := context.Background()
	mgr, pid := newManager(t)

	if _, err := mgr.GetTimeWindow(ctx, pid, 1000, 300); err != nil {
		t.Fatal(err)
	}
	// A flow whose timestamp equals L stays in the last window.
	tw, err := mgr.GetTimeWindow(ctx, pid, 1000, 300)
	if err != nil {
		t.Fatal(err)
	}
	if tw != 1 {
		t.Fatalf("ts==L window = %v, want 1 (the existing last window)", tw)
	}
}
