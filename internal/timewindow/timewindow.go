// Package timewindow implements the per-profile time-window manager:
// locating or creating the window that covers a given flow timestamp,
// including dense forward/backward gap-fill so a profile's window set
// stays contiguous no matter how out-of-order its input arrives.
package timewindow

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/flowprofiler/flowprofiler/internal/profile"
	"github.com/flowprofiler/flowprofiler/internal/store"
)

// OnlyOneWindowWidth is the sentinel width selecting "only_one_tw" mode:
// a single window wide enough that realistic out-of-order flows always
// fall back inside it.
const OnlyOneWindowWidth = 9_999_999_999

// bootstrapLookback is how far before the first flow's timestamp the
// sentinel window starts in "only_one_tw" mode (100 years, matching the
// reference implementation).
const bootstrapLookback = 100 * 31536000 // seconds

// ID is a time-window index within a profile. Indices may go negative via
// backward gap-fill to represent windows created retroactively.
type ID int

// String renders the wire-format time-window id: "timewindowN".
func (id ID) String() string {
	return fmt.Sprintf("timewindow%d", int(id))
}

// Manager locates/creates time windows for profiles against the Store.
type Manager struct {
	store store.Store
	sep   byte
}

// NewManager constructs a Manager. sep must match the profile registry's
// separator.
func NewManager(s store.Store, sep byte) *Manager {
	if sep == 0 {
		sep = profile.DefaultSeparator
	}
	return &Manager{store: s, sep: sep}
}

type windowEntry struct {
	id    ID
	start float64
}

// GetTimeWindow implements the §4.5 algorithm: it returns the id of the
// time window that covers flowTime for the given profile, creating one or
// more windows (forward or backward gap-fill, or a bootstrap window) as
// needed. The returned window always exists and covers flowTime; the
// profile's window set remains contiguous and ordered by start.
func (m *Manager) GetTimeWindow(ctx context.Context, id profile.ID, flowTime, width float64) (ID, error) {
	key := id.Format(m.sep)
	twKey := store.TWSetKey(key)

	card, err := m.store.ZSetCard(ctx, twKey)
	if err != nil {
		return 0, fmt.Errorf("timewindow: card: %w", err)
	}

	if card == 0 {
		return m.bootstrap(ctx, key, twKey, flowTime, width)
	}

	last, err := m.highestWindow(ctx, twKey)
	if err != nil {
		return 0, err
	}
	l := last.start

	// 1. Last-window fast path.
	if l <= flowTime && flowTime < l+width {
		return last.id, nil
	}

	// 2. Forward gap-fill.
	if flowTime >= l+width {
		n := int64(math.Floor((flowTime-(l+width))/width)) + 1
		var newest windowEntry
		cur := l
		curID := last.id
		for i := int64(0); i < n; i++ {
			cur += width
			curID++
			if err := m.store.ZSetAdd(ctx, twKey, cur, curID.String()); err != nil {
				return 0, fmt.Errorf("timewindow: forward gap-fill: %w", err)
			}
			newest = windowEntry{id: curID, start: cur}
		}
		return newest.id, nil
	}

	// 3. Backward search: any existing window whose start <= flowTime.
	if found, ok, err := m.latestAtOrBefore(ctx, twKey, flowTime); err != nil {
		return 0, err
	} else if ok {
		return found.id, nil
	}

	// 4. Backward gap-fill: decrement from the oldest existing window,
	// one width at a time, creating each new (older) window, until one
	// covers flowTime. The oldest existing window starts at first.start;
	// the first new window created starts at first.start - width.
	first, err := m.lowestWindow(ctx, twKey)
	if err != nil {
		return 0, err
	}
	cur := first.start
	curID := first.id
	var newest windowEntry
	for cur > flowTime {
		cur -= width
		curID--
		if err := m.store.ZSetAdd(ctx, twKey, cur, curID.String()); err != nil {
			return 0, fmt.Errorf("timewindow: backward gap-fill: %w", err)
		}
		newest = windowEntry{id: curID, start: cur}
	}
	return newest.id, nil
}

func (m *Manager) bootstrap(ctx context.Context, profileKey, twKey string, flowTime, width float64) (ID, error) {
	start := flowTime
	if width == OnlyOneWindowWidth {
		start = flowTime - bootstrapLookback
	}
	id := ID(1)
	if err := m.store.ZSetAdd(ctx, twKey, start, id.String()); err != nil {
		return 0, fmt.Errorf("timewindow: bootstrap: %w", err)
	}
	return id, nil
}

func (m *Manager) highestWindow(ctx context.Context, twKey string) (windowEntry, error) {
	members, err := m.store.ZSetRange(ctx, twKey, -1, -1)
	if err != nil {
		return windowEntry{}, fmt.Errorf("timewindow: range: %w", err)
	}
	if len(members) == 0 {
		return windowEntry{}, fmt.Errorf("timewindow: no windows for %s", twKey)
	}
	return m.entry(ctx, twKey, members[0])
}

func (m *Manager) lowestWindow(ctx context.Context, twKey string) (windowEntry, error) {
	members, err := m.store.ZSetRange(ctx, twKey, 0, 0)
	if err != nil {
		return windowEntry{}, fmt.Errorf("timewindow: range: %w", err)
	}
	if len(members) == 0 {
		return windowEntry{}, fmt.Errorf("timewindow: no windows for %s", twKey)
	}
	return m.entry(ctx, twKey, members[0])
}

// latestAtOrBefore returns the window with the greatest start <= flowTime.
func (m *Manager) latestAtOrBefore(ctx context.Context, twKey string, flowTime float64) (windowEntry, bool, error) {
	members, err := m.store.ZSetRangeByScore(ctx, twKey, math.Inf(-1), flowTime)
	if err != nil {
		return windowEntry{}, false, fmt.Errorf("timewindow: range by score: %w", err)
	}
	if len(members) == 0 {
		return windowEntry{}, false, nil
	}
	var best windowEntry
	for i, mem := range members {
		e, err := m.entry(ctx, twKey, mem)
		if err != nil {
			return windowEntry{}, false, err
		}
		if i == 0 || e.start > best.start {
			best = e
		}
	}
	return best, true, nil
}

func (m *Manager) entry(ctx context.Context, twKey, member string) (windowEntry, error) {
	score, ok, err := m.store.ZSetScore(ctx, twKey, member)
	if err != nil {
		return windowEntry{}, fmt.Errorf("timewindow: score: %w", err)
	}
	if !ok {
		return windowEntry{}, fmt.Errorf("timewindow: member %s has no score", member)
	}
	id, err := parseID(member)
	if err != nil {
		return windowEntry{}, err
	}
	return windowEntry{id: id, start: score}, nil
}

func parseID(s string) (ID, error) {
	const prefix = "timewindow"
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return 0, fmt.Errorf("timewindow: malformed window id %q", s)
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil {
		return 0, fmt.Errorf("timewindow: malformed window id %q: %w", s, err)
	}
	return ID(n), nil
}
