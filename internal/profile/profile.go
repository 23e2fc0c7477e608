// Package profile manages the per-host Profile registry: creation,
// lookup, and the id<->IP serialization used at the Store boundary. The
// "profile"+sep+ip key is a serialization artifact of the backend; in
// memory we carry a structured ID and only format it when talking to the
// Store.
package profile

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/flowprofiler/flowprofiler/internal/store"
)

// DefaultSeparator matches the reference implementation's field
// separator between a profile id and a time-window id.
const DefaultSeparator = '_'

// ID is a structured profile identifier: one per distinct IP.
type ID struct {
	IP netip.Addr
}

// String renders the wire-format profile key: "profile" + sep + ip.
func (id ID) String() string {
	return id.Format(DefaultSeparator)
}

// Format renders the wire-format profile key using an explicit separator.
func (id ID) Format(sep byte) string {
	return "profile" + string(sep) + id.IP.String()
}

// ParseID parses a wire-format profile key back into a structured ID.
func ParseID(s string, sep byte) (ID, error) {
	prefix := "profile" + string(sep)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return ID{}, fmt.Errorf("profile: malformed profile id %q", s)
	}
	ip, err := netip.ParseAddr(s[len(prefix):])
	if err != nil {
		return ID{}, fmt.Errorf("profile: malformed profile id %q: %w", s, err)
	}
	return ID{IP: ip}, nil
}

// Registry manages profile creation and lookup against the Store.
type Registry struct {
	store store.Store
	sep   byte
}

// NewRegistry constructs a Registry against the given Store. sep is the
// field separator used in wire-format keys; pass 0 to use the default.
func NewRegistry(s store.Store, sep byte) *Registry {
	if sep == 0 {
		sep = DefaultSeparator
	}
	return &Registry{store: s, sep: sep}
}

// Separator returns the configured field separator.
func (r *Registry) Separator() byte { return r.sep }

// AddProfile is idempotent: the first call inserts the profile id into
// the "profiles" set and writes its Starttime/duration attributes; later
// calls with the same id are no-ops, regardless of the arguments passed.
func (r *Registry) AddProfile(ctx context.Context, id ID, startTime float64, width float64) error {
	key := id.Format(r.sep)
	exists, err := r.store.SetIsMember(ctx, store.ProfilesKey, key)
	if err != nil {
		return fmt.Errorf("profile: check membership: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.store.SetAdd(ctx, store.ProfilesKey, key); err != nil {
		return fmt.Errorf("profile: register: %w", err)
	}
	if err := r.store.HashSet(ctx, key, "Starttime", strconv.FormatFloat(startTime, 'f', -1, 64)); err != nil {
		return fmt.Errorf("profile: set Starttime: %w", err)
	}
	if err := r.store.HashSet(ctx, key, "duration", strconv.FormatFloat(width, 'f', -1, 64)); err != nil {
		return fmt.Errorf("profile: set duration: %w", err)
	}
	return nil
}

// ProfileIDFromIP returns the canonical ID for ip iff a profile already
// exists for it.
func (r *Registry) ProfileIDFromIP(ctx context.Context, ip netip.Addr) (ID, bool, error) {
	id := ID{IP: ip}
	key := id.Format(r.sep)
	exists, err := r.store.SetIsMember(ctx, store.ProfilesKey, key)
	if err != nil {
		return ID{}, false, fmt.Errorf("profile: check membership: %w", err)
	}
	if !exists {
		return ID{}, false, nil
	}
	return id, true, nil
}

// Width returns the configured time-window width for a profile, as
// recorded when the profile was first created.
func (r *Registry) Width(ctx context.Context, id ID) (float64, error) {
	key := id.Format(r.sep)
	v, ok, err := r.store.HashGet(ctx, key, "duration")
	if err != nil {
		return 0, fmt.Errorf("profile: get duration: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("profile: no duration recorded for %s", key)
	}
	width, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("profile: malformed duration for %s: %w", key, err)
	}
	return width, nil
}
