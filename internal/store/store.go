// Package store defines the typed facade over the external key/value
// backend the profiler core depends on. The backend itself (a remote
// record store exposing set, sorted-set, and hash operations) is an
// external collaborator; this package only pins down the contract so the
// rest of the profiler can be built and tested against it without caring
// which concrete backend is behind it.
package store

import "context"

// Store is the operation set the profiler core issues against the
// backend. Implementations must make every individual operation atomic;
// callers never issue read-modify-write pairs across two calls outside of
// the single-threaded profiler region that owns the per-profile state
// machine.
type Store interface {
	SetAdd(ctx context.Context, key string, members ...string) error
	SetIsMember(ctx context.Context, key, member string) (bool, error)
	SetCard(ctx context.Context, key string) (int64, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetRem(ctx context.Context, key string, members ...string) error

	HashSet(ctx context.Context, key, field, value string) error
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	ZSetAdd(ctx context.Context, key string, score float64, member string) error
	ZSetRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZSetRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZSetScore(ctx context.Context, key, member string) (float64, bool, error)
	ZSetCard(ctx context.Context, key string) (int64, error)

	FlushDB(ctx context.Context) error
}

// Key names used by the profiler core, exactly as named in the
// external-interfaces contract: a single "profiles" set, a per-profile
// "tws<profileid>" sorted set of window ids by start time, a per-profile
// hash, a per-(profile,twid) hash, and a global "ModifiedTW" set.
const (
	ProfilesKey   = "profiles"
	ModifiedTWKey = "ModifiedTW"
)

// TWSetKey is the sorted-set key holding a profile's time windows.
func TWSetKey(profileID string) string {
	return "tws" + profileID
}

// TWHashKey is the hash key holding one (profile, twid) pair's aggregates.
func TWHashKey(profileID, twid string, sep byte) string {
	return profileID + string(sep) + twid
}

// ModifiedKey is the member string recorded in ModifiedTW for a touched
// (profile, twid) pair.
func ModifiedKey(profileID, twid string, sep byte) string {
	return profileID + string(sep) + twid
}
