// Package memstore is an in-memory Store implementation used by unit
// tests and as a zero-configuration fallback. It makes every operation
// atomic with a single mutex, matching the "opaque transactional storage
// interface" contract in store.Store without needing a real backend.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/flowprofiler/flowprofiler/internal/store"
)

type zmember struct {
	member string
	score  float64
}

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu     sync.Mutex
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
	zsets  map[string][]zmember
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string][]zmember),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) SetAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *Store) SetIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *Store) SetCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sets[key])), nil
}

func (s *Store) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SetRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	return nil
}

func (s *Store) HashSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (s *Store) HashGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.hashes[key][field]
	return v, ok, nil
}

func (s *Store) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ZSetAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zs := s.zsets[key]
	for i, z := range zs {
		if z.member == member {
			zs[i].score = score
			s.sortZSet(key)
			return nil
		}
	}
	s.zsets[key] = append(zs, zmember{member: member, score: score})
	s.sortZSet(key)
	return nil
}

func (s *Store) sortZSet(key string) {
	zs := s.zsets[key]
	sort.Slice(zs, func(i, j int) bool { return zs[i].score < zs[j].score })
}

func (s *Store) ZSetRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	zs := s.zsets[key]
	n := int64(len(zs))
	start, stop = clampRange(start, stop, n)
	if start > stop {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, zs[i].member)
	}
	return out, nil
}

// clampRange turns redis-style (possibly negative, inclusive) start/stop
// indices into valid slice bounds for a zset of length n.
func clampRange(start, stop, n int64) (int64, int64) {
	if n == 0 {
		return 0, -1
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

func (s *Store) ZSetRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, z := range s.zsets[key] {
		if z.score >= min && z.score <= max {
			out = append(out, z.member)
		}
	}
	return out, nil
}

func (s *Store) ZSetScore(_ context.Context, key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range s.zsets[key] {
		if z.member == member {
			return z.score, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) ZSetCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

func (s *Store) FlushDB(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = make(map[string]map[string]struct{})
	s.hashes = make(map[string]map[string]string)
	s.zsets = make(map[string][]zmember)
	return nil
}
