// Package storetest holds a black-box conformance suite shared by every
// store.Store implementation, so the in-memory fake and the bbolt adapter
// are held to exactly the same contract.
package storetest

import (
	"context"
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/store"
)

// Run exercises the full Store operation set against a freshly
// constructed backend.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("set", func(t *testing.T) {
		if err := s.SetAdd(ctx, "profiles", "profile_10.0.0.1", "profile_10.0.0.2"); err != nil {
			t.Fatalf("SetAdd: %v", err)
		}
		if err := s.SetAdd(ctx, "profiles", "profile_10.0.0.1"); err != nil {
			t.Fatalf("SetAdd (dup): %v", err)
		}
		card, err := s.SetCard(ctx, "profiles")
		if err != nil {
			t.Fatalf("SetCard: %v", err)
		}
		if card != 2 {
			t.Fatalf("SetCard = %d, want 2 (SetAdd must be idempotent per member)", card)
		}
		ok, err := s.SetIsMember(ctx, "profiles", "profile_10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("SetIsMember = %v, %v; want true, nil", ok, err)
		}
		members, err := s.SetMembers(ctx, "profiles")
		if err != nil || len(members) != 2 {
			t.Fatalf("SetMembers = %v, %v; want 2 members", members, err)
		}
		if err := s.SetRem(ctx, "profiles", "profile_10.0.0.1"); err != nil {
			t.Fatalf("SetRem: %v", err)
		}
		if ok, _ := s.SetIsMember(ctx, "profiles", "profile_10.0.0.1"); ok {
			t.Fatalf("SetIsMember after SetRem = true, want false")
		}
	})

	t.Run("hash", func(t *testing.T) {
		if err := s.HashSet(ctx, "profile_10.0.0.1", "Starttime", "1000"); err != nil {
			t.Fatalf("HashSet: %v", err)
		}
		if err := s.HashSet(ctx, "profile_10.0.0.1", "duration", "300"); err != nil {
			t.Fatalf("HashSet: %v", err)
		}
		v, ok, err := s.HashGet(ctx, "profile_10.0.0.1", "Starttime")
		if err != nil || !ok || v != "1000" {
			t.Fatalf("HashGet = %q, %v, %v; want 1000, true, nil", v, ok, err)
		}
		if _, ok, err := s.HashGet(ctx, "profile_10.0.0.1", "missing"); err != nil || ok {
			t.Fatalf("HashGet(missing) = _, %v, %v; want false, nil", ok, err)
		}
		all, err := s.HashGetAll(ctx, "profile_10.0.0.1")
		if err != nil || len(all) != 2 {
			t.Fatalf("HashGetAll = %v, %v; want 2 fields", all, err)
		}
	})

	t.Run("zset", func(t *testing.T) {
		key := "twsprofile_10.0.0.1"
		if err := s.ZSetAdd(ctx, key, 1000, "timewindow1"); err != nil {
			t.Fatalf("ZSetAdd: %v", err)
		}
		if err := s.ZSetAdd(ctx, key, 1300, "timewindow2"); err != nil {
			t.Fatalf("ZSetAdd: %v", err)
		}
		if err := s.ZSetAdd(ctx, key, 700, "timewindow0"); err != nil {
			t.Fatalf("ZSetAdd: %v", err)
		}
		card, err := s.ZSetCard(ctx, key)
		if err != nil || card != 3 {
			t.Fatalf("ZSetCard = %d, %v; want 3", card, err)
		}
		members, err := s.ZSetRange(ctx, key, 0, -1)
		if err != nil {
			t.Fatalf("ZSetRange: %v", err)
		}
		want := []string{"timewindow0", "timewindow1", "timewindow2"}
		if len(members) != len(want) {
			t.Fatalf("ZSetRange = %v, want %v", members, want)
		}
		for i := range want {
			if members[i] != want[i] {
				t.Fatalf("ZSetRange[%d] = %q, want %q (zsets must stay ordered by score)", i, members[i], want[i])
			}
		}
		last, err := s.ZSetRange(ctx, key, -1, -1)
		if err != nil || len(last) != 1 || last[0] != "timewindow2" {
			t.Fatalf("ZSetRange(-1,-1) = %v, %v; want [timewindow2]", last, err)
		}
		score, ok, err := s.ZSetScore(ctx, key, "timewindow1")
		if err != nil || !ok || score != 1000 {
			t.Fatalf("ZSetScore = %v, %v, %v; want 1000, true, nil", score, ok, err)
		}
		byScore, err := s.ZSetRangeByScore(ctx, key, 700, 1000)
		if err != nil || len(byScore) != 2 {
			t.Fatalf("ZSetRangeByScore = %v, %v; want 2 members", byScore, err)
		}
	})

	t.Run("flush", func(t *testing.T) {
		if err := s.FlushDB(ctx); err != nil {
			t.Fatalf("FlushDB: %v", err)
		}
		card, err := s.SetCard(ctx, "profiles")
		if err != nil || card != 0 {
			t.Fatalf("SetCard after FlushDB = %d, %v; want 0, nil", card, err)
		}
	})
}
