package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/store/storetest"
)

func TestBoltstoreConformance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowprofiler.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	storetest.Run(t, s)
}

func TestZSetAddOverwritesScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowprofiler.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.ZSetAdd(ctx, "k", 100, "m"); err != nil {
		t.Fatal(err)
	}
	if err := s.ZSetAdd(ctx, "k", 50, "m"); err != nil {
		t.Fatal(err)
	}
	score, ok, err := s.ZSetScore(ctx, "k", "m")
	if err != nil || !ok || score != 50 {
		t.Fatalf("ZSetScore = %v, %v, %v; want 50, true, nil", score, ok, err)
	}
	card, err := s.ZSetCard(ctx, "k")
	if err != nil || card != 1 {
		t.Fatalf("ZSetCard = %d, %v; want 1 (re-add must not duplicate the member)", card, err)
	}
}
