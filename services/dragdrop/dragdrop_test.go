package dragdrop_test

import (
	"testing"

	"epgbridge/services/dragdrop"
)

func TestResolveDropTargetPicksNearestCard(t *testing.T) {
	cards := []dragdrop.CardRect{
		{ID: "sc1", X: 0, Y: 0, Width: 100, Height: 40},    // centroid (50, 20)
		{ID: "sc2", X: 0, Y: 100, Width: 100, Height: 40},  // centroid (50, 120)
		{ID: "sc3", X: 300, Y: 300, Width: 100, Height: 40}, // centroid (350, 320)
	}

	id, ok := dragdrop.ResolveDropTarget(dragdrop.Point{X: 55, Y: 110}, cards)
	if !ok {
		t.Fatal("expected a target to resolve")
	}
	if id != "sc2" {
		t.Fatalf("expected nearest card sc2, got %q", id)
	}
}

func TestResolveDropTargetRespectsDistanceCap(t *testing.T) {
	cards := []dragdrop.CardRect{
		{ID: "sc1", X: 1000, Y: 1000, Width: 100, Height: 40},
	}

	if _, ok := dragdrop.ResolveDropTarget(dragdrop.Point{X: 0, Y: 0}, cards); ok {
		t.Fatal("expected no target beyond the distance cap")
	}
}

func TestResolveDropTargetEmptyLayout(t *testing.T) {
	if _, ok := dragdrop.ResolveDropTarget(dragdrop.Point{X: 10, Y: 10}, nil); ok {
		t.Fatal("expected no target with no cards")
	}
}

func TestControllerTransactionLifecycle(t *testing.T) {
	c := dragdrop.NewController()

	if _, ok := c.Pending(); ok {
		t.Fatal("expected no pending mapping on a fresh controller")
	}

	pm := c.Begin("42", "Kanal Eins HD", "ch_42")
	if pm.Token == "" {
		t.Fatal("expected transaction token")
	}
	if pm.EPGID != "42" {
		t.Fatalf("unexpected pending mapping: %+v", pm)
	}

	got, ok := c.Pending()
	if !ok || got.Token != pm.Token {
		t.Fatalf("expected pending transaction %q, got %+v (ok=%v)", pm.Token, got, ok)
	}

	// Starting a new drag replaces the previous transaction.
	second := c.Begin("7", "Sport Arena", "ch_7")
	got, _ = c.Pending()
	if got.Token != second.Token || got.EPGID != "7" {
		t.Fatalf("expected second transaction to replace first, got %+v", got)
	}

	c.Cancel()
	if _, ok := c.Pending(); ok {
		t.Fatal("expected pending mapping cleared after cancel")
	}
	c.Cancel() // no-op
}

func TestDropWithoutPendingIsNoOp(t *testing.T) {
	c := dragdrop.NewController()
	cards := []dragdrop.CardRect{{ID: "sc1", X: 0, Y: 0, Width: 100, Height: 40}}

	if _, ok := c.Drop(dragdrop.Point{X: 50, Y: 20}, cards); ok {
		t.Fatal("drop without a pending mapping must resolve to nothing")
	}
}

func TestDropResolvesWithPending(t *testing.T) {
	c := dragdrop.NewController()
	c.Begin("42", "Kanal Eins HD", "ch_42")
	cards := []dragdrop.CardRect{{ID: "sc1", X: 0, Y: 0, Width: 100, Height: 40}}

	id, ok := c.Drop(dragdrop.Point{X: 50, Y: 20}, cards)
	if !ok || id != "sc1" {
		t.Fatalf("expected drop to resolve to sc1, got %q (ok=%v)", id, ok)
	}
}
