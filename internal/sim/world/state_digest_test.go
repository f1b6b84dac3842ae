package world

import (
	"testing"

	"skyrise.dev/internal/sim/catalogs"
)

func TestStateDigest_StableAcrossCalls(t *testing.T) {
	w := newTestWorld(t)
	a := w.stateDigest(7)
	b := w.stateDigest(7)
	if a != b {
		t.Fatalf("digest not stable: %s vs %s", a, b)
	}
}

func TestStateDigest_ChangesWithTickLabel(t *testing.T) {
	w := newTestWorld(t)
	if w.stateDigest(1) == w.stateDigest(2) {
		t.Fatalf("digest ignores tick label")
	}
}

func TestStateDigest_ChangesWithFunds(t *testing.T) {
	w := newTestWorld(t)
	before := w.stateDigest(3)
	w.DebugSetFunds(123)
	after := w.stateDigest(3)
	if before == after {
		t.Fatalf("digest ignores funds")
	}
}

func TestStateDigest_ChangesWithPlacement(t *testing.T) {
	w := newTestWorld(t)
	before := w.stateDigest(3)
	if w.dir.CreateFacility(catalogs.TypeOffice, 0, 2, 0, "") == nil {
		t.Fatalf("CreateFacility failed")
	}
	after := w.stateDigest(3)
	if before == after {
		t.Fatalf("digest ignores placement")
	}
}

func TestStateDigest_IgnoresSessions(t *testing.T) {
	a := newTestWorld(t)
	b := newTestWorld(t)

	// One world carries a connected session, the other none. Digests must
	// stay in lockstep: observers are not simulation state.
	joinOne(t, a, "watcher")
	b.StepOnce(nil, nil, nil)

	for i := 0; i < 10; i++ {
		_, da := a.StepOnce(nil, nil, nil)
		_, db := b.StepOnce(nil, nil, nil)
		if da != db {
			t.Fatalf("digest diverged at step %d: %s vs %s", i, da, db)
		}
	}
}

func TestStateDigest_SameSeedSameStream(t *testing.T) {
	a := newTestWorld(t)
	b := newTestWorld(t)
	a.tune.Arrivals.BaseRatePerMinute = 30
	b.tune.Arrivals.BaseRatePerMinute = 30
	if a.dir.CreateFacility(catalogs.TypeOffice, 0, 2, 0, "") == nil ||
		b.dir.CreateFacility(catalogs.TypeOffice, 0, 2, 0, "") == nil {
		t.Fatalf("CreateFacility failed")
	}

	for i := 0; i < 600; i++ {
		_, da := a.StepOnce(nil, nil, nil)
		_, db := b.StepOnce(nil, nil, nil)
		if da != db {
			t.Fatalf("digest diverged at step %d", i)
		}
	}
	if a.transit.PersonCount() != b.transit.PersonCount() {
		t.Fatalf("person counts diverged: %d vs %d", a.transit.PersonCount(), b.transit.PersonCount())
	}
}
