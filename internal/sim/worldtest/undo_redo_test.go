package worldtest

import (
	"testing"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
)

func TestUndoRedo_BuildRoundTrip(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}

	st = h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "" {
		t.Fatalf("undo failed: %s", code)
	}
	// The full price comes back, flooring included, even though the
	// flooring itself stays in place.
	if st.Funds != startingFunds {
		t.Fatalf("funds=%d want %d after undo", st.Funds, startingFunds)
	}
	if len(st.Facilities) != 0 {
		t.Fatalf("facilities=%+v want none after undo", st.Facilities)
	}
	if st.Grid.BuiltCells != 3 || st.Grid.OccupiedCells != 0 {
		t.Fatalf("grid cells built=%d occupied=%d", st.Grid.BuiltCells, st.Grid.OccupiedCells)
	}
	if st.Ledger.CanUndo || !st.Ledger.CanRedo || st.Ledger.RedoDepth != 1 {
		t.Fatalf("ledger %+v", st.Ledger)
	}
	if st.Ledger.RedoDescription != "Place Office at floor 0" {
		t.Fatalf("redo description %q", st.Ledger.RedoDescription)
	}

	st = h.Step(protocol.ActionReq{ID: "r1", Type: "REDO"})
	if code := actionResultCode(st, "r1"); code != "" {
		t.Fatalf("redo failed: %s", code)
	}
	if want := int64(startingFunds - 4150); st.Funds != want {
		t.Fatalf("funds=%d want %d after redo", st.Funds, want)
	}
	f := findFacilityByType(st, "OFFICE")
	if f == nil || f.Floor != 0 || f.Column != 2 {
		t.Fatalf("office after redo: %+v", f)
	}
	if !st.Ledger.CanUndo || st.Ledger.CanRedo {
		t.Fatalf("ledger %+v", st.Ledger)
	}
}

func TestUndoRedo_EmptyStacksRejected(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "E_NOTHING_TO_UNDO" {
		t.Fatalf("undo code=%q", code)
	}
	st = h.Step(protocol.ActionReq{ID: "r1", Type: "REDO"})
	if code := actionResultCode(st, "r1"); code != "E_NOTHING_TO_REDO" {
		t.Fatalf("redo code=%q", code)
	}
}

func TestUndoRedo_DemolishRoundTrip(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "d1", Type: "DEMOLISH", Floor: 0, Column: 2})
	if code := actionResultCode(st, "d1"); code != "" {
		t.Fatalf("demolish failed: %s", code)
	}
	fundsAfterDemolish := st.Funds

	// Undoing the demolition rebuilds the office and re-pays the refund.
	st = h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "" {
		t.Fatalf("undo failed: %s", code)
	}
	if want := fundsAfterDemolish - 2000; st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}
	f := findFacilityByType(st, "OFFICE")
	if f == nil || f.Floor != 0 || f.Column != 2 || f.Capacity != 6 {
		t.Fatalf("office after undo: %+v", f)
	}

	st = h.Step(protocol.ActionReq{ID: "r1", Type: "REDO"})
	if code := actionResultCode(st, "r1"); code != "" {
		t.Fatalf("redo failed: %s", code)
	}
	if st.Funds != fundsAfterDemolish {
		t.Fatalf("funds=%d want %d", st.Funds, fundsAfterDemolish)
	}
	if len(st.Facilities) != 0 {
		t.Fatalf("facilities=%+v want none after redo", st.Facilities)
	}
}

func TestUndo_DemolitionRefundMustBeAffordable(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "d1", Type: "DEMOLISH", Floor: 0, Column: 2})
	if code := actionResultCode(st, "d1"); code != "" {
		t.Fatalf("demolish failed: %s", code)
	}

	// The refund was spent; undoing the demolition would owe 2000.
	h.SetFunds(500)
	st = h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "E_NO_FUNDS" {
		t.Fatalf("undo code=%q want E_NO_FUNDS", code)
	}
	// The refused undo keeps its entry; the demolition stays undoable.
	if !st.Ledger.CanUndo || st.Ledger.UndoDepth != 2 {
		t.Fatalf("ledger %+v", st.Ledger)
	}

	h.SetFunds(5000)
	st = h.Step(protocol.ActionReq{ID: "u2", Type: "UNDO"})
	if code := actionResultCode(st, "u2"); code != "" {
		t.Fatalf("retry undo failed: %s", code)
	}
	if st.Funds != 3000 {
		t.Fatalf("funds=%d want 3000", st.Funds)
	}
	if findFacilityByType(st, "OFFICE") == nil {
		t.Fatalf("office not rebuilt")
	}
}

func TestRedo_ClearedByNewCommand(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "" {
		t.Fatalf("undo failed: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "RETAIL", Floor: 0, Column: 10})
	if code := actionResultCode(st, "b2"); code != "" {
		t.Fatalf("second build failed: %s", code)
	}

	if st.Ledger.CanRedo || st.Ledger.RedoDepth != 0 {
		t.Fatalf("ledger %+v; new command must clear redo", st.Ledger)
	}
	st = h.Step(protocol.ActionReq{ID: "r1", Type: "REDO"})
	if code := actionResultCode(st, "r1"); code != "E_NOTHING_TO_REDO" {
		t.Fatalf("redo code=%q", code)
	}
}

func TestUndo_HistoryIsBounded(t *testing.T) {
	cfg := BaseConfig()
	cfg.Tune.MaxUndoHistory = 2
	h := NewHarness(t, cfg, catalogs.Builtin(), "builder")

	st := h.Step(
		protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 0},
		protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 4},
		protocol.ActionReq{ID: "b3", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 8},
	)
	for _, id := range []string{"b1", "b2", "b3"} {
		if code := actionResultCode(st, id); code != "" {
			t.Fatalf("%s failed: %s", id, code)
		}
	}
	if st.Ledger.UndoDepth != 2 {
		t.Fatalf("undo depth=%d want 2", st.Ledger.UndoDepth)
	}

	st = h.Step(protocol.ActionReq{ID: "u1", Type: "UNDO"})
	if code := actionResultCode(st, "u1"); code != "" {
		t.Fatalf("u1: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "u2", Type: "UNDO"})
	if code := actionResultCode(st, "u2"); code != "" {
		t.Fatalf("u2: %s", code)
	}
	st = h.Step(protocol.ActionReq{ID: "u3", Type: "UNDO"})
	if code := actionResultCode(st, "u3"); code != "E_NOTHING_TO_UNDO" {
		t.Fatalf("u3 code=%q; evicted entries must not be undoable", code)
	}

	// The first office fell off the history but its placement stands.
	if len(st.Facilities) != 1 {
		t.Fatalf("facilities=%d want 1", len(st.Facilities))
	}
	if st.Facilities[0].Column != 0 {
		t.Fatalf("surviving facility %+v; want the evicted one at column 0", st.Facilities[0])
	}
}
