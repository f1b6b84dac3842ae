package worldtest

import (
	"testing"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
)

const startingFunds = 2_000_000

func TestBuild_PlacesFacilityAndChargesFunds(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}

	// Office build cost plus flooring for the three footprint cells.
	wantFunds := int64(startingFunds - 4000 - 3*50)
	if st.Funds != wantFunds {
		t.Fatalf("funds=%d want %d", st.Funds, wantFunds)
	}

	f := findFacilityByType(st, "OFFICE")
	if f == nil {
		t.Fatalf("no office in state: %+v", st.Facilities)
	}
	if f.Floor != 0 || f.Column != 2 || f.Width != 3 || f.Capacity != 6 {
		t.Fatalf("office placement %+v", f)
	}
	if st.Grid.BuiltCells != 3 || st.Grid.OccupiedCells != 3 {
		t.Fatalf("grid cells built=%d occupied=%d", st.Grid.BuiltCells, st.Grid.OccupiedCells)
	}
	rows := decodeGridRows(t, st.Grid)
	for col := 2; col <= 4; col++ {
		if rows[0][col] != protocol.CellOccupied {
			t.Fatalf("floor 0 col %d state=%d want occupied", col, rows[0][col])
		}
	}
	if rows[0][1] != protocol.CellUnbuilt || rows[0][5] != protocol.CellUnbuilt {
		t.Fatalf("cells beside footprint should be unbuilt: %v", rows[0])
	}
	if !st.Ledger.CanUndo || st.Ledger.UndoDepth != 1 {
		t.Fatalf("ledger %+v", st.Ledger)
	}
	if st.Ledger.UndoDescription != "Place Office at floor 0" {
		t.Fatalf("undo description %q", st.Ledger.UndoDescription)
	}
}

func TestBuild_ReusesExistingFlooring(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "f1", Type: "BUILD_FLOOR", Floor: 0, Column: 0, Width: 10})
	if code := actionResultCode(st, "f1"); code != "" {
		t.Fatalf("build floor failed: %s", code)
	}
	fundsAfterFloor := st.Funds

	// The footprint is already floored, so only the facility price is due.
	st = h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}
	if want := fundsAfterFloor - 4000; st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}
}

func TestBuild_RejectsUnknownTypeAndBadPositions(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "CASINO", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "E_UNKNOWN_TYPE" {
		t.Fatalf("unknown type code=%q", code)
	}

	st = h.Step(protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "OFFICE", Floor: 99, Column: 2})
	if code := actionResultCode(st, "b2"); code != "E_INVALID_POSITION" {
		t.Fatalf("bad floor code=%q", code)
	}

	// Column 22 is in bounds but the three-cell footprint runs off the
	// right edge of a 24-column tower.
	st = h.Step(protocol.ActionReq{ID: "b3", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 22})
	if code := actionResultCode(st, "b3"); code != "E_INVALID_POSITION" {
		t.Fatalf("overhang code=%q", code)
	}

	if st.Funds != startingFunds {
		t.Fatalf("funds=%d; refused builds must not charge", st.Funds)
	}
	if len(st.Facilities) != 0 {
		t.Fatalf("facilities=%+v; refused builds must not place", st.Facilities)
	}
}

func TestBuild_RejectsOverlap(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("first build failed: %s", code)
	}
	fundsAfter := st.Funds

	// Column 3 is inside the office footprint (2..4).
	st = h.Step(protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "RETAIL", Floor: 0, Column: 3})
	if code := actionResultCode(st, "b2"); code != "E_SPACE_OCCUPIED" {
		t.Fatalf("overlap code=%q", code)
	}
	if st.Funds != fundsAfter {
		t.Fatalf("funds=%d want %d; refused build must not charge", st.Funds, fundsAfter)
	}
	if len(st.Facilities) != 1 {
		t.Fatalf("facilities=%d want 1", len(st.Facilities))
	}
}

func TestBuild_RejectsWhenUnaffordable(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")
	h.SetFunds(100)

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "E_NO_FUNDS" {
		t.Fatalf("code=%q want E_NO_FUNDS", code)
	}
	if st.Funds != 100 {
		t.Fatalf("funds=%d want 100", st.Funds)
	}
	if len(st.Facilities) != 0 {
		t.Fatalf("facility placed despite refusal")
	}
}

func TestDemolish_RefundsPartOfReplacementCost(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 2})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build failed: %s", code)
	}
	fundsAfterBuild := st.Funds

	// Click the middle footprint cell; demolition resolves the full span.
	st = h.Step(protocol.ActionReq{ID: "d1", Type: "DEMOLISH", Floor: 0, Column: 3})
	if code := actionResultCode(st, "d1"); code != "" {
		t.Fatalf("demolish failed: %s", code)
	}

	// Half of the office's 4000 replacement cost comes back.
	if want := fundsAfterBuild + 2000; st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}
	if refund, ok := actionResultNumber(st, "d1", "refund"); !ok || refund != 2000 {
		t.Fatalf("refund=%v ok=%v want 2000", refund, ok)
	}
	if len(st.Facilities) != 0 {
		t.Fatalf("facilities=%+v want none", st.Facilities)
	}
	// Flooring survives demolition; only occupancy clears.
	if st.Grid.OccupiedCells != 0 || st.Grid.BuiltCells != 3 {
		t.Fatalf("grid cells built=%d occupied=%d", st.Grid.BuiltCells, st.Grid.OccupiedCells)
	}
}

func TestDemolish_EmptyCellRejected(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "d1", Type: "DEMOLISH", Floor: 0, Column: 5})
	if code := actionResultCode(st, "d1"); code != "E_INVALID_POSITION" {
		t.Fatalf("code=%q want E_INVALID_POSITION", code)
	}

	st = h.Step(protocol.ActionReq{ID: "d2", Type: "DEMOLISH", Floor: -4, Column: 5})
	if code := actionResultCode(st, "d2"); code != "E_INVALID_POSITION" {
		t.Fatalf("out of bounds code=%q", code)
	}
}

func TestBuild_AdjacencyEffectsAppearInState(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "RESTAURANT", Floor: 0, Column: 0})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("restaurant build failed: %s", code)
	}
	// Theater shares the restaurant's right edge: columns 0..3, then 4..9.
	st = h.Step(protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "THEATER", Floor: 0, Column: 4})
	if code := actionResultCode(st, "b2"); code != "" {
		t.Fatalf("theater build failed: %s", code)
	}

	rest := findFacilityByType(st, "RESTAURANT")
	if rest == nil {
		t.Fatalf("restaurant missing from state")
	}
	var found bool
	for _, e := range rest.Effects {
		if e.Kind == "REVENUE" && e.Magnitude == 0.10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("restaurant effects %+v; want REVENUE +0.10 from theater", rest.Effects)
	}

	// Demolishing the theater withdraws the bonus.
	st = h.Step(protocol.ActionReq{ID: "d1", Type: "DEMOLISH", Floor: 0, Column: 4})
	if code := actionResultCode(st, "d1"); code != "" {
		t.Fatalf("demolish failed: %s", code)
	}
	rest = findFacilityByType(st, "RESTAURANT")
	if rest == nil || len(rest.Effects) != 0 {
		t.Fatalf("restaurant effects after demolition: %+v", rest)
	}
}

func TestBuild_BatchActionsApplyInOrder(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(
		protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 0},
		protocol.ActionReq{ID: "b2", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 3},
		protocol.ActionReq{ID: "b3", Type: "BUILD", FacilityType: "OFFICE", Floor: 0, Column: 3},
	)
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("b1: %s", code)
	}
	if code := actionResultCode(st, "b2"); code != "" {
		t.Fatalf("b2: %s", code)
	}
	// The third request lost the race against the second within one batch.
	if code := actionResultCode(st, "b3"); code != "E_SPACE_OCCUPIED" {
		t.Fatalf("b3 code=%q want E_SPACE_OCCUPIED", code)
	}
	if len(st.Facilities) != 2 {
		t.Fatalf("facilities=%d want 2", len(st.Facilities))
	}
	if st.Ledger.UndoDepth != 2 {
		t.Fatalf("undo depth=%d want 2", st.Ledger.UndoDepth)
	}
}
