package worldtest

import (
	"testing"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
)

func TestExpansion_AddFloorsGrowsUpward(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_FLOORS", Count: 2})
	if code := actionResultCode(st, "e1"); code != "" {
		t.Fatalf("add floors failed: %s", code)
	}
	if added, ok := actionResultNumber(st, "e1", "added"); !ok || added != 2 {
		t.Fatalf("added=%v ok=%v want 2", added, ok)
	}
	if st.Grid.TopFloor != 7 || st.Grid.Floors != 8 {
		t.Fatalf("grid top=%d floors=%d want 7/8", st.Grid.TopFloor, st.Grid.Floors)
	}
	if want := int64(startingFunds - 2*500); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}
	// Expansion is permanent; it never enters the undo history.
	if st.Ledger.CanUndo {
		t.Fatalf("expansion must not be undoable: %+v", st.Ledger)
	}
}

func TestExpansion_AddBasementsGrowsDownward(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_BASEMENTS", Count: 2})
	if code := actionResultCode(st, "e1"); code != "" {
		t.Fatalf("add basements failed: %s", code)
	}
	if st.Grid.BottomFloor != -2 || st.Grid.TopFloor != 5 || st.Grid.GroundFloor != 0 {
		t.Fatalf("grid bottom=%d top=%d ground=%d", st.Grid.BottomFloor, st.Grid.TopFloor, st.Grid.GroundFloor)
	}
	if want := int64(startingFunds - 2*800); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}

	// Basement floors accept facilities like any other floor.
	st = h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "RETAIL", Floor: -1, Column: 4})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("basement build failed: %s", code)
	}
	f := findFacilityByType(st, "RETAIL")
	if f == nil || f.Floor != -1 {
		t.Fatalf("retail in basement: %+v", f)
	}
}

func TestExpansion_AddColumnsWidensEveryFloor(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_COLUMNS", Count: 2})
	if code := actionResultCode(st, "e1"); code != "" {
		t.Fatalf("add columns failed: %s", code)
	}
	if st.Grid.Columns != 26 {
		t.Fatalf("columns=%d want 26", st.Grid.Columns)
	}
	if want := int64(startingFunds - 2*300); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}

	// The new columns are immediately buildable.
	st = h.Step(protocol.ActionReq{ID: "b1", Type: "BUILD", FacilityType: "RETAIL", Floor: 0, Column: 24})
	if code := actionResultCode(st, "b1"); code != "" {
		t.Fatalf("build on new columns failed: %s", code)
	}
}

func TestExpansion_PartialGrowthChargesOnlyAdded(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	// Only three basements fit under the default depth limit.
	st := h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_BASEMENTS", Count: 5})
	if code := actionResultCode(st, "e1"); code != "" {
		t.Fatalf("add basements failed: %s", code)
	}
	if added, ok := actionResultNumber(st, "e1", "added"); !ok || added != 3 {
		t.Fatalf("added=%v ok=%v want 3", added, ok)
	}
	if st.Grid.BottomFloor != -3 {
		t.Fatalf("bottom=%d want -3", st.Grid.BottomFloor)
	}
	if want := int64(startingFunds - 3*800); st.Funds != want {
		t.Fatalf("funds=%d want %d; only added floors are billed", st.Funds, want)
	}

	st = h.Step(protocol.ActionReq{ID: "e2", Type: "ADD_BASEMENTS", Count: 1})
	if code := actionResultCode(st, "e2"); code != "E_LIMIT_REACHED" {
		t.Fatalf("over-limit code=%q", code)
	}
}

func TestExpansion_HeightLimitLiftedByResearch(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	// 24 more floors hit the default 30-floor ceiling.
	st := h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_FLOORS", Count: 50})
	if code := actionResultCode(st, "e1"); code != "" {
		t.Fatalf("add floors failed: %s", code)
	}
	if added, ok := actionResultNumber(st, "e1", "added"); !ok || added != 24 {
		t.Fatalf("added=%v ok=%v want 24", added, ok)
	}
	if st.Grid.TopFloor != 29 {
		t.Fatalf("top=%d want 29", st.Grid.TopFloor)
	}

	st = h.Step(protocol.ActionReq{ID: "e2", Type: "ADD_FLOORS", Count: 1})
	if code := actionResultCode(st, "e2"); code != "E_LIMIT_REACHED" {
		t.Fatalf("at ceiling code=%q", code)
	}

	fundsBefore := st.Funds
	st = h.Step(protocol.ActionReq{ID: "r1", Type: "RAISE_LIMITS", Limit: "ABOVE", Amount: 1})
	if code := actionResultCode(st, "r1"); code != "" {
		t.Fatalf("raise limits failed: %s", code)
	}
	if ma, ok := actionResultNumber(st, "r1", "max_above"); !ok || ma != 31 {
		t.Fatalf("max_above=%v ok=%v want 31", ma, ok)
	}
	if want := fundsBefore - 50_000; st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}

	st = h.Step(protocol.ActionReq{ID: "e3", Type: "ADD_FLOORS", Count: 1})
	if code := actionResultCode(st, "e3"); code != "" {
		t.Fatalf("post-research add failed: %s", code)
	}
	if st.Grid.TopFloor != 30 {
		t.Fatalf("top=%d want 30", st.Grid.TopFloor)
	}
}

func TestExpansion_RaiseLimitsValidation(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	st := h.Step(protocol.ActionReq{ID: "r1", Type: "RAISE_LIMITS", Limit: "SIDEWAYS", Amount: 1})
	if code := actionResultCode(st, "r1"); code != "E_BAD_REQUEST" {
		t.Fatalf("bad limit code=%q", code)
	}
	st = h.Step(protocol.ActionReq{ID: "r2", Type: "RAISE_LIMITS", Limit: "ABOVE", Amount: -2})
	if code := actionResultCode(st, "r2"); code != "E_BAD_REQUEST" {
		t.Fatalf("negative amount code=%q", code)
	}
	st = h.Step(protocol.ActionReq{ID: "e1", Type: "ADD_FLOORS", Count: -1})
	if code := actionResultCode(st, "e1"); code != "E_BAD_REQUEST" {
		t.Fatalf("negative count code=%q", code)
	}
	if st.Funds != startingFunds {
		t.Fatalf("funds=%d; rejected requests must not charge", st.Funds)
	}
}

func TestExpansion_DepthResearchStopsAtStructuralCeiling(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	// Asking past the hard ceiling clamps the limit but bills the full
	// research order.
	st := h.Step(protocol.ActionReq{ID: "r1", Type: "RAISE_LIMITS", Limit: "BELOW", Amount: 20})
	if code := actionResultCode(st, "r1"); code != "" {
		t.Fatalf("raise failed: %s", code)
	}
	if mb, ok := actionResultNumber(st, "r1", "max_below"); !ok || mb != 10 {
		t.Fatalf("max_below=%v ok=%v want 10", mb, ok)
	}
	if want := int64(startingFunds - 20*50_000); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}

	st = h.Step(protocol.ActionReq{ID: "r2", Type: "RAISE_LIMITS", Limit: "BELOW", Amount: 1})
	if code := actionResultCode(st, "r2"); code != "E_LIMIT_REACHED" {
		t.Fatalf("at ceiling code=%q", code)
	}
}

func TestExpansion_BuildFloorRuns(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")

	// Width omitted extends to the right edge: columns 20..23.
	st := h.Step(protocol.ActionReq{ID: "f1", Type: "BUILD_FLOOR", Floor: 1, Column: 20})
	if code := actionResultCode(st, "f1"); code != "" {
		t.Fatalf("build floor failed: %s", code)
	}
	if built, ok := actionResultNumber(st, "f1", "cells_built"); !ok || built != 4 {
		t.Fatalf("cells_built=%v ok=%v want 4", built, ok)
	}
	if want := int64(startingFunds - 4*50); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}

	// Overlapping run only bills the two unbuilt cells.
	st = h.Step(protocol.ActionReq{ID: "f2", Type: "BUILD_FLOOR", Floor: 1, Column: 18, Width: 4})
	if code := actionResultCode(st, "f2"); code != "" {
		t.Fatalf("second run failed: %s", code)
	}
	if built, ok := actionResultNumber(st, "f2", "cells_built"); !ok || built != 2 {
		t.Fatalf("cells_built=%v ok=%v want 2", built, ok)
	}
	if want := int64(startingFunds - 6*50); st.Funds != want {
		t.Fatalf("funds=%d want %d", st.Funds, want)
	}
	if st.Grid.BuiltCells != 6 {
		t.Fatalf("built cells=%d want 6", st.Grid.BuiltCells)
	}
	rows := decodeGridRows(t, st.Grid)
	for col := 18; col <= 23; col++ {
		if rows[1][col] != protocol.CellBuilt {
			t.Fatalf("floor 1 col %d state=%d want built", col, rows[1][col])
		}
	}
	if rows[1][17] != protocol.CellUnbuilt {
		t.Fatalf("col 17 should stay unbuilt, got %d", rows[1][17])
	}

	st = h.Step(protocol.ActionReq{ID: "f3", Type: "BUILD_FLOOR", Floor: 40, Column: 0})
	if code := actionResultCode(st, "f3"); code != "E_INVALID_POSITION" {
		t.Fatalf("bad floor code=%q", code)
	}
}

func TestExpansion_UnaffordableRejected(t *testing.T) {
	h := NewHarness(t, BaseConfig(), catalogs.Builtin(), "builder")
	h.SetFunds(100)

	for _, tc := range []struct {
		id  string
		act protocol.ActionReq
	}{
		{"e1", protocol.ActionReq{ID: "e1", Type: "ADD_FLOORS", Count: 1}},
		{"e2", protocol.ActionReq{ID: "e2", Type: "ADD_BASEMENTS", Count: 1}},
		{"e3", protocol.ActionReq{ID: "e3", Type: "ADD_COLUMNS", Count: 1}},
		{"e4", protocol.ActionReq{ID: "e4", Type: "BUILD_FLOOR", Floor: 0, Column: 0}},
		{"e5", protocol.ActionReq{ID: "e5", Type: "RAISE_LIMITS", Limit: "ABOVE", Amount: 1}},
	} {
		st := h.Step(tc.act)
		if code := actionResultCode(st, tc.id); code != "E_NO_FUNDS" {
			t.Fatalf("%s code=%q want E_NO_FUNDS", tc.id, code)
		}
		if st.Funds != 100 {
			t.Fatalf("%s drained funds to %d", tc.id, st.Funds)
		}
	}
}
