package world

import (
	"fmt"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/grid"
)

// Structural expansion is charged directly against the account and is not
// part of the undo history: floors and columns only ever grow.

func handleActionAddFloors(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	count := ar.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, "count must be positive"))
		return
	}
	unit := w.tune.Economy.FloorExpansionCost
	if !w.account.CanAfford(unit * int64(count)) {
		msg := fmt.Sprintf("need %d, have %d", unit*int64(count), w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddFloors, w.grid.TopFloor(), 0, protocol.ErrNoFunds, msg)
		return
	}
	added := w.grid.AddFloors(count)
	if added == 0 {
		msg := fmt.Sprintf("height limit %d reached", w.grid.MaxAboveGround())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrLimitReached, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddFloors, w.grid.TopFloor(), 0, protocol.ErrLimitReached, msg)
		return
	}
	w.account.Apply(-unit * int64(added))

	msg := fmt.Sprintf("added %d floors", added)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["added"] = added
	ev["top_floor"] = w.grid.TopFloor()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeAddFloors, w.grid.TopFloor(), 0, msg, -unit*int64(added))
}

func handleActionAddBasements(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	count := ar.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, "count must be positive"))
		return
	}
	unit := w.tune.Economy.BasementExpansionCost
	if !w.account.CanAfford(unit * int64(count)) {
		msg := fmt.Sprintf("need %d, have %d", unit*int64(count), w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddBasements, w.grid.BottomFloor(), 0, protocol.ErrNoFunds, msg)
		return
	}
	added := w.grid.AddBasementFloors(count)
	if added == 0 {
		msg := fmt.Sprintf("depth limit %d reached", w.grid.MaxBelowGround())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrLimitReached, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddBasements, w.grid.BottomFloor(), 0, protocol.ErrLimitReached, msg)
		return
	}
	w.account.Apply(-unit * int64(added))

	msg := fmt.Sprintf("added %d basement floors", added)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["added"] = added
	ev["bottom_floor"] = w.grid.BottomFloor()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeAddBasements, w.grid.BottomFloor(), 0, msg, -unit*int64(added))
}

func handleActionAddColumns(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	count := ar.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, "count must be positive"))
		return
	}
	unit := w.tune.Economy.ColumnExpansionCost
	if !w.account.CanAfford(unit * int64(count)) {
		msg := fmt.Sprintf("need %d, have %d", unit*int64(count), w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddColumns, 0, w.grid.ColumnCount(), protocol.ErrNoFunds, msg)
		return
	}
	added := w.grid.AddColumns(count)
	if added == 0 {
		msg := fmt.Sprintf("column limit %d reached", grid.HardMaxColumns)
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrLimitReached, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddColumns, 0, w.grid.ColumnCount(), protocol.ErrLimitReached, msg)
		return
	}
	w.account.Apply(-unit * int64(added))

	msg := fmt.Sprintf("added %d columns", added)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["added"] = added
	ev["columns"] = w.grid.ColumnCount()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeAddColumns, 0, w.grid.ColumnCount(), msg, -unit*int64(added))
}

func handleActionBuildFloor(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	if !w.grid.IsValidPosition(ar.Floor, ar.Column) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("floor %d column %d out of range", ar.Floor, ar.Column)))
		return
	}
	// Width 0 or negative means "to the right edge".
	width := ar.Width
	if width <= 0 {
		width = w.grid.ColumnCount() - ar.Column
	}
	cost := w.dir.CalculateFloorBuildCost(ar.Floor, ar.Column, width)
	if !w.account.CanAfford(cost) {
		msg := fmt.Sprintf("need %d, have %d", cost, w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeBuildFloor, ar.Floor, ar.Column, protocol.ErrNoFunds, msg)
		return
	}
	built := w.grid.BuildFloor(ar.Floor, ar.Column, width)
	w.account.Apply(-cost)

	msg := fmt.Sprintf("built %d floor cells", built)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["cells_built"] = built
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeBuildFloor, ar.Floor, ar.Column, msg, -cost)
}

func handleActionRaiseLimits(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	amount := ar.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, "amount must be positive"))
		return
	}
	if ar.Limit != "ABOVE" && ar.Limit != "BELOW" {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, fmt.Sprintf("limit must be ABOVE or BELOW, got %q", ar.Limit)))
		return
	}
	cost := w.tune.Economy.ResearchCost * int64(amount)
	if !w.account.CanAfford(cost) {
		msg := fmt.Sprintf("need %d, have %d", cost, w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeRaiseLimits, 0, 0, protocol.ErrNoFunds, msg)
		return
	}
	var raised bool
	if ar.Limit == "ABOVE" {
		raised = w.grid.RaiseMaxAboveGround(amount)
	} else {
		raised = w.grid.RaiseMaxBelowGround(amount)
	}
	if !raised {
		msg := "structural ceiling reached"
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrLimitReached, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeRaiseLimits, 0, 0, protocol.ErrLimitReached, msg)
		return
	}
	w.account.Apply(-cost)

	msg := fmt.Sprintf("raised %s limit by %d", ar.Limit, amount)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["max_above"] = w.grid.MaxAboveGround()
	ev["max_below"] = w.grid.MaxBelowGround()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeRaiseLimits, 0, 0, msg, -cost)
}
