package world

import (
	"fmt"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/ledger"
)

func handleActionBuild(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	typ, ok := w.cats.Facilities.Lookup(ar.FacilityType)
	if !ok {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrUnknownType, fmt.Sprintf("unknown facility type %q", ar.FacilityType)))
		return
	}
	def := w.cats.Facilities.Def(typ)
	width := ar.Width
	if width <= 0 {
		width = def.Width
	}
	if !w.grid.IsValidPosition(ar.Floor, ar.Column) || ar.Column+width > w.grid.ColumnCount() {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("floor %d column %d width %d out of range", ar.Floor, ar.Column, width)))
		return
	}
	if !w.grid.IsSpaceAvailable(ar.Floor, ar.Column, width) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrSpaceOccupied, "target cells are occupied"))
		return
	}

	cmd := ledger.NewPlaceCommand(w.dir, w.cats, typ, ar.Floor, ar.Column, width, ar.Name)
	cost := -cmd.CostChange()
	if !w.account.CanAfford(cost) {
		msg := fmt.Sprintf("need %d, have %d", cost, w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeBuild, ar.Floor, ar.Column, protocol.ErrNoFunds, msg)
		return
	}
	if !w.history.Execute(cmd, w.account) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInternal, "placement rejected"))
		return
	}

	ev := actionResult(nowTick, ar.ID, true, "", cmd.Description())
	ev["facility_id"] = cmd.CreatedID()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeBuild, ar.Floor, ar.Column, cmd.Description(), cmd.CostChange())
}

func handleActionDemolish(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	if !w.grid.IsValidPosition(ar.Floor, ar.Column) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("floor %d column %d out of range", ar.Floor, ar.Column)))
		return
	}
	cmd := ledger.NewDemolishCommand(w.dir, w.grid, w.cats, ar.Floor, ar.Column, w.tune.Economy.DemolitionRecoveryPct)
	if cmd == nil {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("no facility at floor %d column %d", ar.Floor, ar.Column)))
		return
	}
	if !w.history.Execute(cmd, w.account) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInternal, "demolition rejected"))
		return
	}

	ev := actionResult(nowTick, ar.ID, true, "", cmd.Description())
	ev["refund"] = cmd.CostChange()
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeDemolish, ar.Floor, ar.Column, cmd.Description(), cmd.CostChange())
}

func handleActionUndo(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	if !w.history.CanUndo() {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNothingToUndo, "history is empty"))
		return
	}
	desc := w.history.UndoDescription()
	inverse := w.history.UndoCostChange()
	if inverse < 0 && !w.account.CanAfford(-inverse) {
		msg := fmt.Sprintf("need %d to reverse %q", -inverse, desc)
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeUndo, 0, 0, protocol.ErrNoFunds, msg)
		return
	}
	if !w.history.Undo(w.account) {
		// The site changed since the command ran (e.g. something else
		// occupies the demolished footprint).
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrSpaceOccupied, fmt.Sprintf("cannot reverse %q", desc)))
		return
	}

	ev := actionResult(nowTick, ar.ID, true, "", fmt.Sprintf("undid %q", desc))
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeUndo, 0, 0, fmt.Sprintf("undo %s", desc), inverse)
}

func handleActionRedo(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	if !w.history.CanRedo() {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNothingToRedo, "nothing to redo"))
		return
	}
	desc := w.history.RedoDescription()
	cost := w.history.RedoCostChange()
	if cost < 0 && !w.account.CanAfford(-cost) {
		msg := fmt.Sprintf("need %d to repeat %q", -cost, desc)
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeRedo, 0, 0, protocol.ErrNoFunds, msg)
		return
	}
	if !w.history.Redo(w.account) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrSpaceOccupied, fmt.Sprintf("cannot repeat %q", desc)))
		return
	}

	ev := actionResult(nowTick, ar.ID, true, "", fmt.Sprintf("redid %q", desc))
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeRedo, 0, 0, fmt.Sprintf("redo %s", desc), cost)
}
