package world

import (
	"fmt"
	"math"

	"skyrise.dev/internal/protocol"
)

func handleActionAddShaft(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	cars := ar.Cars
	if cars == 0 {
		cars = 1
	}
	if cars < 0 {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrBadRequest, "cars must be positive"))
		return
	}
	if ar.Column < 0 || ar.Column >= w.grid.ColumnCount() {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("column %d out of range", ar.Column)))
		return
	}
	if ar.BottomFloor > ar.TopFloor {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, "bottom floor above top floor"))
		return
	}
	if ar.BottomFloor < w.grid.BottomFloor() || ar.TopFloor > w.grid.TopFloor() {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("shaft span %d..%d outside built floors %d..%d", ar.BottomFloor, ar.TopFloor, w.grid.BottomFloor(), w.grid.TopFloor())))
		return
	}

	span := int64(ar.TopFloor - ar.BottomFloor + 1)
	cost := w.tune.Economy.ShaftCostPerFloor * span
	if !w.account.CanAfford(cost) {
		msg := fmt.Sprintf("need %d, have %d", cost, w.account.Balance())
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrNoFunds, msg))
		w.auditRefusal(nowTick, cl.ID, ActionTypeAddShaft, ar.BottomFloor, ar.Column, protocol.ErrNoFunds, msg)
		return
	}
	sh := w.transit.AddShaft(ar.Column, ar.BottomFloor, ar.TopFloor)
	if sh == nil {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInternal, "shaft rejected"))
		return
	}
	for i := 0; i < cars; i++ {
		w.transit.AddCar(sh.ID)
	}
	w.account.Apply(-cost)

	msg := fmt.Sprintf("shaft %d serving floors %d..%d with %d cars", sh.ID, ar.BottomFloor, ar.TopFloor, cars)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["shaft_id"] = sh.ID
	ev["funds"] = w.account.Balance()
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeAddShaft, ar.BottomFloor, ar.Column, msg, -cost)
}

func handleActionSpawnPerson(w *World, cl *clientState, ar protocol.ActionReq, nowTick uint64) {
	if !w.grid.IsValidPosition(ar.Floor, ar.Column) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("floor %d column %d out of range", ar.Floor, ar.Column)))
		return
	}
	destCol := int(math.Floor(ar.DestColumn))
	if !w.grid.IsValidPosition(ar.DestFloor, destCol) {
		cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrInvalidPosition, fmt.Sprintf("destination floor %d column %.1f out of range", ar.DestFloor, ar.DestColumn)))
		return
	}
	name := ar.Name
	if name == "" {
		name = "visitor"
	}

	p := w.transit.SpawnPerson(name, ar.Floor, float64(ar.Column), ar.DestFloor, ar.DestColumn)

	msg := fmt.Sprintf("spawned %s heading to floor %d", p.Name, p.DestFloor)
	ev := actionResult(nowTick, ar.ID, true, "", msg)
	ev["person_id"] = p.ID
	cl.AddEvent(ev)
	w.auditOK(nowTick, cl.ID, ActionTypeSpawnPerson, ar.Floor, ar.Column, msg, 0)
}
