package world

import (
	"fmt"

	"skyrise.dev/internal/protocol"
)

func (w *World) applyAct(cl *clientState, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		cl.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrBadRequest, "act tick out of range"))
		return
	}

	for _, ar := range act.Actions {
		h := actionDispatch[ar.Type]
		if h == nil {
			cl.AddEvent(actionResult(nowTick, ar.ID, false, protocol.ErrUnknownType, fmt.Sprintf("unsupported action type %q", ar.Type)))
			continue
		}
		h(w, cl, ar, nowTick)
	}
}

// auditOK records a state-changing action that went through.
func (w *World) auditOK(nowTick uint64, actor, action string, floor, column int, desc string, costChange int64) {
	w.audit(AuditEntry{
		Tick:        nowTick,
		Actor:       actor,
		Action:      action,
		Floor:       floor,
		Column:      column,
		Description: desc,
		CostChange:  costChange,
		FundsAfter:  w.account.Balance(),
	})
}

// auditRefusal records an economy-relevant refusal (insufficient funds,
// structural limits). Plain validation failures are not audited.
func (w *World) auditRefusal(nowTick uint64, actor, action string, floor, column int, code, desc string) {
	w.audit(AuditEntry{
		Tick:        nowTick,
		Actor:       actor,
		Action:      action,
		Floor:       floor,
		Column:      column,
		Description: desc,
		FundsAfter:  w.account.Balance(),
		Code:        code,
	})
}
