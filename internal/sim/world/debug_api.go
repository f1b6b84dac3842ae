package world

// ---- Debug/Test Helpers ----
//
// These helpers exist to allow black-box tests in sibling packages (e.g.
// internal/sim/worldtest) to set up deterministic preconditions without
// reaching into world internals.
//
// They are NOT safe to call concurrently with Run(). Prefer using them only
// in tests that drive the world via StepOnce(), from a single goroutine.

// DebugSetFunds forces the account balance to v.
func (w *World) DebugSetFunds(v int64) {
	if w == nil {
		return
	}
	w.account.Apply(v - w.account.Balance())
}

// DebugSetOccupancy overwrites a facility's occupancy, clamped to capacity.
func (w *World) DebugSetOccupancy(facilityID, occupancy int) bool {
	if w == nil {
		return false
	}
	f := w.dir.Get(facilityID)
	if f == nil {
		return false
	}
	if occupancy < 0 {
		occupancy = 0
	}
	if occupancy > f.Capacity {
		occupancy = f.Capacity
	}
	f.Occupancy = occupancy
	return true
}

// DebugStateDigest returns the current world digest for the given tick label.
// This is intended for black-box determinism tests in sibling packages.
func (w *World) DebugStateDigest(nowTick uint64) string {
	if w == nil {
		return ""
	}
	return w.stateDigest(nowTick)
}
