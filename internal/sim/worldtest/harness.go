package worldtest

import (
	"encoding/json"
	"testing"

	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/tuning"
	world "skyrise.dev/internal/sim/world"
)

// Harness is a small black-box test helper for driving a tower via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepFor() issues ACT via StepOnce()
// - Per-session Out channels carry STATE JSON
// - Snapshot/Debug* helpers provide deterministic preconditions
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultSessionID string

	sessions map[string]*session
}

type session struct {
	SessionID string
	Out       chan []byte
	lastState protocol.StateMsg
}

// BaseTuning is the shared test profile: fast ticks, a short day, and no
// walk-in traffic unless a test opts in.
func BaseTuning() tuning.Tuning {
	tune := tuning.Defaults()
	tune.TickRateHz = 10
	tune.DayTicks = 1000
	tune.Grid.Floors = 6
	tune.Grid.Columns = 24
	tune.Economy.RevenueIntervalTicks = 10
	tune.Arrivals.BaseRatePerMinute = 0
	return tune
}

func BaseConfig() world.Config {
	return world.Config{ID: "t-test", Seed: 7, Tune: BaseTuning()}
}

func NewHarness(t *testing.T, cfg world.Config, cats *catalogs.Catalogs, name string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultSessionID = h.Join(name)
	return h
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world
// instance. This is useful for snapshot round-trip tests where the snapshot is
// imported before join.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, name string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultSessionID = h.Join(name)
	return h
}

func (h *Harness) Join(name string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{
		Name: name,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.SessionID == "" {
		h.T.Fatalf("join returned empty session id")
	}
	s := &session{SessionID: jr.Welcome.SessionID, Out: out}
	h.sessions[s.SessionID] = s
	h.drainAllStates()
	return s.SessionID
}

func (h *Harness) LastState() protocol.StateMsg {
	return h.LastStateFor(h.DefaultSessionID)
}

func (h *Harness) LastStateFor(sessionID string) protocol.StateMsg {
	h.T.Helper()
	s := h.sessions[sessionID]
	if s == nil {
		h.T.Fatalf("unknown session id: %q", sessionID)
	}
	return s.lastState
}

func (h *Harness) Step(actions ...protocol.ActionReq) protocol.StateMsg {
	return h.StepFor(h.DefaultSessionID, actions...)
}

func (h *Harness) StepFor(sessionID string, actions ...protocol.ActionReq) protocol.StateMsg {
	h.T.Helper()
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            h.W.CurrentTick(),
		Actions:         actions,
	}
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{{
		SessionID: sessionID,
		Act:       act,
	}})
	h.drainAllStates()
	return h.LastStateFor(sessionID)
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, actions)
	h.drainAllStates()
}

func (h *Harness) StepNoop() protocol.StateMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAllStates()
	return h.LastState()
}

// StepTicks advances n empty ticks. Handy for letting transit or the
// economy play out.
func (h *Harness) StepTicks(n int) protocol.StateMsg {
	h.T.Helper()
	for i := 0; i < n; i++ {
		_, _ = h.W.StepOnce(nil, nil, nil)
	}
	h.drainAllStates()
	return h.LastState()
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 so import resumes at currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) SetFunds(v int64) {
	h.T.Helper()
	h.W.DebugSetFunds(v)
}

func (h *Harness) SetOccupancy(facilityID, occupancy int) {
	h.T.Helper()
	if ok := h.W.DebugSetOccupancy(facilityID, occupancy); !ok {
		h.T.Fatalf("DebugSetOccupancy returned false for facility %d", facilityID)
	}
}

func (h *Harness) drainAllStates() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOneState(s)
	}
}

func (h *Harness) drainOneState(s *session) {
	h.T.Helper()
	var last []byte
	for {
		select {
		case b := <-s.Out:
			last = b
			continue
		default:
		}
		break
	}
	if len(last) == 0 {
		return
	}
	var st protocol.StateMsg
	if err := json.Unmarshal(last, &st); err != nil {
		h.T.Fatalf("unmarshal STATE: %v", err)
	}
	s.lastState = st
}
