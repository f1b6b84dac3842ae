package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ojrac/opensimplex-go"

	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/facility"
	"skyrise.dev/internal/sim/grid"
	"skyrise.dev/internal/sim/ledger"
	"skyrise.dev/internal/sim/transit"
	"skyrise.dev/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64
	Tune tuning.Tuning
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	SessionID string
	Act       protocol.ActMsg
}

type RecordedJoin struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg  Config
	tune tuning.Tuning
	cats *catalogs.Catalogs

	tick atomic.Uint64

	grid    *grid.Grid
	dir     *facility.Directory
	account *ledger.Account
	history *ledger.Ledger
	transit *transit.Simulation

	// Deterministic visitor arrivals. The carry accumulates fractional
	// spawns between ticks and is part of the persisted state.
	arrivalNoise opensimplex.Noise
	arrivalCarry float64

	sessions map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan adminSnapshotReq
	stop  chan struct{}

	nextSessionNum atomic.Uint64

	// Events visible to every session this tick (revenue, visitor flow).
	shared []protocol.Event

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // Metrics
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick       uint64           `json:"tick"`
	Joins      []RecordedJoin   `json:"joins,omitempty"`
	Leaves     []string         `json:"leaves,omitempty"`
	Actions    []RecordedAction `json:"actions,omitempty"`
	Digest     string           `json:"digest"`
	Funds      int64            `json:"funds"`
	Population int              `json:"population"`
}

type RecordedAction struct {
	SessionID string          `json:"session_id"`
	Act       protocol.ActMsg `json:"act"`
}

type AuditEntry struct {
	Tick        uint64 `json:"tick"`
	Actor       string `json:"actor"`
	Action      string `json:"action"` // e.g. "BUILD"
	Floor       int    `json:"floor"`
	Column      int    `json:"column"`
	Description string `json:"description,omitempty"`
	CostChange  int64  `json:"cost_change,omitempty"`
	FundsAfter  int64  `json:"funds_after"`
	Code        string `json:"code,omitempty"`
}

type clientState struct {
	ID     string
	Out    chan []byte
	Name   string
	Events []protocol.Event
}

func (c *clientState) AddEvent(e protocol.Event) {
	c.Events = append(c.Events, e)
}

func (c *clientState) TakeEvents() []protocol.Event {
	ev := c.Events
	c.Events = nil
	return ev
}

func New(cfg Config, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	tune := cfg.Tune
	if tune.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", tune.TickRateHz)
	}
	if tune.DayTicks <= 0 {
		return nil, fmt.Errorf("day length must be positive, got %d ticks", tune.DayTicks)
	}

	g := grid.New(grid.Config{
		Floors:         tune.Grid.Floors,
		Columns:        tune.Grid.Columns,
		MaxAboveGround: tune.Grid.MaxAboveGround,
		MaxBelowGround: tune.Grid.MaxBelowGround,
	})

	w := &World{
		cfg:          cfg,
		tune:         tune,
		cats:         cats,
		grid:         g,
		dir:          facility.New(g, cats, tune.Economy.FloorCostPerCell),
		account:      ledger.NewAccount(tune.StartingFunds),
		history:      ledger.New(tune.MaxUndoHistory),
		transit:      transit.New(transitConfig(tune)),
		arrivalNoise: opensimplex.NewNormalized(cfg.Seed),
		sessions:     map[string]*clientState{},
		inbox:        make(chan ActionEnvelope, 1024),
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		admin:        make(chan adminSnapshotReq, 4),
		stop:         make(chan struct{}),
	}
	return w, nil
}

func transitConfig(t tuning.Tuning) transit.Config {
	return transit.Config{
		PersonMoveSpeed:       t.Person.MoveSpeed,
		WaitTimeoutSeconds:    t.Person.WaitTimeoutSeconds,
		CarFloorsPerSecond:    t.Elevator.FloorsPerSecond,
		DoorOpenSeconds:       t.Elevator.DoorOpenSeconds,
		DoorTransitionSeconds: t.Elevator.DoorTransitionSeconds,
		CarCapacity:           t.Elevator.CarCapacity,
	}
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Config returns the running configuration. Snapshot loads rewrite seed
// and timekeeping, so this is a view of the live world, not of the
// original flags.
func (w *World) Config() Config {
	cfg := w.cfg
	cfg.Tune = w.tune
	return cfg
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) joinSession(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "observer"
	}

	// Session ids are a deterministic counter so that recorded joins
	// replay to the same ids segment-for-segment.
	sessionID := fmt.Sprintf("S%d", w.nextSessionNum.Add(1))
	w.sessions[sessionID] = &clientState{ID: sessionID, Out: out, Name: name}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		TowerParams: protocol.TowerParams{
			TickRateHz:  w.tune.TickRateHz,
			DayTicks:    w.tune.DayTicks,
			Seed:        w.cfg.Seed,
			Floors:      w.grid.FloorCount(),
			Columns:     w.grid.ColumnCount(),
			GroundFloor: w.grid.GroundFloor(),
		},
		Catalogs: protocol.CatalogDigests{
			FacilityTypes: protocol.DigestRef{
				Digest: w.cats.Facilities.PaletteDigest,
				Count:  len(w.cats.Facilities.Palette),
			},
			AdjacencyRules: protocol.DigestRef{
				Digest: w.cats.Adjacency.Digest,
				Count:  len(w.cats.Adjacency.Rules),
			},
		},
	}

	return JoinResponse{Welcome: welcome}
}

func (w *World) handleLeave(sessionID string) {
	delete(w.sessions, sessionID)
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	started := time.Now()
	nowTick := w.tick.Load()

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.sessions[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinSession(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{SessionID: resp.Welcome.SessionID, Name: req.Name})
	}

	// Apply actions in server_receive_order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		cl := w.sessions[env.SessionID]
		if cl == nil {
			continue
		}
		recorded = append(recorded, RecordedAction{SessionID: env.SessionID, Act: env.Act})
		w.applyAct(cl, env.Act, nowTick)
	}

	// Systems: arrivals -> economy -> transport.
	w.systemArrivals(nowTick)
	w.systemEconomy(nowTick)
	w.systemTransport(nowTick)

	// Build + send STATE for each session.
	if len(w.sessions) > 0 {
		base := w.buildState(nowTick)
		for _, id := range sortedSessionIDs(w.sessions) {
			cl := w.sessions[id]
			msg := base
			msg.Events = combineEvents(w.shared, cl.TakeEvents())
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if cl.Out != nil {
				sendLatest(cl.Out, b)
			}
		}
	}
	w.shared = nil

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:       nowTick,
			Joins:      recordedJoins,
			Leaves:     recordedLeaves,
			Actions:    recorded,
			Digest:     digest,
			Funds:      w.account.Balance(),
			Population: w.population(),
		})
	}

	if w.snapshotSink != nil && w.snapshotDue(nowTick) {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.publishMetrics(nowTick, time.Since(started))
	w.tick.Add(1)
}

// snapshotDue reports whether a snapshot should be exported after executing
// tick now: on the periodic cadence, and on the last tick of each day so
// every day end has an exact restore point for the daily archive.
func (w *World) snapshotDue(now uint64) bool {
	if now == 0 {
		return false
	}
	if w.tune.SnapshotEveryTicks > 0 && now%uint64(w.tune.SnapshotEveryTicks) == 0 {
		return true
	}
	return w.tune.DayTicks > 0 && (now+1)%uint64(w.tune.DayTicks) == 0
}

// StepOnce advances the world by a single tick using the same ordering semantics
// as the server loop. It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

// broadcast queues an event for every session observing this tick.
func (w *World) broadcast(e protocol.Event) {
	w.shared = append(w.shared, e)
}

func combineEvents(shared, own []protocol.Event) []protocol.Event {
	out := make([]protocol.Event, 0, len(shared)+len(own))
	out = append(out, shared...)
	out = append(out, own...)
	return out
}

func sortedSessionIDs(sessions map[string]*clientState) []string {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sendLatest delivers b without ever blocking the tick loop. If the client's
// queue is full the oldest message is dropped in favor of the newest.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func actionResult(tick uint64, ref string, ok bool, code, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	e := protocol.Event{
		"type": "ACTION_RESULT",
		"tick": tick,
		"id":   ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}

// timeOfDay maps the tick onto [0,1) within the configured day length.
func (w *World) timeOfDay(nowTick uint64) float64 {
	day := uint64(w.tune.DayTicks)
	if day == 0 {
		return 0
	}
	return float64(nowTick%day) / float64(day)
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(e)
}

func (w *World) population() int {
	total := w.transit.PersonCount()
	for _, f := range w.dir.All() {
		total += f.Occupancy
	}
	return total
}
