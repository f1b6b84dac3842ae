package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"skyrise.dev/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "client name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{logger: logger}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s tick_rate=%d seed=%d grid=%dx%d",
				w.SessionID, w.TowerParams.TickRateHz, w.TowerParams.Seed,
				w.TowerParams.Floors, w.TowerParams.Columns)
			b.plan = starterPlan()

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			b.handleState(conn, &st)
		}
	}
}

// bot walks a starter build plan one action at a time, waiting for each
// ACTION_RESULT before sending the next so a rejection doesn't cascade into
// follow-up steps that assume the previous one landed.
type bot struct {
	logger   *log.Logger
	plan     []protocol.ActionReq
	next     int
	inflight string

	spawnSeq int
}

func starterPlan() []protocol.ActionReq {
	return []protocol.ActionReq{
		{ID: "p1", Type: "BUILD", FacilityType: "LOBBY", Floor: 0, Column: 0},
		{ID: "p2", Type: "ADD_FLOORS", Count: 3},
		{ID: "p3", Type: "BUILD", FacilityType: "OFFICE", Floor: 1, Column: 0},
		{ID: "p4", Type: "BUILD", FacilityType: "OFFICE", Floor: 1, Column: 3},
		{ID: "p5", Type: "BUILD", FacilityType: "OFFICE", Floor: 1, Column: 6},
		{ID: "p6", Type: "BUILD", FacilityType: "RESTAURANT", Floor: 2, Column: 0},
		{ID: "p7", Type: "BUILD", FacilityType: "RETAIL", Floor: 2, Column: 5},
		{ID: "p8", Type: "ADD_SHAFT", Column: 10, BottomFloor: 0, TopFloor: 3, Cars: 2},
	}
}

func (b *bot) handleState(conn *websocket.Conn, st *protocol.StateMsg) {
	for _, e := range st.Events {
		if e["type"] != "ACTION_RESULT" {
			continue
		}
		id, _ := e["id"].(string)
		if ok, _ := e["ok"].(bool); ok {
			b.logger.Printf("step %s ok funds=%d", id, st.Funds)
		} else {
			code, _ := e["code"].(string)
			b.logger.Printf("step %s rejected code=%s", id, code)
		}
		if id != "" && id == b.inflight {
			b.inflight = ""
		}
	}

	if b.inflight == "" && b.next < len(b.plan) {
		req := b.plan[b.next]
		b.next++
		b.inflight = req.ID
		b.send(conn, st.Tick, req)
		return
	}

	// Plan finished: trickle visitors through the tower.
	if b.next >= len(b.plan) && len(b.plan) > 0 && st.Tick%300 == 0 {
		b.spawnSeq++
		b.send(conn, st.Tick, protocol.ActionReq{
			ID:         fmt.Sprintf("v%d", b.spawnSeq),
			Type:       "SPAWN_PERSON",
			Floor:      0,
			Column:     1,
			DestFloor:  2,
			DestColumn: 2,
		})
	}
}

func (b *bot) send(conn *websocket.Conn, tick uint64, req protocol.ActionReq) {
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Actions:         []protocol.ActionReq{req},
	}
	if err := conn.WriteJSON(act); err != nil {
		b.logger.Printf("send %s: %v", req.ID, err)
	}
}
