package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/world"
)

func TestIndex_WriteTickAndAudit(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tower.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = idx.WriteTick(world.TickLogEntry{
		Tick:   7,
		Digest: "abc123",
		Joins:  []world.RecordedJoin{{SessionID: "S1", Name: "bot1"}},
		Actions: []world.RecordedAction{
			{SessionID: "S1", Act: protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Actions:         []protocol.ActionReq{{ID: "A1", Type: "BUILD", FacilityType: "OFFICE", Floor: 1, Column: 2}},
			}},
		},
		Funds:      1996000,
		Population: 3,
	})
	if err != nil {
		t.Fatalf("write tick: %v", err)
	}
	err = idx.WriteAudit(world.AuditEntry{
		Tick:        7,
		Actor:       "S1",
		Action:      "BUILD",
		Floor:       1,
		Column:      2,
		Description: "Place Office at floor 1",
		CostChange:  -4150,
		FundsAfter:  1996000,
	})
	if err != nil {
		t.Fatalf("write audit: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	var (
		digest string
		funds  int64
	)
	if err := db.QueryRow(`SELECT digest, funds FROM ticks WHERE tick = ?`, 7).Scan(&digest, &funds); err != nil {
		t.Fatalf("scan ticks: %v", err)
	}
	if digest != "abc123" || funds != 1996000 {
		t.Fatalf("ticks row mismatch: digest=%q funds=%d", digest, funds)
	}

	var joinName string
	if err := db.QueryRow(`SELECT name FROM joins WHERE tick = ? AND session_id = ?`, 7, "S1").Scan(&joinName); err != nil {
		t.Fatalf("scan joins: %v", err)
	}
	if joinName != "bot1" {
		t.Fatalf("join name=%q want bot1", joinName)
	}

	var (
		action     string
		costChange int64
		fundsAfter int64
	)
	row := db.QueryRow(`SELECT action, cost_change, funds_after FROM commands WHERE tick = ? AND seq = 0`, 7)
	if err := row.Scan(&action, &costChange, &fundsAfter); err != nil {
		t.Fatalf("scan commands: %v", err)
	}
	if action != "BUILD" || costChange != -4150 || fundsAfter != 1996000 {
		t.Fatalf("commands row mismatch: action=%q cost=%d after=%d", action, costChange, fundsAfter)
	}
}

func TestIndex_RecordSnapshotState_WritesStateTables(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tower.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, TowerID: "tower_1", Tick: 123},
		Seed:   42,
		Funds:  1987500,
		Grid: snapshot.GridV1{
			Floors:      6,
			Columns:     30,
			GroundFloor: 0,
			Basements:   2,
		},
		Facilities: []snapshot.FacilityV1{
			{ID: 1, Type: "OFFICE", Name: "Office", Floor: 1, Column: 2, Width: 3, Capacity: 6, Occupancy: 4},
		},
		Persons: []snapshot.PersonV1{
			{ID: 1, Floor: 0, Column: 2.5, DestFloor: 2, DestColumn: 8, State: "WAITING_FOR_ELEVATOR"},
			{ID: 2, Floor: 1, Column: 3, DestFloor: 1, DestColumn: 3, State: "AT_DESTINATION"},
		},
		Shafts: []snapshot.ShaftV1{
			{ID: 1, Column: 10, BottomFloor: -2, TopFloor: 3},
		},
		Cars: []snapshot.CarV1{
			{ID: 1, ShaftID: 1, Floor: 0, State: "IDLE", MaxCapacity: 8},
		},
	}

	idx.RecordSnapshot(filepath.Join(dir, "123.snap.zst"), snap)
	idx.RecordSnapshotState(snap)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	type check struct {
		table string
		want  int
	}
	checks := []check{
		{table: "snapshots", want: 1},
		{table: "snapshot_tower", want: 1},
		{table: "snapshot_facilities", want: 1},
		{table: "snapshot_persons", want: 2},
		{table: "snapshot_shafts", want: 1},
		{table: "snapshot_cars", want: 1},
	}
	for _, c := range checks {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM `+c.table+` WHERE tick = ?`, 123).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", c.table, err)
		}
		if n != c.want {
			t.Fatalf("table %s count=%d want %d", c.table, n, c.want)
		}
	}

	{
		var (
			seed      int64
			funds     int64
			floors    int
			columns   int
			ground    int
			basements int
		)
		row := db.QueryRow(`SELECT seed,funds,grid_floors,grid_columns,ground_floor,basements FROM snapshot_tower WHERE tick = ?`, 123)
		if err := row.Scan(&seed, &funds, &floors, &columns, &ground, &basements); err != nil {
			t.Fatalf("scan snapshot_tower: %v", err)
		}
		if seed != 42 || funds != 1987500 || floors != 6 || columns != 30 || ground != 0 || basements != 2 {
			t.Fatalf("snapshot_tower mismatch: seed=%d funds=%d floors=%d columns=%d ground=%d basements=%d",
				seed, funds, floors, columns, ground, basements)
		}
	}
	{
		var (
			typ       string
			floor     int
			col       int
			occupancy int
		)
		row := db.QueryRow(`SELECT type,floor,col,occupancy FROM snapshot_facilities WHERE tick = ? AND id = ?`, 123, 1)
		if err := row.Scan(&typ, &floor, &col, &occupancy); err != nil {
			t.Fatalf("scan snapshot_facilities: %v", err)
		}
		if typ != "OFFICE" || floor != 1 || col != 2 || occupancy != 4 {
			t.Fatalf("facility row mismatch: type=%q floor=%d col=%d occupancy=%d", typ, floor, col, occupancy)
		}
	}
	{
		var (
			bottomFloor int
			topFloor    int
		)
		row := db.QueryRow(`SELECT bottom_floor,top_floor FROM snapshot_shafts WHERE tick = ? AND id = ?`, 123, 1)
		if err := row.Scan(&bottomFloor, &topFloor); err != nil {
			t.Fatalf("scan snapshot_shafts: %v", err)
		}
		if bottomFloor != -2 || topFloor != 3 {
			t.Fatalf("shaft row mismatch: bottom=%d top=%d", bottomFloor, topFloor)
		}
	}
}
