package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	towerID := fs.String("tower", "", "tower id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	tick := fs.Uint64("tick", 0, "snapshot tick (optional; defaults to latest)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "session filter (commands)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*towerID) == "" {
			fmt.Fprintln(os.Stderr, "missing -tower or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "towers", *towerID, "index", "tower.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	// Snapshot-state queries need a concrete tick.
	switch q {
	case "tower", "facilities", "persons":
		if *tick == 0 {
			lt, err := latestSnapshotTick(db)
			if err != nil {
				fmt.Fprintln(os.Stderr, "latest tick:", err)
				os.Exit(1)
			}
			if lt == 0 {
				fmt.Fprintln(os.Stderr, "no snapshots found")
				os.Exit(2)
			}
			*tick = lt
		}
	}
	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,seed,funds,facilities,persons,shafts,cars FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				Path       string `json:"path"`
				Seed       int64  `json:"seed"`
				Funds      int64  `json:"funds"`
				Facilities int    `json:"facilities"`
				Persons    int    `json:"persons"`
				Shafts     int    `json:"shafts"`
				Cars       int    `json:"cars"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Seed, &r.Funds, &r.Facilities, &r.Persons, &r.Shafts, &r.Cars); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "tower":
		var r struct {
			Tick        uint64 `json:"tick"`
			Seed        int64  `json:"seed"`
			Funds       int64  `json:"funds"`
			GridFloors  int    `json:"grid_floors"`
			GridColumns int    `json:"grid_columns"`
			GroundFloor int    `json:"ground_floor"`
			Basements   int    `json:"basements"`
		}
		row := db.QueryRow(`SELECT seed,funds,grid_floors,grid_columns,ground_floor,basements FROM snapshot_tower WHERE tick=?`, *tick)
		if err := row.Scan(&r.Seed, &r.Funds, &r.GridFloors, &r.GridColumns, &r.GroundFloor, &r.Basements); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		r.Tick = *tick
		printJSON(r)

	case "facilities":
		rows, err := db.Query(`SELECT id,type,name,floor,col,width,capacity,occupancy FROM snapshot_facilities WHERE tick=? ORDER BY id`, *tick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      uint64 `json:"tick"`
				ID        int    `json:"id"`
				Type      string `json:"type"`
				Name      string `json:"name,omitempty"`
				Floor     int    `json:"floor"`
				Column    int    `json:"column"`
				Width     int    `json:"width"`
				Capacity  int    `json:"capacity"`
				Occupancy int    `json:"occupancy"`
			}
			if err := rows.Scan(&r.ID, &r.Type, &r.Name, &r.Floor, &r.Column, &r.Width, &r.Capacity, &r.Occupancy); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Tick = *tick
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "persons":
		rows, err := db.Query(`SELECT id,floor,col,dest_floor,dest_col,state FROM snapshot_persons WHERE tick=? ORDER BY id`, *tick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       uint64  `json:"tick"`
				ID         int     `json:"id"`
				Floor      int     `json:"floor"`
				Column     float64 `json:"column"`
				DestFloor  int     `json:"dest_floor"`
				DestColumn float64 `json:"dest_column"`
				State      string  `json:"state"`
			}
			if err := rows.Scan(&r.ID, &r.Floor, &r.Column, &r.DestFloor, &r.DestColumn, &r.State); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Tick = *tick
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "commands":
		q := `SELECT tick,seq,actor,action,floor,col,description,cost_change,funds_after,code FROM commands ORDER BY tick DESC, seq DESC LIMIT ?`
		qargs := []any{*limit}
		if strings.TrimSpace(*actor) != "" {
			q = `SELECT tick,seq,actor,action,floor,col,description,cost_change,funds_after,code FROM commands WHERE actor=? ORDER BY tick DESC, seq DESC LIMIT ?`
			qargs = []any{strings.TrimSpace(*actor), *limit}
		}
		rows, err := db.Query(q, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        int64  `json:"tick"`
				Seq         int    `json:"seq"`
				Actor       string `json:"actor"`
				Action      string `json:"action"`
				Floor       int    `json:"floor"`
				Column      int    `json:"column"`
				Description string `json:"description,omitempty"`
				CostChange  int64  `json:"cost_change"`
				FundsAfter  int64  `json:"funds_after"`
				Code        string `json:"code,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.Floor, &r.Column, &r.Description, &r.CostChange, &r.FundsAfter, &r.Code); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "days":
		rows, err := db.Query(`SELECT day,end_tick,path,seed,recorded_at FROM days ORDER BY day DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Day        int    `json:"day"`
				EndTick    int64  `json:"end_tick"`
				Path       string `json:"path"`
				Seed       int64  `json:"seed"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Day, &r.EndTick, &r.Path, &r.Seed, &r.RecordedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-tower TOWER|-db PATH] [-tick T] snapshots|tower|facilities|persons|commands|days")
		os.Exit(2)
	}
}

func latestSnapshotTick(db *sql.DB) (uint64, error) {
	if db == nil {
		return 0, fmt.Errorf("nil db")
	}
	var t int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(tick),0) FROM snapshots`).Scan(&t); err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, nil
	}
	return uint64(t), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
