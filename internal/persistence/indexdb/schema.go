package indexdb

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// Portable DDL: the type and upsert subset below is accepted by both
// modernc sqlite and postgres, so both backends share one schema.
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS catalogs (
		name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ticks (
		tick BIGINT PRIMARY KEY,
		digest TEXT NOT NULL,
		joins INTEGER NOT NULL,
		leaves INTEGER NOT NULL,
		actions INTEGER NOT NULL,
		funds BIGINT NOT NULL,
		population INTEGER NOT NULL,
		raw_json TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS joins (
		tick BIGINT NOT NULL,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (tick, session_id)
	);`,
	`CREATE TABLE IF NOT EXISTS leaves (
		tick BIGINT NOT NULL,
		session_id TEXT NOT NULL,
		PRIMARY KEY (tick, session_id)
	);`,
	`CREATE TABLE IF NOT EXISTS actions (
		tick BIGINT NOT NULL,
		seq INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		act_json TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_actions_session_tick ON actions(session_id, tick);`,
	`CREATE TABLE IF NOT EXISTS commands (
		tick BIGINT NOT NULL,
		seq INTEGER NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		floor INTEGER NOT NULL,
		col INTEGER NOT NULL,
		description TEXT,
		cost_change BIGINT NOT NULL,
		funds_after BIGINT NOT NULL,
		code TEXT,
		raw_json TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_commands_actor_tick ON commands(actor, tick);`,
	`CREATE INDEX IF NOT EXISTS idx_commands_action_tick ON commands(action, tick);`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		tick BIGINT PRIMARY KEY,
		path TEXT NOT NULL,
		seed BIGINT NOT NULL,
		funds BIGINT NOT NULL,
		facilities INTEGER NOT NULL,
		persons INTEGER NOT NULL,
		shafts INTEGER NOT NULL,
		cars INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS snapshot_tower (
		tick BIGINT PRIMARY KEY,
		seed BIGINT NOT NULL,
		funds BIGINT NOT NULL,
		grid_floors INTEGER NOT NULL,
		grid_columns INTEGER NOT NULL,
		ground_floor INTEGER NOT NULL,
		basements INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS snapshot_facilities (
		tick BIGINT NOT NULL,
		id INTEGER NOT NULL,
		type TEXT NOT NULL,
		name TEXT,
		floor INTEGER NOT NULL,
		col INTEGER NOT NULL,
		width INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		occupancy INTEGER NOT NULL,
		PRIMARY KEY (tick, id)
	);`,
	`CREATE TABLE IF NOT EXISTS snapshot_persons (
		tick BIGINT NOT NULL,
		id INTEGER NOT NULL,
		floor INTEGER NOT NULL,
		col DOUBLE PRECISION NOT NULL,
		dest_floor INTEGER NOT NULL,
		dest_col DOUBLE PRECISION NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY (tick, id)
	);`,
	`CREATE TABLE IF NOT EXISTS snapshot_shafts (
		tick BIGINT NOT NULL,
		id INTEGER NOT NULL,
		col INTEGER NOT NULL,
		bottom_floor INTEGER NOT NULL,
		top_floor INTEGER NOT NULL,
		PRIMARY KEY (tick, id)
	);`,
	`CREATE TABLE IF NOT EXISTS snapshot_cars (
		tick BIGINT NOT NULL,
		id INTEGER NOT NULL,
		shaft_id INTEGER NOT NULL,
		floor DOUBLE PRECISION NOT NULL,
		state TEXT NOT NULL,
		occupancy INTEGER NOT NULL,
		PRIMARY KEY (tick, id)
	);`,
	`CREATE TABLE IF NOT EXISTS days (
		day INTEGER PRIMARY KEY,
		end_tick BIGINT NOT NULL,
		path TEXT NOT NULL,
		seed BIGINT NOT NULL,
		recorded_at TEXT NOT NULL
	);`,
}

const (
	insertTickSQL = `INSERT INTO ticks(tick,digest,joins,leaves,actions,funds,population,raw_json) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(tick) DO UPDATE SET digest=excluded.digest,joins=excluded.joins,leaves=excluded.leaves,actions=excluded.actions,funds=excluded.funds,population=excluded.population,raw_json=excluded.raw_json`
	insertJoinSQL = `INSERT INTO joins(tick,session_id,name) VALUES(?,?,?)
		ON CONFLICT(tick,session_id) DO UPDATE SET name=excluded.name`
	insertLeaveSQL = `INSERT INTO leaves(tick,session_id) VALUES(?,?)
		ON CONFLICT(tick,session_id) DO NOTHING`
	insertActionSQL = `INSERT INTO actions(tick,seq,session_id,act_json) VALUES(?,?,?,?)
		ON CONFLICT(tick,seq) DO UPDATE SET session_id=excluded.session_id,act_json=excluded.act_json`
	insertCommandSQL = `INSERT INTO commands(tick,seq,actor,action,floor,col,description,cost_change,funds_after,code,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tick,seq) DO UPDATE SET actor=excluded.actor,action=excluded.action,floor=excluded.floor,col=excluded.col,description=excluded.description,cost_change=excluded.cost_change,funds_after=excluded.funds_after,code=excluded.code,raw_json=excluded.raw_json`
	insertSnapshotSQL = `INSERT INTO snapshots(tick,path,seed,funds,facilities,persons,shafts,cars) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(tick) DO UPDATE SET path=excluded.path,seed=excluded.seed,funds=excluded.funds,facilities=excluded.facilities,persons=excluded.persons,shafts=excluded.shafts,cars=excluded.cars`
	insertStateTowerSQL = `INSERT INTO snapshot_tower(tick,seed,funds,grid_floors,grid_columns,ground_floor,basements) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(tick) DO UPDATE SET seed=excluded.seed,funds=excluded.funds,grid_floors=excluded.grid_floors,grid_columns=excluded.grid_columns,ground_floor=excluded.ground_floor,basements=excluded.basements`
	insertStateFacilitySQL = `INSERT INTO snapshot_facilities(tick,id,type,name,floor,col,width,capacity,occupancy) VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tick,id) DO UPDATE SET type=excluded.type,name=excluded.name,floor=excluded.floor,col=excluded.col,width=excluded.width,capacity=excluded.capacity,occupancy=excluded.occupancy`
	insertStatePersonSQL = `INSERT INTO snapshot_persons(tick,id,floor,col,dest_floor,dest_col,state) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(tick,id) DO UPDATE SET floor=excluded.floor,col=excluded.col,dest_floor=excluded.dest_floor,dest_col=excluded.dest_col,state=excluded.state`
	insertStateShaftSQL = `INSERT INTO snapshot_shafts(tick,id,col,bottom_floor,top_floor) VALUES(?,?,?,?,?)
		ON CONFLICT(tick,id) DO UPDATE SET col=excluded.col,bottom_floor=excluded.bottom_floor,top_floor=excluded.top_floor`
	insertStateCarSQL = `INSERT INTO snapshot_cars(tick,id,shaft_id,floor,state,occupancy) VALUES(?,?,?,?,?,?)
		ON CONFLICT(tick,id) DO UPDATE SET shaft_id=excluded.shaft_id,floor=excluded.floor,state=excluded.state,occupancy=excluded.occupancy`
	insertDaySQL = `INSERT INTO days(day,end_tick,path,seed,recorded_at) VALUES(?,?,?,?,?)
		ON CONFLICT(day) DO UPDATE SET end_tick=excluded.end_tick,path=excluded.path,seed=excluded.seed,recorded_at=excluded.recorded_at`
)

func initSchema(db *sqlx.DB) error {
	for _, s := range schemaStmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) loop() {
	prepare := func(q string) *sqlx.Stmt {
		stmt, err := s.db.Preparex(s.db.Rebind(q))
		if err != nil {
			return nil
		}
		return stmt
	}

	insertTick := prepare(insertTickSQL)
	insertJoin := prepare(insertJoinSQL)
	insertLeave := prepare(insertLeaveSQL)
	insertAction := prepare(insertActionSQL)
	insertCommand := prepare(insertCommandSQL)
	insertSnapshot := prepare(insertSnapshotSQL)
	insertStateTower := prepare(insertStateTowerSQL)
	insertStateFacility := prepare(insertStateFacilitySQL)
	insertStatePerson := prepare(insertStatePersonSQL)
	insertStateShaft := prepare(insertStateShaftSQL)
	insertStateCar := prepare(insertStateCarSQL)
	insertDay := prepare(insertDaySQL)
	defer func() {
		for _, st := range []*sqlx.Stmt{
			insertTick, insertJoin, insertLeave, insertAction, insertCommand,
			insertSnapshot, insertStateTower, insertStateFacility,
			insertStatePerson, insertStateShaft, insertStateCar, insertDay,
		} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmtx(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Digest,
					len(r.tick.Joins),
					len(r.tick.Leaves),
					len(r.tick.Actions),
					r.tick.Funds,
					r.tick.Population,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for _, j := range r.tick.Joins {
				if insertJoin == nil {
					break
				}
				if _, err := tx.Stmtx(insertJoin).Exec(int64(r.tick.Tick), j.SessionID, j.Name); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for _, id := range r.tick.Leaves {
				if insertLeave == nil || tx == nil {
					break
				}
				if _, err := tx.Stmtx(insertLeave).Exec(int64(r.tick.Tick), id); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for i, a := range r.tick.Actions {
				if insertAction == nil || tx == nil {
					break
				}
				actJSON, _ := json.Marshal(a.Act)
				if _, err := tx.Stmtx(insertAction).Exec(int64(r.tick.Tick), i, a.SessionID, string(actJSON)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertCommand != nil {
				if _, err := tx.Stmtx(insertCommand).Exec(
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Floor,
					a.Column,
					a.Description,
					a.CostChange,
					a.FundsAfter,
					a.Code,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmtx(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Path,
					sn.Seed,
					sn.Funds,
					sn.Facilities,
					sn.Persons,
					sn.Shafts,
					sn.Cars,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshotState:
			snap := r.state
			tick := int64(snap.Header.Tick)
			if insertStateTower != nil {
				if _, err := tx.Stmtx(insertStateTower).Exec(
					tick,
					snap.Seed,
					snap.Funds,
					snap.Grid.Floors,
					snap.Grid.Columns,
					snap.Grid.GroundFloor,
					snap.Grid.Basements,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for _, f := range snap.Facilities {
				if insertStateFacility == nil || tx == nil {
					break
				}
				if _, err := tx.Stmtx(insertStateFacility).Exec(
					tick, f.ID, f.Type, f.Name, f.Floor, f.Column, f.Width, f.Capacity, f.Occupancy,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for _, p := range snap.Persons {
				if insertStatePerson == nil || tx == nil {
					break
				}
				if _, err := tx.Stmtx(insertStatePerson).Exec(
					tick, p.ID, p.Floor, p.Column, p.DestFloor, p.DestColumn, p.State,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for _, sh := range snap.Shafts {
				if insertStateShaft == nil || tx == nil {
					break
				}
				if _, err := tx.Stmtx(insertStateShaft).Exec(
					tick, sh.ID, sh.Column, sh.BottomFloor, sh.TopFloor,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
			for _, c := range snap.Cars {
				if insertStateCar == nil || tx == nil {
					break
				}
				if _, err := tx.Stmtx(insertStateCar).Exec(
					tick, c.ID, c.ShaftID, c.Floor, c.State, c.Occupancy,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqDay:
			d := r.day
			if insertDay != nil {
				if _, err := tx.Stmtx(insertDay).Exec(
					d.Day,
					int64(d.EndTick),
					d.Path,
					d.Seed,
					d.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
