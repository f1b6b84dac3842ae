package world

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"

	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/facility"
	"skyrise.dev/internal/sim/grid"
	"skyrise.dev/internal/sim/ledger"
	"skyrise.dev/internal/sim/transit"
)

// ExportSnapshot captures the full simulation state at nowTick. Command
// history and connected sessions are not part of a snapshot.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:               snapshot.Header{Version: 1, TowerID: w.cfg.ID, Tick: nowTick},
		Seed:                 w.cfg.Seed,
		TickRate:             w.tune.TickRateHz,
		DayTicks:             w.tune.DayTicks,
		SnapshotEveryTicks:   w.tune.SnapshotEveryTicks,
		Funds:                w.account.Balance(),
		ArrivalCarry:         w.arrivalCarry,
		FacilityTypesDigest:  w.cats.Facilities.PaletteDigest,
		AdjacencyRulesDigest: w.cats.Adjacency.Digest,
	}

	g := w.grid
	snap.Grid = snapshot.GridV1{
		Floors:         g.FloorCount(),
		Columns:        g.ColumnCount(),
		GroundFloor:    g.GroundFloor(),
		Basements:      g.BasementFloors(),
		MaxAboveGround: g.MaxAboveGround(),
		MaxBelowGround: g.MaxBelowGround(),
	}
	for floor := g.BottomFloor(); floor <= g.TopFloor(); floor++ {
		start := -1
		for col := 0; col <= g.ColumnCount(); col++ {
			built := col < g.ColumnCount() && g.IsFloorBuilt(floor, col)
			if built && start < 0 {
				start = col
			}
			if !built && start >= 0 {
				snap.Grid.BuiltRuns = append(snap.Grid.BuiltRuns, snapshot.BuiltRunV1{Floor: floor, Start: start, Width: col - start})
				start = -1
			}
		}
	}

	for _, f := range w.dir.All() {
		snap.Facilities = append(snap.Facilities, snapshot.FacilityV1{
			ID:        f.ID,
			Type:      w.cats.Facilities.Def(f.Type).Key,
			Name:      f.Name,
			Floor:     f.Floor,
			Column:    f.Column,
			Width:     f.Width,
			Capacity:  f.Capacity,
			Occupancy: f.Occupancy,
		})
	}

	for _, p := range w.transit.Persons() {
		rec := snapshot.PersonV1{
			ID:         p.ID,
			Name:       p.Name,
			Floor:      p.Floor,
			Column:     p.Column,
			DestFloor:  p.DestFloor,
			DestColumn: p.DestColumn,
			State:      string(p.State),
			MoveSpeed:  p.MoveSpeed,
			WaitTime:   p.WaitTime,
			BoundFor:   p.BoundFor,
		}
		if p.Request != nil {
			rec.Request = &snapshot.RequestV1{
				ShaftID:   p.Request.ShaftID,
				CarID:     p.Request.CarID,
				CallFloor: p.Request.CallFloor,
				DestFloor: p.Request.DestFloor,
				WaitTime:  p.Request.WaitTime,
				Boarding:  p.Request.Boarding,
			}
		}
		snap.Persons = append(snap.Persons, rec)
	}

	for _, s := range w.transit.Shafts() {
		snap.Shafts = append(snap.Shafts, snapshot.ShaftV1{
			ID:          s.ID,
			Column:      s.Column,
			BottomFloor: s.BottomFloor,
			TopFloor:    s.TopFloor,
		})
	}

	for _, c := range w.transit.Cars() {
		rec := snapshot.CarV1{
			ID:                     c.ID,
			ShaftID:                c.ShaftID,
			Floor:                  c.Floor,
			Target:                 c.Target,
			State:                  string(c.State),
			MaxCapacity:            c.MaxCapacity,
			Occupancy:              c.Occupancy,
			StateTimer:             c.StateTimer,
			FloorsPerSecond:        c.FloorsPerSecond,
			DoorOpenDuration:       c.DoorOpenDuration,
			DoorTransitionDuration: c.DoorTransitionDuration,
		}
		if len(c.Stops) > 0 {
			rec.Stops = append([]int(nil), c.Stops...)
		}
		if len(c.PassengerDest) > 0 {
			rec.PassengerDest = make(map[int]int, len(c.PassengerDest))
			for pid, dest := range c.PassengerDest {
				rec.PassengerDest[pid] = dest
			}
		}
		snap.Cars = append(snap.Cars, rec)
	}

	person, shaft, car := w.transit.Counters()
	snap.Counters = snapshot.CountersV1{
		NextFacility: w.dir.NextID(),
		NextPerson:   person,
		NextShaft:    shaft,
		NextCar:      car,
	}
	return snap
}

// ImportSnapshot replaces the whole simulation state with snap. The
// snapshot is authoritative for seed and timekeeping; undo history starts
// empty and sessions are untouched.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.FacilityTypesDigest != "" && snap.FacilityTypesDigest != w.cats.Facilities.PaletteDigest {
		return fmt.Errorf("facility catalog digest mismatch: snapshot %s, loaded %s", snap.FacilityTypesDigest, w.cats.Facilities.PaletteDigest)
	}
	if snap.AdjacencyRulesDigest != "" && snap.AdjacencyRulesDigest != w.cats.Adjacency.Digest {
		return fmt.Errorf("adjacency catalog digest mismatch: snapshot %s, loaded %s", snap.AdjacencyRulesDigest, w.cats.Adjacency.Digest)
	}
	if snap.TickRate <= 0 || snap.DayTicks <= 0 {
		return fmt.Errorf("snapshot timekeeping invalid: tick_rate=%d day_ticks=%d", snap.TickRate, snap.DayTicks)
	}

	g := grid.New(grid.Config{
		Floors:         snap.Grid.Floors - snap.Grid.Basements,
		Columns:        snap.Grid.Columns,
		MaxAboveGround: snap.Grid.MaxAboveGround,
		MaxBelowGround: snap.Grid.MaxBelowGround,
	})
	if snap.Grid.Basements > 0 {
		if added := g.AddBasementFloors(snap.Grid.Basements); added != snap.Grid.Basements {
			return fmt.Errorf("rebuilt %d of %d basement floors", added, snap.Grid.Basements)
		}
	}
	if g.GroundFloor() != snap.Grid.GroundFloor {
		return fmt.Errorf("snapshot ground floor %d does not match rebuilt grid %d", snap.Grid.GroundFloor, g.GroundFloor())
	}
	if g.FloorCount() != snap.Grid.Floors || g.ColumnCount() != snap.Grid.Columns {
		return fmt.Errorf("rebuilt grid %dx%d does not match snapshot %dx%d", g.FloorCount(), g.ColumnCount(), snap.Grid.Floors, snap.Grid.Columns)
	}
	for _, run := range snap.Grid.BuiltRuns {
		g.BuildFloor(run.Floor, run.Start, run.Width)
	}

	dir := facility.New(g, w.cats, w.tune.Economy.FloorCostPerCell)
	for _, rec := range snap.Facilities {
		typ, ok := w.cats.Facilities.Lookup(rec.Type)
		if !ok {
			typ = catalogs.TypeOffice
		}
		f := facility.Facility{
			ID:        rec.ID,
			Type:      typ,
			Name:      rec.Name,
			Floor:     rec.Floor,
			Column:    rec.Column,
			Width:     rec.Width,
			Capacity:  rec.Capacity,
			Occupancy: rec.Occupancy,
		}
		if dir.Restore(f) == nil {
			return fmt.Errorf("facility %d (%s) does not fit at floor %d column %d", rec.ID, rec.Type, rec.Floor, rec.Column)
		}
	}
	if snap.Counters.NextFacility > 0 {
		dir.SetNextID(snap.Counters.NextFacility)
	}
	dir.RecomputeAll()

	tr := transit.New(transitConfig(w.tune))
	for _, rec := range snap.Shafts {
		if tr.RestoreShaft(transit.Shaft{ID: rec.ID, Column: rec.Column, BottomFloor: rec.BottomFloor, TopFloor: rec.TopFloor}) == nil {
			return fmt.Errorf("shaft %d invalid", rec.ID)
		}
	}
	for _, rec := range snap.Cars {
		car := transit.Car{
			ID:                     rec.ID,
			ShaftID:                rec.ShaftID,
			Floor:                  rec.Floor,
			Target:                 rec.Target,
			State:                  transit.CarState(rec.State),
			MaxCapacity:            rec.MaxCapacity,
			Occupancy:              rec.Occupancy,
			Stops:                  rec.Stops,
			PassengerDest:          rec.PassengerDest,
			StateTimer:             rec.StateTimer,
			FloorsPerSecond:        rec.FloorsPerSecond,
			DoorOpenDuration:       rec.DoorOpenDuration,
			DoorTransitionDuration: rec.DoorTransitionDuration,
		}
		if tr.RestoreCar(car) == nil {
			return fmt.Errorf("car %d references missing shaft %d", rec.ID, rec.ShaftID)
		}
	}
	for _, rec := range snap.Persons {
		bound := rec.BoundFor
		if bound == 0 {
			bound = -1
		}
		p := transit.Person{
			ID:         rec.ID,
			Name:       rec.Name,
			Floor:      rec.Floor,
			Column:     rec.Column,
			DestFloor:  rec.DestFloor,
			DestColumn: rec.DestColumn,
			State:      transit.PersonState(rec.State),
			MoveSpeed:  rec.MoveSpeed,
			WaitTime:   rec.WaitTime,
			BoundFor:   bound,
		}
		if rec.Request != nil {
			p.Request = &transit.Request{
				ShaftID:   rec.Request.ShaftID,
				CarID:     rec.Request.CarID,
				CallFloor: rec.Request.CallFloor,
				DestFloor: rec.Request.DestFloor,
				WaitTime:  rec.Request.WaitTime,
				Boarding:  rec.Request.Boarding,
			}
		}
		if tr.RestorePerson(p) == nil {
			return fmt.Errorf("person %d invalid", rec.ID)
		}
	}
	tr.SetCounters(snap.Counters.NextPerson, snap.Counters.NextShaft, snap.Counters.NextCar)

	// Commit. The snapshot wins over whatever the world was configured
	// with: seed, timekeeping and snapshot cadence all come from it.
	w.cfg.Seed = snap.Seed
	w.tune.TickRateHz = snap.TickRate
	w.tune.DayTicks = snap.DayTicks
	if snap.SnapshotEveryTicks > 0 {
		w.tune.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}
	w.arrivalNoise = opensimplex.NewNormalized(snap.Seed)
	w.arrivalCarry = snap.ArrivalCarry
	w.grid = g
	w.dir = dir
	w.transit = tr
	w.account = ledger.NewAccount(snap.Funds)
	w.history = ledger.New(w.tune.MaxUndoHistory)
	// The snapshot was cut after tick Header.Tick ran; resume at the next one.
	w.tick.Store(snap.Header.Tick + 1)
	return nil
}
