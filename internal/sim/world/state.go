package world

import (
	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/encoding"
)

// buildState renders the authoritative STATE message for this tick. Events
// are filled in per session by the caller.
func (w *World) buildState(nowTick uint64) protocol.StateMsg {
	facilities := w.dir.All()
	facObs := make([]protocol.FacilityObs, 0, len(facilities))
	for _, f := range facilities {
		obs := protocol.FacilityObs{
			ID:        f.ID,
			Type:      w.cats.Facilities.Def(f.Type).Key,
			Name:      f.Name,
			Floor:     f.Floor,
			Column:    f.Column,
			Width:     f.Width,
			Capacity:  f.Capacity,
			Occupancy: f.Occupancy,
		}
		if len(f.Effects) > 0 {
			obs.Effects = make([]protocol.EffectObs, 0, len(f.Effects))
			for _, e := range f.Effects {
				obs.Effects = append(obs.Effects, protocol.EffectObs{
					Kind:        string(e.Kind),
					Magnitude:   e.Magnitude,
					Source:      int(e.Source),
					Description: e.Description,
				})
			}
		}
		facObs = append(facObs, obs)
	}

	persons := w.transit.Persons()
	personObs := make([]protocol.PersonObs, 0, len(persons))
	for _, p := range persons {
		personObs = append(personObs, protocol.PersonObs{
			ID:         p.ID,
			Name:       p.Name,
			Floor:      p.Floor,
			Column:     p.Column,
			DestFloor:  p.DestFloor,
			DestColumn: p.DestColumn,
			State:      string(p.State),
		})
	}

	shafts := w.transit.Shafts()
	shaftObs := make([]protocol.ShaftObs, 0, len(shafts))
	for _, s := range shafts {
		shaftObs = append(shaftObs, protocol.ShaftObs{
			ID:          s.ID,
			Column:      s.Column,
			BottomFloor: s.BottomFloor,
			TopFloor:    s.TopFloor,
			CarCount:    s.CarCount,
		})
	}

	rows := make([]string, 0, w.grid.FloorCount())
	row := make([]uint16, w.grid.ColumnCount())
	for floor := w.grid.BottomFloor(); floor <= w.grid.TopFloor(); floor++ {
		for col := range row {
			switch {
			case w.grid.IsOccupied(floor, col):
				row[col] = protocol.CellOccupied
			case w.grid.IsFloorBuilt(floor, col):
				row[col] = protocol.CellBuilt
			default:
				row[col] = protocol.CellUnbuilt
			}
		}
		rows = append(rows, encoding.EncodeCells(row))
	}

	cars := w.transit.Cars()
	carObs := make([]protocol.CarObs, 0, len(cars))
	for _, c := range cars {
		obs := protocol.CarObs{
			ID:          c.ID,
			ShaftID:     c.ShaftID,
			Floor:       c.Floor,
			Target:      c.Target,
			State:       string(c.State),
			Occupancy:   c.Occupancy,
			MaxCapacity: c.MaxCapacity,
		}
		if len(c.Stops) > 0 {
			obs.Stops = append([]int(nil), c.Stops...)
		}
		carObs = append(carObs, obs)
	}

	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		TimeOfDay:       w.timeOfDay(nowTick),
		Day:             int(nowTick / uint64(w.tune.DayTicks)),
		Funds:           w.account.Balance(),
		Population:      w.population(),
		Grid: protocol.GridObs{
			Floors:         w.grid.FloorCount(),
			Columns:        w.grid.ColumnCount(),
			GroundFloor:    w.grid.GroundFloor(),
			BottomFloor:    w.grid.BottomFloor(),
			TopFloor:       w.grid.TopFloor(),
			MaxAboveGround: w.grid.MaxAboveGround(),
			MaxBelowGround: w.grid.MaxBelowGround(),
			BuiltCells:     w.grid.BuiltCellCount(),
			OccupiedCells:  w.grid.OccupiedCellCount(),
			RowEncoding:    "RLE",
			Rows:           rows,
		},
		Facilities: facObs,
		Persons:    personObs,
		Shafts:     shaftObs,
		Cars:       carObs,
		Ledger: protocol.LedgerObs{
			CanUndo:         w.history.CanUndo(),
			CanRedo:         w.history.CanRedo(),
			UndoDepth:       w.history.UndoDepth(),
			RedoDepth:       w.history.RedoDepth(),
			UndoDescription: w.history.UndoDescription(),
			RedoDescription: w.history.RedoDescription(),
		},
		Events: []protocol.Event{},
	}
}
