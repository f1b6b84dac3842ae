package world

import (
	"fmt"
	"math"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/facility"
	"skyrise.dev/internal/sim/transit"
)

// systemArrivals feeds walk-in visitors into the lobby. The rate follows a
// day curve shaped by seeded noise, so a resumed or replayed run sees the
// exact same stream of arrivals.
func (w *World) systemArrivals(nowTick uint64) {
	rate := w.tune.Arrivals.BaseRatePerMinute
	if rate <= 0 {
		return
	}
	if w.tune.Arrivals.MaxVisitors > 0 && w.transit.PersonCount() >= w.tune.Arrivals.MaxVisitors {
		return
	}

	day := math.Sin(math.Pi * w.timeOfDay(nowTick))
	if day < 0 {
		day = 0
	}
	noise := w.arrivalNoise.Eval2(float64(nowTick)*w.tune.Arrivals.NoiseScale/float64(w.tune.TickRateHz), 0)
	perTick := rate / 60.0 / float64(w.tune.TickRateHz)
	w.arrivalCarry += perTick * day * (0.5 + noise)

	for w.arrivalCarry >= 1 {
		if w.tune.Arrivals.MaxVisitors > 0 && w.transit.PersonCount() >= w.tune.Arrivals.MaxVisitors {
			break
		}
		w.arrivalCarry--
		w.spawnVisitor(nowTick)
	}
}

func (w *World) spawnVisitor(nowTick uint64) {
	// Destinations with spare capacity, weighted by traffic pull.
	var candidates []*facility.Facility
	var weights []float64
	total := 0.0
	for _, f := range w.dir.All() {
		if f.Type == catalogs.TypeLobby || f.Type == catalogs.TypeElevator {
			continue
		}
		if f.Occupancy >= f.Capacity {
			continue
		}
		wgt := 1 + f.EffectSum(catalogs.EffectTraffic)
		if wgt < 0.1 {
			wgt = 0.1
		}
		candidates = append(candidates, f)
		weights = append(weights, wgt)
		total += wgt
	}
	if len(candidates) == 0 {
		return
	}

	// A second noise stream stands in for math/rand so the pick is a pure
	// function of tick and crowd size.
	r := w.arrivalNoise.Eval2(float64(nowTick)*0.7919, 1000+float64(w.transit.PersonCount()))
	target := candidates[len(candidates)-1]
	pickAt := r * total
	acc := 0.0
	for i, f := range candidates {
		acc += weights[i]
		if pickAt < acc {
			target = f
			break
		}
	}

	// Visitors enter through the lobby when one exists, otherwise at the
	// left edge of the ground floor.
	floor := w.grid.GroundFloor()
	column := 0.0
	for _, f := range w.dir.All() {
		if f.Type == catalogs.TypeLobby {
			floor = f.Floor
			column = float64(f.Column) + float64(f.Width)/2
			break
		}
	}

	p := w.transit.SpawnPerson("", floor, column, floor, column)
	p.Name = fmt.Sprintf("guest-%d", p.ID)
	p.BoundFor = target.ID
	w.transit.SendTo(p, target.Floor, float64(target.Column)+float64(target.Width)/2)

	w.broadcast(protocol.Event{
		"type":        "VISITOR_SPAWNED",
		"tick":        nowTick,
		"person_id":   p.ID,
		"facility_id": target.ID,
	})
}

// systemEconomy collects revenue and drifts tenancy on a fixed cadence.
func (w *World) systemEconomy(nowTick uint64) {
	interval := w.tune.Economy.RevenueIntervalTicks
	if interval <= 0 || nowTick == 0 || nowTick%uint64(interval) != 0 {
		return
	}

	var total int64
	for _, f := range w.dir.All() {
		if f.Type == catalogs.TypeLobby || f.Type == catalogs.TypeElevator {
			continue
		}
		def := w.cats.Facilities.Def(f.Type)
		if f.Occupancy > 0 && def.RevenuePerOccupant != 0 {
			mult := 1 + f.EffectSum(catalogs.EffectRevenue)
			if mult < 0 {
				mult = 0
			}
			total += int64(math.Round(float64(def.RevenuePerOccupant*int64(f.Occupancy)) * mult))
		}

		// Tenancy drifts one step toward a satisfaction-scaled target.
		target := int(math.Round(float64(f.Capacity) * (1 + f.EffectSum(catalogs.EffectSatisfaction))))
		if target < 0 {
			target = 0
		}
		if target > f.Capacity {
			target = f.Capacity
		}
		if f.Occupancy < target {
			f.Occupancy++
		} else if f.Occupancy > target {
			f.Occupancy--
		}
	}

	if total != 0 {
		w.account.Apply(total)
		w.broadcast(protocol.Event{
			"type":   "REVENUE",
			"tick":   nowTick,
			"amount": total,
			"funds":  w.account.Balance(),
		})
	}
}

// systemTransport advances people and elevator cars, then retires arrivals.
func (w *World) systemTransport(nowTick uint64) {
	dt := 1.0 / float64(w.tune.TickRateHz)
	w.transit.Step(dt)

	for _, p := range w.transit.Persons() {
		if p.State != transit.PersonAtDestination {
			continue
		}
		if f := w.dir.Get(p.BoundFor); f != nil {
			if f.Occupancy < f.Capacity {
				f.Occupancy++
			}
			w.broadcast(protocol.Event{
				"type":        "VISITOR_ARRIVED",
				"tick":        nowTick,
				"person_id":   p.ID,
				"facility_id": f.ID,
			})
		} else {
			w.broadcast(protocol.Event{
				"type":      "PERSON_ARRIVED",
				"tick":      nowTick,
				"person_id": p.ID,
			})
		}
		w.transit.RemovePerson(p.ID)
	}
}
