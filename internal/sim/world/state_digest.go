package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
)

// stateDigest hashes everything the simulation evolves: funds, grid cells,
// facilities, people in transit, shafts and cars, plus the id counters and
// the arrival accumulator. Command history and connected sessions are
// deliberately excluded; neither survives a snapshot.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	w.digestHeader(h, &tmp, nowTick)
	w.digestGrid(h, &tmp)
	w.digestFacilities(h, &tmp)
	w.digestTransit(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func (w *World) digestHeader(h hashWriter, tmp *[8]byte, nowTick uint64) {
	h.Write([]byte("header"))
	digestWriteU64(h, tmp, nowTick)
	digestWriteU64(h, tmp, uint64(w.cfg.Seed))
	digestWriteI64(h, tmp, w.account.Balance())
	digestWriteF64(h, tmp, w.arrivalCarry)
	digestWriteI64(h, tmp, int64(w.dir.NextID()))
	person, shaft, car := w.transit.Counters()
	digestWriteI64(h, tmp, int64(person))
	digestWriteI64(h, tmp, int64(shaft))
	digestWriteI64(h, tmp, int64(car))
}

func (w *World) digestGrid(h hashWriter, tmp *[8]byte) {
	h.Write([]byte("grid"))
	digestWriteI64(h, tmp, int64(w.grid.FloorCount()))
	digestWriteI64(h, tmp, int64(w.grid.ColumnCount()))
	digestWriteI64(h, tmp, int64(w.grid.BasementFloors()))
	digestWriteI64(h, tmp, int64(w.grid.MaxAboveGround()))
	digestWriteI64(h, tmp, int64(w.grid.MaxBelowGround()))
	for floor := w.grid.BottomFloor(); floor <= w.grid.TopFloor(); floor++ {
		for col := 0; col < w.grid.ColumnCount(); col++ {
			h.Write([]byte{boolByte(w.grid.IsFloorBuilt(floor, col)), boolByte(w.grid.IsOccupied(floor, col))})
			digestWriteI64(h, tmp, int64(w.grid.FacilityAt(floor, col)))
		}
	}
}

func (w *World) digestFacilities(h hashWriter, tmp *[8]byte) {
	h.Write([]byte("facilities"))
	all := w.dir.All()
	digestWriteI64(h, tmp, int64(len(all)))
	for _, f := range all {
		digestWriteI64(h, tmp, int64(f.ID))
		digestWriteI64(h, tmp, int64(f.Type))
		h.Write([]byte(f.Name))
		digestWriteI64(h, tmp, int64(f.Floor))
		digestWriteI64(h, tmp, int64(f.Column))
		digestWriteI64(h, tmp, int64(f.Width))
		digestWriteI64(h, tmp, int64(f.Capacity))
		digestWriteI64(h, tmp, int64(f.Occupancy))
		// Effects are recomputed from placement, never hashed.
	}
}

func (w *World) digestTransit(h hashWriter, tmp *[8]byte) {
	h.Write([]byte("persons"))
	persons := w.transit.Persons()
	digestWriteI64(h, tmp, int64(len(persons)))
	for _, p := range persons {
		digestWriteI64(h, tmp, int64(p.ID))
		h.Write([]byte(p.Name))
		digestWriteI64(h, tmp, int64(p.Floor))
		digestWriteF64(h, tmp, p.Column)
		digestWriteI64(h, tmp, int64(p.DestFloor))
		digestWriteF64(h, tmp, p.DestColumn)
		h.Write([]byte(p.State))
		digestWriteF64(h, tmp, p.MoveSpeed)
		digestWriteF64(h, tmp, p.WaitTime)
		digestWriteI64(h, tmp, int64(p.BoundFor))
		if p.Request != nil {
			h.Write([]byte{1, boolByte(p.Request.Boarding)})
			digestWriteI64(h, tmp, int64(p.Request.ShaftID))
			digestWriteI64(h, tmp, int64(p.Request.CarID))
			digestWriteI64(h, tmp, int64(p.Request.CallFloor))
			digestWriteI64(h, tmp, int64(p.Request.DestFloor))
			digestWriteF64(h, tmp, p.Request.WaitTime)
		} else {
			h.Write([]byte{0})
		}
	}

	h.Write([]byte("shafts"))
	shafts := w.transit.Shafts()
	digestWriteI64(h, tmp, int64(len(shafts)))
	for _, s := range shafts {
		digestWriteI64(h, tmp, int64(s.ID))
		digestWriteI64(h, tmp, int64(s.Column))
		digestWriteI64(h, tmp, int64(s.BottomFloor))
		digestWriteI64(h, tmp, int64(s.TopFloor))
		digestWriteI64(h, tmp, int64(s.CarCount))
	}

	h.Write([]byte("cars"))
	cars := w.transit.Cars()
	digestWriteI64(h, tmp, int64(len(cars)))
	for _, c := range cars {
		digestWriteI64(h, tmp, int64(c.ID))
		digestWriteI64(h, tmp, int64(c.ShaftID))
		digestWriteF64(h, tmp, c.Floor)
		digestWriteI64(h, tmp, int64(c.Target))
		h.Write([]byte(c.State))
		digestWriteI64(h, tmp, int64(c.MaxCapacity))
		digestWriteI64(h, tmp, int64(c.Occupancy))
		digestWriteI64(h, tmp, int64(len(c.Stops)))
		for _, s := range c.Stops {
			digestWriteI64(h, tmp, int64(s))
		}
		pids := make([]int, 0, len(c.PassengerDest))
		for pid := range c.PassengerDest {
			pids = append(pids, pid)
		}
		sort.Ints(pids)
		digestWriteI64(h, tmp, int64(len(pids)))
		for _, pid := range pids {
			digestWriteI64(h, tmp, int64(pid))
			digestWriteI64(h, tmp, int64(c.PassengerDest[pid]))
		}
		digestWriteF64(h, tmp, c.StateTimer)
	}
}
