package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Sessions   int   `json:"sessions"`
	Funds      int64 `json:"funds"`
	Population int   `json:"population"`

	Facilities       int `json:"facilities"`
	PersonsInTransit int `json:"persons_in_transit"`
	Shafts           int `json:"shafts"`
	Cars             int `json:"cars"`

	Floors        int `json:"floors"`
	Columns       int `json:"columns"`
	BuiltCells    int `json:"built_cells"`
	OccupiedCells int `json:"occupied_cells"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nowTick uint64, stepDur time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:             nowTick,
		Sessions:         len(w.sessions),
		Funds:            w.account.Balance(),
		Population:       w.population(),
		Facilities:       w.dir.Count(),
		PersonsInTransit: w.transit.PersonCount(),
		Shafts:           w.transit.ShaftCount(),
		Cars:             w.transit.CarCount(),
		Floors:           w.grid.FloorCount(),
		Columns:          w.grid.ColumnCount(),
		BuiltCells:       w.grid.BuiltCellCount(),
		OccupiedCells:    w.grid.OccupiedCellCount(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: float64(stepDur.Microseconds()) / 1000.0,
	})
}
