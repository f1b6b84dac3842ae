package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skyrise.dev/internal/sim/world"
)

// newMetricsHandler exposes world, index and mirror signals on a dedicated
// registry. Everything is a read-side view over atomically published stats,
// so scrapes never touch simulation state.
func newMetricsHandler(towerID string, w *world.World, idx runtimeIndex, mirror *mirrorRuntime) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gauge := func(subsystem, name, help string, labels prometheus.Labels, fn func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "skyrise",
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}
	counter := func(subsystem, name, help string, labels prometheus.Labels, fn func() float64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "skyrise",
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}

	tower := prometheus.Labels{"tower": towerID}
	towerGauge := func(name, help string, fn func(m world.WorldMetrics) float64) {
		gauge("tower", name, help, tower, func() float64 { return fn(w.Metrics()) })
	}

	towerGauge("tick", "Current simulation tick.", func(m world.WorldMetrics) float64 { return float64(m.Tick) })
	towerGauge("sessions", "Connected controller sessions.", func(m world.WorldMetrics) float64 { return float64(m.Sessions) })
	towerGauge("funds", "Tower account balance.", func(m world.WorldMetrics) float64 { return float64(m.Funds) })
	towerGauge("population", "People currently inside the tower.", func(m world.WorldMetrics) float64 { return float64(m.Population) })
	towerGauge("facilities", "Placed facilities.", func(m world.WorldMetrics) float64 { return float64(m.Facilities) })
	towerGauge("persons_in_transit", "People tracked by the transport simulation.", func(m world.WorldMetrics) float64 { return float64(m.PersonsInTransit) })
	towerGauge("shafts", "Elevator shafts.", func(m world.WorldMetrics) float64 { return float64(m.Shafts) })
	towerGauge("cars", "Elevator cars.", func(m world.WorldMetrics) float64 { return float64(m.Cars) })
	towerGauge("floors", "Grid floor count (basements included).", func(m world.WorldMetrics) float64 { return float64(m.Floors) })
	towerGauge("columns", "Grid column count.", func(m world.WorldMetrics) float64 { return float64(m.Columns) })
	towerGauge("built_cells", "Cells with constructed flooring.", func(m world.WorldMetrics) float64 { return float64(m.BuiltCells) })
	towerGauge("occupied_cells", "Cells covered by facility footprints.", func(m world.WorldMetrics) float64 { return float64(m.OccupiedCells) })
	towerGauge("step_ms", "Last tick step duration in milliseconds.", func(m world.WorldMetrics) float64 { return m.StepMS })

	queueGauge := func(queue string, fn func(m world.WorldMetrics) float64) {
		labels := prometheus.Labels{"tower": towerID, "queue": queue}
		gauge("tower", "queue_depth", "World channel backlog depth.", labels, func() float64 { return fn(w.Metrics()) })
	}
	queueGauge("inbox", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Inbox) })
	queueGauge("join", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Join) })
	queueGauge("leave", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Leave) })

	if idx != nil {
		gauge("index", "queue_depth", "Index writer backlog depth.", tower, func() float64 { return float64(idx.Stats().QueueDepth) })
		gauge("index", "queue_capacity", "Index writer queue capacity.", tower, func() float64 { return float64(idx.Stats().QueueCapacity) })
		dropCounter := func(kind string, fn func() float64) {
			labels := prometheus.Labels{"tower": towerID, "kind": kind}
			counter("index", "dropped_total", "Index writes dropped because the queue was full.", labels, fn)
		}
		dropCounter("tick", func() float64 { return float64(idx.Stats().DropTickTotal) })
		dropCounter("audit", func() float64 { return float64(idx.Stats().DropAuditTotal) })
		dropCounter("snapshot", func() float64 { return float64(idx.Stats().DropSnapshotTotal) })
		dropCounter("snapshot_state", func() float64 { return float64(idx.Stats().DropSnapshotStateTotal) })
	}

	if mirror != nil && mirror.enabled {
		gauge("mirror", "queue_depth", "Blob mirror queue depth.", tower, func() float64 { return float64(mirror.Stats().QueueDepth) })
		gauge("mirror", "queue_capacity", "Blob mirror queue capacity.", tower, func() float64 { return float64(mirror.Stats().QueueCapacity) })
		counter("mirror", "enqueued_total", "Total mirror enqueue attempts.", tower, func() float64 { return float64(mirror.Stats().EnqueuedTotal) })
		counter("mirror", "queue_saturated_total", "Enqueue attempts that found the queue full.", tower, func() float64 { return float64(mirror.Stats().QueueSaturatedTotal) })
		counter("mirror", "dropped_total", "Files dropped because the queue stayed full.", tower, func() float64 { return float64(mirror.Stats().DroppedTotal) })
		counter("mirror", "upload_success_total", "Successful mirror uploads.", tower, func() float64 { return float64(mirror.Stats().UploadSuccessTotal) })
		counter("mirror", "upload_fail_total", "Mirror uploads that failed after retries.", tower, func() float64 { return float64(mirror.Stats().UploadFailTotal) })
		gauge("mirror", "last_success_timestamp_seconds", "Unix time of the last successful upload.", tower, func() float64 { return float64(mirror.Stats().LastSuccessUnix) })
		gauge("mirror", "last_error_timestamp_seconds", "Unix time of the last failed upload.", tower, func() float64 { return float64(mirror.Stats().LastErrorUnix) })
	}

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
