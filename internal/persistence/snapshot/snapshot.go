package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	TowerID string `json:"tower_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the full persisted tower state. Adjacency effects and
// per-tick derived values (time of day, revenue phase) are recomputed on
// import, not stored.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed     int64 `json:"seed"`
	TickRate int   `json:"tick_rate_hz"`
	DayTicks int   `json:"day_ticks"`

	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Funds int64 `json:"funds"`

	// Fractional visitor arrivals accumulated between ticks. Without it a
	// resumed run would drift from the original arrival stream.
	ArrivalCarry float64 `json:"arrival_carry,omitempty"`

	FacilityTypesDigest  string `json:"facility_types_digest,omitempty"`
	AdjacencyRulesDigest string `json:"adjacency_rules_digest,omitempty"`

	Grid       GridV1       `json:"grid"`
	Facilities []FacilityV1 `json:"facilities"`
	Persons    []PersonV1   `json:"persons"`
	Shafts     []ShaftV1    `json:"shafts"`
	Cars       []CarV1      `json:"cars"`

	Counters CountersV1 `json:"counters"`
}

type GridV1 struct {
	Floors         int `json:"floors"`
	Columns        int `json:"columns"`
	GroundFloor    int `json:"ground_floor"`
	Basements      int `json:"basements"`
	MaxAboveGround int `json:"max_above_ground"`
	MaxBelowGround int `json:"max_below_ground"`

	// Maximal contiguous runs of constructed flooring, facility
	// footprints included.
	BuiltRuns []BuiltRunV1 `json:"built_runs"`
}

type BuiltRunV1 struct {
	Floor int `json:"floor"`
	Start int `json:"start"`
	Width int `json:"width"`
}

type FacilityV1 struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Floor     int    `json:"floor"`
	Column    int    `json:"column"`
	Width     int    `json:"width"`
	Capacity  int    `json:"capacity"`
	Occupancy int    `json:"occupancy"`
}

type PersonV1 struct {
	ID         int        `json:"id"`
	Name       string     `json:"name,omitempty"`
	Floor      int        `json:"floor"`
	Column     float64    `json:"column"`
	DestFloor  int        `json:"dest_floor"`
	DestColumn float64    `json:"dest_column"`
	State      string     `json:"state"`
	MoveSpeed  float64    `json:"move_speed"`
	WaitTime   float64    `json:"wait_time,omitempty"`
	BoundFor   int        `json:"bound_for,omitempty"`
	Request    *RequestV1 `json:"request,omitempty"`
}

type RequestV1 struct {
	ShaftID   int     `json:"shaft_id"`
	CarID     int     `json:"car_id"`
	CallFloor int     `json:"call_floor"`
	DestFloor int     `json:"dest_floor"`
	WaitTime  float64 `json:"wait_time,omitempty"`
	Boarding  bool    `json:"boarding,omitempty"`
}

type ShaftV1 struct {
	ID          int `json:"id"`
	Column      int `json:"column"`
	BottomFloor int `json:"bottom_floor"`
	TopFloor    int `json:"top_floor"`
}

type CarV1 struct {
	ID          int     `json:"id"`
	ShaftID     int     `json:"shaft_id"`
	Floor       float64 `json:"floor"`
	Target      int     `json:"target"`
	State       string  `json:"state"`
	MaxCapacity int     `json:"max_capacity"`
	Occupancy   int     `json:"occupancy"`
	Stops       []int   `json:"stops,omitempty"`

	PassengerDest map[int]int `json:"passenger_dest,omitempty"`

	StateTimer             float64 `json:"state_timer,omitempty"`
	FloorsPerSecond        float64 `json:"floors_per_second"`
	DoorOpenDuration       float64 `json:"door_open_duration"`
	DoorTransitionDuration float64 `json:"door_transition_duration"`
}

type CountersV1 struct {
	NextFacility int `json:"next_facility"`
	NextPerson   int `json:"next_person"`
	NextShaft    int `json:"next_shaft"`
	NextCar      int `json:"next_car"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Read header line (ignore it for now, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
