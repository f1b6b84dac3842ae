package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz         int   `yaml:"tick_rate_hz"`
	DayTicks           int   `yaml:"day_ticks"`
	StartingFunds      int64 `yaml:"starting_funds"`
	MaxUndoHistory     int   `yaml:"max_undo_history"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`

	Grid     GridTuning     `yaml:"grid"`
	Economy  EconomyTuning  `yaml:"economy"`
	Elevator ElevatorTuning `yaml:"elevator"`
	Person   PersonTuning   `yaml:"person"`
	Arrivals ArrivalsTuning `yaml:"arrivals"`
}

type GridTuning struct {
	Floors         int `yaml:"floors"`
	Columns        int `yaml:"columns"`
	MaxAboveGround int `yaml:"max_above_ground"`
	MaxBelowGround int `yaml:"max_below_ground"`
}

type EconomyTuning struct {
	FloorCostPerCell      int64   `yaml:"floor_cost_per_cell"`
	DemolitionRecoveryPct float64 `yaml:"demolition_recovery_pct"`
	FloorExpansionCost    int64   `yaml:"floor_expansion_cost"`
	BasementExpansionCost int64   `yaml:"basement_expansion_cost"`
	ColumnExpansionCost   int64   `yaml:"column_expansion_cost"`
	ShaftCostPerFloor     int64   `yaml:"shaft_cost_per_floor"`
	ResearchCost          int64   `yaml:"research_cost"`
	RevenueIntervalTicks  int     `yaml:"revenue_interval_ticks"`
}

type ElevatorTuning struct {
	FloorsPerSecond       float64 `yaml:"floors_per_second"`
	DoorOpenSeconds       float64 `yaml:"door_open_seconds"`
	DoorTransitionSeconds float64 `yaml:"door_transition_seconds"`
	CarCapacity           int     `yaml:"car_capacity"`
}

type PersonTuning struct {
	MoveSpeed          float64 `yaml:"move_speed"`
	WaitTimeoutSeconds float64 `yaml:"wait_timeout_seconds"`
}

type ArrivalsTuning struct {
	BaseRatePerMinute float64 `yaml:"base_rate_per_minute"`
	NoiseScale        float64 `yaml:"noise_scale"`
	MaxVisitors       int     `yaml:"max_visitors"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Defaults is the tuning used when no tuning.yaml is present, e.g. when
// resuming a snapshot in a bare data directory.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:         60,
		DayTicks:           86400,
		StartingFunds:      2_000_000,
		MaxUndoHistory:     50,
		SnapshotEveryTicks: 18000,
		Grid: GridTuning{
			Floors:         1,
			Columns:        30,
			MaxAboveGround: 30,
			MaxBelowGround: 3,
		},
		Economy: EconomyTuning{
			FloorCostPerCell:      50,
			DemolitionRecoveryPct: 0.5,
			FloorExpansionCost:    500,
			BasementExpansionCost: 800,
			ColumnExpansionCost:   300,
			ShaftCostPerFloor:     400,
			ResearchCost:          50_000,
			RevenueIntervalTicks:  600,
		},
		Elevator: ElevatorTuning{
			FloorsPerSecond:       2,
			DoorOpenSeconds:       1.5,
			DoorTransitionSeconds: 0.5,
			CarCapacity:           8,
		},
		Person: PersonTuning{
			MoveSpeed:          1.5,
			WaitTimeoutSeconds: 10,
		},
		Arrivals: ArrivalsTuning{
			BaseRatePerMinute: 3,
			NoiseScale:        0.5,
			MaxVisitors:       200,
		},
	}
}
