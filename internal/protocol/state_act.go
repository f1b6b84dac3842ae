package protocol

// STATE (server -> client)
type StateMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	TimeOfDay       float64 `json:"time_of_day"` // 0..1
	Day             int     `json:"day"`
	Funds           int64   `json:"funds"`
	Population      int     `json:"population"`

	Grid       GridObs       `json:"grid"`
	Facilities []FacilityObs `json:"facilities"`
	Persons    []PersonObs   `json:"persons"`
	Shafts     []ShaftObs    `json:"shafts"`
	Cars       []CarObs      `json:"cars"`
	Ledger     LedgerObs     `json:"ledger"`
	Events     []Event       `json:"events"`
}

type GridObs struct {
	Floors         int `json:"floors"`
	Columns        int `json:"columns"`
	GroundFloor    int `json:"ground_floor"`
	BottomFloor    int `json:"bottom_floor"`
	TopFloor       int `json:"top_floor"`
	MaxAboveGround int `json:"max_above_ground"`
	MaxBelowGround int `json:"max_below_ground"`
	BuiltCells     int `json:"built_cells"`
	OccupiedCells  int `json:"occupied_cells"`

	// Rows carries the cell state of each floor from BottomFloor up, one
	// encoded row per floor. Facility footprints are visible through the
	// facilities list; rows additionally expose bare flooring.
	RowEncoding string   `json:"row_encoding,omitempty"` // "RLE"
	Rows        []string `json:"rows,omitempty"`
}

// Cell states carried in GridObs.Rows.
const (
	CellUnbuilt  = 0
	CellBuilt    = 1
	CellOccupied = 2
)

type FacilityObs struct {
	ID        int         `json:"id"`
	Type      string      `json:"type"`
	Name      string      `json:"name,omitempty"`
	Floor     int         `json:"floor"`
	Column    int         `json:"column"`
	Width     int         `json:"width"`
	Capacity  int         `json:"capacity"`
	Occupancy int         `json:"occupancy"`
	Effects   []EffectObs `json:"effects,omitempty"`
}

type EffectObs struct {
	Kind        string  `json:"kind"`
	Magnitude   float64 `json:"magnitude"`
	Source      int     `json:"source"`
	Description string  `json:"description"`
}

type PersonObs struct {
	ID         int     `json:"id"`
	Name       string  `json:"name,omitempty"`
	Floor      int     `json:"floor"`
	Column     float64 `json:"column"`
	DestFloor  int     `json:"dest_floor"`
	DestColumn float64 `json:"dest_column"`
	State      string  `json:"state"`
}

type ShaftObs struct {
	ID          int `json:"id"`
	Column      int `json:"column"`
	BottomFloor int `json:"bottom_floor"`
	TopFloor    int `json:"top_floor"`
	CarCount    int `json:"car_count"`
}

type CarObs struct {
	ID          int     `json:"id"`
	ShaftID     int     `json:"shaft_id"`
	Floor       float64 `json:"floor"`
	Target      int     `json:"target"`
	State       string  `json:"state"`
	Occupancy   int     `json:"occupancy"`
	MaxCapacity int     `json:"max_capacity"`
	Stops       []int   `json:"stops,omitempty"`
}

type LedgerObs struct {
	CanUndo         bool   `json:"can_undo"`
	CanRedo         bool   `json:"can_redo"`
	UndoDepth       int    `json:"undo_depth"`
	RedoDepth       int    `json:"redo_depth"`
	UndoDescription string `json:"undo_description,omitempty"`
	RedoDescription string `json:"redo_description,omitempty"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Actions         []ActionReq `json:"actions,omitempty"`
}

type ActionReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	FacilityType string `json:"facility_type,omitempty"`
	Name         string `json:"name,omitempty"`
	Floor        int    `json:"floor,omitempty"`
	Column       int    `json:"column,omitempty"`
	Width        int    `json:"width,omitempty"`

	Count int `json:"count,omitempty"`

	BottomFloor int `json:"bottom_floor,omitempty"`
	TopFloor    int `json:"top_floor,omitempty"`
	Cars        int `json:"cars,omitempty"`

	DestFloor  int     `json:"dest_floor,omitempty"`
	DestColumn float64 `json:"dest_column,omitempty"`

	Limit  string `json:"limit,omitempty"` // "ABOVE" or "BELOW"
	Amount int    `json:"amount,omitempty"`
}
