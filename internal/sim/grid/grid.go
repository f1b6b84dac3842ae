package grid

// Hard ceilings on tower dimensions. Soft limits raised through research
// never exceed these.
const (
	HardMaxAboveGround = 100
	HardMaxBelowGround = 10
	HardMaxColumns     = 256
)

// EmptyCell is the facility id stored in an unoccupied cell.
const EmptyCell = -1

// Cell is one (floor, column) slot. Occupied cells carry the id of the
// facility spanning them. FloorBuilt tracks whether structural flooring
// exists; demolishing a facility clears occupancy but not flooring.
type Cell struct {
	Occupied   bool
	FacilityID int
	FloorBuilt bool
}

// Config sizes a new grid. Zero values fall back to a 1x1 tower with
// default growth limits.
type Config struct {
	Floors         int // initial floors at and above ground
	Columns        int
	MaxAboveGround int // soft limit, ground floor included
	MaxBelowGround int // soft limit on basement floors
}

const (
	defaultMaxAboveGround = 30
	defaultMaxBelowGround = 3
)

// Grid owns the 2D cell array of the tower. Floor numbers are signed:
// basements are negative, the ground floor is groundFloor (normally 0),
// and rows are stored bottom-up so growth in either direction is an edge
// append. All mutation must happen on the simulation goroutine.
type Grid struct {
	floorCount     int
	columnCount    int
	groundFloor    int // signed floor number of the ground floor
	basementCount  int
	maxAboveGround int
	maxBelowGround int

	// cells[rowIndex(floor)][column]
	cells [][]Cell
}

func New(cfg Config) *Grid {
	if cfg.Floors < 1 {
		cfg.Floors = 1
	}
	if cfg.Columns < 1 {
		cfg.Columns = 1
	}
	if cfg.MaxAboveGround <= 0 {
		cfg.MaxAboveGround = defaultMaxAboveGround
	}
	if cfg.MaxBelowGround <= 0 {
		cfg.MaxBelowGround = defaultMaxBelowGround
	}
	if cfg.MaxAboveGround > HardMaxAboveGround {
		cfg.MaxAboveGround = HardMaxAboveGround
	}
	if cfg.MaxBelowGround > HardMaxBelowGround {
		cfg.MaxBelowGround = HardMaxBelowGround
	}
	if cfg.Floors > cfg.MaxAboveGround {
		cfg.Floors = cfg.MaxAboveGround
	}
	if cfg.Columns > HardMaxColumns {
		cfg.Columns = HardMaxColumns
	}
	g := &Grid{
		floorCount:     cfg.Floors,
		columnCount:    cfg.Columns,
		maxAboveGround: cfg.MaxAboveGround,
		maxBelowGround: cfg.MaxBelowGround,
	}
	g.cells = make([][]Cell, g.floorCount)
	for i := range g.cells {
		g.cells[i] = newRow(g.columnCount)
	}
	return g
}

func newRow(columns int) []Cell {
	row := make([]Cell, columns)
	for i := range row {
		row[i].FacilityID = EmptyCell
	}
	return row
}

// rowIndex maps a signed floor number to a cell row. The bottom-most
// stored floor is groundFloor-basementCount, which maps to row 0.
func (g *Grid) rowIndex(floor int) int {
	return floor - (g.groundFloor - g.basementCount)
}

func (g *Grid) FloorCount() int     { return g.floorCount }
func (g *Grid) ColumnCount() int    { return g.columnCount }
func (g *Grid) GroundFloor() int    { return g.groundFloor }
func (g *Grid) BasementFloors() int { return g.basementCount }

// BottomFloor returns the signed number of the lowest stored floor.
func (g *Grid) BottomFloor() int { return g.groundFloor - g.basementCount }

// TopFloor returns the signed number of the highest stored floor.
func (g *Grid) TopFloor() int { return g.BottomFloor() + g.floorCount - 1 }

func (g *Grid) MaxAboveGround() int { return g.maxAboveGround }
func (g *Grid) MaxBelowGround() int { return g.maxBelowGround }

// aboveGroundCount counts stored floors at or above the ground floor.
func (g *Grid) aboveGroundCount() int { return g.floorCount - g.basementCount }

// AddFloor appends one floor at the top. Returns false when the soft
// above-ground limit is reached.
func (g *Grid) AddFloor() bool {
	if g.aboveGroundCount() >= g.maxAboveGround {
		return false
	}
	g.cells = append(g.cells, newRow(g.columnCount))
	g.floorCount++
	return true
}

// AddFloors adds up to n floors and returns how many were added.
func (g *Grid) AddFloors(n int) int {
	added := 0
	for i := 0; i < n; i++ {
		if !g.AddFloor() {
			break
		}
		added++
	}
	return added
}

// AddBasementFloor prepends one floor below the current bottom. Returns
// false when the soft below-ground limit is reached.
func (g *Grid) AddBasementFloor() bool {
	if g.basementCount >= g.maxBelowGround {
		return false
	}
	g.cells = append(g.cells, nil)
	copy(g.cells[1:], g.cells)
	g.cells[0] = newRow(g.columnCount)
	g.floorCount++
	g.basementCount++
	return true
}

func (g *Grid) AddBasementFloors(n int) int {
	added := 0
	for i := 0; i < n; i++ {
		if !g.AddBasementFloor() {
			break
		}
		added++
	}
	return added
}

// RemoveTopFloor drops the highest floor. It refuses when the floor holds
// any facility or when the grid would fall below one floor.
func (g *Grid) RemoveTopFloor() bool {
	if g.floorCount <= 1 {
		return false
	}
	top := g.floorCount - 1
	if !g.rowEmpty(top) {
		return false
	}
	g.cells = g.cells[:top]
	g.floorCount--
	return true
}

// RemoveBottomFloor drops the lowest basement. Only basements can be
// removed from below; the ground floor is permanent.
func (g *Grid) RemoveBottomFloor() bool {
	if g.floorCount <= 1 || g.basementCount < 1 {
		return false
	}
	if !g.rowEmpty(0) {
		return false
	}
	g.cells = g.cells[1:]
	g.floorCount--
	g.basementCount--
	return true
}

// AddColumn appends one column on the right edge of every floor.
func (g *Grid) AddColumn() bool {
	if g.columnCount >= HardMaxColumns {
		return false
	}
	for i := range g.cells {
		g.cells[i] = append(g.cells[i], Cell{FacilityID: EmptyCell})
	}
	g.columnCount++
	return true
}

func (g *Grid) AddColumns(n int) int {
	added := 0
	for i := 0; i < n; i++ {
		if !g.AddColumn() {
			break
		}
		added++
	}
	return added
}

// RemoveRightColumn drops the rightmost column when it is unoccupied on
// every floor and at least one column would remain.
func (g *Grid) RemoveRightColumn() bool {
	if g.columnCount <= 1 {
		return false
	}
	last := g.columnCount - 1
	for i := range g.cells {
		if g.cells[i][last].Occupied {
			return false
		}
	}
	for i := range g.cells {
		g.cells[i] = g.cells[i][:last]
	}
	g.columnCount--
	return true
}

func (g *Grid) rowEmpty(row int) bool {
	for _, c := range g.cells[row] {
		if c.Occupied {
			return false
		}
	}
	return true
}

// IsValidPosition reports whether (floor, column) addresses a stored cell.
func (g *Grid) IsValidPosition(floor, column int) bool {
	row := g.rowIndex(floor)
	return row >= 0 && row < g.floorCount && column >= 0 && column < g.columnCount
}

// IsSpaceAvailable reports whether a width-wide run starting at
// (floor, column) is in bounds and fully unoccupied.
func (g *Grid) IsSpaceAvailable(floor, column, width int) bool {
	if width < 1 {
		return false
	}
	if !g.IsValidPosition(floor, column) || !g.IsValidPosition(floor, column+width-1) {
		return false
	}
	row := g.rowIndex(floor)
	for c := column; c < column+width; c++ {
		if g.cells[row][c].Occupied {
			return false
		}
	}
	return true
}

// PlaceFacility reserves a width-wide run for the given facility id.
// It never partially places: any invalid or occupied cell fails the whole
// call with the grid untouched.
func (g *Grid) PlaceFacility(floor, column, width, id int) bool {
	if id < 0 || !g.IsSpaceAvailable(floor, column, width) {
		return false
	}
	row := g.rowIndex(floor)
	for c := column; c < column+width; c++ {
		g.cells[row][c].Occupied = true
		g.cells[row][c].FacilityID = id
	}
	return true
}

// RemoveFacility releases every cell held by the facility id. Returns
// false when the id occupies no cell.
func (g *Grid) RemoveFacility(id int) bool {
	if id < 0 {
		return false
	}
	cleared := false
	for row := range g.cells {
		for c := range g.cells[row] {
			if g.cells[row][c].FacilityID == id {
				g.cells[row][c].Occupied = false
				g.cells[row][c].FacilityID = EmptyCell
				cleared = true
			}
		}
	}
	return cleared
}

// RemoveFacilityAt releases whichever facility occupies (floor, column).
func (g *Grid) RemoveFacilityAt(floor, column int) bool {
	id := g.FacilityAt(floor, column)
	if id == EmptyCell {
		return false
	}
	return g.RemoveFacility(id)
}

// BuildFloor marks structural flooring on a run of cells. A negative
// width extends to the right edge. Already-built cells are left alone.
// Returns the number of newly built cells.
func (g *Grid) BuildFloor(floor, startColumn, width int) int {
	if !g.IsValidPosition(floor, startColumn) {
		return 0
	}
	end := startColumn + width
	if width < 0 || end > g.columnCount {
		end = g.columnCount
	}
	row := g.rowIndex(floor)
	built := 0
	for c := startColumn; c < end; c++ {
		if !g.cells[row][c].FloorBuilt {
			g.cells[row][c].FloorBuilt = true
			built++
		}
	}
	return built
}

func (g *Grid) IsOccupied(floor, column int) bool {
	if !g.IsValidPosition(floor, column) {
		return false
	}
	return g.cells[g.rowIndex(floor)][column].Occupied
}

// FacilityAt returns the facility id at (floor, column), or EmptyCell.
func (g *Grid) FacilityAt(floor, column int) int {
	if !g.IsValidPosition(floor, column) {
		return EmptyCell
	}
	return g.cells[g.rowIndex(floor)][column].FacilityID
}

func (g *Grid) IsFloorBuilt(floor, column int) bool {
	if !g.IsValidPosition(floor, column) {
		return false
	}
	return g.cells[g.rowIndex(floor)][column].FloorBuilt
}

// OccupiedCellCount counts every occupied cell in the tower.
func (g *Grid) OccupiedCellCount() int {
	n := 0
	for row := range g.cells {
		for c := range g.cells[row] {
			if g.cells[row][c].Occupied {
				n++
			}
		}
	}
	return n
}

func (g *Grid) BuiltCellCount() int {
	n := 0
	for row := range g.cells {
		for c := range g.cells[row] {
			if g.cells[row][c].FloorBuilt {
				n++
			}
		}
	}
	return n
}

// BuiltFloorRange returns the leftmost and rightmost built column on a
// floor, or (-1, -1) when nothing is built there.
func (g *Grid) BuiltFloorRange(floor int) (start, end int) {
	start, end = -1, -1
	if row := g.rowIndex(floor); row >= 0 && row < g.floorCount {
		for c := range g.cells[row] {
			if g.cells[row][c].FloorBuilt {
				if start == -1 {
					start = c
				}
				end = c
			}
		}
	}
	return start, end
}

// RaiseMaxAboveGround lifts the soft above-ground limit, clamped to the
// hard ceiling. Returns false when already at the ceiling.
func (g *Grid) RaiseMaxAboveGround(n int) bool {
	if n <= 0 || g.maxAboveGround >= HardMaxAboveGround {
		return false
	}
	g.maxAboveGround += n
	if g.maxAboveGround > HardMaxAboveGround {
		g.maxAboveGround = HardMaxAboveGround
	}
	return true
}

// RaiseMaxBelowGround lifts the soft basement limit, clamped to the hard
// ceiling. Returns false when already at the ceiling.
func (g *Grid) RaiseMaxBelowGround(n int) bool {
	if n <= 0 || g.maxBelowGround >= HardMaxBelowGround {
		return false
	}
	g.maxBelowGround += n
	if g.maxBelowGround > HardMaxBelowGround {
		g.maxBelowGround = HardMaxBelowGround
	}
	return true
}
