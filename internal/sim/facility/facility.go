package facility

import (
	"sort"

	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/grid"
)

// Effect is one adjacency modifier applied to a facility because of a
// neighboring facility type.
type Effect struct {
	Kind        catalogs.EffectKind
	Magnitude   float64
	Source      catalogs.TypeID
	Description string
}

// Facility is one placed unit occupying a width-wide run of cells on a
// single floor. Effects is derived state, rebuilt whenever this facility
// or a direct neighbor changes.
type Facility struct {
	ID        int
	Type      catalogs.TypeID
	Name      string
	Floor     int
	Column    int // leftmost
	Width     int
	Capacity  int
	Occupancy int
	Effects   []Effect
}

// EffectSum totals the magnitudes of one effect kind.
func (f *Facility) EffectSum(kind catalogs.EffectKind) float64 {
	sum := 0.0
	for _, e := range f.Effects {
		if e.Kind == kind {
			sum += e.Magnitude
		}
	}
	return sum
}

// Directory owns every facility record and keeps the grid's occupancy in
// step with them. Ids are monotonic and never reused, so a stale id held
// by a caller misses safely after removal.
type Directory struct {
	grid *grid.Grid
	cats *catalogs.Catalogs

	byID             map[int]*Facility
	nextID           int
	floorCostPerCell int64
}

func New(g *grid.Grid, cats *catalogs.Catalogs, floorCostPerCell int64) *Directory {
	return &Directory{
		grid:             g,
		cats:             cats,
		byID:             make(map[int]*Facility),
		nextID:           1,
		floorCostPerCell: floorCostPerCell,
	}
}

// CreateFacility validates and places a new facility. Zero width and an
// empty name fall back to the type defaults. Unbuilt floor cells under
// the footprint are constructed as a side effect; pricing them is the
// caller's job (see CalculateFloorBuildCost). Returns nil when the
// position is invalid or any target cell is occupied.
func (d *Directory) CreateFacility(typ catalogs.TypeID, floor, column, width int, name string) *Facility {
	def := d.cats.Facilities.Def(typ)
	if width <= 0 {
		width = def.Width
	}
	if name == "" {
		name = def.Name
	}
	if !d.grid.IsSpaceAvailable(floor, column, width) {
		return nil
	}

	d.grid.BuildFloor(floor, column, width)

	id := d.nextID
	if !d.grid.PlaceFacility(floor, column, width, id) {
		return nil
	}
	d.nextID++

	f := &Facility{
		ID:       id,
		Type:     typ,
		Name:     name,
		Floor:    floor,
		Column:   column,
		Width:    width,
		Capacity: def.Capacity,
	}
	d.byID[id] = f

	d.recomputeEffects(f)
	for _, n := range d.neighborsOf(f) {
		d.recomputeEffects(n)
	}
	return f
}

// RemoveFacility releases the facility's cells and destroys its record,
// then rebuilds the effects of its former neighbors.
func (d *Directory) RemoveFacility(f *Facility) bool {
	if f == nil || d.byID[f.ID] != f {
		return false
	}
	neighbors := d.neighborsOf(f)
	d.grid.RemoveFacility(f.ID)
	delete(d.byID, f.ID)
	for _, n := range neighbors {
		d.recomputeEffects(n)
	}
	return true
}

// RemoveFacilityAt removes whichever facility occupies (floor, column).
// Orphaned grid cells with no backing record are released too.
func (d *Directory) RemoveFacilityAt(floor, column int) bool {
	id := d.grid.FacilityAt(floor, column)
	if id == grid.EmptyCell {
		return false
	}
	if f := d.byID[id]; f != nil {
		return d.RemoveFacility(f)
	}
	return d.grid.RemoveFacility(id)
}

// Get returns the facility with the given id, or nil.
func (d *Directory) Get(id int) *Facility {
	return d.byID[id]
}

// TypeOf resolves a facility id to its type. Unknown ids default to the
// office type rather than failing; grid cells may reference ids the
// directory cannot resolve after partial state loss.
func (d *Directory) TypeOf(id int) catalogs.TypeID {
	if f := d.byID[id]; f != nil {
		return f.Type
	}
	return catalogs.TypeOffice
}

// All returns every facility sorted by id.
func (d *Directory) All() []*Facility {
	out := make([]*Facility, 0, len(d.byID))
	for _, f := range d.byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OnFloor returns the facilities on one floor sorted left to right.
func (d *Directory) OnFloor(floor int) []*Facility {
	var out []*Facility
	for _, f := range d.byID {
		if f.Floor == floor {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

func (d *Directory) Count() int { return len(d.byID) }

// CalculateFloorBuildCost prices the unbuilt cells under a footprint.
// Pure: no grid state changes.
func (d *Directory) CalculateFloorBuildCost(floor, column, width int) int64 {
	var cost int64
	for c := column; c < column+width; c++ {
		if d.grid.IsValidPosition(floor, c) && !d.grid.IsFloorBuilt(floor, c) {
			cost += d.floorCostPerCell
		}
	}
	return cost
}

// BuildFloorsForFacility marks the footprint's flooring built and returns
// the number of newly built cells.
func (d *Directory) BuildFloorsForFacility(floor, column, width int) int {
	return d.grid.BuildFloor(floor, column, width)
}

// Restore re-registers a facility from persisted state keeping its id.
// Effects are not rebuilt here; run RecomputeAll once after the last
// restore.
func (d *Directory) Restore(rec Facility) *Facility {
	if rec.ID < 1 || d.byID[rec.ID] != nil {
		return nil
	}
	if !d.grid.IsSpaceAvailable(rec.Floor, rec.Column, rec.Width) {
		return nil
	}
	d.grid.BuildFloor(rec.Floor, rec.Column, rec.Width)
	if !d.grid.PlaceFacility(rec.Floor, rec.Column, rec.Width, rec.ID) {
		return nil
	}
	f := rec
	f.Effects = nil
	d.byID[f.ID] = &f
	if f.ID >= d.nextID {
		d.nextID = f.ID + 1
	}
	return &f
}

// RecomputeAll rebuilds every facility's effect list.
func (d *Directory) RecomputeAll() {
	for _, f := range d.All() {
		d.recomputeEffects(f)
	}
}

// NextID exposes the id counter for snapshots.
func (d *Directory) NextID() int { return d.nextID }

// SetNextID restores the id counter from a snapshot. It never lowers the
// counter below an id already in use.
func (d *Directory) SetNextID(n int) {
	if n > d.nextID {
		d.nextID = n
	}
}

// recomputeEffects rebuilds f.Effects from the rule table. Neighbor order
// is fixed (left, right, then per spanned column above then below) so the
// effect list is deterministic. The description guard keeps a wide
// neighbor touching several columns from counting more than once.
func (d *Directory) recomputeEffects(f *Facility) {
	f.Effects = nil
	seen := make(map[string]bool)

	d.applyRule(f, d.facilityAtCell(f.Floor, f.Column-1), seen)
	d.applyRule(f, d.facilityAtCell(f.Floor, f.Column+f.Width), seen)
	for c := f.Column; c < f.Column+f.Width; c++ {
		d.applyRule(f, d.firstOccupiedAbove(f.Floor, c), seen)
		d.applyRule(f, d.firstOccupiedBelow(f.Floor, c), seen)
	}
}

func (d *Directory) applyRule(f, n *Facility, seen map[string]bool) {
	if n == nil || n.ID == f.ID {
		return
	}
	rule, ok := d.cats.Adjacency.Rule(f.Type, n.Type)
	if !ok || seen[rule.Description] {
		return
	}
	seen[rule.Description] = true
	f.Effects = append(f.Effects, Effect{
		Kind:        rule.Kind,
		Magnitude:   rule.Magnitude,
		Source:      n.Type,
		Description: rule.Description,
	})
}

// neighborsOf collects the distinct facilities directly adjacent to f:
// left and right on the same floor, and the first occupied cell above and
// below each spanned column.
func (d *Directory) neighborsOf(f *Facility) []*Facility {
	seen := make(map[int]bool)
	var out []*Facility
	add := func(n *Facility) {
		if n == nil || n.ID == f.ID || seen[n.ID] {
			return
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	add(d.facilityAtCell(f.Floor, f.Column-1))
	add(d.facilityAtCell(f.Floor, f.Column+f.Width))
	for c := f.Column; c < f.Column+f.Width; c++ {
		add(d.firstOccupiedAbove(f.Floor, c))
		add(d.firstOccupiedBelow(f.Floor, c))
	}
	return out
}

func (d *Directory) facilityAtCell(floor, column int) *Facility {
	id := d.grid.FacilityAt(floor, column)
	if id == grid.EmptyCell {
		return nil
	}
	return d.byID[id]
}

func (d *Directory) firstOccupiedAbove(floor, column int) *Facility {
	for fl := floor + 1; fl <= d.grid.TopFloor(); fl++ {
		if d.grid.IsOccupied(fl, column) {
			return d.facilityAtCell(fl, column)
		}
	}
	return nil
}

func (d *Directory) firstOccupiedBelow(floor, column int) *Facility {
	for fl := floor - 1; fl >= d.grid.BottomFloor(); fl-- {
		if d.grid.IsOccupied(fl, column) {
			return d.facilityAtCell(fl, column)
		}
	}
	return nil
}
