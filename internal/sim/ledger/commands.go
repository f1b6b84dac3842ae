package ledger

import (
	"fmt"

	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/facility"
	"skyrise.dev/internal/sim/grid"
)

// PlaceCommand builds one facility. The price (build cost plus flooring
// for any unbuilt cells under the footprint) is fixed when the command
// is constructed, before any money moves.
type PlaceCommand struct {
	dir    *facility.Directory
	typ    catalogs.TypeID
	floor  int
	column int
	width  int
	name   string

	cost      int64
	desc      string
	createdID int
}

func NewPlaceCommand(dir *facility.Directory, cats *catalogs.Catalogs, typ catalogs.TypeID, floor, column, width int, name string) *PlaceCommand {
	def := cats.Facilities.Def(typ)
	if width <= 0 {
		width = def.Width
	}
	return &PlaceCommand{
		dir:    dir,
		typ:    typ,
		floor:  floor,
		column: column,
		width:  width,
		name:   name,
		cost:   def.BuildCost + dir.CalculateFloorBuildCost(floor, column, width),
		desc:   fmt.Sprintf("Place %s at floor %d", def.Name, floor),
	}
}

func (c *PlaceCommand) Execute() bool {
	f := c.dir.CreateFacility(c.typ, c.floor, c.column, c.width, c.name)
	if f == nil {
		return false
	}
	c.createdID = f.ID
	return true
}

// Undo removes by position rather than by the recorded id: an undone
// demolition may have rebuilt this facility under a fresh id in the
// meantime, and position is what the command owns.
func (c *PlaceCommand) Undo() bool {
	return c.dir.RemoveFacilityAt(c.floor, c.column)
}

func (c *PlaceCommand) Description() string { return c.desc }
func (c *PlaceCommand) CostChange() int64   { return -c.cost }

// CreatedID returns the id of the facility the last Execute produced.
func (c *PlaceCommand) CreatedID() int { return c.createdID }

// FacilityState is the immutable capture a demolition keeps so its undo
// can rebuild the facility exactly: placement geometry, capacity and the
// replacement cost in force at demolition time. Occupancy is not
// captured; a rebuilt facility starts empty.
type FacilityState struct {
	Type     catalogs.TypeID
	Name     string
	Floor    int
	Column   int
	Width    int
	Capacity int
	Cost     int64
}

// DemolishCommand removes the facility under a clicked cell and refunds
// a fraction of its replacement cost. The constructor resolves the
// facility's true footprint by scanning left and right from the clicked
// cell, since the caller only supplies one cell.
type DemolishCommand struct {
	dir *facility.Directory

	state  FacilityState
	refund int64
	desc   string
}

// NewDemolishCommand snapshots the facility at (floor, column). Returns
// nil when the cell is empty or out of bounds.
func NewDemolishCommand(dir *facility.Directory, g *grid.Grid, cats *catalogs.Catalogs, floor, column int, recoveryPct float64) *DemolishCommand {
	id := g.FacilityAt(floor, column)
	if id == grid.EmptyCell {
		return nil
	}

	start := column
	for g.FacilityAt(floor, start-1) == id {
		start--
	}
	end := column
	for g.FacilityAt(floor, end+1) == id {
		end++
	}
	width := end - start + 1

	typ := dir.TypeOf(id)
	def := cats.Facilities.Def(typ)
	state := FacilityState{
		Type:     typ,
		Name:     def.Name,
		Floor:    floor,
		Column:   start,
		Width:    width,
		Capacity: def.Capacity,
		Cost:     cats.Facilities.ReplacementCosts()[typ],
	}
	if f := dir.Get(id); f != nil {
		state.Name = f.Name
		state.Capacity = f.Capacity
	}

	if recoveryPct < 0 {
		recoveryPct = 0
	} else if recoveryPct > 1 {
		recoveryPct = 1
	}
	return &DemolishCommand{
		dir:    dir,
		state:  state,
		refund: int64(float64(state.Cost) * recoveryPct),
		desc:   fmt.Sprintf("Demolish %s at floor %d", state.Name, floor),
	}
}

func (c *DemolishCommand) Execute() bool {
	return c.dir.RemoveFacilityAt(c.state.Floor, c.state.Column)
}

// Undo rebuilds the demolished facility from the snapshot. Only geometry
// and capacity come back; occupancy drifted state does not.
func (c *DemolishCommand) Undo() bool {
	f := c.dir.CreateFacility(c.state.Type, c.state.Floor, c.state.Column, c.state.Width, c.state.Name)
	if f == nil {
		return false
	}
	f.Capacity = c.state.Capacity
	return true
}

func (c *DemolishCommand) Description() string { return c.desc }
func (c *DemolishCommand) CostChange() int64   { return c.refund }

// State exposes the captured footprint for audit logging.
func (c *DemolishCommand) State() FacilityState { return c.state }
