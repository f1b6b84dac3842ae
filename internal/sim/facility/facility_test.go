package facility_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/facility"
	"skyrise.dev/internal/sim/grid"
)

const floorCost = 50

func newDirectory(floors, columns int) (*facility.Directory, *grid.Grid) {
	g := grid.New(grid.Config{Floors: floors, Columns: columns})
	return facility.New(g, catalogs.Builtin(), floorCost), g
}

func TestCreateFacilityDefaults(t *testing.T) {
	d, g := newDirectory(3, 12)

	f := d.CreateFacility(catalogs.TypeOffice, 1, 2, 0, "")
	require.NotNil(t, f)

	assert.Equal(t, 1, f.ID)
	assert.Equal(t, 3, f.Width, "width 0 takes the type default")
	assert.Equal(t, 6, f.Capacity)
	assert.Equal(t, "Office", f.Name)
	assert.Equal(t, 0, f.Occupancy)
	assert.Equal(t, f.ID, g.FacilityAt(1, 4))
	assert.True(t, g.IsFloorBuilt(1, 2), "footprint flooring is auto-built")
	assert.False(t, g.IsFloorBuilt(1, 5))
}

func TestCreateFacilityRejectsBadPlacement(t *testing.T) {
	d, _ := newDirectory(3, 8)
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 0, 3, 2, ""))

	assert.Nil(t, d.CreateFacility(catalogs.TypeRetail, 5, 0, 2, ""), "floor out of range")
	assert.Nil(t, d.CreateFacility(catalogs.TypeRetail, 0, 7, 2, ""), "run past right edge")
	assert.Nil(t, d.CreateFacility(catalogs.TypeRetail, 0, 2, 2, ""), "collision")
	assert.Equal(t, 1, d.Count())
}

func TestIdsAreNeverReused(t *testing.T) {
	d, _ := newDirectory(2, 10)

	a := d.CreateFacility(catalogs.TypeRetail, 0, 0, 2, "")
	require.NotNil(t, a)
	require.True(t, d.RemoveFacility(a))

	b := d.CreateFacility(catalogs.TypeRetail, 0, 0, 2, "")
	require.NotNil(t, b)
	assert.Greater(t, b.ID, a.ID)

	// The stale handle misses safely.
	assert.Nil(t, d.Get(a.ID))
	assert.False(t, d.RemoveFacility(a))
}

func TestTypeOfUnknownIdDefaultsToOffice(t *testing.T) {
	d, _ := newDirectory(2, 6)
	assert.Equal(t, catalogs.TypeOffice, d.TypeOf(999))

	f := d.CreateFacility(catalogs.TypeHotel, 0, 0, 2, "")
	require.NotNil(t, f)
	assert.Equal(t, catalogs.TypeHotel, d.TypeOf(f.ID))
}

func TestHorizontalAdjacency(t *testing.T) {
	d, _ := newDirectory(2, 16)

	r := d.CreateFacility(catalogs.TypeRestaurant, 0, 0, 4, "")
	require.NotNil(t, r)
	assert.Empty(t, r.Effects, "no neighbors yet")

	th := d.CreateFacility(catalogs.TypeTheater, 0, 4, 6, "")
	require.NotNil(t, th)

	// The earlier facility was recomputed when its neighbor appeared.
	require.Len(t, r.Effects, 1)
	assert.Equal(t, catalogs.EffectRevenue, r.Effects[0].Kind)
	assert.InDelta(t, 0.10, r.Effects[0].Magnitude, 1e-9)
	assert.Equal(t, catalogs.TypeTheater, r.Effects[0].Source)

	// One-directional: the theater gains nothing from the restaurant.
	assert.Empty(t, th.Effects)

	assert.InDelta(t, 0.10, r.EffectSum(catalogs.EffectRevenue), 1e-9)
	assert.InDelta(t, 0, r.EffectSum(catalogs.EffectSatisfaction), 1e-9)
}

func TestRemovalRecomputesFormerNeighbors(t *testing.T) {
	d, _ := newDirectory(2, 16)
	r := d.CreateFacility(catalogs.TypeRestaurant, 0, 0, 4, "")
	th := d.CreateFacility(catalogs.TypeTheater, 0, 4, 6, "")
	require.NotNil(t, r)
	require.NotNil(t, th)
	require.Len(t, r.Effects, 1)

	require.True(t, d.RemoveFacility(th))
	assert.Empty(t, r.Effects, "effect dropped when its source left")
}

func TestVerticalAdjacencySkipsEmptyFloors(t *testing.T) {
	d, _ := newDirectory(5, 8)

	th := d.CreateFacility(catalogs.TypeTheater, 0, 0, 6, "")
	require.NotNil(t, th)

	// Floor 1 left empty: the first occupied cell scanning down from
	// floor 2 is still the theater.
	r := d.CreateFacility(catalogs.TypeRestaurant, 2, 0, 4, "")
	require.NotNil(t, r)

	require.Len(t, r.Effects, 1)
	assert.Equal(t, "dinner and a show", r.Effects[0].Description)
}

func TestWideNeighborCountsOnce(t *testing.T) {
	d, _ := newDirectory(3, 8)

	th := d.CreateFacility(catalogs.TypeTheater, 0, 0, 6, "")
	require.NotNil(t, th)
	r := d.CreateFacility(catalogs.TypeRestaurant, 1, 0, 4, "")
	require.NotNil(t, r)

	// All four spanned columns touch the same theater below.
	require.Len(t, r.Effects, 1)
	assert.InDelta(t, 0.10, r.EffectSum(catalogs.EffectRevenue), 1e-9)
}

func TestSameRuleFromTwoSourcesCountsOnce(t *testing.T) {
	d, _ := newDirectory(2, 10)

	mid := d.CreateFacility(catalogs.TypeRetail, 0, 2, 2, "")
	require.NotNil(t, mid)
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 0, 0, 2, ""))
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 0, 4, 2, ""))

	// Flanked by two shops, the description guard still admits a single
	// shopping-district effect.
	require.Len(t, mid.Effects, 1)
	assert.Equal(t, catalogs.EffectTraffic, mid.Effects[0].Kind)
	assert.InDelta(t, 0.05, mid.EffectSum(catalogs.EffectTraffic), 1e-9)
}

func TestNegativeEffects(t *testing.T) {
	d, _ := newDirectory(2, 8)

	res := d.CreateFacility(catalogs.TypeResidential, 0, 0, 2, "")
	require.NotNil(t, res)
	require.NotNil(t, d.CreateFacility(catalogs.TypeArcade, 0, 2, 3, ""))

	require.Len(t, res.Effects, 1)
	assert.Equal(t, catalogs.EffectSatisfaction, res.Effects[0].Kind)
	assert.InDelta(t, -0.08, res.EffectSum(catalogs.EffectSatisfaction), 1e-9)
}

func TestRemoveFacilityAtAnyCellOfRun(t *testing.T) {
	d, g := newDirectory(2, 10)
	f := d.CreateFacility(catalogs.TypeConferenceHall, 0, 2, 0, "")
	require.NotNil(t, f)
	require.Equal(t, 5, f.Width)

	assert.True(t, d.RemoveFacilityAt(0, 6))
	assert.Equal(t, 0, d.Count())
	assert.Equal(t, 0, g.OccupiedCellCount())
	assert.False(t, d.RemoveFacilityAt(0, 6))
}

func TestFloorBuildCostCountsOnlyUnbuiltCells(t *testing.T) {
	d, g := newDirectory(3, 10)

	assert.Equal(t, int64(4*floorCost), d.CalculateFloorBuildCost(1, 2, 4))

	g.BuildFloor(1, 2, 2)
	assert.Equal(t, int64(2*floorCost), d.CalculateFloorBuildCost(1, 2, 4))

	assert.Equal(t, 2, d.BuildFloorsForFacility(1, 2, 4))
	assert.Equal(t, int64(0), d.CalculateFloorBuildCost(1, 2, 4))
}

func TestOnFloorSortsLeftToRight(t *testing.T) {
	d, _ := newDirectory(2, 20)
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 0, 8, 2, ""))
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 0, 0, 2, ""))
	require.NotNil(t, d.CreateFacility(catalogs.TypeRetail, 1, 4, 2, ""))

	got := d.OnFloor(0)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Column)
	assert.Equal(t, 8, got[1].Column)
}

func TestRestoreKeepsIdsAndRebuildsEffects(t *testing.T) {
	d, _ := newDirectory(3, 12)
	r := d.CreateFacility(catalogs.TypeRestaurant, 0, 0, 4, "")
	th := d.CreateFacility(catalogs.TypeTheater, 0, 4, 6, "")
	require.NotNil(t, r)
	require.NotNil(t, th)

	rCopy, thCopy := *r, *th
	d2, _ := newDirectory(3, 12)
	require.NotNil(t, d2.Restore(rCopy))
	require.NotNil(t, d2.Restore(thCopy))
	d2.RecomputeAll()

	got := d2.Get(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)
	require.Len(t, got.Effects, 1)
	assert.Equal(t, "dinner and a show", got.Effects[0].Description)

	// The id counter moved past the restored ids.
	next := d2.CreateFacility(catalogs.TypeRetail, 2, 0, 2, "")
	require.NotNil(t, next)
	assert.Greater(t, next.ID, th.ID)
}
