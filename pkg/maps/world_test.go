package maps

import (
	"slices"
	"testing"

	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
)

func TestCenterOfCell(t *testing.T) {
	rect := createRectMap(t, 10, 10)
	if got := rect.CenterOfCell(geom.CPos{X: 2, Y: 3}); got != (geom.WPos{X: 2560, Y: 3584}) {
		t.Errorf("rectangular center = %v", got)
	}

	iso := createIsoMap(t, 4, 10, 20)
	c := geom.MPos{U: 3, V: 6}.ToCPos(iso.Grid.Type)
	flat := iso.CenterOfCell(c)
	if flat.X != 724*(c.X-c.Y+1) || flat.Y != 724*(c.X+c.Y+1) || flat.Z != 0 {
		t.Errorf("isometric center = %v", flat)
	}

	iso.Height.Set(c, 3)
	if got := iso.CenterOfCell(c); got.Z != 3*724 {
		t.Errorf("raised center z = %d, want %d", got.Z, 3*724)
	}
}

func TestCellContainingInvertsCenterOfCell(t *testing.T) {
	for _, m := range []*Map{createRectMap(t, 10, 10), createIsoMap(t, 0, 10, 20)} {
		for c := range m.AllCells.All() {
			if got := m.CellContaining(m.CenterOfCell(c)); got != c {
				t.Fatalf("%v: CellContaining(CenterOfCell(%v)) = %v", m.Grid.Type, c, got)
			}
		}
	}
}

func TestProjectedCellCovering(t *testing.T) {
	m := createIsoMap(t, 4, 10, 20)
	uv := geom.MPos{U: 4, V: 10}
	c := uv.ToCPos(m.Grid.Type)
	m.Height.Set(c, 2)

	// A raised cell is drawn two rows up.
	got := m.ProjectedCellCovering(m.CenterOfCell(c))
	if got != (geom.PPos{U: 4, V: 8}) {
		t.Errorf("ProjectedCellCovering = %v, want 4,8", got)
	}
	if !slices.Contains(m.ProjectedCellsCovering(uv), got) {
		t.Errorf("ProjectedCellCovering = %v, not among the cell's projections %v", got, m.ProjectedCellsCovering(uv))
	}
}

func TestSubCellFollowsRamp(t *testing.T) {
	m := createIsoMap(t, 4, 10, 20)
	c := geom.MPos{U: 4, V: 10}.ToCPos(m.Grid.Type)

	center := m.CenterOfSubCell(c, grid.SubCellFullCell)
	if center != m.CenterOfCell(c) {
		t.Errorf("full cell = %v, want the cell center", center)
	}
	if got := m.CenterOfSubCell(c, grid.SubCell(99)); got != m.CenterOfCell(c) {
		t.Errorf("invalid sub-cell = %v, want the cell center", got)
	}

	m.Tiles.Set(c, TerrainTile{Type: 10})
	ramp := m.Grid.Ramp(m.Ramp.At(c))
	offset := m.Grid.SubCellOffsets[1]
	got := m.CenterOfSubCell(c, grid.SubCellFirst)
	want := m.CenterOfCell(c).Z + offset.Z + ramp.HeightOffset(offset.X, offset.Y) - ramp.CenterHeightOffset
	if got.Z != want {
		t.Errorf("sub-cell z = %d, want %d", got.Z, want)
	}

	if o := m.TerrainOrientation(c); o != ramp.Orientation {
		t.Errorf("orientation = %v, want %v", o, ramp.Orientation)
	}
	if o := m.TerrainOrientation(geom.CPos{X: -50, Y: 0}); o != geom.WRotNone {
		t.Errorf("orientation outside the map = %v", o)
	}
}

func TestDistanceAboveTerrain(t *testing.T) {
	rect := createRectMap(t, 10, 10)
	if d := rect.DistanceAboveTerrain(geom.WPos{X: 100, Y: 100, Z: 300}); d.Length != 300 {
		t.Errorf("rectangular distance = %d", d.Length)
	}

	iso := createIsoMap(t, 4, 10, 20)
	c := geom.MPos{U: 4, V: 10}.ToCPos(iso.Grid.Type)
	iso.Height.Set(c, 2)
	pos := iso.CenterOfCell(c).Add(geom.WVec{Z: 512})
	if d := iso.DistanceAboveTerrain(pos); d.Length != 512 {
		t.Errorf("isometric distance = %d, want 512", d.Length)
	}
}

func TestOffsetAndFacing(t *testing.T) {
	rect := createRectMap(t, 10, 10)
	if v := rect.Offset(geom.CVec{X: 1, Y: -2}, 5); v != (geom.WVec{X: 1024, Y: -2048}) {
		t.Errorf("rectangular offset = %v", v)
	}

	iso := createIsoMap(t, 4, 10, 20)
	if v := iso.Offset(geom.CVec{X: 1, Y: 0}, 1); v != (geom.WVec{X: 724, Y: 724, Z: 724}) {
		t.Errorf("isometric offset = %v", v)
	}

	fallback := geom.NewWAngle(123)
	a := geom.CPos{X: 3, Y: 3}
	if f := rect.FacingBetween(a, a, fallback); f != fallback {
		t.Errorf("facing to self = %v, want fallback", f)
	}
	east := rect.FacingBetween(a, geom.CPos{X: 6, Y: 3}, fallback)
	if want := rect.CenterOfCell(geom.CPos{X: 6, Y: 3}).Sub(rect.CenterOfCell(a)).Yaw(); east != want {
		t.Errorf("facing = %v, want %v", east, want)
	}
}
