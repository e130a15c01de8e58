package maps

import (
	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
)

// CenterOfCell returns the world position of the cell center, on the terrain surface.
func (m *Map) CenterOfCell(c geom.CPos) geom.WPos {
	if m.Grid.Type == geom.Rectangular {
		return geom.WPos{X: 1024*c.X + 512, Y: 1024*c.Y + 512}
	}

	// Isometric cells are 1448 units across the diagonal
	z := 0
	if h, ok := m.Height.TryGet(c); ok {
		z = 724*int(h) + m.Grid.Ramp(m.Ramp.At(c)).CenterHeightOffset
	}
	return geom.WPos{X: 724 * (c.X - c.Y + 1), Y: 724 * (c.X + c.Y + 1), Z: z}
}

// CenterOfSubCell returns the world position of a sub-cell, following the cell's ramp.
func (m *Map) CenterOfSubCell(c geom.CPos, sub grid.SubCell) geom.WPos {
	center := m.CenterOfCell(c)
	index := int(sub)
	if index < 0 || index >= len(m.Grid.SubCellOffsets) {
		return center
	}

	offset := m.Grid.SubCellOffsets[index]
	if ramp, ok := m.Ramp.TryGet(c); ok && ramp != 0 {
		r := m.Grid.Ramp(ramp)
		offset.Z += r.HeightOffset(offset.X, offset.Y) - r.CenterHeightOffset
	}
	return center.Add(offset)
}

// DistanceAboveTerrain returns the height of pos above the terrain surface under it.
func (m *Map) DistanceAboveTerrain(pos geom.WPos) geom.WDist {
	if m.Grid.Type == geom.Rectangular {
		return geom.WDist{Length: pos.Z}
	}

	c := m.CellContaining(pos)
	offset := pos.Sub(m.CenterOfCell(c))
	if ramp, ok := m.Ramp.TryGet(c); ok && ramp != 0 {
		r := m.Grid.Ramp(ramp)
		return geom.WDist{Length: offset.Z + r.CenterHeightOffset - r.HeightOffset(offset.X, offset.Y)}
	}
	return geom.WDist{Length: offset.Z}
}

// TerrainOrientation returns the slope orientation of a cell.
func (m *Map) TerrainOrientation(c geom.CPos) geom.WRot {
	if ramp, ok := m.Ramp.TryGet(c); ok {
		return m.Grid.Ramp(ramp).Orientation
	}
	return geom.WRotNone
}

// Offset converts a cell delta and height delta to a world vector.
func (m *Map) Offset(delta geom.CVec, dz int) geom.WVec {
	if m.Grid.Type == geom.Rectangular {
		return geom.WVec{X: 1024 * delta.X, Y: 1024 * delta.Y}
	}
	return geom.WVec{X: 724 * (delta.X - delta.Y), Y: 724 * (delta.X + delta.Y), Z: 724 * dz}
}

// CellContaining returns the cell whose footprint contains pos, ignoring height.
func (m *Map) CellContaining(pos geom.WPos) geom.CPos {
	if m.Grid.Type == geom.Rectangular {
		return geom.CPos{X: pos.X / 1024, Y: pos.Y / 1024}
	}

	// Rotate 45 degrees so that cells are axis aligned, then divide by the diagonal.
	u := (pos.Y + pos.X - 724) / 1448
	bias := -724
	if pos.Y > pos.X {
		bias = 724
	}
	v := (pos.Y - pos.X + bias) / 1448
	return geom.CPos{X: u, Y: v}
}

// ProjectedCellCovering returns the projected cell drawn at the screen position of pos.
func (m *Map) ProjectedCellCovering(pos geom.WPos) geom.PPos {
	projected := pos.SubVec(geom.WVec{Y: pos.Z, Z: pos.Z})
	return m.CellContaining(projected).ToMPos(m.Grid.Type).ToPPos()
}

// FacingBetween returns the yaw from one cell center to another, or fallback when they coincide.
func (m *Map) FacingBetween(c, towards geom.CPos, fallback geom.WAngle) geom.WAngle {
	delta := m.CenterOfCell(towards).Sub(m.CenterOfCell(c))
	if delta.HorizontalLengthSquared() == 0 {
		return fallback
	}
	return delta.Yaw()
}
