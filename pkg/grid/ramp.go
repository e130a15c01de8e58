package grid

import "tilemap/pkg/geom"

// RampCornerHeight is the height class of one ramp corner.
type RampCornerHeight int

const (
	Low  RampCornerHeight = 0
	Half RampCornerHeight = 1
	Full RampCornerHeight = 2
)

// RampSplit selects how a ramp is triangulated.
type RampSplit int

const (
	SplitFlat RampSplit = iota // one polygon over all four corners
	SplitX                     // triangles {tl, tr, bl} and {tr, br, bl}
	SplitY                     // triangles {tl, tr, br} and {tl, br, bl}
)

// CellRamp describes the surface of a sloped cell.
type CellRamp struct {
	CenterHeightOffset int
	Corners            []geom.WVec
	Polygons           [][]geom.WVec
	Orientation        geom.WRot
}

// NewCellRamp builds a ramp from its corner height classes, in tl, tr, br, bl order.
func NewCellRamp(gridType geom.GridType, orientation geom.WRot, tl, tr, br, bl RampCornerHeight, split RampSplit) CellRamp {
	r := CellRamp{Orientation: orientation}
	if gridType == geom.RectangularIsometric {
		r.Corners = []geom.WVec{
			{X: 0, Y: -724, Z: 724 * int(tl)},
			{X: 724, Y: 0, Z: 724 * int(tr)},
			{X: 0, Y: 724, Z: 724 * int(br)},
			{X: -724, Y: 0, Z: 724 * int(bl)},
		}
	} else {
		r.Corners = []geom.WVec{
			{X: -512, Y: -512, Z: 512 * int(tl)},
			{X: 512, Y: -512, Z: 512 * int(tr)},
			{X: 512, Y: 512, Z: 512 * int(br)},
			{X: -512, Y: 512, Z: 512 * int(bl)},
		}
	}

	c := r.Corners
	switch split {
	case SplitX:
		r.Polygons = [][]geom.WVec{{c[0], c[1], c[3]}, {c[1], c[2], c[3]}}
	case SplitY:
		r.Polygons = [][]geom.WVec{{c[0], c[1], c[2]}, {c[0], c[2], c[3]}}
	default:
		r.Polygons = [][]geom.WVec{c}
	}

	r.CenterHeightOffset = r.HeightOffset(0, 0)
	return r
}

// HeightOffset interpolates the surface height at (dx, dy) from the cell center.
// Unsplit ramps use their first three corners as the triangle.
func (r CellRamp) HeightOffset(dx, dy int) int {
	var p []geom.WVec
	var u, v int
	for _, p = range r.Polygons {
		det := (p[1].Y-p[2].Y)*(p[0].X-p[2].X) - (p[1].X-p[2].X)*(p[0].Y-p[2].Y)
		u = ((p[1].Y-p[2].Y)*(dx-p[2].X) - (p[1].X-p[2].X)*(dy-p[2].Y)) * 1024 / det
		v = ((p[2].Y-p[0].Y)*(dx-p[2].X) - (p[2].X-p[0].X)*(dy-p[2].Y)) * 1024 / det

		if u >= 0 && u <= 1024 && v >= 0 && v <= 1024 {
			break
		}
	}

	w := 1024 - u - v
	return (u*p[0].Z + v*p[1].Z + w*p[2].Z) / 1024
}

// standardRamps is the ramp table shared by every grid, indexed by ramp id.
func standardRamps(t geom.GridType) []CellRamp {
	rot := geom.NewWRot
	return []CellRamp{
		NewCellRamp(t, geom.WRotNone, Low, Low, Low, Low, SplitFlat),

		// Slopes
		NewCellRamp(t, rot(0, -150, -128), Low, Half, Half, Low, SplitFlat),
		NewCellRamp(t, rot(-150, 0, 0), Low, Low, Half, Half, SplitFlat),
		NewCellRamp(t, rot(0, 150, 128), Half, Low, Low, Half, SplitFlat),
		NewCellRamp(t, rot(150, 0, 0), Half, Half, Low, Low, SplitFlat),

		// Inner corners
		NewCellRamp(t, rot(-74, -74, -128), Low, Half, Low, Low, SplitX),
		NewCellRamp(t, rot(-74, 74, 0), Low, Low, Half, Low, SplitY),
		NewCellRamp(t, rot(74, 74, 128), Low, Low, Low, Half, SplitX),
		NewCellRamp(t, rot(74, -74, 0), Half, Low, Low, Low, SplitY),

		// Outer corners
		NewCellRamp(t, rot(-74, -74, -128), Half, Half, Half, Low, SplitX),
		NewCellRamp(t, rot(-74, 74, 0), Low, Half, Half, Half, SplitY),
		NewCellRamp(t, rot(74, 74, 128), Half, Low, Half, Half, SplitX),
		NewCellRamp(t, rot(74, -74, 0), Half, Half, Low, Half, SplitY),

		// Steep diagonal corners
		NewCellRamp(t, rot(-100, -100, -128), Low, Half, Full, Half, SplitY),
		NewCellRamp(t, rot(-100, 100, 0), Half, Low, Half, Full, SplitX),
		NewCellRamp(t, rot(100, 100, 128), Full, Half, Low, Half, SplitY),
		NewCellRamp(t, rot(100, -100, 0), Half, Full, Half, Low, SplitX),

		// Valleys
		NewCellRamp(t, geom.WRotNone, Low, Half, Low, Half, SplitY),
		NewCellRamp(t, geom.WRotNone, Half, Low, Half, Low, SplitX),
	}
}
