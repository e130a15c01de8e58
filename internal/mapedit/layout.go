// Package mapedit holds the editing state behind the map viewer.
package mapedit

import (
	"image"

	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

// View maps projected cells to screen pixels. Isometric rows are half a
// cell tall and odd rows are shifted right by half a cell.
type View struct {
	Grid     geom.GridType
	CellSize int

	// Screen position of projected cell (0,0)
	OffsetX, OffsetY int
}

// FitView returns a view that fits bounds into a width x height area with
// margin pixels on every side. The cell size never drops below 2.
func FitView(t geom.GridType, bounds geom.Rect, width, height, margin int) View {
	v := View{Grid: t}
	cols, rows := bounds.Width, bounds.Height
	if t == geom.RectangularIsometric {
		// Half-height rows plus the half-cell shift of odd rows.
		cols = 2*bounds.Width + 1
		rows = bounds.Height
		v.CellSize = 2 * min((width-2*margin)/max(cols, 1), (height-2*margin)/max(rows, 1))
	} else {
		v.CellSize = min((width-2*margin)/max(cols, 1), (height-2*margin)/max(rows, 1))
	}
	v.CellSize = max(v.CellSize, 2)

	v.OffsetX = margin - bounds.X*v.CellSize
	v.OffsetY = margin - bounds.Y*v.rowHeight()
	return v
}

func (v View) rowHeight() int {
	if v.Grid == geom.RectangularIsometric {
		return max(v.CellSize/2, 1)
	}
	return v.CellSize
}

func (v View) rowShift(row int) int {
	if v.Grid == geom.RectangularIsometric && row&1 == 1 {
		return v.CellSize / 2
	}
	return 0
}

// CellRect returns the screen rectangle of a projected cell.
func (v View) CellRect(p geom.PPos) image.Rectangle {
	x := v.OffsetX + p.U*v.CellSize + v.rowShift(p.V)
	y := v.OffsetY + p.V*v.rowHeight()
	return image.Rect(x, y, x+v.CellSize, y+v.rowHeight())
}

// ProjectedAt returns the projected cell under a screen position.
func (v View) ProjectedAt(x, y int) geom.PPos {
	row := floorDiv(y-v.OffsetY, v.rowHeight())
	col := floorDiv(x-v.OffsetX-v.rowShift(row), v.CellSize)
	return geom.PPos{U: col, V: row}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// TopCell returns the cell drawn at a projected position: of the cells that
// project onto it, the one nearest the bottom of the map.
func TopCell(m *maps.Map, p geom.PPos) (geom.CPos, bool) {
	cells := m.Unproject(p)
	if len(cells) == 0 {
		return geom.CPos{}, false
	}
	top := cells[0]
	for _, uv := range cells[1:] {
		if uv.V > top.V {
			top = uv
		}
	}
	return top.ToCPos(m.Grid.Type), true
}

// StepHeight moves h by delta, saturating at 0 and maxHeight.
func StepHeight(h byte, delta int, maxHeight byte) byte {
	return byte(min(max(int(h)+delta, 0), int(maxHeight)))
}
