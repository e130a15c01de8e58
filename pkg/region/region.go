package region

import (
	"fmt"
	"iter"

	"tilemap/pkg/geom"
)

// MapCoordsRegion is an inclusive rectangle of map coordinates.
type MapCoordsRegion struct {
	TopLeft, BottomRight geom.MPos
}

// NewMapCoordsRegion creates a region from its inclusive corners.
func NewMapCoordsRegion(topLeft, bottomRight geom.MPos) MapCoordsRegion {
	return MapCoordsRegion{TopLeft: topLeft, BottomRight: bottomRight}
}

// Contains reports whether uv lies inside the region.
func (r MapCoordsRegion) Contains(uv geom.MPos) bool {
	return uv.U >= r.TopLeft.U && uv.U <= r.BottomRight.U &&
		uv.V >= r.TopLeft.V && uv.V <= r.BottomRight.V
}

// Iterator returns a restartable cursor over the region.
func (r MapCoordsRegion) Iterator() *MapCoordsIterator {
	return &MapCoordsIterator{c: newCursor(r.TopLeft.U, r.TopLeft.V, r.BottomRight.U, r.BottomRight.V)}
}

// All yields every coordinate in row-major order.
func (r MapCoordsRegion) All() iter.Seq[geom.MPos] {
	return func(yield func(geom.MPos) bool) {
		it := r.Iterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

func (r MapCoordsRegion) String() string {
	return fmt.Sprintf("%v -> %v", r.TopLeft, r.BottomRight)
}

// MapCoordsIterator walks a MapCoordsRegion.
type MapCoordsIterator struct {
	c cursor
}

// Next advances to the next coordinate.
func (it *MapCoordsIterator) Next() bool { return it.c.next() }

// Value returns the current coordinate.
func (it *MapCoordsIterator) Value() geom.MPos { return geom.MPos{U: it.c.u, V: it.c.v} }

// Reset rewinds the iterator to before the first element.
func (it *MapCoordsIterator) Reset() { it.c.reset() }

// CellRegion is the set of cells whose map coordinates fall between two corner cells.
// For isometric grids the region is rectangular in map space, not in cell space.
type CellRegion struct {
	TopLeft, BottomRight geom.CPos

	gridType       geom.GridType
	mapTopLeft     geom.MPos
	mapBottomRight geom.MPos
}

// NewCellRegion creates a region from its inclusive corner cells.
func NewCellRegion(gridType geom.GridType, topLeft, bottomRight geom.CPos) CellRegion {
	return CellRegion{
		TopLeft:        topLeft,
		BottomRight:    bottomRight,
		gridType:       gridType,
		mapTopLeft:     topLeft.ToMPos(gridType),
		mapBottomRight: bottomRight.ToMPos(gridType),
	}
}

// Expand grows a rectangular region by distance cells on every side.
func Expand(r CellRegion, distance int) (CellRegion, error) {
	if r.gridType != geom.Rectangular {
		return r, fmt.Errorf("cannot expand a %v cell region", r.gridType)
	}
	offset := geom.CVec{X: distance, Y: distance}
	return NewCellRegion(r.gridType, r.TopLeft.Add(geom.CVec{X: -offset.X, Y: -offset.Y}), r.BottomRight.Add(offset)), nil
}

// GridType returns the grid shape used to convert between cell and map coordinates.
func (r CellRegion) GridType() geom.GridType { return r.gridType }

// Contains reports whether the cell lies inside the region.
func (r CellRegion) Contains(c geom.CPos) bool {
	return r.MapCoords().Contains(c.ToMPos(r.gridType))
}

// MapCoords returns the same region in map coordinates.
func (r CellRegion) MapCoords() MapCoordsRegion {
	return NewMapCoordsRegion(r.mapTopLeft, r.mapBottomRight)
}

// Iterator returns a restartable cursor over the region.
func (r CellRegion) Iterator() *CellIterator {
	return &CellIterator{
		c:        newCursor(r.mapTopLeft.U, r.mapTopLeft.V, r.mapBottomRight.U, r.mapBottomRight.V),
		gridType: r.gridType,
	}
}

// All yields every cell in map row-major order.
func (r CellRegion) All() iter.Seq[geom.CPos] {
	return func(yield func(geom.CPos) bool) {
		it := r.Iterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

func (r CellRegion) String() string {
	return fmt.Sprintf("%v -> %v", r.TopLeft, r.BottomRight)
}

// CellIterator walks a CellRegion.
type CellIterator struct {
	c        cursor
	gridType geom.GridType
}

// Next advances to the next cell.
func (it *CellIterator) Next() bool { return it.c.next() }

// Value returns the current cell.
func (it *CellIterator) Value() geom.CPos {
	return geom.MPos{U: it.c.u, V: it.c.v}.ToCPos(it.gridType)
}

// Reset rewinds the iterator to before the first element.
func (it *CellIterator) Reset() { it.c.reset() }

// CellCoordsRegion is an inclusive rectangle in cell axes.
type CellCoordsRegion struct {
	TopLeft, BottomRight geom.CPos
}

// NewCellCoordsRegion creates a region from its inclusive corners.
func NewCellCoordsRegion(topLeft, bottomRight geom.CPos) CellCoordsRegion {
	return CellCoordsRegion{TopLeft: topLeft, BottomRight: bottomRight}
}

// Contains reports whether the cell lies inside the region.
func (r CellCoordsRegion) Contains(c geom.CPos) bool {
	return c.X >= r.TopLeft.X && c.X <= r.BottomRight.X &&
		c.Y >= r.TopLeft.Y && c.Y <= r.BottomRight.Y
}

// Iterator returns a restartable cursor over the region.
func (r CellCoordsRegion) Iterator() *CellCoordsIterator {
	return &CellCoordsIterator{c: newCursor(r.TopLeft.X, r.TopLeft.Y, r.BottomRight.X, r.BottomRight.Y)}
}

// All yields every cell in row-major order.
func (r CellCoordsRegion) All() iter.Seq[geom.CPos] {
	return func(yield func(geom.CPos) bool) {
		it := r.Iterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// CellCoordsIterator walks a CellCoordsRegion.
type CellCoordsIterator struct {
	c cursor
}

// Next advances to the next cell.
func (it *CellCoordsIterator) Next() bool { return it.c.next() }

// Value returns the current cell.
func (it *CellCoordsIterator) Value() geom.CPos { return geom.CPos{X: it.c.u, Y: it.c.v} }

// Reset rewinds the iterator to before the first element.
func (it *CellCoordsIterator) Reset() { it.c.reset() }
