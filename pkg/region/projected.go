package region

import (
	"fmt"
	"iter"

	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
)

// ProjectedCellRegion is an inclusive rectangle of projected cells.
type ProjectedCellRegion struct {
	TopLeft, BottomRight geom.PPos

	// Map coordinates that may project into the region.
	mapTopLeft     geom.MPos
	mapBottomRight geom.MPos
}

// NewProjectedCellRegion creates a region over projected cells for a map whose layers
// have the given size.
func NewProjectedCellRegion(g *grid.MapGrid, layerSize geom.Size, topLeft, bottomRight geom.PPos) ProjectedCellRegion {
	// Projection never increases V, so the top edge maps straight across.
	r := ProjectedCellRegion{
		TopLeft:     topLeft,
		BottomRight: bottomRight,
		mapTopLeft:  topLeft.ToMPos(),
	}

	// Cells below the bottom edge can be lifted into the region by their height.
	// Odd heights round up for ramps and spread one more row for flat cells.
	heightOffset := MaxProjectionOffset(g.MaximumTerrainHeight)

	layerBounds := geom.Rect{Width: layerSize.Width - 1, Height: layerSize.Height - 1}
	r.mapBottomRight = geom.MPos{U: bottomRight.U, V: bottomRight.V + heightOffset}.Clamp(layerBounds)
	return r
}

// MaxProjectionOffset is the largest number of rows a cell can be lifted by projection.
func MaxProjectionOffset(maxHeight byte) int {
	h := int(maxHeight)
	if h&1 == 1 {
		h += 2
	}
	return h
}

// Contains reports whether p lies inside the region.
func (r ProjectedCellRegion) Contains(p geom.PPos) bool {
	return p.U >= r.TopLeft.U && p.U <= r.BottomRight.U &&
		p.V >= r.TopLeft.V && p.V <= r.BottomRight.V
}

// CandidateMapCoords is a superset of the map cells that may project into the region.
func (r ProjectedCellRegion) CandidateMapCoords() MapCoordsRegion {
	return NewMapCoordsRegion(r.mapTopLeft, r.mapBottomRight)
}

// Iterator returns a restartable cursor over the region.
func (r ProjectedCellRegion) Iterator() *ProjectedIterator {
	return &ProjectedIterator{c: newCursor(r.TopLeft.U, r.TopLeft.V, r.BottomRight.U, r.BottomRight.V)}
}

// All yields every projected cell in row-major order.
func (r ProjectedCellRegion) All() iter.Seq[geom.PPos] {
	return func(yield func(geom.PPos) bool) {
		it := r.Iterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Slice collects the region into a slice.
func (r ProjectedCellRegion) Slice() []geom.PPos {
	w := r.BottomRight.U - r.TopLeft.U + 1
	h := r.BottomRight.V - r.TopLeft.V + 1
	out := make([]geom.PPos, 0, max(w*h, 0))
	for p := range r.All() {
		out = append(out, p)
	}
	return out
}

func (r ProjectedCellRegion) String() string {
	return fmt.Sprintf("%v -> %v", r.TopLeft, r.BottomRight)
}

// ProjectedIterator walks a ProjectedCellRegion.
type ProjectedIterator struct {
	c cursor
}

// Next advances to the next projected cell.
func (it *ProjectedIterator) Next() bool { return it.c.next() }

// Value returns the current projected cell.
func (it *ProjectedIterator) Value() geom.PPos { return geom.PPos{U: it.c.u, V: it.c.v} }

// Reset rewinds the iterator to before the first element.
func (it *ProjectedIterator) Reset() { it.c.reset() }
