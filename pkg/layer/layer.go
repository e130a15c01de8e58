// Package layer provides dense per-cell storage for map data.
//
// A layer is a contiguous row-major array sized to the map. Cells are addressed in cell,
// map or projected coordinates; every address resolves to v*width+u.
package layer

import (
	"errors"

	"tilemap/pkg/geom"
)

var (
	// ErrSizeMismatch is returned when two layers with different shapes are combined.
	ErrSizeMismatch = errors.New("layer size or grid type mismatch")

	// ErrWatched is returned by bulk operations on a layer with attached watchers.
	ErrWatched = errors.New("layer has attached watchers")
)

// base is the storage shared by CellLayer and ProjectedCellLayer.
type base[T any] struct {
	gridType geom.GridType
	size     geom.Size
	bounds   geom.Rect
	entries  []T
}

func newBase[T any](gridType geom.GridType, size geom.Size) base[T] {
	w, h := max(size.Width, 0), max(size.Height, 0)
	return base[T]{
		gridType: gridType,
		size:     geom.Size{Width: w, Height: h},
		bounds:   geom.Rect{Width: w, Height: h},
		entries:  make([]T, w*h),
	}
}

// Size returns the layer dimensions.
func (b *base[T]) Size() geom.Size { return b.size }

// GridType returns the grid shape the layer was created for.
func (b *base[T]) GridType() geom.GridType { return b.gridType }

// Len returns the number of stored cells.
func (b *base[T]) Len() int { return len(b.entries) }

// ContainsMap reports whether uv addresses a stored cell.
func (b *base[T]) ContainsMap(uv geom.MPos) bool {
	return b.bounds.Contains(uv.U, uv.V)
}

// Clamp limits uv to the stored area.
func (b *base[T]) Clamp(uv geom.MPos) geom.MPos {
	return uv.Clamp(geom.Rect{Width: b.size.Width - 1, Height: b.size.Height - 1})
}

// IndexMap returns the storage index of uv. The caller must check ContainsMap first.
func (b *base[T]) IndexMap(uv geom.MPos) int {
	return uv.V*b.size.Width + uv.U
}

// AtMap returns the value at uv, or the zero value outside the layer.
func (b *base[T]) AtMap(uv geom.MPos) T {
	if !b.ContainsMap(uv) {
		var zero T
		return zero
	}
	return b.entries[b.IndexMap(uv)]
}

// Values exposes the backing array in row-major order.
func (b *base[T]) Values() []T { return b.entries }

func (b *base[T]) sameShape(o *base[T]) bool {
	return b.size == o.size && b.gridType == o.gridType
}

func (b *base[T]) fill(value T) {
	for i := range b.entries {
		b.entries[i] = value
	}
}
