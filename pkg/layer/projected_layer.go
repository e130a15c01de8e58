package layer

import "tilemap/pkg/geom"

// ProjectedCellLayer stores one value per projected cell.
type ProjectedCellLayer[T any] struct {
	base[T]
}

// NewProjected creates a projected layer of the given size.
func NewProjected[T any](gridType geom.GridType, size geom.Size) *ProjectedCellLayer[T] {
	return &ProjectedCellLayer[T]{base: newBase[T](gridType, size)}
}

// Index returns the storage index of a projected cell.
func (l *ProjectedCellLayer[T]) Index(p geom.PPos) int {
	return p.V*l.size.Width + p.U
}

// Contains reports whether p is inside the layer.
func (l *ProjectedCellLayer[T]) Contains(p geom.PPos) bool {
	return l.bounds.Contains(p.U, p.V)
}

// At returns the value at p, or the zero value outside the layer.
func (l *ProjectedCellLayer[T]) At(p geom.PPos) T {
	if !l.Contains(p) {
		var zero T
		return zero
	}
	return l.entries[l.Index(p)]
}

// Set writes the value at p. Writes outside the layer are ignored.
func (l *ProjectedCellLayer[T]) Set(p geom.PPos, value T) {
	if l.Contains(p) {
		l.entries[l.Index(p)] = value
	}
}

// Clear sets every projected cell to value.
func (l *ProjectedCellLayer[T]) Clear(value T) {
	l.fill(value)
}

// CopyFrom copies every value from another projected layer of the same shape.
func (l *ProjectedCellLayer[T]) CopyFrom(other *ProjectedCellLayer[T]) error {
	if !l.sameShape(&other.base) {
		return ErrSizeMismatch
	}
	copy(l.entries, other.entries)
	return nil
}
