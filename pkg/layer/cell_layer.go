package layer

import "tilemap/pkg/geom"

// CellLayer stores one value of T per map cell and notifies watchers after each write.
//
// Watchers come in two tiers. Hooks registered with WatchFirst run before hooks registered
// with Watch; inside a tier hooks run in registration order. Owners that keep derived
// caches (terrain indexes, projections) use WatchFirst so that ordinary watchers always
// observe coherent caches during the same write.
type CellLayer[T any] struct {
	base[T]
	first    []func(geom.CPos)
	watchers []func(geom.CPos)
}

// New creates a layer of the given grid shape and size.
func New[T any](gridType geom.GridType, size geom.Size) *CellLayer[T] {
	return &CellLayer[T]{base: newBase[T](gridType, size)}
}

// Index returns the storage index of a cell. The caller must check Contains first.
func (l *CellLayer[T]) Index(c geom.CPos) int {
	if l.gridType == geom.Rectangular {
		return c.Y*l.size.Width + c.X
	}
	return l.IndexMap(c.ToMPos(l.gridType))
}

// Contains reports whether the cell is stored in the layer.
func (l *CellLayer[T]) Contains(c geom.CPos) bool {
	// X < Y never occurs in isometric cell space, but ToMPos would alias it onto a valid cell.
	if l.gridType == geom.RectangularIsometric && c.X < c.Y {
		return false
	}
	return l.ContainsMap(c.ToMPos(l.gridType))
}

// At returns the value stored for a cell, or the zero value outside the layer.
func (l *CellLayer[T]) At(c geom.CPos) T {
	v, _ := l.TryGet(c)
	return v
}

// TryGet returns the value for a cell and whether the cell is inside the layer.
func (l *CellLayer[T]) TryGet(c geom.CPos) (T, bool) {
	if !l.Contains(c) {
		var zero T
		return zero, false
	}
	return l.entries[l.Index(c)], true
}

// Set writes a cell value and notifies watchers. Writes outside the layer are ignored.
func (l *CellLayer[T]) Set(c geom.CPos, value T) {
	if !l.Contains(c) {
		return
	}
	l.entries[l.Index(c)] = value
	l.notify(c)
}

// SetMap writes the value at a map coordinate and notifies watchers.
func (l *CellLayer[T]) SetMap(uv geom.MPos, value T) {
	if !l.ContainsMap(uv) {
		return
	}
	l.entries[l.IndexMap(uv)] = value
	l.notify(uv.ToCPos(l.gridType))
}

// Watch registers an observer called with the cell after every write.
func (l *CellLayer[T]) Watch(fn func(geom.CPos)) {
	l.watchers = append(l.watchers, fn)
}

// WatchFirst registers an owner hook that runs before every Watch observer.
func (l *CellLayer[T]) WatchFirst(fn func(geom.CPos)) {
	l.first = append(l.first, fn)
}

// Watched reports whether any watcher is attached.
func (l *CellLayer[T]) Watched() bool {
	return len(l.first) > 0 || len(l.watchers) > 0
}

// Clear sets every cell to value. Watched layers refuse bulk writes.
func (l *CellLayer[T]) Clear(value T) error {
	if l.Watched() {
		return ErrWatched
	}
	l.fill(value)
	return nil
}

// CopyFrom copies every value from another layer of the same shape.
func (l *CellLayer[T]) CopyFrom(other *CellLayer[T]) error {
	if !l.sameShape(&other.base) {
		return ErrSizeMismatch
	}
	if l.Watched() {
		return ErrWatched
	}
	copy(l.entries, other.entries)
	return nil
}

func (l *CellLayer[T]) notify(c geom.CPos) {
	for _, fn := range l.first {
		fn(c)
	}
	for _, fn := range l.watchers {
		fn(c)
	}
}

// Resize returns a new, unwatched layer of newSize. The overlapping region is copied
// and newly exposed cells are set to def.
func Resize[T any](l *CellLayer[T], newSize geom.Size, def T) *CellLayer[T] {
	result := New[T](l.gridType, newSize)
	result.fill(def)

	width := min(l.size.Width, result.size.Width)
	height := min(l.size.Height, result.size.Height)
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			uv := geom.MPos{U: u, V: v}
			result.entries[result.IndexMap(uv)] = l.entries[l.IndexMap(uv)]
		}
	}
	return result
}
