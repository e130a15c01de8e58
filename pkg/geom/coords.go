// Package geom holds the coordinate and world-space value types shared by the map engine.
package geom

import "fmt"

// GridType is the shape of the cell grid.
type GridType uint8

const (
	Rectangular          GridType = iota // cell axes match the storage axes
	RectangularIsometric                 // diagonal cell axes, staggered storage rows
)

func (t GridType) String() string {
	switch t {
	case Rectangular:
		return "Rectangular"
	case RectangularIsometric:
		return "RectangularIsometric"
	default:
		return fmt.Sprintf("GridType(%d)", uint8(t))
	}
}

// ParseGridType converts a config name into a GridType.
func ParseGridType(s string) (GridType, error) {
	switch s {
	case "Rectangular", "rectangular", "":
		return Rectangular, nil
	case "RectangularIsometric", "rectangular_isometric", "isometric":
		return RectangularIsometric, nil
	}
	return 0, fmt.Errorf("unknown grid type %q", s)
}

// CPos is a cell coordinate in the grid's native axes.
type CPos struct {
	X, Y int
}

// MPos is a map coordinate: a direct index into the rectangular storage arrays.
type MPos struct {
	U, V int
}

// PPos is a projected coordinate: the flattened, height-collapsed grid.
type PPos struct {
	U, V int
}

// CVec is an offset between two cells.
type CVec struct {
	X, Y int
}

// ToMPos converts a cell coordinate into map coordinates.
// Isometric conversion truncates toward zero, so (x, y) and (y, x) share a map cell.
func (c CPos) ToMPos(t GridType) MPos {
	if t == Rectangular {
		return MPos{c.X, c.Y}
	}
	return MPos{U: (c.X - c.Y) / 2, V: c.X + c.Y}
}

// Add offsets the cell by a vector.
func (c CPos) Add(v CVec) CPos { return CPos{c.X + v.X, c.Y + v.Y} }

// Sub returns the vector from o to c.
func (c CPos) Sub(o CPos) CVec { return CVec{c.X - o.X, c.Y - o.Y} }

func (c CPos) String() string { return fmt.Sprintf("%d,%d", c.X, c.Y) }

// ToCPos converts a map coordinate into cell coordinates.
func (uv MPos) ToCPos(t GridType) CPos {
	if t == Rectangular {
		return CPos{uv.U, uv.V}
	}

	// Odd rows sit half a cell to the right of even rows.
	offset := uv.V & 1
	y := (uv.V-offset)/2 - uv.U
	x := uv.V - y
	return CPos{x, y}
}

// Clamp limits the coordinate to the inclusive range [r.Left, r.Right()] x [r.Top, r.Bottom()].
func (uv MPos) Clamp(r Rect) MPos {
	return MPos{
		U: min(r.Right(), max(uv.U, r.Left())),
		V: min(r.Bottom(), max(uv.V, r.Top())),
	}
}

// ToPPos reinterprets the map coordinate as a projected coordinate.
func (uv MPos) ToPPos() PPos { return PPos(uv) }

func (uv MPos) String() string { return fmt.Sprintf("%d,%d", uv.U, uv.V) }

// ToMPos reinterprets the projected coordinate as a map coordinate.
func (p PPos) ToMPos() MPos { return MPos(p) }

// Clamp limits the coordinate to the inclusive range [r.Left, r.Right()] x [r.Top, r.Bottom()].
func (p PPos) Clamp(r Rect) PPos {
	return PPos{
		U: min(r.Right(), max(p.U, r.Left())),
		V: min(r.Bottom(), max(p.V, r.Top())),
	}
}

func (p PPos) String() string { return fmt.Sprintf("%d,%d", p.U, p.V) }

// LengthSquared is the squared euclidean length of the vector.
func (v CVec) LengthSquared() int { return v.X*v.X + v.Y*v.Y }

// Length is the euclidean length rounded down.
func (v CVec) Length() int { return ISqrt(v.LengthSquared(), RoundFloor) }

// Hash is the tie-break key used to order equal-length vectors.
func (v CVec) Hash() int { return v.X ^ v.Y }

func (v CVec) String() string { return fmt.Sprintf("%d,%d", v.X, v.Y) }
