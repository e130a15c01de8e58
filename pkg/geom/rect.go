package geom

import "fmt"

// Size is a width/height pair.
type Size struct {
	Width, Height int
}

func (s Size) String() string { return fmt.Sprintf("%d,%d", s.Width, s.Height) }

// Rect is an axis-aligned integer rectangle. Right and Bottom are exclusive.
type Rect struct {
	X, Y, Width, Height int
}

// RectFromLTRB builds a rectangle from its edges.
func RectFromLTRB(left, top, right, bottom int) Rect {
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

func (r Rect) Left() int   { return r.X }
func (r Rect) Top() int    { return r.Y }
func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left() && x < r.Right() && y >= r.Top() && y < r.Bottom()
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}
