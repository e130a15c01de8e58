// Package region provides lazy row-major walks over rectangles in each coordinate space.
package region

// cursor walks an inclusive rectangle row by row. It starts one step before the first
// element, so Next must be called before the first read.
type cursor struct {
	left, top, right, bottom int
	u, v                     int
}

func newCursor(left, top, right, bottom int) cursor {
	c := cursor{left: left, top: top, right: right, bottom: bottom}
	c.reset()
	return c
}

func (c *cursor) reset() {
	c.u = c.left - 1
	c.v = c.top
}

func (c *cursor) next() bool {
	c.u++

	// Wrap to the next row once the column runs off the right edge.
	if c.u > c.right {
		c.v++
		c.u = c.left

		if c.v > c.bottom {
			return false
		}
	}
	return c.v <= c.bottom && c.left <= c.right
}
