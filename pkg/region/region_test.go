package region

import (
	"testing"

	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
)

func TestMapCoordsRegionOrder(t *testing.T) {
	r := NewMapCoordsRegion(geom.MPos{U: 1, V: 2}, geom.MPos{U: 3, V: 3})

	var got []geom.MPos
	for uv := range r.All() {
		got = append(got, uv)
	}
	want := []geom.MPos{{1, 2}, {2, 2}, {3, 2}, {1, 3}, {2, 3}, {3, 3}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], want[i])
		}
		if !r.Contains(got[i]) {
			t.Errorf("region does not contain yielded %v", got[i])
		}
	}
	if r.Contains(geom.MPos{U: 0, V: 2}) || r.Contains(geom.MPos{U: 1, V: 4}) {
		t.Error("Contains accepted a coordinate outside the region")
	}
}

func TestIteratorReset(t *testing.T) {
	r := NewMapCoordsRegion(geom.MPos{}, geom.MPos{U: 1, V: 1})
	it := r.Iterator()

	count := func() int {
		n := 0
		for it.Next() {
			n++
		}
		return n
	}
	if n := count(); n != 4 {
		t.Fatalf("first pass yielded %d, want 4", n)
	}
	if it.Next() {
		t.Error("exhausted iterator advanced")
	}
	it.Reset()
	if n := count(); n != 4 {
		t.Errorf("after reset yielded %d, want 4", n)
	}
}

func TestEmptyRegions(t *testing.T) {
	tests := []struct {
		name string
		r    MapCoordsRegion
	}{
		{"inverted columns", NewMapCoordsRegion(geom.MPos{U: 3, V: 0}, geom.MPos{U: 1, V: 2})},
		{"inverted rows", NewMapCoordsRegion(geom.MPos{U: 0, V: 3}, geom.MPos{U: 2, V: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for uv := range tt.r.All() {
				t.Errorf("empty region yielded %v", uv)
			}
		})
	}
}

func TestCellRegionIsometric(t *testing.T) {
	tl := geom.MPos{U: 1, V: 1}.ToCPos(geom.RectangularIsometric)
	br := geom.MPos{U: 3, V: 4}.ToCPos(geom.RectangularIsometric)
	r := NewCellRegion(geom.RectangularIsometric, tl, br)

	n := 0
	for c := range r.All() {
		n++
		uv := c.ToMPos(geom.RectangularIsometric)
		if uv.U < 1 || uv.U > 3 || uv.V < 1 || uv.V > 4 {
			t.Errorf("cell %v maps to %v outside the map rectangle", c, uv)
		}
		if !r.Contains(c) {
			t.Errorf("region does not contain yielded %v", c)
		}
	}
	if n != 12 {
		t.Errorf("yielded %d cells, want 12", n)
	}

	if _, err := Expand(r, 1); err == nil {
		t.Error("expanding an isometric region should fail")
	}
}

func TestCellRegionExpand(t *testing.T) {
	r := NewCellRegion(geom.Rectangular, geom.CPos{X: 2, Y: 2}, geom.CPos{X: 3, Y: 4})
	e, err := Expand(r, 2)
	if err != nil {
		t.Fatal(err)
	}
	if e.TopLeft != (geom.CPos{X: 0, Y: 0}) || e.BottomRight != (geom.CPos{X: 5, Y: 6}) {
		t.Errorf("expanded region = %v", e)
	}
}

func TestCellCoordsRegion(t *testing.T) {
	r := NewCellCoordsRegion(geom.CPos{X: -1, Y: -1}, geom.CPos{X: 1, Y: 1})
	n := 0
	for c := range r.All() {
		n++
		if !r.Contains(c) {
			t.Errorf("region does not contain yielded %v", c)
		}
	}
	if n != 9 {
		t.Errorf("yielded %d cells, want 9", n)
	}
}

func TestProjectedCellRegionCandidates(t *testing.T) {
	tests := []struct {
		maxHeight  int
		wantBottom int
	}{
		{0, 5},
		{4, 9},
		{3, 10},
		{16, 19},
	}
	for _, tt := range tests {
		g, err := grid.New(grid.Config{Type: "RectangularIsometric", MaximumTerrainHeight: tt.maxHeight})
		if err != nil {
			t.Fatal(err)
		}
		r := NewProjectedCellRegion(g, geom.Size{Width: 10, Height: 20}, geom.PPos{U: 1, V: 2}, geom.PPos{U: 8, V: 5})
		c := r.CandidateMapCoords()
		if c.TopLeft != (geom.MPos{U: 1, V: 2}) {
			t.Errorf("maxHeight %d: candidate top-left = %v", tt.maxHeight, c.TopLeft)
		}
		if c.BottomRight.V != tt.wantBottom {
			t.Errorf("maxHeight %d: candidate bottom = %d, want %d", tt.maxHeight, c.BottomRight.V, tt.wantBottom)
		}
		if got := len(r.Slice()); got != 32 {
			t.Errorf("maxHeight %d: region holds %d cells, want 32", tt.maxHeight, got)
		}
	}
}

func TestAllStopsEarly(t *testing.T) {
	r := NewMapCoordsRegion(geom.MPos{}, geom.MPos{U: 9, V: 9})
	n := 0
	for range r.All() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("range visited %d elements, want 3", n)
	}
}
