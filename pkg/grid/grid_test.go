package grid

import (
	"errors"
	"strings"
	"testing"

	"tilemap/pkg/geom"
)

func TestPresets(t *testing.T) {
	rect, err := Preset("rectangular")
	if err != nil {
		t.Fatalf("rectangular preset: %v", err)
	}
	if rect.Type != geom.Rectangular || rect.MaximumTerrainHeight != 0 {
		t.Errorf("rectangular preset = %v/%d", rect.Type, rect.MaximumTerrainHeight)
	}
	if rect.DefaultSubCell != SubCell(len(rect.SubCellOffsets)/2) {
		t.Errorf("default sub-cell = %d, want middle entry", rect.DefaultSubCell)
	}

	iso, err := Preset("isometric")
	if err != nil {
		t.Fatalf("isometric preset: %v", err)
	}
	if iso.Type != geom.RectangularIsometric || iso.MaximumTerrainHeight != 16 {
		t.Errorf("isometric preset = %v/%d", iso.Type, iso.MaximumTerrainHeight)
	}
	if iso.CellHeightStep().Length != 724 {
		t.Errorf("isometric height step = %d", iso.CellHeightStep().Length)
	}

	if _, err := Preset("hexagonal"); err == nil {
		t.Error("expected an error for an unknown preset")
	}
}

func TestInvalidConfig(t *testing.T) {
	fullCell := 0
	tests := []struct {
		name string
		json string
	}{
		{"unknown type", `{"type": "Hex"}`},
		{"height too large", `{"type": "Rectangular", "maximum_terrain_height": 300}`},
		{"full cell default with sub-cells", `{"type": "Rectangular", "default_sub_cell": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.json))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := New(Config{Type: "Rectangular", DefaultSubCell: &fullCell, SubCellOffsets: [][3]int{{0, 0, 0}}}); err != nil {
		t.Errorf("single full-cell offset with default 0 should be valid: %v", err)
	}
}

func TestTilesByDistanceRings(t *testing.T) {
	g, err := New(Config{Type: "Rectangular", MaximumTileSearchRange: 6})
	if err != nil {
		t.Fatal(err)
	}

	total := 0
	for r := 0; r <= 6; r++ {
		ring := g.TilesByDistance(r)
		total += len(ring)
		for i, v := range ring {
			if got := geom.ISqrt(v.LengthSquared(), geom.RoundCeiling); got != r {
				t.Errorf("ring %d contains %v with rounded distance %d", r, v, got)
			}
			if i > 0 && ring[i-1].LengthSquared() > v.LengthSquared() {
				t.Errorf("ring %d not sorted by length at %d", r, i)
			}
		}
	}

	want := 0
	for y := -6; y <= 6; y++ {
		for x := -6; x <= 6; x++ {
			if x*x+y*y <= 36 {
				want++
			}
		}
	}
	if total != want {
		t.Errorf("rings hold %d offsets, want %d", total, want)
	}
	if g.TilesByDistance(7) != nil || g.TilesByDistance(-1) != nil {
		t.Error("out of range rings should be nil")
	}
}

func TestTilesByDistanceTieBreak(t *testing.T) {
	g, err := New(Config{Type: "Rectangular", MaximumTileSearchRange: 2})
	if err != nil {
		t.Fatal(err)
	}

	want := []geom.CVec{{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 0, Y: 1}, {X: 1, Y: 0}}
	got := g.TilesByDistance(1)
	if len(got) != len(want) {
		t.Fatalf("ring 1 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ring 1[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if r0 := g.TilesByDistance(0); len(r0) != 1 || r0[0] != (geom.CVec{}) {
		t.Errorf("ring 0 = %v", r0)
	}
}

func TestRampHeightOffset(t *testing.T) {
	g, err := New(Config{Type: "Rectangular", MaximumTerrainHeight: 4})
	if err != nil {
		t.Fatal(err)
	}

	flat := g.Ramp(0)
	if flat.HeightOffset(100, -300) != 0 || flat.CenterHeightOffset != 0 {
		t.Error("flat ramp must have zero height everywhere")
	}

	// Ramp 1 raises the right-hand edge by one half step.
	slope := g.Ramp(1)
	tests := []struct {
		dx, dy, want int
	}{
		{0, 0, 256},
		{512, 0, 512},
		{-512, 0, 0},
		{256, 256, 384},
	}
	for _, tt := range tests {
		if got := slope.HeightOffset(tt.dx, tt.dy); got != tt.want {
			t.Errorf("HeightOffset(%d, %d) = %d, want %d", tt.dx, tt.dy, got, tt.want)
		}
	}
	if slope.CenterHeightOffset != 256 {
		t.Errorf("center = %d, want 256", slope.CenterHeightOffset)
	}

	if g.Ramp(200).CenterHeightOffset != 0 {
		t.Error("unknown ramp ids fall back to flat")
	}
}

func TestSplitRampUsesBothTriangles(t *testing.T) {
	r := NewCellRamp(geom.Rectangular, geom.WRotNone, Low, Half, Low, Low, SplitX)
	if len(r.Polygons) != 2 || len(r.Polygons[0])+len(r.Polygons[1]) != 6 {
		t.Fatalf("split ramp should hold two triangles")
	}

	// The raised top-right corner reaches full half-step height.
	if got := r.HeightOffset(512, -512); got != 512 {
		t.Errorf("top-right corner = %d, want 512", got)
	}
	// The opposite corner stays on the ground.
	if got := r.HeightOffset(512, 512); got != 0 {
		t.Errorf("bottom-right corner = %d, want 0", got)
	}
}
