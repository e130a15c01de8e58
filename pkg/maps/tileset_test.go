package maps

import (
	"errors"
	"image/color"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func TestTerrainIndexesFollowSortedNames(t *testing.T) {
	ts, err := DefaultTilesets().Get("temperat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var names []string
	for _, tt := range ts.TerrainTypes {
		names = append(names, tt.Type)
	}
	if !slices.IsSorted(names) {
		t.Errorf("terrain types not sorted: %v", names)
	}
	for i, name := range names {
		if index, ok := ts.TerrainIndexByType(name); !ok || int(index) != i {
			t.Errorf("index of %s = %d, want %d", name, index, i)
		}
	}
}

func TestTileInfoLookups(t *testing.T) {
	ts, _ := DefaultTilesets().Get("TEMPERAT")
	water, _ := ts.TerrainIndexByType("Water")
	clearIndex, _ := ts.TerrainIndexByType("Clear")

	if info, ok := ts.TryGetTileInfo(TerrainTile{Type: 1, Index: 1}); !ok || info.TerrainType != water {
		t.Errorf("water tile = %+v, %v", info, ok)
	}
	if _, ok := ts.TryGetTileInfo(TerrainTile{Type: 5, Index: 1}); ok {
		t.Error("undefined template tile reported as defined")
	}
	if _, ok := ts.TryGetTileInfo(TerrainTile{Type: 1, Index: 9}); ok {
		t.Error("out of range tile reported as defined")
	}
	if got := ts.TerrainIndex(TerrainTile{Type: 999}); got != clearIndex {
		t.Errorf("unknown tile terrain = %d, want Clear", got)
	}
	if info := ts.TileInfo(TerrainTile{Type: 999}); info != ts.TileInfo(ts.DefaultTile) {
		t.Error("unknown tile should fall back to the default tile info")
	}

	info, _ := ts.TryGetTileInfo(TerrainTile{Type: 1, Index: 1})
	if info.LeftColor == info.RightColor {
		t.Error("left colour override ignored")
	}
	if info.RightColor != ts.TerrainTypes[water].Color {
		t.Error("right colour should fall back to the terrain colour")
	}

	if tile, ok := ts.TileOf("Water"); !ok || tile != (TerrainTile{Type: 1}) {
		t.Errorf("TileOf(Water) = %v, %v", tile, ok)
	}
	if _, ok := ts.TileOf("Lava"); ok {
		t.Error("TileOf(Lava) should fail")
	}
}

func TestTilesetsCache(t *testing.T) {
	c := DefaultTilesets()
	a, err := c.Get("DESERT")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := c.Get("desert")
	if a != b {
		t.Error("lookups should share the cached tileset")
	}

	if _, err := c.Get("SNOW"); !errors.Is(err, ErrUnknownTileset) {
		t.Errorf("err = %v, want ErrUnknownTileset", err)
	}

	ids, err := c.IDs()
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	if !slices.Equal(ids, []string{"DESERT", "TEMPERAT"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestParseTilesetErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"no id", `{"terrain": [{"type": "Clear", "color": "#000000"}]}`},
		{"no clear", `{"id": "X", "terrain": [{"type": "Water", "color": "#000000"}]}`},
		{"bad color", `{"id": "X", "terrain": [{"type": "Clear", "color": "green"}]}`},
		{"unknown terrain", `{"id": "X", "terrain": [{"type": "Clear", "color": "#000000"}],
			"templates": [{"id": 1, "tiles": [{"terrain": "Lava"}]}], "default_tile": [1, 0]}`},
		{"missing default", `{"id": "X", "terrain": [{"type": "Clear", "color": "#000000"}],
			"templates": [{"id": 1, "tiles": [{"terrain": "Clear"}]}], "default_tile": [2, 0]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTileset(strings.NewReader(tt.json)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTilesetsFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sets/mini.json": {Data: []byte(`{"id": "MINI", "terrain": [{"type": "Clear", "color": "#102030"}],
			"templates": [{"id": 7, "tiles": [{"terrain": "Clear"}]}], "default_tile": [7, 0]}`)},
	}
	ts, err := NewTilesets(fsys, "sets").Get("mini")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}
	if got := ts.TileInfo(ts.DefaultTile).LeftColor; got != want {
		t.Errorf("colour = %v, want %v", got, want)
	}
	if ts.MinHeightColorBrightness != 1 || ts.MaxHeightColorBrightness != 1 {
		t.Errorf("brightness defaults = %v/%v", ts.MinHeightColorBrightness, ts.MaxHeightColorBrightness)
	}
}
