package maps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"tilemap/pkg/geom"
)

// emptyMap returns an unwatched map with blank layers, as the loader prepares it.
func emptyMap(t *testing.T, from *Map) *Map {
	t.Helper()
	m := &Map{Grid: from.Grid, Tileset: from.Tileset}
	m.newLayers(from.MapSize)
	return m
}

func TestBinaryHeaderOffsets(t *testing.T) {
	tests := []struct {
		name      string
		m         *Map
		heights   uint32
		resources uint32
	}{
		{"flat grid", createRectMap(t, 4, 3), 0, 3*12 + 17},
		{"height grid", createIsoMap(t, 4, 4, 3), 3*12 + 17, 4*12 + 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.m.SaveBinary()
			if data[0] != TileFormat {
				t.Errorf("format = %d", data[0])
			}
			if w, h := binary.LittleEndian.Uint16(data[1:]), binary.LittleEndian.Uint16(data[3:]); w != 4 || h != 3 {
				t.Errorf("size = %dx%d", w, h)
			}
			if off := binary.LittleEndian.Uint32(data[5:]); off != 17 {
				t.Errorf("tiles offset = %d", off)
			}
			if off := binary.LittleEndian.Uint32(data[9:]); off != tt.heights {
				t.Errorf("heights offset = %d, want %d", off, tt.heights)
			}
			if off := binary.LittleEndian.Uint32(data[13:]); off != tt.resources {
				t.Errorf("resources offset = %d, want %d", off, tt.resources)
			}
			if len(data) != int(tt.resources)+2*12 {
				t.Errorf("length = %d", len(data))
			}
		})
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	m := createIsoMap(t, 4, 6, 5)
	m.Tiles.SetMap(geom.MPos{U: 1, V: 2}, TerrainTile{Type: 2})
	m.Tiles.SetMap(geom.MPos{U: 5, V: 4}, TerrainTile{Type: 1, Index: 1})
	m.Height.SetMap(geom.MPos{U: 3, V: 3}, 4)
	m.Resources.SetMap(geom.MPos{U: 0, V: 4}, ResourceTile{Type: 1, Density: 9})

	data := m.SaveBinary()
	loaded := emptyMap(t, m)
	if err := loaded.loadBinary(data); err != nil {
		t.Fatalf("loadBinary: %v", err)
	}
	if !bytes.Equal(loaded.SaveBinary(), data) {
		t.Error("binary data changed after a round trip")
	}
	if got := loaded.Resources.AtMap(geom.MPos{U: 0, V: 4}); got != (ResourceTile{Type: 1, Density: 9}) {
		t.Errorf("resource = %v", got)
	}
}

// buildV1 writes a format 1 file: tiles then resources, no heights.
func buildV1(w, h int, tile func(i, j int) TerrainTile) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(w))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(h))
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			t := tile(i, j)
			_ = binary.Write(&buf, binary.LittleEndian, t.Type)
			buf.WriteByte(t.Index)
		}
	}
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			buf.WriteByte(byte(i))
			buf.WriteByte(byte(j))
		}
	}
	return buf.Bytes()
}

func TestLoadFormatOne(t *testing.T) {
	m := emptyMap(t, createRectMap(t, 5, 6))
	data := buildV1(5, 6, func(i, j int) TerrainTile {
		if i == 2 {
			return TerrainTile{Type: 255, Index: 255}
		}
		return TerrainTile{Type: 2}
	})

	if err := m.loadBinary(data); err != nil {
		t.Fatalf("loadBinary: %v", err)
	}

	// Pick-any tiles resolve from the cell position.
	for j := 0; j < 6; j++ {
		want := TerrainTile{Type: 255, Index: byte(2 + (j%4)*4)}
		if got := m.Tiles.AtMap(geom.MPos{U: 2, V: j}); got != want {
			t.Errorf("tile at 2,%d = %v, want %v", j, got, want)
		}
	}
	if got := m.Tiles.AtMap(geom.MPos{U: 4, V: 5}); got != (TerrainTile{Type: 2}) {
		t.Errorf("tile at 4,5 = %v", got)
	}
	if got := m.Resources.AtMap(geom.MPos{U: 3, V: 1}); got != (ResourceTile{Type: 3, Density: 1}) {
		t.Errorf("resource at 3,1 = %v", got)
	}
}

func TestLoadClampsHeights(t *testing.T) {
	src := createIsoMap(t, 4, 3, 3)
	data := src.SaveBinary()
	heights := binary.LittleEndian.Uint32(data[9:])
	data[heights] = 200

	m := emptyMap(t, src)
	if err := m.loadBinary(data); err != nil {
		t.Fatalf("loadBinary: %v", err)
	}
	if h := m.Height.AtMap(geom.MPos{}); h != 4 {
		t.Errorf("height = %d, want the grid maximum 4", h)
	}
}

func TestLoadBinaryErrors(t *testing.T) {
	src := createRectMap(t, 4, 4)
	good := src.SaveBinary()

	unknown := bytes.Clone(good)
	unknown[0] = 7

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidBinary},
		{"wrong size", createRectMap(t, 5, 4).SaveBinary(), ErrSizeMismatch},
		{"unknown format", unknown, ErrInvalidBinary},
		{"truncated header", good[:9], ErrInvalidBinary},
		{"truncated tiles", good[:30], ErrInvalidBinary},
		{"truncated resources", good[:len(good)-1], ErrInvalidBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := emptyMap(t, src).loadBinary(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
