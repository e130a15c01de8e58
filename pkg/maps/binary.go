package maps

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"tilemap/pkg/geom"
)

// binaryHeader locates the data blocks of map.bin. A zero offset marks an absent block.
type binaryHeader struct {
	Format          byte
	TilesOffset     uint32
	HeightsOffset   uint32
	ResourcesOffset uint32
}

const (
	binaryHeaderV1Size = 5
	binaryHeaderV2Size = 17
)

func readBinaryHeader(data []byte, expected geom.Size) (binaryHeader, error) {
	if len(data) < binaryHeaderV1Size {
		return binaryHeader{}, fmt.Errorf("%w: truncated header", ErrInvalidBinary)
	}

	h := binaryHeader{Format: data[0]}
	width := int(binary.LittleEndian.Uint16(data[1:3]))
	height := int(binary.LittleEndian.Uint16(data[3:5]))
	if width != expected.Width || height != expected.Height {
		return h, fmt.Errorf("%w: binary data is %dx%d, map is %v", ErrSizeMismatch, width, height, expected)
	}

	switch h.Format {
	case 1:
		h.TilesOffset = binaryHeaderV1Size
		h.ResourcesOffset = uint32(3*width*height + binaryHeaderV1Size)
	case 2:
		if len(data) < binaryHeaderV2Size {
			return h, fmt.Errorf("%w: truncated header", ErrInvalidBinary)
		}
		h.TilesOffset = binary.LittleEndian.Uint32(data[5:9])
		h.HeightsOffset = binary.LittleEndian.Uint32(data[9:13])
		h.ResourcesOffset = binary.LittleEndian.Uint32(data[13:17])
	default:
		return h, fmt.Errorf("%w: unknown binary map format %d", ErrInvalidBinary, h.Format)
	}
	return h, nil
}

// block returns the slice holding n records of recordSize bytes at offset.
func block(data []byte, offset uint32, n, recordSize int, name string) ([]byte, error) {
	end := int(offset) + n*recordSize
	if int(offset) > len(data) || end > len(data) {
		return nil, fmt.Errorf("%w: %s block truncated", ErrInvalidBinary, name)
	}
	return data[offset:end], nil
}

// loadBinary fills the tile, resource and height layers from map.bin.
// Records are stored column by column: x outer, y inner.
func (m *Map) loadBinary(data []byte) error {
	h, err := readBinaryHeader(data, m.MapSize)
	if err != nil {
		return err
	}

	w, ht := m.MapSize.Width, m.MapSize.Height
	if h.TilesOffset > 0 {
		tiles, err := block(data, h.TilesOffset, w*ht, 3, "tile")
		if err != nil {
			return err
		}
		for i := 0; i < w; i++ {
			for j := 0; j < ht; j++ {
				rec := tiles[3*(i*ht+j):]
				index := rec[2]

				// Pick-any tiles resolve to a fixed variant per cell.
				if index == 255 {
					index = byte(i%4 + (j%4)*4)
				}
				m.Tiles.SetMap(geom.MPos{U: i, V: j}, TerrainTile{Type: binary.LittleEndian.Uint16(rec), Index: index})
			}
		}
	}

	if h.ResourcesOffset > 0 {
		resources, err := block(data, h.ResourcesOffset, w*ht, 2, "resource")
		if err != nil {
			return err
		}
		for i := 0; i < w; i++ {
			for j := 0; j < ht; j++ {
				rec := resources[2*(i*ht+j):]
				m.Resources.SetMap(geom.MPos{U: i, V: j}, ResourceTile{Type: rec[0], Density: rec[1]})
			}
		}
	}

	if h.HeightsOffset > 0 {
		heights, err := block(data, h.HeightsOffset, w*ht, 1, "height")
		if err != nil {
			return err
		}
		for i := 0; i < w; i++ {
			for j := 0; j < ht; j++ {
				m.Height.SetMap(geom.MPos{U: i, V: j}, min(heights[i*ht+j], m.Grid.MaximumTerrainHeight))
			}
		}
	}
	return nil
}

// SaveBinary encodes the tile, height and resource layers as map.bin.
func (m *Map) SaveBinary() []byte {
	w, h := m.MapSize.Width, m.MapSize.Height
	cells := w * h

	tilesOffset := uint32(binaryHeaderV2Size)
	var heightsOffset uint32
	resourcesOffset := uint32(3*cells + binaryHeaderV2Size)
	if m.Grid.MaximumTerrainHeight > 0 {
		heightsOffset = uint32(3*cells + binaryHeaderV2Size)
		resourcesOffset = uint32(4*cells + binaryHeaderV2Size)
	}

	var buf bytes.Buffer
	buf.Grow(int(resourcesOffset) + 2*cells)

	write := func(v any) {
		// Writes to a bytes.Buffer cannot fail.
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	write(TileFormat)
	write(uint16(w))
	write(uint16(h))
	write(tilesOffset)
	write(heightsOffset)
	write(resourcesOffset)

	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			tile := m.Tiles.AtMap(geom.MPos{U: i, V: j})
			write(tile.Type)
			buf.WriteByte(tile.Index)
		}
	}

	if heightsOffset != 0 {
		for i := 0; i < w; i++ {
			for j := 0; j < h; j++ {
				buf.WriteByte(m.Height.AtMap(geom.MPos{U: i, V: j}))
			}
		}
	}

	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			r := m.Resources.AtMap(geom.MPos{U: i, V: j})
			buf.WriteByte(r.Type)
			buf.WriteByte(r.Density)
		}
	}
	return buf.Bytes()
}
