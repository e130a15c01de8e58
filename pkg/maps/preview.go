package maps

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"tilemap/pkg/geom"
)

// Preview renders the playable area as an image, one pixel per cell colour.
// Isometric maps use two pixels per cell with odd rows shifted right by one pixel.
func (m *Map) Preview() *image.RGBA {
	top, bottom := m.Bounds.Top(), m.Bounds.Bottom()
	if m.Grid.MaximumTerrainHeight > 0 {
		// The preview is drawn in map space, so the projected bounds are unprojected first.
		top, bottom = math.MaxInt, math.MinInt
		for u := m.Bounds.Left(); u < m.Bounds.Right(); u++ {
			if cells := m.Unproject(geom.PPos{U: u, V: m.Bounds.Top()}); len(cells) > 0 {
				top = min(top, minByV(cells).V)
			}
			if cells := m.Unproject(geom.PPos{U: u, V: m.Bounds.Bottom() - 1}); len(cells) > 0 {
				bottom = max(bottom, maxByV(cells).V+1)
			}
		}
		if top > bottom {
			top, bottom = m.Bounds.Top(), m.Bounds.Bottom()
		}
	}

	width := m.Bounds.Width
	height := bottom - top
	iso := m.Grid.Type == geom.RectangularIsometric
	bitmapWidth := width
	if iso {
		bitmapWidth = 2*width - 1
	}

	img := image.NewRGBA(image.Rect(0, 0, max(bitmapWidth, 0), max(height, 0)))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			uv := geom.MPos{U: x + m.Bounds.Left(), V: y + top}
			if !m.Tiles.ContainsMap(uv) {
				continue
			}
			left, right := m.CellColors(uv)

			if !iso {
				img.SetRGBA(x, y, left)
				continue
			}

			dx := uv.V & 1
			if x+dx > 0 {
				img.SetRGBA(2*x+dx-1, y, left)
			}
			if 2*x+dx < bitmapWidth {
				img.SetRGBA(2*x+dx, y, right)
			}
		}
	}
	return img
}

// CellColors returns the left and right colours of a cell, shaded by its height.
func (m *Map) CellColors(uv geom.MPos) (color.RGBA, color.RGBA) {
	c := uv.ToCPos(m.Grid.Type)
	var left, right color.RGBA
	if custom := m.CustomTerrain.At(c); custom != NoCustomTerrain {
		left = m.Tileset.TerrainType(custom).Color
		right = left
	} else {
		info := m.Tileset.TileInfo(m.Tiles.AtMap(uv))
		left, right = info.LeftColor, info.RightColor
	}

	if maxH := m.Grid.MaximumTerrainHeight; maxH > 0 {
		lo, hi := m.Tileset.MinHeightColorBrightness, m.Tileset.MaxHeightColorBrightness
		scale := lo + (hi-lo)*float64(m.Height.AtMap(uv))/float64(maxH)
		left, right = shade(left, scale), shade(right, scale)
	}
	return left, right
}

func shade(c color.RGBA, scale float64) color.RGBA {
	f := func(v uint8) uint8 { return uint8(min(255, max(0, math.Round(float64(v)*scale)))) }
	return color.RGBA{R: f(c.R), G: f(c.G), B: f(c.B), A: c.A}
}

// SavePreview encodes the preview as PNG.
func (m *Map) SavePreview() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Preview()); err != nil {
		return nil, fmt.Errorf("failed to encode map preview: %w", err)
	}
	return buf.Bytes(), nil
}
