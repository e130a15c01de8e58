package maps

import (
	"fmt"
	"strconv"
	"strings"

	"tilemap/pkg/geom"
)

// Debug returns a text dump of the map: a header, then one character per map cell.
// Water is '~', cells outside the bounds are '.', other cells show their height in base 36.
func (m *Map) Debug() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Map: %s (%s)\n", m.Title, m.UID))
	sb.WriteString(fmt.Sprintf("Grid: %s, max height %d\n", m.Grid.Type, m.Grid.MaximumTerrainHeight))
	sb.WriteString(fmt.Sprintf("Size: %v, bounds %v\n", m.MapSize, m.Bounds))
	sb.WriteString(fmt.Sprintf("Tileset: %s\n", m.TilesetID))
	sb.WriteString(fmt.Sprintf("Edge cells: %d\n", len(m.AllEdgeCells)))
	if n := len(m.ReplacedInvalidTerrainTiles); n > 0 {
		sb.WriteString(fmt.Sprintf("Replaced invalid tiles: %d\n", n))
	}

	sb.WriteString("\nHeights:\n")
	for v := 0; v < m.MapSize.Height; v++ {
		for u := 0; u < m.MapSize.Width; u++ {
			uv := geom.MPos{U: u, V: v}
			switch {
			case !m.ContainsMap(uv):
				sb.WriteByte('.')
			case m.TerrainInfo(uv.ToCPos(m.Grid.Type)).IsWater:
				sb.WriteByte('~')
			default:
				sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(m.Height.AtMap(uv)), 36)))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// DebugProjection dumps the number of map cells covering each projected cell.
// Cliff faces show as '0'.
func (m *Map) DebugProjection() string {
	var sb strings.Builder
	sb.WriteString("Projection:\n")
	for v := 0; v < m.MapSize.Height; v++ {
		for u := 0; u < m.MapSize.Width; u++ {
			n := len(m.Unproject(geom.PPos{U: u, V: v}))
			if n > 9 {
				sb.WriteByte('+')
			} else {
				sb.WriteByte(byte('0' + n))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
