package maps

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"slices"

	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
	"tilemap/pkg/layer"
	"tilemap/pkg/region"
)

// cacheState tracks a lazily built cache.
type cacheState int

const (
	cacheUninitialized cacheState = iota
	cacheInitializing
	cacheReady
)

const invalidTerrainIndex int16 = -1

// Map is the aggregate root for one map: its layers, bounds, derived caches and
// package metadata. A Map is not safe for concurrent use.
type Map struct {
	Metadata

	Grid    *grid.MapGrid
	Tileset *Tileset

	MapSize geom.Size

	// Bounds is the playable area in projected coordinates. Right and Bottom are exclusive.
	Bounds geom.Rect

	Tiles         *layer.CellLayer[TerrainTile]
	Resources     *layer.CellLayer[ResourceTile]
	Height        *layer.CellLayer[byte]
	Ramp          *layer.CellLayer[byte]
	CustomTerrain *layer.CellLayer[byte]

	AllCells       region.CellRegion
	AllEdgeCells   []geom.CPos
	ProjectedCells []geom.PPos

	// Playable area corners in projected world coordinates.
	ProjectedTopLeft     geom.WPos
	ProjectedBottomRight geom.WPos

	// Tiles that the tileset does not define, replaced by the default tile on load.
	ReplacedInvalidTerrainTiles map[geom.CPos]TerrainTile

	Package Package
	UID     string

	projectionSafeBounds geom.Rect

	terrainState   cacheState
	terrainIndexes *layer.CellLayer[int16]

	proj              projection
	projectionChanged []func(geom.CPos)
}

// New creates an empty map filled with the tileset's default tile.
// The map receives a UID once it is saved.
func New(g *grid.MapGrid, ts *Tileset, width, height int) *Map {
	m := &Map{
		Metadata: Metadata{
			MapFormat:  CurrentMapFormat,
			Title:      "Name your map here",
			Author:     "Your name here",
			TilesetID:  ts.ID,
			Visibility: VisibilityLobby,
			Categories: []string{"Conquest"},
		},
		Grid:    g,
		Tileset: ts,
	}

	m.newLayers(geom.Size{Width: width, Height: height})
	m.Tiles.Clear(ts.DefaultTile)
	m.Bounds = geom.RectFromLTRB(1, 1, width-1, height-1)
	m.postInit()
	return m
}

func (m *Map) newLayers(size geom.Size) {
	t := m.Grid.Type
	m.MapSize = size
	m.Tiles = layer.New[TerrainTile](t, size)
	m.Resources = layer.New[ResourceTile](t, size)
	m.Height = layer.New[byte](t, size)
	m.Ramp = layer.New[byte](t, size)
}

// postInit derives everything that is not stored in the package. The layers must be
// populated and unwatched.
func (m *Map) postInit() {
	m.ReplacedInvalidTerrainTiles = make(map[geom.CPos]TerrainTile)
	m.AllCells = m.allCellsRegion()

	m.CustomTerrain = layer.New[byte](m.Grid.Type, m.MapSize)
	m.CustomTerrain.Clear(NoCustomTerrain)

	// Replace invalid tiles and cache ramp state
	for uv := range m.AllCells.MapCoords().All() {
		tile := m.Tiles.AtMap(uv)
		info, ok := m.Tileset.TryGetTileInfo(tile)
		if !ok {
			m.ReplacedInvalidTerrainTiles[uv.ToCPos(m.Grid.Type)] = tile
			m.Tiles.SetMap(uv, m.Tileset.DefaultTile)
			info = m.Tileset.TileInfo(m.Tileset.DefaultTile)
		}
		m.Ramp.SetMap(uv, info.RampType)
	}

	m.SetBounds(geom.PPos{U: m.Bounds.Left(), V: m.Bounds.Top()}, geom.PPos{U: m.Bounds.Right() - 1, V: m.Bounds.Bottom() - 1})
	m.attachHooks()
}

func (m *Map) allCellsRegion() region.CellRegion {
	t := m.Grid.Type
	tl := geom.MPos{}.ToCPos(t)
	br := geom.MPos{U: m.MapSize.Width - 1, V: m.MapSize.Height - 1}.ToCPos(t)
	return region.NewCellRegion(t, tl, br)
}

// attachHooks registers the cache maintenance hooks. They are registered as owner hooks,
// so any observer added with Watch sees up-to-date terrain indexes and projections.
func (m *Map) attachHooks() {
	m.CustomTerrain.WatchFirst(m.invalidateTerrainIndex)
	m.Tiles.WatchFirst(m.invalidateTerrainIndex)

	if m.Grid.MaximumTerrainHeight > 0 {
		m.Tiles.WatchFirst(m.updateRamp)
		m.Tiles.WatchFirst(m.updateProjection)
		m.Height.WatchFirst(m.updateProjection)
	}
}

func (m *Map) updateRamp(c geom.CPos) {
	m.Ramp.Set(c, m.Tileset.TileInfo(m.Tiles.At(c)).RampType)
}

// OnCellProjectionChanged registers fn to be called whenever a cell's projection is recomputed.
func (m *Map) OnCellProjectionChanged(fn func(geom.CPos)) {
	m.projectionChanged = append(m.projectionChanged, fn)
}

// Resize changes the map dimensions. Overlapping cells keep their data, new cells copy
// the top-left cell, and the bounds are reset to the new size inset by one cell.
// Observers registered on the old layers are not carried over.
func (m *Map) Resize(width, height int) {
	size := geom.Size{Width: width, Height: height}
	zero := geom.MPos{}

	m.Tiles = layer.Resize(m.Tiles, size, m.Tiles.AtMap(zero))
	m.Resources = layer.Resize(m.Resources, size, m.Resources.AtMap(zero))
	m.Height = layer.Resize(m.Height, size, m.Height.AtMap(zero))
	m.Ramp = layer.Resize(m.Ramp, size, m.Ramp.AtMap(zero))
	m.CustomTerrain = layer.Resize(m.CustomTerrain, size, NoCustomTerrain)
	m.MapSize = size

	m.terrainState = cacheUninitialized
	m.terrainIndexes = nil
	m.proj = projection{}

	m.AllCells = m.allCellsRegion()
	m.attachHooks()
	m.SetBounds(geom.PPos{U: 1, V: 1}, geom.PPos{U: width - 2, V: height - 2})
}

// SetBounds sets the playable area from its inclusive projected corners.
func (m *Map) SetBounds(tl, br geom.PPos) {
	m.Bounds = geom.RectFromLTRB(tl.U, tl.V, br.U+1, br.V+1)

	// Projection moves U by at most one and only ever lifts V, so cells far enough
	// below the top edge can never project outside the bounds.
	h := region.MaxProjectionOffset(m.Grid.MaximumTerrainHeight)
	m.projectionSafeBounds = geom.RectFromLTRB(m.Bounds.Left()+1, m.Bounds.Top()+h, m.Bounds.Right()-1, m.Bounds.Bottom())

	if m.Grid.Type == geom.RectangularIsometric {
		m.ProjectedTopLeft = geom.WPos{X: tl.U * 1448, Y: tl.V * 724}
		m.ProjectedBottomRight = geom.WPos{X: br.U*1448 - 1, Y: (br.V+1)*724 - 1}
	} else {
		m.ProjectedTopLeft = geom.WPos{X: tl.U * 1024, Y: tl.V * 1024}
		m.ProjectedBottomRight = geom.WPos{X: br.U*1024 - 1, Y: (br.V+1)*1024 - 1}
	}

	m.ProjectedCells = region.NewProjectedCellRegion(m.Grid, m.MapSize, tl, br).Slice()
	m.AllEdgeCells = m.updateEdgeCells()
}

// Contains reports whether the cell is inside the playable area.
func (m *Map) Contains(c geom.CPos) bool {
	if m.Grid.Type == geom.RectangularIsometric {
		// ToMPos gives the same result with X and Y swapped, and X < Y never occurs
		// in isometric cell space.
		if c.X < c.Y {
			return false
		}
	} else if m.Grid.MaximumTerrainHeight == 0 {
		return m.Bounds.Contains(c.X, c.Y)
	}
	return m.ContainsMap(c.ToMPos(m.Grid.Type))
}

// ContainsMap reports whether the map cell exists and every projected cell it covers is
// inside the playable area.
func (m *Map) ContainsMap(uv geom.MPos) bool {
	return m.Tiles.ContainsMap(uv) && m.containsAllProjectedCellsCovering(uv)
}

// ContainsProjected reports whether the projected cell is inside the playable area.
func (m *Map) ContainsProjected(p geom.PPos) bool {
	return m.Bounds.Contains(p.U, p.V)
}

func (m *Map) containsAllProjectedCellsCovering(uv geom.MPos) bool {
	if m.Grid.MaximumTerrainHeight == 0 {
		return m.Bounds.Contains(uv.U, uv.V)
	}
	if m.projectionSafeBounds.Contains(uv.U, uv.V) {
		return true
	}

	// A cell without a valid projection is off the map.
	projected := m.ProjectedCellsCovering(uv)
	if len(projected) == 0 {
		return false
	}
	for _, p := range projected {
		if !m.ContainsProjected(p) {
			return false
		}
	}
	return true
}

// TerrainIndex returns the terrain type index of a cell. Custom terrain overrides the tileset.
func (m *Map) TerrainIndex(c geom.CPos) byte {
	if !m.Tiles.Contains(c) {
		return m.Tileset.TerrainIndex(m.Tileset.DefaultTile)
	}

	if m.terrainState != cacheReady {
		m.terrainIndexes = layer.New[int16](m.Grid.Type, m.MapSize)
		m.terrainIndexes.Clear(invalidTerrainIndex)
		m.terrainState = cacheReady
	}

	index := m.terrainIndexes.At(c)
	if index == invalidTerrainIndex {
		if custom := m.CustomTerrain.At(c); custom != NoCustomTerrain {
			index = int16(custom)
		} else {
			index = int16(m.Tileset.TerrainIndex(m.Tiles.At(c)))
		}
		m.terrainIndexes.Set(c, index)
	}
	return byte(index)
}

// TerrainInfo returns the terrain type of a cell.
func (m *Map) TerrainInfo(c geom.CPos) TerrainType {
	return m.Tileset.TerrainType(m.TerrainIndex(c))
}

func (m *Map) invalidateTerrainIndex(c geom.CPos) {
	if m.terrainState == cacheReady {
		m.terrainIndexes.Set(c, invalidTerrainIndex)
	}
}

// Clamp returns the closest cell inside the playable area.
func (m *Map) Clamp(c geom.CPos) geom.CPos {
	return m.ClampMap(c.ToMPos(m.Grid.Type)).ToCPos(m.Grid.Type)
}

// ClampMap returns the closest map cell whose projection lies inside the playable area.
func (m *Map) ClampMap(uv geom.MPos) geom.MPos {
	if m.Grid.MaximumTerrainHeight == 0 {
		return m.ClampProjected(uv.ToPPos()).ToMPos()
	}

	if m.containsAllProjectedCellsCovering(uv) {
		return uv
	}

	// U barely changes under projection, so clamp it straight away and move the
	// guess inside the map.
	uv = m.Tiles.Clamp(geom.MPos{U: min(max(uv.U, m.Bounds.Left()), m.Bounds.Right()), V: uv.V})

	// Project the guess; fall back to clamping V if it projects outside the layer.
	var projected geom.PPos
	if all := m.ProjectedCellsCovering(uv); len(all) > 0 {
		projected = all[0]
	} else {
		projected = geom.PPos{U: uv.U, V: min(max(uv.V, m.Bounds.Top()), m.Bounds.Bottom())}
	}
	projected = m.ClampProjected(projected)

	// Cliff faces have no map cell of their own, and odd-height cells near the edge
	// can cover projected cells outside the bounds.
	unprojected := m.nearestContained(projected)
	if len(unprojected) == 0 {
		log.Printf("Failed to clamp map cell %v to map bounds", uv)
		return uv
	}

	if projected.V == m.Bounds.Bottom()-1 {
		return maxByV(unprojected)
	}
	return minByV(unprojected)
}

// nearestUnprojected returns the inverse projection of p, searching up and down in a
// zig-zag when p lies on a cliff face.
func (m *Map) nearestUnprojected(p geom.PPos) []geom.MPos {
	unprojected := m.Unproject(p)
	if len(unprojected) > 0 {
		return unprojected
	}

	for x := 2; x <= 2*int(m.Grid.MaximumTerrainHeight); x++ {
		sign := -1
		if x&1 == 1 {
			sign = 1
		}
		test := geom.PPos{U: p.U, V: p.V + sign*x/2}
		if !m.ContainsProjected(test) {
			continue
		}
		if unprojected = m.Unproject(test); len(unprojected) > 0 {
			return unprojected
		}
	}
	return nil
}

// nearestContained returns the map cells covering the projected cell nearest to p whose
// projections lie entirely inside the playable area. It zig-zags up and down p's column
// first, then widens to the neighbouring columns.
func (m *Map) nearestContained(p geom.PPos) []geom.MPos {
	for du := 0; du <= m.Bounds.Width; du++ {
		for _, u := range []int{p.U - du, p.U + du} {
			for dv := 0; dv <= 2*m.Bounds.Height; dv++ {
				offset := (dv + 1) / 2
				if dv&1 == 1 {
					offset = -offset
				}
				test := geom.PPos{U: u, V: p.V + offset}
				if !m.ContainsProjected(test) {
					continue
				}

				var cells []geom.MPos
				for _, uv := range m.Unproject(test) {
					if m.containsAllProjectedCellsCovering(uv) {
						cells = append(cells, uv)
					}
				}
				if len(cells) > 0 {
					return cells
				}
			}
			if du == 0 {
				break
			}
		}
	}
	return nil
}

// ClampProjected limits p to the playable area.
func (m *Map) ClampProjected(p geom.PPos) geom.PPos {
	bounds := geom.Rect{X: m.Bounds.X, Y: m.Bounds.Y, Width: m.Bounds.Width - 1, Height: m.Bounds.Height - 1}
	return p.Clamp(bounds)
}

// ChooseRandomCell picks a random cell that covers a projected cell in the playable area.
func (m *Map) ChooseRandomCell(rng *rand.Rand) geom.CPos {
	if !m.Bounds.Empty() {
		for range m.Bounds.Width * m.Bounds.Height * 4 {
			u := m.Bounds.Left() + rng.Intn(m.Bounds.Width)
			v := m.Bounds.Top() + rng.Intn(m.Bounds.Height)
			if cells := m.Unproject(geom.PPos{U: u, V: v}); len(cells) > 0 {
				return cells[rng.Intn(len(cells))].ToCPos(m.Grid.Type)
			}
		}
	}

	log.Printf("Failed to choose a random cell inside %v", m.Bounds)
	return geom.MPos{U: m.Bounds.Left(), V: m.Bounds.Top()}.ToCPos(m.Grid.Type)
}

// ChooseClosestEdgeCell returns the edge cell nearest to the cell.
func (m *Map) ChooseClosestEdgeCell(c geom.CPos) geom.CPos {
	return m.ChooseClosestEdgeCellMap(c.ToMPos(m.Grid.Type)).ToCPos(m.Grid.Type)
}

// ChooseClosestEdgeCellMap returns the map cell on the nearest playable area edge.
func (m *Map) ChooseClosestEdgeCellMap(uv geom.MPos) geom.MPos {
	var edge geom.PPos
	if all := m.ProjectedCellsCovering(uv); len(all) > 0 {
		p := all[0]
		horizontal := m.Bounds.Right()
		if p.U-m.Bounds.Left() < m.Bounds.Width/2 {
			horizontal = m.Bounds.Left()
		}
		vertical := m.Bounds.Bottom()
		if p.V-m.Bounds.Top() < m.Bounds.Height/2 {
			vertical = m.Bounds.Top()
		}

		if geom.Abs(horizontal-p.U) < geom.Abs(vertical-p.V) {
			edge = geom.PPos{U: horizontal, V: p.V}
		} else {
			edge = geom.PPos{U: p.U, V: vertical}
		}
	} else {
		edge = geom.PPos{U: m.Bounds.Left(), V: m.Bounds.Top()}
	}

	unprojected := m.nearestUnprojected(edge)
	if len(unprojected) == 0 {
		log.Printf("Failed to find closest edge for map cell %v", uv)
		return uv
	}

	if edge.V == m.Bounds.Bottom() {
		return maxByV(unprojected)
	}
	return minByV(unprojected)
}

// ChooseClosestMatchingEdgeCell returns the edge cell nearest to the cell that satisfies match.
func (m *Map) ChooseClosestMatchingEdgeCell(c geom.CPos, match func(geom.CPos) bool) (geom.CPos, bool) {
	edges := slices.Clone(m.AllEdgeCells)
	slices.SortStableFunc(edges, func(a, b geom.CPos) int {
		return c.Sub(a).Length() - c.Sub(b).Length()
	})
	for _, e := range edges {
		if match(e) {
			return e, true
		}
	}
	return geom.CPos{}, false
}

// ChooseRandomEdgeCell picks a random edge cell.
func (m *Map) ChooseRandomEdgeCell(rng *rand.Rand) geom.CPos {
	if len(m.AllEdgeCells) == 0 {
		return geom.CPos{}
	}
	return m.AllEdgeCells[rng.Intn(len(m.AllEdgeCells))]
}

func (m *Map) updateEdgeCells() []geom.CPos {
	t := m.Grid.Type
	var edges []geom.CPos
	bottom := m.Bounds.Bottom() - 1

	for u := m.Bounds.Left(); u < m.Bounds.Right(); u++ {
		if cells := m.Unproject(geom.PPos{U: u, V: m.Bounds.Top()}); len(cells) > 0 {
			edges = append(edges, minByV(cells).ToCPos(t))
		}
		if cells := m.Unproject(geom.PPos{U: u, V: bottom}); len(cells) > 0 {
			edges = append(edges, maxByV(cells).ToCPos(t))
		}
	}

	for v := m.Bounds.Top(); v < m.Bounds.Bottom(); v++ {
		for _, u := range []int{m.Bounds.Left(), m.Bounds.Right() - 1} {
			cells := m.Unproject(geom.PPos{U: u, V: v})
			if len(cells) == 0 {
				continue
			}
			if v == bottom {
				edges = append(edges, maxByV(cells).ToCPos(t))
			} else {
				edges = append(edges, minByV(cells).ToCPos(t))
			}
		}
	}
	return edges
}

// DistanceToEdge is the distance from pos along dir to the edge of the playable area.
func (m *Map) DistanceToEdge(pos geom.WPos, dir geom.WVec) geom.WDist {
	projected := pos.SubVec(geom.WVec{Y: pos.Z, Z: pos.Z})

	x, y := math.MaxInt32, math.MaxInt32
	if dir.X != 0 {
		edge := m.ProjectedBottomRight.X
		if dir.X < 0 {
			edge = m.ProjectedTopLeft.X
		}
		x = (edge - projected.X) / dir.X
	}
	if dir.Y != 0 {
		edge := m.ProjectedBottomRight.Y
		if dir.Y < 0 {
			edge = m.ProjectedTopLeft.Y
		}
		y = (edge - projected.Y) / dir.Y
	}
	return geom.WDist{Length: min(x, y) * dir.Length()}
}

// FindTilesInAnnulus returns the cells whose rounded-up distance from center lies in
// [minRange, maxRange], ordered by distance.
func (m *Map) FindTilesInAnnulus(center geom.CPos, minRange, maxRange int, allowOutsideBounds bool) ([]geom.CPos, error) {
	if maxRange < minRange {
		return nil, fmt.Errorf("%w: maximum range %d is less than the minimum range %d", ErrInvalidRange, maxRange, minRange)
	}
	if maxRange > m.Grid.MaximumTileSearchRange {
		return nil, fmt.Errorf("%w: requested range %d exceeds the maximum tile search range %d",
			ErrInvalidRange, maxRange, m.Grid.MaximumTileSearchRange)
	}

	var cells []geom.CPos
	for r := max(minRange, 0); r <= maxRange; r++ {
		for _, offset := range m.Grid.TilesByDistance(r) {
			c := center.Add(offset)
			if allowOutsideBounds && m.Tiles.Contains(c) || !allowOutsideBounds && m.Contains(c) {
				cells = append(cells, c)
			}
		}
	}
	return cells, nil
}

// FindTilesInCircle returns the cells within maxRange of center, ordered by distance.
func (m *Map) FindTilesInCircle(center geom.CPos, maxRange int, allowOutsideBounds bool) ([]geom.CPos, error) {
	return m.FindTilesInAnnulus(center, 0, maxRange, allowOutsideBounds)
}

func minByV(cells []geom.MPos) geom.MPos {
	return slices.MinFunc(cells, func(a, b geom.MPos) int { return a.V - b.V })
}

func maxByV(cells []geom.MPos) geom.MPos {
	return slices.MaxFunc(cells, func(a, b geom.MPos) int { return a.V - b.V })
}
