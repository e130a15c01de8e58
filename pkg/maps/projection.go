package maps

import (
	"slices"

	"tilemap/pkg/geom"
	"tilemap/pkg/layer"
)

// projection holds the forward and inverse cell projection caches.
//
// forward maps each map cell to the projected cells it covers; inverse maps each projected
// cell to the map cells covering it; height is the rendered height of each projected cell.
// c is in inverse[p] exactly when p is in forward[c].
type projection struct {
	state   cacheState
	forward *layer.CellLayer[[]geom.PPos]
	inverse *layer.ProjectedCellLayer[[]geom.MPos]
	height  *layer.ProjectedCellLayer[byte]
}

// ensureProjection builds the projection caches on first use.
func (m *Map) ensureProjection() {
	if m.proj.state != cacheUninitialized {
		return
	}

	t := m.Grid.Type
	m.proj = projection{
		state:   cacheInitializing,
		forward: layer.New[[]geom.PPos](t, m.MapSize),
		inverse: layer.NewProjected[[]geom.MPos](t, m.MapSize),
		height:  layer.NewProjected[byte](t, m.MapSize),
	}

	for c := range m.AllCells.All() {
		m.updateProjection(c)
	}
	m.proj.state = cacheReady
}

// updateProjection recomputes the projection of one cell and the rendered height of every
// projected cell it touched before or touches now.
func (m *Map) updateProjection(c geom.CPos) {
	if m.proj.state == cacheUninitialized {
		m.ensureProjection()
	}

	uv := c.ToMPos(m.Grid.Type)
	if !m.proj.forward.ContainsMap(uv) {
		return
	}

	if m.Grid.MaximumTerrainHeight == 0 {
		p := uv.ToPPos()
		m.proj.forward.SetMap(uv, []geom.PPos{p})
		m.proj.inverse.Set(p, []geom.MPos{uv})
		m.notifyProjectionChanged(c)
		return
	}

	// Remove the old reverse projection
	for _, p := range m.proj.forward.AtMap(uv) {
		inverse := slices.DeleteFunc(m.proj.inverse.At(p), func(o geom.MPos) bool { return o == uv })
		m.proj.inverse.Set(p, inverse)
		m.setProjectedHeight(p, m.projectedCellHeight(p))
	}

	projected := m.projectCell(uv)
	m.proj.forward.SetMap(uv, projected)

	for _, p := range projected {
		m.proj.inverse.Set(p, append(m.proj.inverse.At(p), uv))
		m.setProjectedHeight(p, m.projectedCellHeight(p))
	}

	m.notifyProjectionChanged(c)
}

// setProjectedHeight stores the height of p and carries it up the cliff face above p,
// whose cells take their height from the first contributing cell below them.
func (m *Map) setProjectedHeight(p geom.PPos, h byte) {
	m.proj.height.Set(p, h)
	for q := (geom.PPos{U: p.U, V: p.V - 1}); m.proj.inverse.Contains(q) && len(m.proj.inverse.At(q)) == 0; q.V-- {
		m.proj.height.Set(q, h)
	}
}

func (m *Map) notifyProjectionChanged(c geom.CPos) {
	for _, fn := range m.projectionChanged {
		fn(c)
	}
}

// projectedCellHeight returns the rendered height of p: the height of its lowest
// contributing map cell, or of the first contributing cell below it on a cliff face.
func (m *Map) projectedCellHeight(p geom.PPos) byte {
	for m.proj.inverse.Contains(p) {
		inverse := m.proj.inverse.At(p)
		if len(inverse) > 0 {
			// Cliff tops are drawn like cliff bottoms, so the tile's own height is removed.
			uv := maxByV(inverse)
			h := m.Height.AtMap(uv)
			offset := m.Tileset.TileInfo(m.Tiles.AtMap(uv)).Height
			if offset > h {
				return 0
			}
			return h - offset
		}

		// Try the next cell down if this is a cliff face
		p.V++
	}
	return 0
}

// projectCell returns the projected cells covered by uv, filtered to the layer.
func (m *Map) projectCell(uv geom.MPos) []geom.PPos {
	if !m.Height.ContainsMap(uv) {
		return nil
	}

	height := int(m.Height.AtMap(uv))
	if height == 0 {
		return []geom.PPos{uv.ToPPos()}
	}

	// Odd-height ramps are bumped up to the next even height layer
	if height&1 == 1 && m.Ramp.AtMap(uv) != 0 {
		height++
	}

	var candidates []geom.PPos
	if height&1 == 1 {
		// Odd-height flat cells are covered equally by four projected cells. The diagonal
		// neighbour depends on the row parity.
		if uv.V&1 == 1 {
			candidates = append(candidates, geom.PPos{U: uv.U + 1, V: uv.V - height})
		} else {
			candidates = append(candidates, geom.PPos{U: uv.U - 1, V: uv.V - height})
		}
		candidates = append(candidates,
			geom.PPos{U: uv.U, V: uv.V - height},
			geom.PPos{U: uv.U, V: uv.V - height + 1},
			geom.PPos{U: uv.U, V: uv.V - height - 1},
		)
	} else {
		candidates = append(candidates, geom.PPos{U: uv.U, V: uv.V - height})
	}

	return slices.DeleteFunc(candidates, func(p geom.PPos) bool {
		return !m.Height.ContainsMap(p.ToMPos())
	})
}

// ProjectedCellsCovering returns the projected cells covered by a map cell.
// The returned slice is owned by the map and must not be modified.
func (m *Map) ProjectedCellsCovering(uv geom.MPos) []geom.PPos {
	m.ensureProjection()
	if !m.proj.forward.ContainsMap(uv) {
		return nil
	}
	return m.proj.forward.AtMap(uv)
}

// Unproject returns the map cells covering a projected cell.
// The returned slice is owned by the map and must not be modified.
func (m *Map) Unproject(p geom.PPos) []geom.MPos {
	m.ensureProjection()
	if !m.proj.inverse.Contains(p) {
		return nil
	}
	return m.proj.inverse.At(p)
}

// ProjectedHeight returns the rendered height of a projected cell.
func (m *Map) ProjectedHeight(p geom.PPos) byte {
	m.ensureProjection()
	if !m.proj.height.Contains(p) {
		return 0
	}
	return m.proj.height.At(p)
}
