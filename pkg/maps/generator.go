package maps

import (
	"math/rand"
	"time"

	"tilemap/pkg/geom"
)

// GeneratorOptions contains settings for random map generation.
type GeneratorOptions struct {
	Width     int    // Map width: 16-128
	Height    int    // Map height: 16-128, 0 uses 3/4 of the width
	Tileset   string // Tileset id, empty for the loader's default
	Plateaus  int    // Raised areas: 0-16
	Lakes     int    // Water bodies: 0-8
	Resources int    // Resource coverage percentage of clear cells: 0-50
	Seed      int64  // Random seed, 0 picks one from the clock
}

// DefaultOptions returns the default generator settings.
func DefaultOptions() GeneratorOptions {
	return GeneratorOptions{
		Width:     48,
		Tileset:   "TEMPERAT",
		Plateaus:  4,
		Lakes:     2,
		Resources: 10,
	}
}

// StepKind is the feature placed by a generator step.
type StepKind int

const (
	StepPlateau StepKind = iota
	StepLake
	StepResources
	StepComplete
)

// GeneratorStep records one feature being placed, for step-by-step display.
type GeneratorStep struct {
	Kind   StepKind
	Height byte
	Cells  []geom.CPos
}

// Generator fills a new map with plateaus, lakes and resource fields.
type Generator struct {
	options GeneratorOptions
	loader  *Loader
	rng     *rand.Rand
	width   int
	height  int
	claimed map[geom.MPos]bool
	steps   []GeneratorStep
}

// NewGenerator creates a generator that builds maps through the loader.
func NewGenerator(l *Loader, opts GeneratorOptions) *Generator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g := &Generator{
		options: opts,
		loader:  l,
		rng:     rand.New(rand.NewSource(seed)),
		claimed: make(map[geom.MPos]bool),
	}

	g.width = clamp(opts.Width, 16, 128)
	g.height = opts.Height
	if g.height == 0 {
		g.height = g.width * 3 / 4
	}
	g.height = clamp(g.height, 16, 128)
	return g
}

func clamp(val, lo, hi int) int {
	return min(max(val, lo), hi)
}

// Generate creates the map and returns it with the steps that built it.
func (g *Generator) Generate() (*Map, []GeneratorStep, error) {
	tileset := g.options.Tileset
	if tileset == "" {
		tileset = DefaultOptions().Tileset
	}
	m, err := g.loader.Create(tileset, g.width, g.height)
	if err != nil {
		return nil, nil, err
	}
	m.Title = "Generated map"
	m.Author = "Generator"

	maxH := int(m.Grid.MaximumTerrainHeight)
	plateaus := clamp(g.options.Plateaus, 0, 16)
	if maxH < 2 {
		plateaus = 0
	}

	// Plateaus are placed first so that lakes stay on the low ground
	for _, seed := range g.placeSeeds(plateaus, 6) {
		h := byte(2 * (1 + g.rng.Intn(max(maxH/2, 1))))
		cells := g.grow(m, seed, 12+g.rng.Intn(24))
		for _, uv := range cells {
			m.Height.SetMap(uv, h)
		}
		g.steps = append(g.steps, GeneratorStep{Kind: StepPlateau, Height: h, Cells: g.toCells(m, cells)})
	}

	if water, ok := m.Tileset.TileOf("Water"); ok {
		for _, seed := range g.placeSeeds(clamp(g.options.Lakes, 0, 8), 5) {
			cells := g.grow(m, seed, 6+g.rng.Intn(12))
			for _, uv := range cells {
				m.Height.SetMap(uv, 0)
				m.Tiles.SetMap(uv, water)
			}
			g.steps = append(g.steps, GeneratorStep{Kind: StepLake, Cells: g.toCells(m, cells)})
		}
	}

	if cells := g.assignResources(m); len(cells) > 0 {
		g.steps = append(g.steps, GeneratorStep{Kind: StepResources, Cells: cells})
	}

	g.steps = append(g.steps, GeneratorStep{Kind: StepComplete})
	return m, g.steps, nil
}

// placeSeeds scatters count seed cells, reducing the spacing until all of them fit.
func (g *Generator) placeSeeds(count, spacing int) []geom.MPos {
	var seeds []geom.MPos
	if count == 0 {
		return nil
	}

	minU, maxU := 2, g.width-3
	minV, maxV := 2, g.height-3
	for ; spacing >= 2; spacing-- {
		seeds = seeds[:0]
		for attempts := 0; len(seeds) < count && attempts < count*150; attempts++ {
			uv := geom.MPos{U: minU + g.rng.Intn(maxU-minU+1), V: minV + g.rng.Intn(maxV-minV+1)}
			if g.claimed[uv] {
				continue
			}

			tooClose := false
			for _, s := range seeds {
				du, dv := uv.U-s.U, uv.V-s.V
				if du*du+dv*dv < spacing*spacing {
					tooClose = true
					break
				}
			}
			if !tooClose {
				seeds = append(seeds, uv)
			}
		}

		if len(seeds) >= count {
			break
		}
	}
	return seeds
}

var growDirections = []geom.MPos{{U: 1}, {U: -1}, {V: 1}, {V: -1}}

// grow claims up to target unclaimed cells around start, picking frontier cells at random.
func (g *Generator) grow(m *Map, start geom.MPos, target int) []geom.MPos {
	if g.claimed[start] || !m.Tiles.ContainsMap(start) {
		return nil
	}

	cells := []geom.MPos{start}
	g.claimed[start] = true
	frontier := []geom.MPos{}
	inFrontier := make(map[geom.MPos]bool)

	addNeighbors := func(uv geom.MPos) {
		for _, d := range growDirections {
			n := geom.MPos{U: uv.U + d.U, V: uv.V + d.V}
			// Keep a one cell margin so features never touch the map edge
			if n.U < 1 || n.V < 1 || n.U >= g.width-1 || n.V >= g.height-1 {
				continue
			}
			if !g.claimed[n] && !inFrontier[n] {
				frontier = append(frontier, n)
				inFrontier[n] = true
			}
		}
	}
	addNeighbors(start)

	for len(cells) < target && len(frontier) > 0 {
		i := g.rng.Intn(len(frontier))
		uv := frontier[i]
		frontier[i] = frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if g.claimed[uv] {
			continue
		}

		g.claimed[uv] = true
		cells = append(cells, uv)
		addNeighbors(uv)
	}
	return cells
}

// assignResources scatters resource tiles over flat, dry, unclaimed cells.
func (g *Generator) assignResources(m *Map) []geom.CPos {
	percent := clamp(g.options.Resources, 0, 50)
	if percent == 0 {
		return nil
	}

	var placed []geom.CPos
	for uv := range m.AllCells.MapCoords().All() {
		if g.claimed[uv] || m.Ramp.AtMap(uv) != 0 {
			continue
		}
		c := uv.ToCPos(m.Grid.Type)
		if m.TerrainInfo(c).IsWater || g.rng.Intn(100) >= percent {
			continue
		}
		m.Resources.SetMap(uv, ResourceTile{Type: 1, Density: byte(1 + g.rng.Intn(12))})
		placed = append(placed, c)
	}
	return placed
}

func (g *Generator) toCells(m *Map, cells []geom.MPos) []geom.CPos {
	out := make([]geom.CPos, len(cells))
	for i, uv := range cells {
		out[i] = uv.ToCPos(m.Grid.Type)
	}
	return out
}
