// Package grid describes the static per-mod cell geometry: grid shape, terrain height
// range, ramp shapes, sub-cell offsets and the distance-ordered search rings.
package grid

import (
	"cmp"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"

	"tilemap/pkg/geom"
)

//go:embed data/*.json
var presetFiles embed.FS

// ErrInvalidConfig is returned for grid definitions that cannot be used.
var ErrInvalidConfig = errors.New("invalid grid config")

// SubCell indexes a position inside a cell.
type SubCell int

const (
	SubCellInvalid  SubCell = -2
	SubCellAny      SubCell = -1
	SubCellFullCell SubCell = 0
	SubCellFirst    SubCell = 1
)

// Config is the JSON form of a grid definition.
type Config struct {
	Type                   string   `json:"type"`
	TileSize               [2]int   `json:"tile_size"`
	MaximumTerrainHeight   int      `json:"maximum_terrain_height"`
	DefaultSubCell         *int     `json:"default_sub_cell,omitempty"`
	MaximumTileSearchRange int      `json:"maximum_tile_search_range"`
	SubCellOffsets         [][3]int `json:"sub_cell_offsets,omitempty"`
	EnableDepthBuffer      bool     `json:"enable_depth_buffer"`
}

// MapGrid is the immutable grid geometry shared by every map of a mod.
type MapGrid struct {
	Type                   geom.GridType
	TileSize               geom.Size
	MaximumTerrainHeight   byte
	DefaultSubCell         SubCell
	MaximumTileSearchRange int
	EnableDepthBuffer      bool
	SubCellOffsets         []geom.WVec
	Ramps                  []CellRamp

	tilesByDistance [][]geom.CVec
}

var defaultSubCellOffsets = []geom.WVec{
	{X: 0, Y: 0, Z: 0},       // full cell
	{X: -299, Y: -256, Z: 0}, // top left
	{X: 256, Y: -256, Z: 0},  // top right
	{X: 0, Y: 0, Z: 0},       // center
	{X: -299, Y: 256, Z: 0},  // bottom left
	{X: 256, Y: 256, Z: 0},   // bottom right
}

// New validates a config and precomputes the derived tables.
func New(cfg Config) (*MapGrid, error) {
	gridType, err := geom.ParseGridType(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.MaximumTerrainHeight < 0 || cfg.MaximumTerrainHeight > 255 {
		return nil, fmt.Errorf("%w: maximum terrain height %d out of range", ErrInvalidConfig, cfg.MaximumTerrainHeight)
	}
	if cfg.MaximumTileSearchRange < 0 {
		return nil, fmt.Errorf("%w: negative tile search range", ErrInvalidConfig)
	}

	g := &MapGrid{
		Type:                   gridType,
		TileSize:               geom.Size{Width: cfg.TileSize[0], Height: cfg.TileSize[1]},
		MaximumTerrainHeight:   byte(cfg.MaximumTerrainHeight),
		MaximumTileSearchRange: cfg.MaximumTileSearchRange,
		EnableDepthBuffer:      cfg.EnableDepthBuffer,
		SubCellOffsets:         defaultSubCellOffsets,
	}
	if g.TileSize.Width == 0 || g.TileSize.Height == 0 {
		g.TileSize = geom.Size{Width: 24, Height: 24}
	}
	if len(cfg.SubCellOffsets) > 0 {
		g.SubCellOffsets = make([]geom.WVec, len(cfg.SubCellOffsets))
		for i, o := range cfg.SubCellOffsets {
			g.SubCellOffsets[i] = geom.WVec{X: o[0], Y: o[1], Z: o[2]}
		}
	}

	// The default sub-cell is the middle entry unless configured.
	if cfg.DefaultSubCell == nil {
		g.DefaultSubCell = SubCell(len(g.SubCellOffsets) / 2)
	} else {
		lowest := 0
		if len(g.SubCellOffsets) > 1 {
			lowest = 1
		}
		idx := *cfg.DefaultSubCell
		if idx < lowest || idx >= len(g.SubCellOffsets) {
			return nil, fmt.Errorf("%w: default sub-cell %d must index the offsets and be above 0 when sub-cells exist",
				ErrInvalidConfig, idx)
		}
		g.DefaultSubCell = SubCell(idx)
	}

	g.Ramps = standardRamps(gridType)
	g.tilesByDistance = createTilesByDistance(g.MaximumTileSearchRange)
	return g, nil
}

// Load parses a JSON grid definition.
func Load(r io.Reader) (*MapGrid, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse grid JSON: %w", err)
	}
	return New(cfg)
}

// LoadFile parses a JSON grid definition from disk.
func LoadFile(filename string) (*MapGrid, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Preset loads one of the embedded grid definitions ("rectangular", "isometric").
func Preset(name string) (*MapGrid, error) {
	f, err := presetFiles.Open(path.Join("data", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("unknown grid preset %q: %w", name, err)
	}
	defer f.Close()
	return Load(f)
}

// Resolve loads a preset by name, or a grid file when the name is a path.
func Resolve(nameOrPath string) (*MapGrid, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return LoadFile(nameOrPath)
	}
	return Preset(nameOrPath)
}

// TilesByDistance returns the offsets whose rounded-up length equals r,
// or nil when r is outside the precomputed range.
func (g *MapGrid) TilesByDistance(r int) []geom.CVec {
	if r < 0 || r >= len(g.tilesByDistance) {
		return nil
	}
	return g.tilesByDistance[r]
}

// Ramp returns the ramp with the given id, falling back to the flat ramp.
func (g *MapGrid) Ramp(id byte) CellRamp {
	if int(id) < len(g.Ramps) {
		return g.Ramps[id]
	}
	return g.Ramps[0]
}

// CellHeightStep is the world height of one terrain height level.
// Isometric grids measure 1024 along the diagonal, so a half step is 512*sqrt(2).
func (g *MapGrid) CellHeightStep() geom.WDist {
	if g.Type == geom.RectangularIsometric {
		return geom.WDist{Length: 724}
	}
	return geom.WDist{Length: 512}
}

func createTilesByDistance(maxRange int) [][]geom.CVec {
	rings := make([][]geom.CVec, maxRange+1)
	for j := -maxRange; j <= maxRange; j++ {
		for i := -maxRange; i <= maxRange; i++ {
			d := i*i + j*j
			if maxRange*maxRange >= d {
				r := geom.ISqrt(d, geom.RoundCeiling)
				rings[r] = append(rings[r], geom.CVec{X: i, Y: j})
			}
		}
	}

	for _, ring := range rings {
		// Equal lengths are ordered by hash first; it scatters the winner instead of
		// always favouring the top-left offset.
		slices.SortStableFunc(ring, func(a, b geom.CVec) int {
			return cmp.Or(
				cmp.Compare(a.LengthSquared(), b.LengthSquared()),
				cmp.Compare(a.Hash(), b.Hash()),
				cmp.Compare(a.X, b.X),
				cmp.Compare(a.Y, b.Y),
			)
		})
	}
	return rings
}
