package maps

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
)

//go:embed data/tilesets/*.json
var tilesetFiles embed.FS

// RawTileset is the format stored in tileset JSON files.
type RawTileset struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	DefaultTile              [2]int            `json:"default_tile"`
	MinHeightColorBrightness float64           `json:"min_height_color_brightness,omitempty"`
	MaxHeightColorBrightness float64           `json:"max_height_color_brightness,omitempty"`
	Terrain                  []RawTerrainType  `json:"terrain"`
	Templates                []RawTileTemplate `json:"templates"`
}

// RawTerrainType is a terrain type entry from the JSON file.
type RawTerrainType struct {
	Type        string   `json:"type"`
	Color       string   `json:"color"`
	IsWater     bool     `json:"is_water,omitempty"`
	TargetTypes []string `json:"target_types,omitempty"`
}

// RawTileTemplate is a template entry from the JSON file.
type RawTileTemplate struct {
	ID       uint16        `json:"id"`
	Size     [2]int        `json:"size"`
	PickAny  bool          `json:"pick_any,omitempty"`
	Category string        `json:"category,omitempty"`
	Tiles    []RawTileInfo `json:"tiles"`
}

// RawTileInfo describes one tile of a template. An entry without terrain leaves the tile undefined.
type RawTileInfo struct {
	Terrain    string `json:"terrain"`
	Height     byte   `json:"height,omitempty"`
	Ramp       byte   `json:"ramp,omitempty"`
	LeftColor  string `json:"left_color,omitempty"`
	RightColor string `json:"right_color,omitempty"`
}

// TerrainType is a named class of terrain.
type TerrainType struct {
	Type        string
	Color       color.RGBA
	IsWater     bool
	TargetTypes []string
}

// TileInfo is the runtime data for one template tile.
type TileInfo struct {
	TerrainType byte
	Height      byte
	RampType    byte
	LeftColor   color.RGBA
	RightColor  color.RGBA
}

// TileTemplate is a group of tiles placed together.
type TileTemplate struct {
	ID       uint16
	Width    int
	Height   int
	PickAny  bool
	Category string
	Tiles    []*TileInfo
}

// Tileset is the terrain lookup data for a theatre of maps.
type Tileset struct {
	ID                       string
	Name                     string
	DefaultTile              TerrainTile
	MinHeightColorBrightness float64
	MaxHeightColorBrightness float64
	TerrainTypes             []TerrainType
	Templates                map[uint16]*TileTemplate

	indexByType     map[string]byte
	defaultWalkable byte
}

// ParseTileset decodes and validates a tileset definition.
func ParseTileset(r io.Reader) (*Tileset, error) {
	var raw RawTileset
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse tileset JSON: %w", err)
	}
	return processTileset(&raw)
}

func processTileset(raw *RawTileset) (*Tileset, error) {
	if raw.ID == "" {
		return nil, errors.New("tileset has no id")
	}

	ts := &Tileset{
		ID:                       raw.ID,
		Name:                     raw.Name,
		DefaultTile:              TerrainTile{Type: uint16(raw.DefaultTile[0]), Index: byte(raw.DefaultTile[1])},
		MinHeightColorBrightness: raw.MinHeightColorBrightness,
		MaxHeightColorBrightness: raw.MaxHeightColorBrightness,
		Templates:                make(map[uint16]*TileTemplate, len(raw.Templates)),
		indexByType:              make(map[string]byte),
	}
	if ts.MinHeightColorBrightness == 0 {
		ts.MinHeightColorBrightness = 1
	}
	if ts.MaxHeightColorBrightness == 0 {
		ts.MaxHeightColorBrightness = 1
	}

	// Terrain indexes follow the type names in sorted order.
	terrain := slices.Clone(raw.Terrain)
	slices.SortFunc(terrain, func(a, b RawTerrainType) int { return strings.Compare(a.Type, b.Type) })
	if len(terrain) >= int(NoCustomTerrain) {
		return nil, fmt.Errorf("tileset %s: too many terrain types", raw.ID)
	}
	for i, t := range terrain {
		if _, dup := ts.indexByType[t.Type]; dup {
			return nil, fmt.Errorf("tileset %s: duplicate terrain type %q", raw.ID, t.Type)
		}
		c, err := parseColor(t.Color)
		if err != nil {
			return nil, fmt.Errorf("tileset %s: terrain %s: %w", raw.ID, t.Type, err)
		}
		ts.indexByType[t.Type] = byte(i)
		ts.TerrainTypes = append(ts.TerrainTypes, TerrainType{
			Type:        t.Type,
			Color:       c,
			IsWater:     t.IsWater,
			TargetTypes: t.TargetTypes,
		})
	}

	clearIndex, ok := ts.indexByType["Clear"]
	if !ok {
		return nil, fmt.Errorf("tileset %s lacks terrain type Clear", raw.ID)
	}
	ts.defaultWalkable = clearIndex

	for _, rt := range raw.Templates {
		tpl, err := ts.processTemplate(rt)
		if err != nil {
			return nil, err
		}
		ts.Templates[tpl.ID] = tpl
	}

	if _, ok := ts.TryGetTileInfo(ts.DefaultTile); !ok {
		return nil, fmt.Errorf("tileset %s: default tile %v is not defined", raw.ID, ts.DefaultTile)
	}
	return ts, nil
}

func (ts *Tileset) processTemplate(rt RawTileTemplate) (*TileTemplate, error) {
	tpl := &TileTemplate{
		ID:       rt.ID,
		Width:    max(rt.Size[0], 1),
		Height:   max(rt.Size[1], 1),
		PickAny:  rt.PickAny,
		Category: rt.Category,
	}
	if _, dup := ts.Templates[rt.ID]; dup {
		return nil, fmt.Errorf("tileset %s: duplicate template %d", ts.ID, rt.ID)
	}
	if !rt.PickAny && len(rt.Tiles) > tpl.Width*tpl.Height {
		return nil, fmt.Errorf("tileset %s: template %d has more tiles than its size", ts.ID, rt.ID)
	}

	tpl.Tiles = make([]*TileInfo, len(rt.Tiles))
	for i, rti := range rt.Tiles {
		if rti.Terrain == "" {
			continue
		}
		index, ok := ts.indexByType[rti.Terrain]
		if !ok {
			return nil, fmt.Errorf("tileset %s: template %d uses unknown terrain %q", ts.ID, rt.ID, rti.Terrain)
		}

		// Tiles fall back to their terrain colour.
		left, right := ts.TerrainTypes[index].Color, ts.TerrainTypes[index].Color
		var err error
		if rti.LeftColor != "" {
			if left, err = parseColor(rti.LeftColor); err != nil {
				return nil, fmt.Errorf("tileset %s: template %d: %w", ts.ID, rt.ID, err)
			}
		}
		if rti.RightColor != "" {
			if right, err = parseColor(rti.RightColor); err != nil {
				return nil, fmt.Errorf("tileset %s: template %d: %w", ts.ID, rt.ID, err)
			}
		}

		tpl.Tiles[i] = &TileInfo{
			TerrainType: index,
			Height:      rti.Height,
			RampType:    rti.Ramp,
			LeftColor:   left,
			RightColor:  right,
		}
	}
	return tpl, nil
}

// TryGetTileInfo returns the tile info for t, if the tileset defines it.
func (ts *Tileset) TryGetTileInfo(t TerrainTile) (*TileInfo, bool) {
	tpl, ok := ts.Templates[t.Type]
	if !ok || int(t.Index) >= len(tpl.Tiles) {
		return nil, false
	}
	info := tpl.Tiles[t.Index]
	return info, info != nil
}

// TileInfo returns the tile info for t, falling back to the default tile.
func (ts *Tileset) TileInfo(t TerrainTile) *TileInfo {
	if info, ok := ts.TryGetTileInfo(t); ok {
		return info
	}
	info, _ := ts.TryGetTileInfo(ts.DefaultTile)
	return info
}

// TerrainIndex returns the terrain type index of a tile.
func (ts *Tileset) TerrainIndex(t TerrainTile) byte {
	if info, ok := ts.TryGetTileInfo(t); ok {
		return info.TerrainType
	}
	return ts.defaultWalkable
}

// TerrainIndexByType looks up a terrain type by name.
func (ts *Tileset) TerrainIndexByType(name string) (byte, bool) {
	i, ok := ts.indexByType[name]
	return i, ok
}

// TerrainType returns the terrain type at index, or the default walkable type.
func (ts *Tileset) TerrainType(index byte) TerrainType {
	if int(index) < len(ts.TerrainTypes) {
		return ts.TerrainTypes[index]
	}
	return ts.TerrainTypes[ts.defaultWalkable]
}

// TileOf returns a tile of the first template whose tiles use the named terrain.
func (ts *Tileset) TileOf(terrain string) (TerrainTile, bool) {
	index, ok := ts.indexByType[terrain]
	if !ok {
		return TerrainTile{}, false
	}

	ids := make([]uint16, 0, len(ts.Templates))
	for id := range ts.Templates {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		for i, info := range ts.Templates[id].Tiles {
			if info != nil && info.TerrainType == index && info.RampType == 0 && info.Height == 0 {
				return TerrainTile{Type: id, Index: byte(i)}, true
			}
		}
	}
	return TerrainTile{}, false
}

func parseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Tilesets loads tilesets on demand from a directory of JSON files and keeps them
// for the lifetime of the cache.
type Tilesets struct {
	mu     sync.Mutex
	fsys   fs.FS
	dir    string
	loaded map[string]*Tileset
}

// NewTilesets creates a cache reading <dir>/<id>.json files from fsys.
func NewTilesets(fsys fs.FS, dir string) *Tilesets {
	return &Tilesets{fsys: fsys, dir: dir, loaded: make(map[string]*Tileset)}
}

// DefaultTilesets creates a cache over the built-in tilesets.
func DefaultTilesets() *Tilesets {
	return NewTilesets(tilesetFiles, "data/tilesets")
}

// Add registers a tileset, replacing any cached tileset with the same id.
func (c *Tilesets) Add(ts *Tileset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded[strings.ToLower(ts.ID)] = ts
}

// Get returns the tileset with the given id.
func (c *Tilesets) Get(id string) (*Tileset, error) {
	key := strings.ToLower(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.loaded[key]; ok {
		return ts, nil
	}
	if c.fsys == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTileset, id)
	}

	f, err := c.fsys.Open(path.Join(c.dir, key+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTileset, id)
		}
		return nil, fmt.Errorf("failed to open tileset %s: %w", id, err)
	}
	defer f.Close()

	ts, err := ParseTileset(f)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(ts.ID, id) {
		return nil, fmt.Errorf("tileset file %s.json declares id %s", key, ts.ID)
	}
	c.loaded[key] = ts
	return ts, nil
}

// IDs lists the tilesets available in the cache directory and those added directly.
func (c *Tilesets) IDs() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, ts := range c.loaded {
		seen[strings.ToLower(ts.ID)] = true
		ids = append(ids, ts.ID)
	}
	if c.fsys != nil {
		entries, err := fs.ReadDir(c.fsys, c.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read tileset directory: %w", err)
		}
		for _, entry := range entries {
			name, ok := strings.CutSuffix(entry.Name(), ".json")
			if entry.IsDir() || !ok || seen[name] {
				continue
			}
			ids = append(ids, strings.ToUpper(name))
		}
	}
	slices.Sort(ids)
	return ids, nil
}
