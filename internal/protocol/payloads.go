package protocol

import "tilemap/pkg/geom"

// ==================== Coordinates ====================

// Cell is a cell position on the wire.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MapCell is a map (u,v) or projected position on the wire.
type MapCell struct {
	U int `json:"u"`
	V int `json:"v"`
}

// CellFrom converts a cell position.
func CellFrom(c geom.CPos) Cell { return Cell{X: c.X, Y: c.Y} }

// CPos converts back to a cell position.
func (c Cell) CPos() geom.CPos { return geom.CPos{X: c.X, Y: c.Y} }

// MapCellFrom converts a map position.
func MapCellFrom(uv geom.MPos) MapCell { return MapCell{U: uv.U, V: uv.V} }

// ProjectedCellFrom converts a projected position.
func ProjectedCellFrom(p geom.PPos) MapCell { return MapCell{U: p.U, V: p.V} }

// MPos converts to a map position.
func (c MapCell) MPos() geom.MPos { return geom.MPos{U: c.U, V: c.V} }

// PPos converts to a projected position.
func (c MapCell) PPos() geom.PPos { return geom.PPos{U: c.U, V: c.V} }

// CellsFrom converts a list of cell positions.
func CellsFrom(cells []geom.CPos) []Cell {
	out := make([]Cell, len(cells))
	for i, c := range cells {
		out[i] = CellFrom(c)
	}
	return out
}

// ==================== Authentication Payloads ====================

// AuthenticatePayload is sent to authenticate or register an author.
type AuthenticatePayload struct {
	Token string `json:"token,omitempty"` // Existing token for returning authors
	Name  string `json:"name"`
}

// AuthResultPayload is the response to authentication.
type AuthResultPayload struct {
	Success  bool   `json:"success"`
	AuthorID string `json:"author_id"`
	Token    string `json:"token"` // Save this for reconnecting
	Name     string `json:"name"`
	Error    string `json:"error,omitempty"`
}

// ==================== Map Management Payloads ====================

// MapSummary is one entry of a map listing.
type MapSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	UID     string `json:"uid"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Tileset string `json:"tileset"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// MapListPayload answers list_maps.
type MapListPayload struct {
	Maps []MapSummary `json:"maps"`
}

// OpenMapPayload opens a stored map by id, name or UID (first non-empty wins).
type OpenMapPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	UID  string `json:"uid,omitempty"`
}

// CreateMapPayload creates an empty map and opens it.
type CreateMapPayload struct {
	Name    string `json:"name"`
	Tileset string `json:"tileset"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Title   string `json:"title,omitempty"`
}

// GenerateMapPayload generates a map and opens it.
type GenerateMapPayload struct {
	Name      string `json:"name"`
	Tileset   string `json:"tileset,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Plateaus  int    `json:"plateaus"`
	Lakes     int    `json:"lakes"`
	Resources int    `json:"resources"`
	Seed      int64  `json:"seed"`
}

// MapSavedPayload answers save_map.
type MapSavedPayload struct {
	ID  string `json:"id"`
	UID string `json:"uid"`
}

// MapInfoPayload describes the open map. It answers open_map, create_map,
// generate_map and map_info.
type MapInfoPayload struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	UID        string   `json:"uid"`
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	Tileset    string   `json:"tileset"`
	GridType   string   `json:"grid_type"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Bounds     [4]int   `json:"bounds"` // x, y, width, height
	MaxHeight  int      `json:"max_height"`
	Dirty      bool     `json:"dirty"`
	Viewers    int      `json:"viewers"`
	Replaced   int      `json:"replaced_tiles,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// ==================== Query Payloads ====================

// CellPayload is the request for queries on a single cell.
type CellPayload struct {
	Cell Cell `json:"cell"`
}

// ContainsResultPayload answers contains.
type ContainsResultPayload struct {
	Cell     Cell `json:"cell"`
	Contains bool `json:"contains"`
}

// ClampResultPayload answers clamp.
type ClampResultPayload struct {
	Cell    Cell `json:"cell"`
	Clamped Cell `json:"clamped"`
}

// ProjectionPayload answers project.
type ProjectionPayload struct {
	Cell      Cell      `json:"cell"`
	Projected []MapCell `json:"projected"`
}

// UnprojectPayload is the request for unproject.
type UnprojectPayload struct {
	Projected MapCell `json:"projected"`
}

// UnprojectionPayload answers unproject.
type UnprojectionPayload struct {
	Projected MapCell   `json:"projected"`
	Height    int       `json:"height"`
	Cells     []MapCell `json:"cells"`
}

// TerrainPayload answers terrain_at.
type TerrainPayload struct {
	Cell      Cell   `json:"cell"`
	Contains  bool   `json:"contains"`
	TileType  int    `json:"tile_type"`
	TileIndex int    `json:"tile_index"`
	Terrain   string `json:"terrain"`
	IsWater   bool   `json:"is_water"`
	Height    int    `json:"height"`
	Ramp      int    `json:"ramp"`
	Resource  int    `json:"resource"`
	Density   int    `json:"density"`
}

// FindTilesPayload is the request for find_tiles.
type FindTilesPayload struct {
	Center             Cell `json:"center"`
	MinRange           int  `json:"min_range"`
	MaxRange           int  `json:"max_range"`
	AllowOutsideBounds bool `json:"allow_outside_bounds"`
}

// TilesPayload answers find_tiles.
type TilesPayload struct {
	Cells []Cell `json:"cells"`
}

// EdgeCellsPayload is the request for edge_cells. With ClosestTo set only
// the closest edge cell is returned.
type EdgeCellsPayload struct {
	ClosestTo *Cell `json:"closest_to,omitempty"`
}

// EdgeCellsResultPayload answers edge_cells.
type EdgeCellsResultPayload struct {
	Cells []Cell `json:"cells"`
}

// ==================== Edit Payloads ====================

// SetHeightPayload sets the height of one cell.
type SetHeightPayload struct {
	Cell   Cell `json:"cell"`
	Height int  `json:"height"`
}

// SetTilePayload sets the terrain tile of one cell.
type SetTilePayload struct {
	Cell  Cell `json:"cell"`
	Type  int  `json:"type"`
	Index int  `json:"index"`
}

// CellsChangedPayload lists the cells whose projection changed after an edit.
type CellsChangedPayload struct {
	MapID  string `json:"map_id"`
	Edited Cell   `json:"edited"`
	Cells  []Cell `json:"cells"`
	Author string `json:"author,omitempty"`
}

// ==================== System Payloads ====================

// WelcomePayload is sent on connection.
type WelcomePayload struct {
	ServerVersion string `json:"server_version"`
	GridType      string `json:"grid_type"`
}
