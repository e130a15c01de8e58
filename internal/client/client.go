package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tilemap/internal/protocol"
	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

// Client is a map query client: a connection to the map server plus the
// persisted author identity.
type Client struct {
	config  *Config
	network *NetworkClient
	http    *http.Client
	baseURL string

	mu      sync.Mutex
	welcome *protocol.WelcomePayload
	info    *protocol.MapInfoPayload

	// OnCellsChanged receives edits made by any viewer of the open map,
	// including our own. Broadcasts arrive on the network read goroutine;
	// our own edits are reported on the goroutine that made them.
	OnCellsChanged func(protocol.CellsChangedPayload)
	OnDisconnect   func(error)
}

// New creates a client using cfg. A nil cfg uses the defaults.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Client{
		config:  cfg,
		network: NewNetworkClient(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	c.network.OnMessage = c.handleMessage
	c.network.OnDisconnect = func(err error) {
		if c.OnDisconnect != nil {
			c.OnDisconnect(err)
		}
	}
	return c
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// HTTPURL turns a server address into the base URL of its HTTP API.
func HTTPURL(serverAddr string) string {
	switch {
	case strings.HasPrefix(serverAddr, "http://"), strings.HasPrefix(serverAddr, "https://"):
		return strings.TrimSuffix(serverAddr, "/")
	case strings.HasPrefix(serverAddr, "ws://"):
		return "http://" + strings.TrimSuffix(strings.TrimPrefix(serverAddr, "ws://"), "/")
	case strings.HasPrefix(serverAddr, "wss://"):
		return "https://" + strings.TrimSuffix(strings.TrimPrefix(serverAddr, "wss://"), "/")
	default:
		return "http://" + serverAddr
	}
}

// GridPreset returns the grid preset name matching a grid type reported by
// the server.
func GridPreset(gridType string) string {
	if gridType == geom.RectangularIsometric.String() {
		return "isometric"
	}
	return "rectangular"
}

// Connect connects to the server and remembers it as the last server.
func (c *Client) Connect(ctx context.Context, serverAddr string) error {
	if err := c.network.Connect(ctx, serverAddr); err != nil {
		return err
	}
	c.baseURL = HTTPURL(serverAddr)
	c.config.LastServer = serverAddr
	return nil
}

// Close disconnects from the server.
func (c *Client) Close() {
	c.network.Disconnect()
}

// IsConnected returns true if connected to the server.
func (c *Client) IsConnected() bool {
	return c.network.IsConnected()
}

// Welcome returns the server greeting, or nil before it has arrived.
func (c *Client) Welcome() *protocol.WelcomePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

// OpenMapInfo returns the last known description of the open map.
func (c *Client) OpenMapInfo() *protocol.MapInfoPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Client) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeWelcome:
		var payload protocol.WelcomePayload
		if err := msg.ParsePayload(&payload); err != nil {
			log.Printf("Failed to parse welcome: %v", err)
			return
		}
		c.mu.Lock()
		c.welcome = &payload
		c.mu.Unlock()

	case protocol.TypeCellsChanged:
		var payload protocol.CellsChangedPayload
		if err := msg.ParsePayload(&payload); err != nil {
			log.Printf("Failed to parse cells_changed: %v", err)
			return
		}
		if c.OnCellsChanged != nil {
			c.OnCellsChanged(payload)
		}

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := msg.ParsePayload(&payload); err == nil {
			log.Printf("Server error: %v", &payload)
		}

	case protocol.TypePong:

	default:
		log.Printf("Unhandled message type: %s", msg.Type)
	}
}

// ==================== Authentication ====================

// Authenticate signs in with the saved token, or registers a new author
// under name. The returned token is stored in the config.
func (c *Client) Authenticate(ctx context.Context, name string) (*protocol.AuthResultPayload, error) {
	if name == "" {
		name = c.config.AuthorName
	}
	var result protocol.AuthResultPayload
	err := c.network.Call(ctx, protocol.TypeAuthenticate, protocol.AuthenticatePayload{
		Token: c.config.AuthorToken,
		Name:  name,
	}, protocol.TypeAuthResult, &result)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return &result, fmt.Errorf("authentication failed: %s", result.Error)
	}

	c.config.AuthorToken = result.Token
	c.config.AuthorID = result.AuthorID
	c.config.AuthorName = result.Name
	return &result, nil
}

// ==================== Map Management ====================

// ListMaps lists the stored maps.
func (c *Client) ListMaps(ctx context.Context) ([]protocol.MapSummary, error) {
	var list protocol.MapListPayload
	if err := c.network.Call(ctx, protocol.TypeListMaps, struct{}{}, protocol.TypeMapList, &list); err != nil {
		return nil, err
	}
	return list.Maps, nil
}

// OpenMap opens a stored map by id, name or UID.
func (c *Client) OpenMap(ctx context.Context, req protocol.OpenMapPayload) (*protocol.MapInfoPayload, error) {
	return c.mapInfoCall(ctx, protocol.TypeOpenMap, req)
}

// CreateMap creates an empty map on the server and opens it.
func (c *Client) CreateMap(ctx context.Context, req protocol.CreateMapPayload) (*protocol.MapInfoPayload, error) {
	return c.mapInfoCall(ctx, protocol.TypeCreateMap, req)
}

// GenerateMap generates a map on the server and opens it.
func (c *Client) GenerateMap(ctx context.Context, req protocol.GenerateMapPayload) (*protocol.MapInfoPayload, error) {
	return c.mapInfoCall(ctx, protocol.TypeGenerateMap, req)
}

// MapInfo describes the open map.
func (c *Client) MapInfo(ctx context.Context) (*protocol.MapInfoPayload, error) {
	return c.mapInfoCall(ctx, protocol.TypeMapInfo, struct{}{})
}

func (c *Client) mapInfoCall(ctx context.Context, msgType protocol.MessageType, payload interface{}) (*protocol.MapInfoPayload, error) {
	var info protocol.MapInfoPayload
	if err := c.network.Call(ctx, msgType, payload, protocol.TypeMapInfo, &info); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.info = &info
	c.mu.Unlock()
	if info.Name != "" {
		c.config.LastMap = info.Name
	}
	return &info, nil
}

// CloseMap leaves the open map. The server saves pending edits when the
// last viewer leaves.
func (c *Client) CloseMap(ctx context.Context) error {
	if err := c.network.Call(ctx, protocol.TypeCloseMap, struct{}{}, protocol.TypeMapInfo, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.info = nil
	c.mu.Unlock()
	return nil
}

// SaveMap stores the open map and returns its new UID.
func (c *Client) SaveMap(ctx context.Context) (string, error) {
	var saved protocol.MapSavedPayload
	if err := c.network.Call(ctx, protocol.TypeSaveMap, struct{}{}, protocol.TypeMapSaved, &saved); err != nil {
		return "", err
	}
	return saved.UID, nil
}

// ==================== Queries ====================

// Contains reports whether the cell is inside the open map's bounds.
func (c *Client) Contains(ctx context.Context, cell geom.CPos) (bool, error) {
	var result protocol.ContainsResultPayload
	err := c.network.Call(ctx, protocol.TypeContains, protocol.CellPayload{Cell: protocol.CellFrom(cell)}, protocol.TypeContainsResult, &result)
	return result.Contains, err
}

// Clamp returns the nearest cell inside the open map's bounds.
func (c *Client) Clamp(ctx context.Context, cell geom.CPos) (geom.CPos, error) {
	var result protocol.ClampResultPayload
	if err := c.network.Call(ctx, protocol.TypeClamp, protocol.CellPayload{Cell: protocol.CellFrom(cell)}, protocol.TypeClampResult, &result); err != nil {
		return geom.CPos{}, err
	}
	return result.Clamped.CPos(), nil
}

// Project returns the projected cells covering a cell.
func (c *Client) Project(ctx context.Context, cell geom.CPos) ([]geom.PPos, error) {
	var result protocol.ProjectionPayload
	if err := c.network.Call(ctx, protocol.TypeProject, protocol.CellPayload{Cell: protocol.CellFrom(cell)}, protocol.TypeProjection, &result); err != nil {
		return nil, err
	}
	out := make([]geom.PPos, len(result.Projected))
	for i, p := range result.Projected {
		out[i] = p.PPos()
	}
	return out, nil
}

// Unproject returns the map cells that project onto p and its projected height.
func (c *Client) Unproject(ctx context.Context, p geom.PPos) ([]geom.MPos, int, error) {
	var result protocol.UnprojectionPayload
	err := c.network.Call(ctx, protocol.TypeUnproject, protocol.UnprojectPayload{
		Projected: protocol.ProjectedCellFrom(p),
	}, protocol.TypeUnprojection, &result)
	if err != nil {
		return nil, 0, err
	}
	out := make([]geom.MPos, len(result.Cells))
	for i, uv := range result.Cells {
		out[i] = uv.MPos()
	}
	return out, result.Height, nil
}

// TerrainAt describes one cell of the open map.
func (c *Client) TerrainAt(ctx context.Context, cell geom.CPos) (*protocol.TerrainPayload, error) {
	var result protocol.TerrainPayload
	if err := c.network.Call(ctx, protocol.TypeTerrainAt, protocol.CellPayload{Cell: protocol.CellFrom(cell)}, protocol.TypeTerrain, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindTiles returns the cells between minRange and maxRange of center.
func (c *Client) FindTiles(ctx context.Context, center geom.CPos, minRange, maxRange int, allowOutsideBounds bool) ([]geom.CPos, error) {
	var result protocol.TilesPayload
	err := c.network.Call(ctx, protocol.TypeFindTiles, protocol.FindTilesPayload{
		Center:             protocol.CellFrom(center),
		MinRange:           minRange,
		MaxRange:           maxRange,
		AllowOutsideBounds: allowOutsideBounds,
	}, protocol.TypeTiles, &result)
	if err != nil {
		return nil, err
	}
	return cellsOf(result.Cells), nil
}

// EdgeCells returns the cells along the open map's bounds.
func (c *Client) EdgeCells(ctx context.Context) ([]geom.CPos, error) {
	var result protocol.EdgeCellsResultPayload
	if err := c.network.Call(ctx, protocol.TypeEdgeCells, protocol.EdgeCellsPayload{}, protocol.TypeEdgeCellsResult, &result); err != nil {
		return nil, err
	}
	return cellsOf(result.Cells), nil
}

// ClosestEdgeCell returns the edge cell closest to cell.
func (c *Client) ClosestEdgeCell(ctx context.Context, cell geom.CPos) (geom.CPos, error) {
	from := protocol.CellFrom(cell)
	var result protocol.EdgeCellsResultPayload
	if err := c.network.Call(ctx, protocol.TypeEdgeCells, protocol.EdgeCellsPayload{ClosestTo: &from}, protocol.TypeEdgeCellsResult, &result); err != nil {
		return geom.CPos{}, err
	}
	if len(result.Cells) == 0 {
		return geom.CPos{}, fmt.Errorf("no edge cells")
	}
	return result.Cells[0].CPos(), nil
}

// ==================== Edits ====================

// SetHeight changes the height of a cell and returns the cells whose
// projection changed.
func (c *Client) SetHeight(ctx context.Context, cell geom.CPos, height int) ([]geom.CPos, error) {
	return c.editCall(ctx, protocol.TypeSetHeight, protocol.SetHeightPayload{
		Cell:   protocol.CellFrom(cell),
		Height: height,
	})
}

// SetTile changes the terrain tile of a cell and returns the cells whose
// projection changed.
func (c *Client) SetTile(ctx context.Context, cell geom.CPos, tile maps.TerrainTile) ([]geom.CPos, error) {
	return c.editCall(ctx, protocol.TypeSetTile, protocol.SetTilePayload{
		Cell:  protocol.CellFrom(cell),
		Type:  int(tile.Type),
		Index: int(tile.Index),
	})
}

func (c *Client) editCall(ctx context.Context, msgType protocol.MessageType, payload interface{}) ([]geom.CPos, error) {
	var result protocol.CellsChangedPayload
	if err := c.network.Call(ctx, msgType, payload, protocol.TypeCellsChanged, &result); err != nil {
		return nil, err
	}
	if c.OnCellsChanged != nil {
		c.OnCellsChanged(result)
	}
	return cellsOf(result.Cells), nil
}

func cellsOf(cells []protocol.Cell) []geom.CPos {
	out := make([]geom.CPos, len(cells))
	for i, c := range cells {
		out[i] = c.CPos()
	}
	return out
}

// ==================== Downloads ====================

// mapFiles mirrors the server's package listing.
type mapFiles struct {
	Files []string `json:"files"`
}

// DownloadPackage fetches every file of a stored map into memory.
func (c *Client) DownloadPackage(ctx context.Context, uid string) (*maps.MemoryPackage, error) {
	if c.baseURL == "" {
		return nil, ErrNotConnected
	}
	base := c.baseURL + "/api/maps/" + url.PathEscape(uid)

	var listing mapFiles
	data, err := c.get(ctx, base)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse file list of %s: %w", uid, err)
	}

	pkg := maps.NewMemoryPackage(uid)
	for _, name := range listing.Files {
		data, err := c.get(ctx, base+"/"+url.PathEscape(name))
		if err != nil {
			return nil, err
		}
		if err := pkg.Update(name, data); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

// DownloadMap fetches a stored map and loads it with l.
func (c *Client) DownloadMap(ctx context.Context, l *maps.Loader, uid string) (*maps.Map, error) {
	pkg, err := c.DownloadPackage(ctx, uid)
	if err != nil {
		return nil, err
	}
	return l.Load(pkg)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
