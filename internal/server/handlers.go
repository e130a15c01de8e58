package server

import (
	"errors"
	"fmt"
	"log"

	"tilemap/internal/database"
	"tilemap/internal/protocol"
	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

var (
	errInvalidRequest   = errors.New("invalid request")
	errUnknownType      = errors.New("unknown message type")
	errNoMapOpen        = errors.New("no map open")
	errNotAuthenticated = errors.New("not authenticated")
	errOutOfBounds      = errors.New("cell outside the map")
)

// maxMapSize bounds maps created over the wire.
const maxMapSize = 1024

// Handlers processes incoming messages on the hub goroutine.
type Handlers struct {
	hub *Hub
}

// NewHandlers creates a new handler set.
func NewHandlers(hub *Hub) *Handlers {
	return &Handlers{hub: hub}
}

// Handle routes a message to the appropriate handler.
func (h *Handlers) Handle(client *Client, msg *protocol.Message) {
	var err error

	switch msg.Type {
	case protocol.TypePing:
		h.hub.send(client, protocol.TypePong, msg.ID, struct{}{})
	case protocol.TypeAuthenticate:
		err = h.handleAuthenticate(client, msg)
	case protocol.TypeListMaps:
		err = h.handleListMaps(client, msg)
	case protocol.TypeOpenMap:
		err = h.handleOpenMap(client, msg)
	case protocol.TypeCreateMap:
		err = h.handleCreateMap(client, msg)
	case protocol.TypeGenerateMap:
		err = h.handleGenerateMap(client, msg)
	case protocol.TypeCloseMap:
		h.hub.leaveSession(client)
		h.hub.send(client, protocol.TypeMapInfo, msg.ID, protocol.MapInfoPayload{})
	case protocol.TypeSaveMap:
		err = h.handleSaveMap(client, msg)
	case protocol.TypeMapInfo:
		err = h.handleMapInfo(client, msg)
	case protocol.TypeContains:
		err = h.handleContains(client, msg)
	case protocol.TypeClamp:
		err = h.handleClamp(client, msg)
	case protocol.TypeProject:
		err = h.handleProject(client, msg)
	case protocol.TypeUnproject:
		err = h.handleUnproject(client, msg)
	case protocol.TypeTerrainAt:
		err = h.handleTerrainAt(client, msg)
	case protocol.TypeFindTiles:
		err = h.handleFindTiles(client, msg)
	case protocol.TypeEdgeCells:
		err = h.handleEdgeCells(client, msg)
	case protocol.TypeSetHeight:
		err = h.handleSetHeight(client, msg)
	case protocol.TypeSetTile:
		err = h.handleSetTile(client, msg)
	default:
		err = fmt.Errorf("%w: %s", errUnknownType, msg.Type)
	}

	if err != nil {
		h.sendError(client, msg.ID, err)
	}
}

func parse(msg *protocol.Message, v interface{}) error {
	if err := msg.ParsePayload(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// openSession returns the client's open map.
func openSession(client *Client) (*mapSession, error) {
	if client.session == nil {
		return nil, errNoMapOpen
	}
	return client.session, nil
}

// handleAuthenticate handles author authentication and registration.
func (h *Handlers) handleAuthenticate(client *Client, msg *protocol.Message) error {
	var payload protocol.AuthenticatePayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	db := h.hub.server.db
	var author *database.Author
	var err error

	// Try to find existing author by token
	if payload.Token != "" {
		author, err = db.GetAuthorByToken(payload.Token)
		if err != nil && !errors.Is(err, database.ErrAuthorNotFound) {
			return err
		}
	}

	if author == nil {
		name := payload.Name
		if name == "" {
			name = "Anonymous"
		}
		if author, err = db.CreateAuthor(name); err != nil {
			return err
		}
		log.Printf("New author registered: %s (%s)", author.Name, author.ID)
	} else {
		if payload.Name != "" && payload.Name != author.Name {
			if err := db.UpdateAuthorName(author.ID, payload.Name); err != nil {
				return err
			}
			author.Name = payload.Name
		}
		if err := db.UpdateAuthorLastSeen(author.ID); err != nil {
			log.Printf("Failed to update last seen for %s: %v", author.ID, err)
		}
	}

	client.author = author
	client.AuthorName = author.Name

	h.hub.send(client, protocol.TypeAuthResult, msg.ID, protocol.AuthResultPayload{
		Success:  true,
		AuthorID: author.ID,
		Token:    author.Token,
		Name:     author.Name,
	})
	return nil
}

func (h *Handlers) requireAuthor(client *Client) error {
	if client.author == nil {
		return errNotAuthenticated
	}
	return nil
}

// handleListMaps lists the stored maps.
func (h *Handlers) handleListMaps(client *Client, msg *protocol.Message) error {
	records, err := h.hub.server.db.ListMaps()
	if err != nil {
		return err
	}

	payload := protocol.MapListPayload{Maps: []protocol.MapSummary{}}
	for _, r := range records {
		payload.Maps = append(payload.Maps, protocol.MapSummary{
			ID:      r.ID,
			Name:    r.Name,
			UID:     r.UID,
			Title:   r.Title,
			Author:  r.Author,
			Tileset: r.Tileset,
			Width:   r.Width,
			Height:  r.Height,
		})
	}
	h.hub.send(client, protocol.TypeMapList, msg.ID, payload)
	return nil
}

// handleOpenMap opens a stored map for the client.
func (h *Handlers) handleOpenMap(client *Client, msg *protocol.Message) error {
	var payload protocol.OpenMapPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	db := h.hub.server.db
	var rec *database.MapRecord
	var err error
	switch {
	case payload.ID != "":
		rec, err = db.GetMap(payload.ID)
	case payload.Name != "":
		rec, err = db.GetMapByName(payload.Name)
	case payload.UID != "":
		rec, err = db.GetMapByUID(payload.UID)
	default:
		return fmt.Errorf("%w: id, name or uid required", errInvalidRequest)
	}
	if err != nil {
		return err
	}

	session, err := h.hub.joinSession(client, rec, func() (*maps.Map, error) {
		return db.LoadMap(h.hub.server.loader, rec.ID)
	})
	if err != nil {
		return err
	}
	h.sendMapInfo(client, msg.ID, session)
	return nil
}

// handleCreateMap creates an empty map, stores it and opens it.
func (h *Handlers) handleCreateMap(client *Client, msg *protocol.Message) error {
	if err := h.requireAuthor(client); err != nil {
		return err
	}
	var payload protocol.CreateMapPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}
	if payload.Name == "" {
		return fmt.Errorf("%w: name required", errInvalidRequest)
	}
	if payload.Width < 1 || payload.Height < 1 || payload.Width > maxMapSize || payload.Height > maxMapSize {
		return fmt.Errorf("%w: size %dx%d", errInvalidRequest, payload.Width, payload.Height)
	}

	tileset := payload.Tileset
	if tileset == "" {
		tileset = maps.DefaultOptions().Tileset
	}
	m, err := h.hub.server.loader.Create(tileset, payload.Width, payload.Height)
	if err != nil {
		return err
	}
	m.Title = payload.Title
	if m.Title == "" {
		m.Title = payload.Name
	}
	m.Author = client.author.Name

	return h.storeAndOpen(client, msg.ID, payload.Name, m)
}

// handleGenerateMap generates a map, stores it and opens it.
func (h *Handlers) handleGenerateMap(client *Client, msg *protocol.Message) error {
	if err := h.requireAuthor(client); err != nil {
		return err
	}
	var payload protocol.GenerateMapPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}
	if payload.Name == "" {
		return fmt.Errorf("%w: name required", errInvalidRequest)
	}

	opts := maps.DefaultOptions()
	if payload.Tileset != "" {
		opts.Tileset = payload.Tileset
	}
	if payload.Width > 0 {
		opts.Width = payload.Width
	}
	opts.Height = payload.Height
	opts.Plateaus = payload.Plateaus
	opts.Lakes = payload.Lakes
	opts.Resources = payload.Resources
	opts.Seed = payload.Seed

	m, steps, err := maps.NewGenerator(h.hub.server.loader, opts).Generate()
	if err != nil {
		return err
	}
	m.Title = payload.Name
	m.Author = client.author.Name
	log.Printf("Generated map %s in %d steps", payload.Name, len(steps))

	return h.storeAndOpen(client, msg.ID, payload.Name, m)
}

func (h *Handlers) storeAndOpen(client *Client, requestID, name string, m *maps.Map) error {
	db := h.hub.server.db
	if _, err := db.GetMapByName(name); err == nil {
		return fmt.Errorf("%s: %w", name, database.ErrMapExists)
	} else if !errors.Is(err, database.ErrMapNotFound) {
		return err
	}

	rec, err := db.SaveMap(name, m, client.author)
	if err != nil {
		return err
	}
	session, err := h.hub.joinSession(client, rec, func() (*maps.Map, error) { return m, nil })
	if err != nil {
		return err
	}
	h.sendMapInfo(client, requestID, session)
	return nil
}

// handleSaveMap writes the open map back to the store.
func (h *Handlers) handleSaveMap(client *Client, msg *protocol.Message) error {
	if err := h.requireAuthor(client); err != nil {
		return err
	}
	session, err := openSession(client)
	if err != nil {
		return err
	}
	if err := h.hub.saveSession(session, client.author); err != nil {
		return err
	}
	h.hub.send(client, protocol.TypeMapSaved, msg.ID, protocol.MapSavedPayload{
		ID:  session.rec.ID,
		UID: session.m.UID,
	})
	return nil
}

// handleMapInfo describes the open map.
func (h *Handlers) handleMapInfo(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	h.sendMapInfo(client, msg.ID, session)
	return nil
}

func (h *Handlers) sendMapInfo(client *Client, requestID string, session *mapSession) {
	m := session.m
	h.hub.send(client, protocol.TypeMapInfo, requestID, protocol.MapInfoPayload{
		ID:         session.rec.ID,
		Name:       session.rec.Name,
		UID:        m.UID,
		Title:      m.Title,
		Author:     m.Author,
		Tileset:    m.TilesetID,
		GridType:   m.Grid.Type.String(),
		Width:      m.MapSize.Width,
		Height:     m.MapSize.Height,
		Bounds:     [4]int{m.Bounds.X, m.Bounds.Y, m.Bounds.Width, m.Bounds.Height},
		MaxHeight:  int(m.Grid.MaximumTerrainHeight),
		Dirty:      session.dirty,
		Viewers:    len(session.viewers),
		Replaced:   len(m.ReplacedInvalidTerrainTiles),
		Categories: m.Categories,
	})
}

// ==================== Queries ====================

func (h *Handlers) handleContains(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.CellPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}
	h.hub.send(client, protocol.TypeContainsResult, msg.ID, protocol.ContainsResultPayload{
		Cell:     payload.Cell,
		Contains: session.m.Contains(payload.Cell.CPos()),
	})
	return nil
}

func (h *Handlers) handleClamp(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.CellPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}
	h.hub.send(client, protocol.TypeClampResult, msg.ID, protocol.ClampResultPayload{
		Cell:    payload.Cell,
		Clamped: protocol.CellFrom(session.m.Clamp(payload.Cell.CPos())),
	})
	return nil
}

func (h *Handlers) handleProject(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.CellPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	uv := payload.Cell.CPos().ToMPos(m.Grid.Type)
	result := protocol.ProjectionPayload{Cell: payload.Cell, Projected: []protocol.MapCell{}}
	for _, p := range m.ProjectedCellsCovering(uv) {
		result.Projected = append(result.Projected, protocol.ProjectedCellFrom(p))
	}
	h.hub.send(client, protocol.TypeProjection, msg.ID, result)
	return nil
}

func (h *Handlers) handleUnproject(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.UnprojectPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	p := payload.Projected.PPos()
	result := protocol.UnprojectionPayload{
		Projected: payload.Projected,
		Height:    int(m.ProjectedHeight(p)),
		Cells:     []protocol.MapCell{},
	}
	for _, uv := range m.Unproject(p) {
		result.Cells = append(result.Cells, protocol.MapCellFrom(uv))
	}
	h.hub.send(client, protocol.TypeUnprojection, msg.ID, result)
	return nil
}

func (h *Handlers) handleTerrainAt(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.CellPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	c := payload.Cell.CPos()
	result := protocol.TerrainPayload{Cell: payload.Cell}
	if m.Tiles.Contains(c) {
		tile := m.Tiles.At(c)
		terrain := m.TerrainInfo(c)
		res := m.Resources.At(c)
		result.Contains = m.Contains(c)
		result.TileType = int(tile.Type)
		result.TileIndex = int(tile.Index)
		result.Terrain = terrain.Type
		result.IsWater = terrain.IsWater
		result.Height = int(m.Height.At(c))
		result.Ramp = int(m.Ramp.At(c))
		result.Resource = int(res.Type)
		result.Density = int(res.Density)
	}
	h.hub.send(client, protocol.TypeTerrain, msg.ID, result)
	return nil
}

func (h *Handlers) handleFindTiles(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.FindTilesPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	cells, err := session.m.FindTilesInAnnulus(payload.Center.CPos(), payload.MinRange, payload.MaxRange, payload.AllowOutsideBounds)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	h.hub.send(client, protocol.TypeTiles, msg.ID, protocol.TilesPayload{Cells: protocol.CellsFrom(cells)})
	return nil
}

func (h *Handlers) handleEdgeCells(client *Client, msg *protocol.Message) error {
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.EdgeCellsPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	cells := m.AllEdgeCells
	if payload.ClosestTo != nil {
		cells = []geom.CPos{m.ChooseClosestEdgeCell(payload.ClosestTo.CPos())}
	}
	h.hub.send(client, protocol.TypeEdgeCellsResult, msg.ID, protocol.EdgeCellsResultPayload{Cells: protocol.CellsFrom(cells)})
	return nil
}

// ==================== Edits ====================

func (h *Handlers) handleSetHeight(client *Client, msg *protocol.Message) error {
	if err := h.requireAuthor(client); err != nil {
		return err
	}
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.SetHeightPayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	c := payload.Cell.CPos()
	if !m.Height.Contains(c) {
		return fmt.Errorf("%w: %v", errOutOfBounds, c)
	}
	if payload.Height < 0 || payload.Height > int(m.Grid.MaximumTerrainHeight) {
		return fmt.Errorf("%w: height %d outside 0-%d", errInvalidRequest, payload.Height, m.Grid.MaximumTerrainHeight)
	}

	changed := session.edit(func() { m.Height.Set(c, byte(payload.Height)) })
	h.recordEdit(session, client, database.EventHeightChanged, fmt.Sprintf("%v height %d", c, payload.Height))
	h.broadcastChange(session, client, msg.ID, c, changed)
	return nil
}

func (h *Handlers) handleSetTile(client *Client, msg *protocol.Message) error {
	if err := h.requireAuthor(client); err != nil {
		return err
	}
	session, err := openSession(client)
	if err != nil {
		return err
	}
	var payload protocol.SetTilePayload
	if err := parse(msg, &payload); err != nil {
		return err
	}

	m := session.m
	c := payload.Cell.CPos()
	if !m.Tiles.Contains(c) {
		return fmt.Errorf("%w: %v", errOutOfBounds, c)
	}
	tile := maps.TerrainTile{Type: uint16(payload.Type), Index: byte(payload.Index)}
	if _, ok := m.Tileset.TryGetTileInfo(tile); !ok {
		return fmt.Errorf("%w: tile %v is not in tileset %s", errInvalidRequest, tile, m.TilesetID)
	}

	changed := session.edit(func() { m.Tiles.Set(c, tile) })
	h.recordEdit(session, client, database.EventTileChanged, fmt.Sprintf("%v tile %v", c, tile))
	h.broadcastChange(session, client, msg.ID, c, changed)
	return nil
}

func (h *Handlers) recordEdit(session *mapSession, client *Client, event, message string) {
	if err := h.hub.server.db.AddHistoryEvent(session.rec.ID, client.author.ID, client.author.Name, event, message); err != nil {
		log.Printf("Failed to record %s on %s: %v", event, session.rec.Name, err)
	}
}

// broadcastChange tells every viewer which cells changed. The editor's copy
// carries the request id.
func (h *Handlers) broadcastChange(session *mapSession, editor *Client, requestID string, edited geom.CPos, changed []geom.CPos) {
	payload := protocol.CellsChangedPayload{
		MapID:  session.rec.ID,
		Edited: protocol.CellFrom(edited),
		Cells:  protocol.CellsFrom(changed),
		Author: editor.AuthorName,
	}
	for viewer := range session.viewers {
		id := ""
		if viewer == editor {
			id = requestID
		}
		h.hub.send(viewer, protocol.TypeCellsChanged, id, payload)
	}
}

// sendError sends an error response.
func (h *Handlers) sendError(client *Client, msgID string, err error) {
	h.hub.send(client, protocol.TypeError, msgID, protocol.ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

func errorCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, errInvalidRequest):
		return protocol.ErrCodeInvalidRequest
	case errors.Is(err, errUnknownType):
		return protocol.ErrCodeUnknownType
	case errors.Is(err, errNoMapOpen):
		return protocol.ErrCodeNoMapOpen
	case errors.Is(err, errNotAuthenticated):
		return protocol.ErrCodeNotAuthenticated
	case errors.Is(err, errOutOfBounds):
		return protocol.ErrCodeOutOfBounds
	case errors.Is(err, database.ErrMapNotFound):
		return protocol.ErrCodeMapNotFound
	case errors.Is(err, database.ErrMapExists):
		return protocol.ErrCodeMapExists
	case errors.Is(err, maps.ErrInvalidPackage), errors.Is(err, maps.ErrUnsupportedFormat),
		errors.Is(err, maps.ErrInvalidBinary), errors.Is(err, maps.ErrSizeMismatch),
		errors.Is(err, maps.ErrUnknownTileset), errors.Is(err, maps.ErrInvalidMetadata):
		return protocol.ErrCodeInvalidMap
	default:
		return protocol.ErrCodeInternalError
	}
}
