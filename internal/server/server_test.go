package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"tilemap/internal/protocol"
	"tilemap/pkg/geom"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "maps.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.hub.Start()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		if err := s.Stop(context.Background()); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return ts
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &testConn{t: t, conn: conn}
	if msg := c.read(); msg.Type != protocol.TypeWelcome {
		t.Fatalf("first message = %s, want welcome", msg.Type)
	}
	return c
}

func (c *testConn) read() *protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return &msg
}

// request sends a message and returns the reply carrying its id.
func (c *testConn) request(msgType protocol.MessageType, payload interface{}) *protocol.Message {
	c.t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("NewMessage: %v", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	for {
		reply := c.read()
		if reply.ID == msg.ID {
			return reply
		}
	}
}

// call sends a request and decodes a reply of the wanted type.
func (c *testConn) call(msgType protocol.MessageType, payload interface{}, want protocol.MessageType, out interface{}) {
	c.t.Helper()
	reply := c.request(msgType, payload)
	if reply.Type != want {
		c.t.Fatalf("%s: reply %s %s, want %s", msgType, reply.Type, reply.Payload, want)
	}
	if out != nil {
		if err := reply.ParsePayload(out); err != nil {
			c.t.Fatalf("%s: %v", want, err)
		}
	}
}

func (c *testConn) expectError(msgType protocol.MessageType, payload interface{}, code protocol.ErrorCode) {
	c.t.Helper()
	var e protocol.ErrorPayload
	c.call(msgType, payload, protocol.TypeError, &e)
	if e.Code != code {
		c.t.Errorf("%s: error %s (%s), want %s", msgType, e.Code, e.Message, code)
	}
}

func TestHealthAndEmptyList(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/api/maps")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty list = %q", body)
	}

	resp, err = http.Get(ts.URL + "/api/maps/nope/map.yaml")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown map file = %d", resp.StatusCode)
	}
}

func TestRequestsNeedMapAndAuthor(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	cell := protocol.CellPayload{Cell: protocol.Cell{X: 1, Y: 1}}
	c.expectError(protocol.TypeContains, cell, protocol.ErrCodeNoMapOpen)
	c.expectError(protocol.TypeCreateMap, protocol.CreateMapPayload{Name: "x", Width: 8, Height: 8}, protocol.ErrCodeNotAuthenticated)
	c.expectError(protocol.TypeOpenMap, protocol.OpenMapPayload{Name: "missing"}, protocol.ErrCodeMapNotFound)
	c.expectError(protocol.TypeOpenMap, protocol.OpenMapPayload{}, protocol.ErrCodeInvalidRequest)
	c.expectError("teleport", struct{}{}, protocol.ErrCodeUnknownType)

	c.call(protocol.TypePing, struct{}{}, protocol.TypePong, nil)
}

func TestMapSession(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	var auth protocol.AuthResultPayload
	c.call(protocol.TypeAuthenticate, protocol.AuthenticatePayload{Name: "Ann"}, protocol.TypeAuthResult, &auth)
	if !auth.Success || auth.Token == "" {
		t.Fatalf("auth = %+v", auth)
	}

	var info protocol.MapInfoPayload
	c.call(protocol.TypeCreateMap, protocol.CreateMapPayload{Name: "hills", Tileset: "TEMPERAT", Width: 12, Height: 16},
		protocol.TypeMapInfo, &info)
	if info.Width != 12 || info.Height != 16 || info.Bounds != [4]int{1, 1, 10, 14} || info.GridType != "RectangularIsometric" {
		t.Fatalf("info = %+v", info)
	}
	if info.Author != "Ann" || info.UID == "" {
		t.Errorf("author %q uid %q", info.Author, info.UID)
	}
	c.expectError(protocol.TypeCreateMap, protocol.CreateMapPayload{Name: "hills", Width: 8, Height: 8}, protocol.ErrCodeMapExists)

	uv := geom.MPos{U: 5, V: 8}
	cell := protocol.CellFrom(uv.ToCPos(geom.RectangularIsometric))

	var contains protocol.ContainsResultPayload
	c.call(protocol.TypeContains, protocol.CellPayload{Cell: cell}, protocol.TypeContainsResult, &contains)
	if !contains.Contains {
		t.Errorf("%v not contained", cell)
	}

	var proj protocol.ProjectionPayload
	c.call(protocol.TypeProject, protocol.CellPayload{Cell: cell}, protocol.TypeProjection, &proj)
	if !slices.Equal(proj.Projected, []protocol.MapCell{{U: 5, V: 8}}) {
		t.Errorf("flat projection = %v", proj.Projected)
	}

	var changed protocol.CellsChangedPayload
	c.call(protocol.TypeSetHeight, protocol.SetHeightPayload{Cell: cell, Height: 2}, protocol.TypeCellsChanged, &changed)
	if changed.Edited != cell || !slices.Contains(changed.Cells, cell) {
		t.Errorf("cells changed = %+v", changed)
	}

	c.call(protocol.TypeProject, protocol.CellPayload{Cell: cell}, protocol.TypeProjection, &proj)
	if !slices.Equal(proj.Projected, []protocol.MapCell{{U: 5, V: 6}}) {
		t.Errorf("raised projection = %v", proj.Projected)
	}

	var unproj protocol.UnprojectionPayload
	c.call(protocol.TypeUnproject, protocol.UnprojectPayload{Projected: protocol.MapCell{U: 5, V: 6}}, protocol.TypeUnprojection, &unproj)
	if unproj.Height != 2 || !slices.Contains(unproj.Cells, protocol.MapCell{U: 5, V: 8}) {
		t.Errorf("unprojection = %+v", unproj)
	}

	var terrain protocol.TerrainPayload
	c.call(protocol.TypeTerrainAt, protocol.CellPayload{Cell: cell}, protocol.TypeTerrain, &terrain)
	if terrain.Height != 2 || terrain.Terrain != "Clear" || !terrain.Contains {
		t.Errorf("terrain = %+v", terrain)
	}

	c.expectError(protocol.TypeSetHeight, protocol.SetHeightPayload{Cell: cell, Height: 99}, protocol.ErrCodeInvalidRequest)
	c.expectError(protocol.TypeSetHeight, protocol.SetHeightPayload{Cell: protocol.Cell{X: -40, Y: 0}, Height: 1}, protocol.ErrCodeOutOfBounds)
	c.expectError(protocol.TypeSetTile, protocol.SetTilePayload{Cell: cell, Type: 999}, protocol.ErrCodeInvalidRequest)

	// A second viewer sees edits made by the first.
	d := dial(t, ts)
	c2 := protocol.MapCell{U: 6, V: 8}
	d.call(protocol.TypeOpenMap, protocol.OpenMapPayload{Name: "hills"}, protocol.TypeMapInfo, &info)
	if info.Viewers != 2 || !info.Dirty {
		t.Errorf("shared session info = %+v", info)
	}

	edited := protocol.CellFrom(c2.MPos().ToCPos(geom.RectangularIsometric))
	c.call(protocol.TypeSetTile, protocol.SetTilePayload{Cell: edited, Type: 1}, protocol.TypeCellsChanged, nil)
	broadcast := d.read()
	if broadcast.Type != protocol.TypeCellsChanged {
		t.Fatalf("viewer got %s", broadcast.Type)
	}
	broadcast.ParsePayload(&changed)
	if changed.Edited != edited || changed.Author != "Ann" {
		t.Errorf("broadcast = %+v", changed)
	}

	var tiles protocol.TilesPayload
	c.call(protocol.TypeFindTiles, protocol.FindTilesPayload{Center: cell, MaxRange: 2}, protocol.TypeTiles, &tiles)
	if len(tiles.Cells) == 0 || tiles.Cells[0] != cell {
		t.Errorf("tiles = %v", tiles.Cells)
	}
	c.expectError(protocol.TypeFindTiles, protocol.FindTilesPayload{Center: cell, MinRange: 3, MaxRange: 1}, protocol.ErrCodeInvalidRequest)

	var edges protocol.EdgeCellsResultPayload
	c.call(protocol.TypeEdgeCells, protocol.EdgeCellsPayload{ClosestTo: &cell}, protocol.TypeEdgeCellsResult, &edges)
	if len(edges.Cells) != 1 {
		t.Errorf("closest edge = %v", edges.Cells)
	}

	var saved protocol.MapSavedPayload
	c.call(protocol.TypeSaveMap, struct{}{}, protocol.TypeMapSaved, &saved)
	if saved.UID == "" || saved.UID == info.UID {
		t.Errorf("saved uid %q, previous %q", saved.UID, info.UID)
	}

	var list protocol.MapListPayload
	d.call(protocol.TypeListMaps, struct{}{}, protocol.TypeMapList, &list)
	if len(list.Maps) != 1 || list.Maps[0].UID != saved.UID {
		t.Fatalf("list = %+v", list)
	}

	resp, err := http.Get(ts.URL + "/api/maps")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var records []struct {
		UID string `json:"uid"`
	}
	json.NewDecoder(resp.Body).Decode(&records)
	resp.Body.Close()
	if len(records) != 1 || records[0].UID != saved.UID {
		t.Errorf("http list = %+v", records)
	}

	resp, err = http.Get(ts.URL + "/api/maps/" + saved.UID + "/map.yaml")
	if err != nil {
		t.Fatalf("map.yaml: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "Title: hills") || resp.Header.Get("Content-Type") != "application/yaml" {
		t.Errorf("map.yaml = %s (%s)", body, resp.Header.Get("Content-Type"))
	}
}

func TestLastViewerSavesEdits(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	c.call(protocol.TypeAuthenticate, protocol.AuthenticatePayload{Name: "Bo"}, protocol.TypeAuthResult, nil)
	var info protocol.MapInfoPayload
	c.call(protocol.TypeGenerateMap, protocol.GenerateMapPayload{Name: "gen", Width: 16, Plateaus: 2, Lakes: 1, Seed: 5},
		protocol.TypeMapInfo, &info)

	cell := protocol.CellFrom(geom.MPos{}.ToCPos(geom.RectangularIsometric))
	c.call(protocol.TypeSetHeight, protocol.SetHeightPayload{Cell: cell, Height: 4}, protocol.TypeCellsChanged, nil)
	c.call(protocol.TypeCloseMap, struct{}{}, protocol.TypeMapInfo, nil)

	var reopened protocol.MapInfoPayload
	c.call(protocol.TypeOpenMap, protocol.OpenMapPayload{ID: info.ID}, protocol.TypeMapInfo, &reopened)
	if reopened.Dirty || reopened.UID == info.UID {
		t.Errorf("reopened %+v, generated uid %s", reopened, info.UID)
	}

	var terrain protocol.TerrainPayload
	c.call(protocol.TypeTerrainAt, protocol.CellPayload{Cell: cell}, protocol.TypeTerrain, &terrain)
	if terrain.Height != 4 {
		t.Errorf("height after reopen = %d", terrain.Height)
	}
}
