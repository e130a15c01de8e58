package client

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"tilemap/internal/protocol"
	"tilemap/internal/server"
	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
	"tilemap/pkg/maps"
)

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"localhost:30000", "ws://localhost:30000/ws"},
		{"ws://maps.example.com", "ws://maps.example.com/ws"},
		{"wss://maps.example.com/", "wss://maps.example.com/ws"},
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/ws"},
		{"https://maps.example.com/", "wss://maps.example.com/ws"},
	}
	for _, tt := range tests {
		if got := WebSocketURL(tt.addr); got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"localhost:30000", "http://localhost:30000"},
		{"ws://maps.example.com/", "http://maps.example.com"},
		{"wss://maps.example.com", "https://maps.example.com"},
		{"https://maps.example.com/", "https://maps.example.com"},
	}
	for _, tt := range tests {
		if got := HTTPURL(tt.addr); got != tt.want {
			t.Errorf("HTTPURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestGridPreset(t *testing.T) {
	if got := GridPreset("RectangularIsometric"); got != "isometric" {
		t.Errorf("isometric preset = %q", got)
	}
	if got := GridPreset("Rectangular"); got != "rectangular" {
		t.Errorf("rectangular preset = %q", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	SetProfile("test")
	defer SetProfile("")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LastServer != "localhost:30000" || cfg.CellSize != 12 {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg.AuthorToken = "abc"
	cfg.AuthorName = "Ann"
	cfg.LastMap = "hills"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded %+v, saved %+v", loaded, cfg)
	}

	SetProfile("other")
	other, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if other.AuthorToken != "" {
		t.Errorf("profile leaked token %q", other.AuthorToken)
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	s, err := server.New(server.Config{DBPath: filepath.Join(t.TempDir(), "maps.db")})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return ln.Addr().String()
}

func connect(t *testing.T, addr string) *Client {
	t.Helper()
	c := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClientSession(t *testing.T) {
	addr := startServer(t)
	c := connect(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var perr *protocol.ErrorPayload
	if _, err := c.CreateMap(ctx, protocol.CreateMapPayload{Name: "x", Width: 8, Height: 8}); !errors.As(err, &perr) || perr.Code != protocol.ErrCodeNotAuthenticated {
		t.Fatalf("unauthenticated create = %v", err)
	}

	auth, err := c.Authenticate(ctx, "Ann")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if c.Config().AuthorToken != auth.Token || c.Config().AuthorName != "Ann" {
		t.Errorf("config after auth = %+v", c.Config())
	}
	if w := c.Welcome(); w == nil || w.GridType != "RectangularIsometric" {
		t.Errorf("welcome = %+v", w)
	}

	info, err := c.CreateMap(ctx, protocol.CreateMapPayload{Name: "hills", Width: 12, Height: 16})
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	if info.Bounds != [4]int{1, 1, 10, 14} || c.Config().LastMap != "hills" {
		t.Errorf("info = %+v", info)
	}

	cell := geom.MPos{U: 5, V: 8}.ToCPos(geom.RectangularIsometric)
	if ok, err := c.Contains(ctx, cell); err != nil || !ok {
		t.Errorf("Contains = %v, %v", ok, err)
	}
	if clamped, err := c.Clamp(ctx, geom.CPos{X: -50, Y: 3}); err != nil {
		t.Errorf("Clamp: %v", err)
	} else if ok, _ := c.Contains(ctx, clamped); !ok {
		t.Errorf("clamped cell %v outside bounds", clamped)
	}

	var seen []protocol.CellsChangedPayload
	c.OnCellsChanged = func(p protocol.CellsChangedPayload) { seen = append(seen, p) }
	changed, err := c.SetHeight(ctx, cell, 2)
	if err != nil {
		t.Fatalf("SetHeight: %v", err)
	}
	if !slices.Contains(changed, cell) || len(seen) != 1 {
		t.Errorf("changed = %v, seen %d", changed, len(seen))
	}

	projected, err := c.Project(ctx, cell)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !slices.Equal(projected, []geom.PPos{{U: 5, V: 6}}) {
		t.Errorf("projected = %v", projected)
	}
	cells, height, err := c.Unproject(ctx, geom.PPos{U: 5, V: 6})
	if err != nil || height != 2 || !slices.Contains(cells, geom.MPos{U: 5, V: 8}) {
		t.Errorf("Unproject = %v, %d, %v", cells, height, err)
	}

	terrain, err := c.TerrainAt(ctx, cell)
	if err != nil || terrain.Height != 2 {
		t.Errorf("TerrainAt = %+v, %v", terrain, err)
	}
	if _, err := c.SetTile(ctx, cell, maps.TerrainTile{Type: 1}); err != nil {
		t.Errorf("SetTile: %v", err)
	}

	tiles, err := c.FindTiles(ctx, cell, 0, 1, false)
	if err != nil || len(tiles) == 0 || tiles[0] != cell {
		t.Errorf("FindTiles = %v, %v", tiles, err)
	}
	if _, err := c.FindTiles(ctx, cell, 3, 1, false); !errors.As(err, &perr) || perr.Code != protocol.ErrCodeInvalidRequest {
		t.Errorf("inverted range = %v", err)
	}

	edges, err := c.EdgeCells(ctx)
	if err != nil || len(edges) == 0 {
		t.Fatalf("EdgeCells = %d, %v", len(edges), err)
	}
	closest, err := c.ClosestEdgeCell(ctx, cell)
	if err != nil || !slices.Contains(edges, closest) {
		t.Errorf("ClosestEdgeCell = %v, %v", closest, err)
	}

	uid, err := c.SaveMap(ctx)
	if err != nil || uid == "" || uid == info.UID {
		t.Fatalf("SaveMap = %q, %v", uid, err)
	}

	list, err := c.ListMaps(ctx)
	if err != nil || len(list) != 1 || list[0].UID != uid {
		t.Errorf("ListMaps = %+v, %v", list, err)
	}

	g, err := grid.Preset(GridPreset(c.Welcome().GridType))
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	m, err := c.DownloadMap(ctx, maps.NewLoader(g), uid)
	if err != nil {
		t.Fatalf("DownloadMap: %v", err)
	}
	if m.UID != uid || m.Height.At(cell) != 2 || m.Tiles.At(cell).Type != 1 {
		t.Errorf("downloaded map uid %s height %d tile %v", m.UID, m.Height.At(cell), m.Tiles.At(cell))
	}

	if err := c.CloseMap(ctx); err != nil {
		t.Errorf("CloseMap: %v", err)
	}
	if c.OpenMapInfo() != nil {
		t.Error("map info kept after close")
	}
	if _, err := c.Contains(ctx, cell); !errors.As(err, &perr) || perr.Code != protocol.ErrCodeNoMapOpen {
		t.Errorf("query after close = %v", err)
	}
}

func TestRequestNotConnected(t *testing.T) {
	c := New(nil)
	if _, err := c.ListMaps(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ListMaps = %v, want ErrNotConnected", err)
	}
	if _, err := c.DownloadPackage(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("DownloadPackage = %v, want ErrNotConnected", err)
	}
}
