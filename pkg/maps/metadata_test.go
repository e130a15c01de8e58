package maps

import (
	"errors"
	"strings"
	"testing"

	"tilemap/pkg/geom"
)

func TestMetadataFieldOrder(t *testing.T) {
	m := createRectMap(t, 10, 8)
	m.RequiresMod = "ra"
	data, err := encodeMetadata(m)
	if err != nil {
		t.Fatalf("encodeMetadata: %v", err)
	}

	text := string(data)
	if !strings.HasPrefix(text, "MapFormat: 12\n") {
		t.Errorf("map.yaml does not start with the format:\n%s", text)
	}

	last := -1
	for _, key := range []string{"MapFormat:", "RequiresMod:", "Title:", "Author:", "Tileset:", "MapSize:", "Bounds:", "Visibility:", "Categories:", "Players:", "Actors:"} {
		i := strings.Index(text, key)
		if i < 0 {
			t.Fatalf("missing %s in:\n%s", key, text)
		}
		if i < last {
			t.Errorf("%s is out of order", key)
		}
		last = i
	}
	for _, key := range []string{"LockPreview:", "Rules:", "Weapons:"} {
		if strings.Contains(text, key) {
			t.Errorf("optional %s written although unset", key)
		}
	}
	if !strings.Contains(text, "MapSize: 10,8\n") || !strings.Contains(text, "Bounds: 1,1,8,6\n") {
		t.Errorf("unexpected size fields:\n%s", text)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	src := createRectMap(t, 10, 8)
	src.Title = "Two Rivers"
	src.Author = "Mapper"
	src.Visibility = VisibilityLobby | VisibilityMissionSelector
	src.Categories = []string{"Conquest", "Minigame"}
	src.LockPreview = true

	data, err := encodeMetadata(src)
	if err != nil {
		t.Fatalf("encodeMetadata: %v", err)
	}
	if !strings.Contains(string(data), "LockPreview: true") {
		t.Errorf("LockPreview not written:\n%s", data)
	}

	var m Map
	if err := decodeMetadata(&m, data); err != nil {
		t.Fatalf("decodeMetadata: %v", err)
	}
	if m.Title != src.Title || m.Author != src.Author || m.TilesetID != "TEMPERAT" {
		t.Errorf("decoded %+v", m.Metadata)
	}
	if m.Visibility != src.Visibility || !m.LockPreview {
		t.Errorf("visibility %v, lock %v", m.Visibility, m.LockPreview)
	}
	if strings.Join(m.Categories, "|") != "Conquest|Minigame" {
		t.Errorf("categories = %v", m.Categories)
	}
	if m.MapSize != (geom.Size{Width: 10, Height: 8}) || m.Bounds != src.Bounds {
		t.Errorf("size %v bounds %v", m.MapSize, m.Bounds)
	}
}

func TestMetadataKeepsRawBlocks(t *testing.T) {
	doc := `MapFormat: 12
RequiresMod: ra
Title: Raw
Author: Someone
Tileset: DESERT
MapSize: 4,4
Bounds: 1,1,2,2
Visibility: Lobby
Categories: Conquest
Players:
  PlayerReference@Neutral:
    Name: Neutral
Actors:
  Actor0:
    Type: mine
Rules:
  World:
    Speed: 2
`
	var m Map
	if err := decodeMetadata(&m, []byte(doc)); err != nil {
		t.Fatalf("decodeMetadata: %v", err)
	}
	if m.Rules == nil || m.Weapons != nil {
		t.Fatalf("rules %v, weapons %v", m.Rules, m.Weapons)
	}

	out, err := encodeMetadata(&m)
	if err != nil {
		t.Fatalf("encodeMetadata: %v", err)
	}
	for _, want := range []string{"PlayerReference@Neutral:", "Type: mine", "Speed: 2"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("%q lost in re-encoding:\n%s", want, out)
		}
	}
}

func TestMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a mapping", "- a\n- b\n"},
		{"missing title", "MapFormat: 12\nRequiresMod: ra\nAuthor: a\nTileset: T\nMapSize: 1,1\nBounds: 0,0,1,1\nVisibility: Lobby\nCategories: c\nPlayers: {}\nActors: {}\n"},
		{"bad size", "MapFormat: 12\nRequiresMod: ra\nTitle: t\nAuthor: a\nTileset: T\nMapSize: 1\nBounds: 0,0,1,1\nVisibility: Lobby\nCategories: c\nPlayers: {}\nActors: {}\n"},
		{"bad visibility", "MapFormat: 12\nRequiresMod: ra\nTitle: t\nAuthor: a\nTileset: T\nMapSize: 1,1\nBounds: 0,0,1,1\nVisibility: Nowhere\nCategories: c\nPlayers: {}\nActors: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Map
			if err := decodeMetadata(&m, []byte(tt.doc)); !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("err = %v, want ErrInvalidMetadata", err)
			}
		})
	}
}

func TestReadMapFormat(t *testing.T) {
	format, err := ReadMapFormat(strings.NewReader("Title: x\nMapFormat:   11  \nAuthor: y\n"))
	if err != nil || format != 11 {
		t.Errorf("ReadMapFormat = %d, %v", format, err)
	}
	if _, err := ReadMapFormat(strings.NewReader("Title: x\n")); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("missing format: err = %v", err)
	}
	if _, err := ReadMapFormat(strings.NewReader("MapFormat:\n")); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("empty format: err = %v", err)
	}
}

func TestVisibilityString(t *testing.T) {
	v := VisibilityLobby | VisibilityShellmap
	if v.String() != "Lobby, Shellmap" {
		t.Errorf("String = %q", v.String())
	}
	parsed, err := ParseVisibility("Shellmap, Lobby")
	if err != nil || parsed != v {
		t.Errorf("ParseVisibility = %v, %v", parsed, err)
	}
}
