// Package maps implements the map aggregate: layered terrain storage, the cell projection
// engine, bounds handling, and the map package format (map.yaml, map.bin, map.png).
package maps

import (
	"fmt"
	"strings"
)

// Map format versions.
const (
	SupportedMapFormat = 11
	CurrentMapFormat   = 12

	// Binary data version written by Save.
	TileFormat byte = 2
)

// TerrainTile references one tile of a tileset template.
type TerrainTile struct {
	Type  uint16
	Index byte
}

func (t TerrainTile) String() string { return fmt.Sprintf("%d,%d", t.Type, t.Index) }

// ResourceTile is the resource type and density stored for a cell.
type ResourceTile struct {
	Type    byte
	Density byte
}

func (r ResourceTile) String() string { return fmt.Sprintf("%d,%d", r.Type, r.Density) }

// NoCustomTerrain marks a cell without a terrain override.
const NoCustomTerrain byte = 255

// Visibility is the set of places a map is offered in.
type Visibility int

const (
	VisibilityLobby           Visibility = 1
	VisibilityShellmap        Visibility = 2
	VisibilityMissionSelector Visibility = 4
)

var visibilityNames = []struct {
	flag Visibility
	name string
}{
	{VisibilityLobby, "Lobby"},
	{VisibilityShellmap, "Shellmap"},
	{VisibilityMissionSelector, "MissionSelector"},
}

func (v Visibility) String() string {
	var parts []string
	for _, n := range visibilityNames {
		if v&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseVisibility parses a comma separated list of visibility flags.
func ParseVisibility(s string) (Visibility, error) {
	var v Visibility
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, n := range visibilityNames {
			if strings.EqualFold(part, n.name) {
				v |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown visibility %q", part)
		}
	}
	return v, nil
}
