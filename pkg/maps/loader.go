package maps

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"tilemap/pkg/grid"
)

// Loader creates and loads maps for one grid and set of tilesets.
type Loader struct {
	Grid     *grid.MapGrid
	Tilesets *Tilesets
}

// NewLoader returns a loader using the embedded tilesets.
func NewLoader(g *grid.MapGrid) *Loader {
	return &Loader{Grid: g, Tilesets: DefaultTilesets()}
}

// Create returns a new empty map using the named tileset.
func (l *Loader) Create(tileset string, width, height int) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid map size: %dx%d", width, height)
	}
	ts, err := l.Tilesets.Get(tileset)
	if err != nil {
		return nil, err
	}
	return New(l.Grid, ts, width, height), nil
}

// Load reads a map from a package.
func (l *Loader) Load(p Package) (*Map, error) {
	if !p.Contains("map.yaml") || !p.Contains("map.bin") {
		return nil, fmt.Errorf("%w: %s is missing map.yaml or map.bin", ErrInvalidPackage, p.Name())
	}

	yamlData, err := ReadFile(p, "map.yaml")
	if err != nil {
		return nil, err
	}

	m := &Map{Grid: l.Grid, Package: p}
	if err := decodeMetadata(m, yamlData); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p.Name(), err)
	}
	if m.MapFormat < SupportedMapFormat {
		return nil, fmt.Errorf("%w: map format %d is not supported (%s)", ErrUnsupportedFormat, m.MapFormat, p.Name())
	}
	if m.MapSize.Width <= 0 || m.MapSize.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid map size %v", ErrInvalidMetadata, m.MapSize)
	}

	if m.Tileset, err = l.Tilesets.Get(m.TilesetID); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p.Name(), err)
	}

	binData, err := ReadFile(p, "map.bin")
	if err != nil {
		return nil, err
	}
	m.newLayers(m.MapSize)
	if err := m.loadBinary(binData); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p.Name(), err)
	}

	m.postInit()

	if m.UID, err = ComputeUIDFormat(p, m.MapFormat); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the map to a package and updates the map's package and UID. Saving to a
// different package first copies every file of the current one.
func (m *Map) Save(to ReadWritePackage) error {
	m.MapFormat = CurrentMapFormat
	samePackage := m.Package != nil && Package(to) == m.Package

	if m.Package != nil && !samePackage {
		names, err := m.Package.Contents()
		if err != nil {
			return err
		}
		for _, name := range names {
			data, err := ReadFile(m.Package, name)
			if err != nil {
				return err
			}
			if err := to.Update(name, data); err != nil {
				return fmt.Errorf("failed to copy %s: %w", name, err)
			}
		}
	}

	if !m.LockPreview {
		preview, err := m.SavePreview()
		if err != nil {
			return err
		}
		if err := updateIfChanged(to, "map.png", preview, samePackage); err != nil {
			return err
		}
	}

	yamlData, err := encodeMetadata(m)
	if err != nil {
		return err
	}
	if err := updateIfChanged(to, "map.yaml", yamlData, samePackage); err != nil {
		return err
	}
	if err := updateIfChanged(to, "map.bin", m.SaveBinary(), samePackage); err != nil {
		return err
	}

	uid, err := ComputeUIDFormat(to, m.MapFormat)
	if err != nil {
		return err
	}
	m.UID = uid
	m.Package = to
	return nil
}

// updateIfChanged skips the write when the package already holds identical data.
func updateIfChanged(p ReadWritePackage, name string, data []byte, samePackage bool) error {
	if samePackage {
		old, err := ReadFile(p, name)
		if err == nil && bytes.Equal(old, data) {
			return nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := p.Update(name, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
