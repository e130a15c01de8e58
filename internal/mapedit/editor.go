package mapedit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tilemap/internal/protocol"
	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

// ErrNoSaveTarget is returned when saving a local map opened without a
// writable package.
var ErrNoSaveTarget = errors.New("map has no save target")

// requestTimeout bounds every call to the server.
const requestTimeout = 10 * time.Second

// Remote is the server connection used to edit a stored map.
// *client.Client implements it.
type Remote interface {
	SetHeight(ctx context.Context, cell geom.CPos, height int) ([]geom.CPos, error)
	SetTile(ctx context.Context, cell geom.CPos, tile maps.TerrainTile) ([]geom.CPos, error)
	TerrainAt(ctx context.Context, cell geom.CPos) (*protocol.TerrainPayload, error)
	SaveMap(ctx context.Context) (string, error)
}

// cellState is the server's view of one cell.
type cellState struct {
	cell   geom.CPos
	height byte
	tile   maps.TerrainTile
}

// Editor owns a map being viewed. Local edits apply immediately. With a
// Remote, edits go to the server and the resulting cell state comes back
// through CellChanged and Apply.
//
// CellChanged may be called from any goroutine; everything else must run
// on the goroutine that owns the map.
type Editor struct {
	m      *maps.Map
	remote Remote
	target maps.ReadWritePackage

	dirty  bool
	status string

	edited  chan geom.CPos
	updates chan cellState
	notices chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewLocal edits m in place. target receives Save; it may be nil.
func NewLocal(m *maps.Map, target maps.ReadWritePackage) *Editor {
	e := newEditor(m)
	e.target = target
	return e
}

// NewRemote edits the copy m of the map open on remote.
func NewRemote(m *maps.Map, remote Remote) *Editor {
	e := newEditor(m)
	e.remote = remote
	e.wg.Add(1)
	go e.refreshLoop()
	return e
}

func newEditor(m *maps.Map) *Editor {
	e := &Editor{
		m:       m,
		dirty:   true,
		edited:  make(chan geom.CPos, 256),
		updates: make(chan cellState, 256),
		notices: make(chan string, 16),
		done:    make(chan struct{}),
	}
	m.OnCellProjectionChanged(func(geom.CPos) { e.dirty = true })
	return e
}

// Close stops background work.
func (e *Editor) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
	e.wg.Wait()
}

// Map returns the map being edited.
func (e *Editor) Map() *maps.Map {
	return e.m
}

// Remote reports whether edits go through a server.
func (e *Editor) Remote() bool {
	return e.remote != nil
}

// Status returns the last status message.
func (e *Editor) Status() string {
	return e.status
}

// SetStatus replaces the status message.
func (e *Editor) SetStatus(msg string) {
	e.status = msg
}

// Dirty reports whether the map changed since the last ClearDirty.
func (e *Editor) Dirty() bool {
	return e.dirty
}

// ClearDirty marks the map as redrawn.
func (e *Editor) ClearDirty() {
	e.dirty = false
}

// ChangeHeight moves the height of c by delta within the grid's range.
func (e *Editor) ChangeHeight(c geom.CPos, delta int) {
	if !e.m.Height.Contains(c) {
		return
	}
	current := e.m.Height.At(c)
	height := StepHeight(current, delta, e.m.Grid.MaximumTerrainHeight)
	if height == current {
		return
	}

	if e.remote == nil {
		e.m.Height.Set(c, height)
		e.dirty = true
		e.status = fmt.Sprintf("%v height %d", c, height)
		return
	}
	e.send(fmt.Sprintf("set height of %v", c), func(ctx context.Context) error {
		_, err := e.remote.SetHeight(ctx, c, int(height))
		return err
	})
}

// PaintTerrain sets c to the first tile of the named terrain type.
func (e *Editor) PaintTerrain(c geom.CPos, terrain string) error {
	if !e.m.Tiles.Contains(c) {
		return nil
	}
	tile, ok := e.m.Tileset.TileOf(terrain)
	if !ok {
		return fmt.Errorf("tileset %s has no %s tile", e.m.TilesetID, terrain)
	}
	if e.m.Tiles.At(c) == tile {
		return nil
	}

	if e.remote == nil {
		e.m.Tiles.Set(c, tile)
		e.dirty = true
		e.status = fmt.Sprintf("%v %s", c, terrain)
		return nil
	}
	e.send(fmt.Sprintf("paint %v", c), func(ctx context.Context) error {
		_, err := e.remote.SetTile(ctx, c, tile)
		return err
	})
	return nil
}

// send runs a server call in the background and reports failures through
// the status line.
func (e *Editor) send(what string, call func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			e.notify(fmt.Sprintf("failed to %s: %v", what, err))
		}
	}()
}

func (e *Editor) notify(msg string) {
	select {
	case e.notices <- msg:
	default:
		log.Printf("Dropped status: %s", msg)
	}
}

// CellChanged records that the server changed a cell. The new state is
// fetched in the background and applied by the next Apply.
func (e *Editor) CellChanged(c geom.CPos) {
	select {
	case e.edited <- c:
	default:
		log.Printf("Dropped change of %v", c)
	}
}

func (e *Editor) refreshLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case c := <-e.edited:
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			terrain, err := e.remote.TerrainAt(ctx, c)
			cancel()
			if err != nil {
				e.notify(fmt.Sprintf("failed to refresh %v: %v", c, err))
				continue
			}
			select {
			case e.updates <- cellState{
				cell:   c,
				height: byte(terrain.Height),
				tile:   maps.TerrainTile{Type: uint16(terrain.TileType), Index: byte(terrain.TileIndex)},
			}:
			case <-e.done:
				return
			}
		}
	}
}

// Apply copies fetched server state into the map and collects status
// messages. It reports whether anything changed.
func (e *Editor) Apply() bool {
	changed := false
	for {
		select {
		case u := <-e.updates:
			if e.m.Height.Contains(u.cell) {
				if e.m.Height.At(u.cell) != u.height {
					e.m.Height.Set(u.cell, u.height)
				}
				if e.m.Tiles.At(u.cell) != u.tile {
					e.m.Tiles.Set(u.cell, u.tile)
				}
				e.status = fmt.Sprintf("%v height %d", u.cell, u.height)
				e.dirty = true
				changed = true
			}
		case msg := <-e.notices:
			e.status = msg
		default:
			return changed
		}
	}
}

// Save stores the map and returns its UID.
func (e *Editor) Save(ctx context.Context) (string, error) {
	if e.remote != nil {
		uid, err := e.remote.SaveMap(ctx)
		if err != nil {
			return "", err
		}
		e.m.UID = uid
		e.status = "saved " + uid
		return uid, nil
	}

	if e.target == nil {
		return "", ErrNoSaveTarget
	}
	if err := e.m.Save(e.target); err != nil {
		return "", err
	}
	e.status = "saved " + e.m.UID
	return e.m.UID, nil
}

// Describe summarises one cell for the status panel.
func (e *Editor) Describe(c geom.CPos) string {
	m := e.m
	if !m.Height.Contains(c) {
		return fmt.Sprintf("%v outside map", c)
	}
	uv := c.ToMPos(m.Grid.Type)
	s := fmt.Sprintf("cell %d,%d  map %d,%d  height %d  ramp %d  %s",
		c.X, c.Y, uv.U, uv.V, m.Height.At(c), m.Ramp.At(c), m.TerrainInfo(c).Type)
	if !m.Contains(c) {
		s += "  (outside bounds)"
	}
	return s
}
