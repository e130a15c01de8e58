package server

import (
	"log"

	"tilemap/internal/database"
	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

// mapSession is an open map shared by every client viewing it.
type mapSession struct {
	rec     *database.MapRecord
	m       *maps.Map
	viewers map[*Client]bool
	dirty   bool

	// Cells reported by the projection observer since the last edit began.
	changed []geom.CPos
}

func newMapSession(rec *database.MapRecord, m *maps.Map) *mapSession {
	s := &mapSession{
		rec:     rec,
		m:       m,
		viewers: make(map[*Client]bool),
	}
	// Build the projection caches now so the first edit reports only the
	// cells it touched.
	m.ProjectedCellsCovering(geom.MPos{})
	m.OnCellProjectionChanged(func(c geom.CPos) {
		s.changed = append(s.changed, c)
	})
	return s
}

// edit runs fn and returns the cells whose projection it changed.
func (s *mapSession) edit(fn func()) []geom.CPos {
	s.changed = s.changed[:0]
	fn()
	s.dirty = true
	return append([]geom.CPos(nil), s.changed...)
}

// joinSession moves a client onto the session for rec, opening it with
// load when nobody has the map open yet.
func (h *Hub) joinSession(client *Client, rec *database.MapRecord, load func() (*maps.Map, error)) (*mapSession, error) {
	session, ok := h.sessions[rec.ID]
	if !ok {
		m, err := load()
		if err != nil {
			return nil, err
		}
		session = newMapSession(rec, m)
		h.sessions[rec.ID] = session
		if n := len(m.ReplacedInvalidTerrainTiles); n > 0 {
			log.Printf("Map %s: replaced %d invalid terrain tiles", rec.Name, n)
		}
	}

	if client.session != session {
		h.leaveSession(client)
		session.viewers[client] = true
		client.session = session
	}
	return session, nil
}

// leaveSession detaches a client from its map. The last viewer to leave
// saves pending edits and closes the map.
func (h *Hub) leaveSession(client *Client) {
	session := client.session
	if session == nil {
		return
	}
	client.session = nil
	delete(session.viewers, client)

	if len(session.viewers) > 0 {
		return
	}
	if session.dirty {
		h.saveSession(session, client.author)
	}
	delete(h.sessions, session.rec.ID)
}

// saveSession writes the map back to the store.
func (h *Hub) saveSession(session *mapSession, author *database.Author) error {
	rec, err := h.server.db.SaveMap(session.rec.Name, session.m, author)
	if err != nil {
		log.Printf("Failed to save map %s: %v", session.rec.Name, err)
		return err
	}
	session.rec = rec
	session.dirty = false
	return nil
}
