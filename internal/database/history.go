package database

import "time"

// HistoryEvent is one entry in a map's edit log.
type HistoryEvent struct {
	ID         int64
	MapID      string
	AuthorID   string
	AuthorName string
	EventType  string
	Message    string
	CreatedAt  time.Time
}

// Event types for map history
const (
	EventCreated       = "created"
	EventSaved         = "saved"
	EventHeightChanged = "height_changed"
	EventTileChanged   = "tile_changed"
	EventResized       = "resized"
)

// AddHistoryEvent appends an event to a map's history.
func (db *DB) AddHistoryEvent(mapID, authorID, authorName, eventType, message string) error {
	_, err := db.exec(`
		INSERT INTO map_history (map_id, author_id, author_name, event_type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, mapID, authorID, authorName, eventType, message, time.Now().UTC())
	return err
}

// GetMapHistory retrieves all history events for a map, oldest first.
func (db *DB) GetMapHistory(mapID string) ([]*HistoryEvent, error) {
	rows, err := db.query(`
		SELECT id, map_id, author_id, author_name, event_type, message, created_at
		FROM map_history
		WHERE map_id = ?
		ORDER BY id ASC
	`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*HistoryEvent
	for rows.Next() {
		e := &HistoryEvent{}
		if err := rows.Scan(&e.ID, &e.MapID, &e.AuthorID, &e.AuthorName, &e.EventType, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
