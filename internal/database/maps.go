package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tilemap/pkg/maps"
)

// MapRecord is the index row for a stored map package.
type MapRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UID       string    `json:"uid"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Tileset   string    `json:"tileset"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrMapNotFound is returned when a map is not found.
	ErrMapNotFound = errors.New("map not found")
	// ErrMapExists is returned when creating a map under a name that is taken.
	ErrMapExists = errors.New("map already exists")
)

const mapColumns = `id, name, uid, title, author, tileset, width, height, created_at, updated_at`

// CreateMap creates an empty map entry.
func (db *DB) CreateMap(name string) (*MapRecord, error) {
	if _, err := db.GetMapByName(name); err == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrMapExists)
	} else if !errors.Is(err, ErrMapNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &MapRecord{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.exec(`
		INSERT INTO maps (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, rec.ID, rec.Name, now, now)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetMap retrieves a map by ID.
func (db *DB) GetMap(id string) (*MapRecord, error) {
	return scanMap(db.queryRow(`SELECT `+mapColumns+` FROM maps WHERE id = ?`, id))
}

// GetMapByName retrieves a map by its unique name.
func (db *DB) GetMapByName(name string) (*MapRecord, error) {
	return scanMap(db.queryRow(`SELECT `+mapColumns+` FROM maps WHERE name = ?`, name))
}

// GetMapByUID retrieves the most recently updated map with the given UID.
func (db *DB) GetMapByUID(uid string) (*MapRecord, error) {
	return scanMap(db.queryRow(`
		SELECT `+mapColumns+` FROM maps WHERE uid = ?
		ORDER BY updated_at DESC LIMIT 1
	`, uid))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMap(row rowScanner) (*MapRecord, error) {
	var r MapRecord
	err := row.Scan(&r.ID, &r.Name, &r.UID, &r.Title, &r.Author, &r.Tileset,
		&r.Width, &r.Height, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListMaps returns all stored maps ordered by name.
func (db *DB) ListMaps() ([]*MapRecord, error) {
	rows, err := db.query(`SELECT ` + mapColumns + ` FROM maps ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*MapRecord
	for rows.Next() {
		r, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateMapInfo copies the listing fields of a loaded or saved map.
func (db *DB) UpdateMapInfo(id string, m *maps.Map) error {
	result, err := db.exec(`
		UPDATE maps
		SET uid = ?, title = ?, author = ?, tileset = ?, width = ?, height = ?, updated_at = ?
		WHERE id = ?
	`, m.UID, m.Title, m.Author, m.TilesetID, m.MapSize.Width, m.MapSize.Height, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMapNotFound
	}
	return nil
}

// DeleteMap permanently deletes a map with its files and history.
func (db *DB) DeleteMap(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Delete in order of dependencies
	if _, err := tx.Exec(db.rebind(`DELETE FROM map_history WHERE map_id = ?`), id); err != nil {
		return err
	}
	if _, err := tx.Exec(db.rebind(`DELETE FROM map_files WHERE map_id = ?`), id); err != nil {
		return err
	}
	result, err := tx.Exec(db.rebind(`DELETE FROM maps WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrMapNotFound
	}

	return tx.Commit()
}

// SaveMap saves m under name, creating the entry on first save, and
// records the save in the map's history.
func (db *DB) SaveMap(name string, m *maps.Map, author *Author) (*MapRecord, error) {
	rec, err := db.GetMapByName(name)
	created := false
	if errors.Is(err, ErrMapNotFound) {
		rec, err = db.CreateMap(name)
		created = true
	}
	if err != nil {
		return nil, err
	}

	// Reuse the map's own package when it already lives in this row so
	// unchanged files are not rewritten.
	pkg, ok := m.Package.(*Package)
	if !ok || pkg.db != db || pkg.mapID != rec.ID {
		pkg = db.Package(rec)
	}

	if err := m.Save(pkg); err != nil {
		return nil, fmt.Errorf("failed to save map %s: %w", name, err)
	}
	if err := db.UpdateMapInfo(rec.ID, m); err != nil {
		return nil, err
	}

	event := EventSaved
	if created {
		event = EventCreated
	}
	var authorID, authorName string
	if author != nil {
		authorID, authorName = author.ID, author.Name
	}
	if err := db.AddHistoryEvent(rec.ID, authorID, authorName, event, "uid "+m.UID); err != nil {
		return nil, err
	}

	return db.GetMap(rec.ID)
}

// LoadMap loads a stored map through l.
func (db *DB) LoadMap(l *maps.Loader, id string) (*maps.Map, error) {
	rec, err := db.GetMap(id)
	if err != nil {
		return nil, err
	}
	m, err := l.Load(db.Package(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to load map %s: %w", rec.Name, err)
	}
	return m, nil
}
