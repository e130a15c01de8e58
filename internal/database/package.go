package database

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Package is a map package whose files are rows in map_files.
type Package struct {
	db    *DB
	mapID string
	name  string
}

// Package returns the package holding a stored map's files.
func (db *DB) Package(rec *MapRecord) *Package {
	return &Package{db: db, mapID: rec.ID, name: rec.Name}
}

// Name returns the stored map name.
func (p *Package) Name() string { return p.name }

// MapID returns the row id of the owning map.
func (p *Package) MapID() string { return p.mapID }

// Contents lists file names in the order they were first written.
func (p *Package) Contents() ([]string, error) {
	rows, err := p.db.query(`
		SELECT name FROM map_files WHERE map_id = ? ORDER BY seq ASC
	`, p.mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Contains reports whether the package has a file.
func (p *Package) Contains(name string) bool {
	var count int
	err := p.db.queryRow(`
		SELECT COUNT(*) FROM map_files WHERE map_id = ? AND name = ?
	`, p.mapID, name).Scan(&count)
	return err == nil && count > 0
}

// Open returns a reader over a file's contents.
func (p *Package) Open(name string) (io.ReadCloser, error) {
	var data []byte
	err := p.db.queryRow(`
		SELECT data FROM map_files WHERE map_id = ? AND name = ?
	`, p.mapID, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Update writes a file. New files are appended to the listing order.
func (p *Package) Update(name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := p.db.exec(`
		INSERT INTO map_files (map_id, name, seq, data)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM map_files WHERE map_id = ?), ?)
		ON CONFLICT (map_id, name) DO UPDATE SET data = excluded.data
	`, p.mapID, name, p.mapID, data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (p *Package) Delete(name string) error {
	_, err := p.db.exec(`DELETE FROM map_files WHERE map_id = ? AND name = ?`, p.mapID, name)
	return err
}
