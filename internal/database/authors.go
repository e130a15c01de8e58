package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Author is someone who edits maps through the server.
type Author struct {
	ID         string
	Token      string
	Name       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// ErrAuthorNotFound is returned when an author is not found.
var ErrAuthorNotFound = errors.New("author not found")

// CreateAuthor creates a new author with a generated token.
func (db *DB) CreateAuthor(name string) (*Author, error) {
	id := uuid.New().String()
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = db.exec(`
		INSERT INTO authors (id, token, name, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, token, name, now, now)
	if err != nil {
		return nil, err
	}

	return &Author{
		ID:         id,
		Token:      token,
		Name:       name,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// GetAuthorByToken retrieves an author by their token.
func (db *DB) GetAuthorByToken(token string) (*Author, error) {
	return db.scanAuthor(db.queryRow(`
		SELECT id, token, name, created_at, last_seen_at
		FROM authors WHERE token = ?
	`, token))
}

// GetAuthorByID retrieves an author by their ID.
func (db *DB) GetAuthorByID(id string) (*Author, error) {
	return db.scanAuthor(db.queryRow(`
		SELECT id, token, name, created_at, last_seen_at
		FROM authors WHERE id = ?
	`, id))
}

func (db *DB) scanAuthor(row *sql.Row) (*Author, error) {
	var a Author
	err := row.Scan(&a.ID, &a.Token, &a.Name, &a.CreatedAt, &a.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuthorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAuthorName updates an author's display name.
func (db *DB) UpdateAuthorName(id, name string) error {
	result, err := db.exec(`UPDATE authors SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

// UpdateAuthorLastSeen updates the last seen timestamp.
func (db *DB) UpdateAuthorLastSeen(id string) error {
	_, err := db.exec(`UPDATE authors SET last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// generateToken creates a secure random token.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
