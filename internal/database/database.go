// Package database stores map packages in SQLite or PostgreSQL.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect captures the few places where SQLite and PostgreSQL disagree.
type dialect struct {
	name     string
	driver   string
	blob     string
	serial   string
	numbered bool // $1, $2, ... placeholders
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		blob:   "BLOB",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		name:     "postgres",
		driver:   "postgres",
		blob:     "BYTEA",
		serial:   "BIGSERIAL PRIMARY KEY",
		numbered: true,
	}
)

// DB wraps the database connection.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// New opens a map store.
// A dsn starting with postgres:// or postgresql:// selects PostgreSQL;
// anything else is a SQLite file path, created if it doesn't exist.
func New(dsn string) (*DB, error) {
	if IsPostgresDSN(dsn) {
		return open(postgresDialect, dsn)
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(sqliteDialect, dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}

// IsPostgresDSN reports whether dsn names a PostgreSQL server.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func open(d dialect, dsn string) (*DB, error) {
	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.driver == "sqlite" {
		// Limit concurrent connections to avoid lock contention
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dialect: d}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect returns the name of the SQL dialect in use.
func (db *DB) Dialect() string {
	return db.dialect.name
}

// rebind rewrites ? placeholders for dialects that number them.
func (db *DB) rebind(query string) string {
	if !db.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(db.rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(db.rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(db.rebind(query), args...)
}

// schema expands the dialect tokens in a migration.
func (db *DB) schema(sql string) string {
	return strings.NewReplacer(
		"{{blob}}", db.dialect.blob,
		"{{serial}}", db.dialect.serial,
	).Replace(sql)
}

// migrate runs all database migrations.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(m.id)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := db.runMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.id, m.name, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(id int) (bool, error) {
	var count int
	err := db.queryRow("SELECT COUNT(*) FROM migrations WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (db *DB) runMigration(m migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.schema(m.sql)); err != nil {
		return err
	}

	if _, err := tx.Exec(db.rebind("INSERT INTO migrations (id, name) VALUES (?, ?)"), m.id, m.name); err != nil {
		return err
	}

	return tx.Commit()
}
