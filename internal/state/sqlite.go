// Package state persists connection configuration, server groups, filters,
// query history, and secrets in a SQLite database.
package state

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// SQLiteStore is the persistent store backing the connection registry and
// the query history sink.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new store instance. Call Open before use.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens the SQLite database. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping state database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Setting reads a scalar setting; missing keys return "".
func (s *SQLiteStore) Setting(key string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting writes a scalar setting.
func (s *SQLiteStore) SetSetting(key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// odbcDriverKey is the settings slot for the cached ODBC driver name.
const odbcDriverKey = "odbc.cached_driver"

// CachedODBCDriver returns the ODBC driver name that last connected
// successfully, or "" when none is known.
func (s *SQLiteStore) CachedODBCDriver() (string, error) {
	return s.Setting(odbcDriverKey)
}

// SetCachedODBCDriver records a working ODBC driver name.
func (s *SQLiteStore) SetCachedODBCDriver(name string) error {
	return s.SetSetting(odbcDriverKey, name)
}
