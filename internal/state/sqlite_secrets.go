package state

import (
	"database/sql"
	"fmt"
)

// The secrets table keeps passwords out of the plain connections table; the
// registry reaches it only through the secret.Store interface, so hosts can
// swap in an OS keychain-backed implementation without touching this store.

// SetSecret stores a secret value by key.
func (s *SQLiteStore) SetSecret(key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		INSERT INTO secrets (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Secret retrieves a secret value by key; missing keys return "".
func (s *SQLiteStore) Secret(key string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return value, nil
}

// DeleteSecret removes a secret by key. Missing keys are not an error.
func (s *SQLiteStore) DeleteSecret(key string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(`DELETE FROM secrets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
