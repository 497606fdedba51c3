package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = sql.ErrNoRows

// SaveConnection inserts or updates a connection config. The password field
// is never persisted here; it belongs to the secret store.
func (s *SQLiteStore) SaveConnection(cfg core.ConnectionConfig) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var groupID sql.NullString
	if cfg.ServerGroupID != "" {
		groupID = sql.NullString{String: cfg.ServerGroupID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO connections
			(id, name, server, port, database_name, auth_type, username,
			 encrypt, trust_server_certificate, query_timeout,
			 connection_string, odbc_driver, server_group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			server = excluded.server,
			port = excluded.port,
			database_name = excluded.database_name,
			auth_type = excluded.auth_type,
			username = excluded.username,
			encrypt = excluded.encrypt,
			trust_server_certificate = excluded.trust_server_certificate,
			query_timeout = excluded.query_timeout,
			connection_string = excluded.connection_string,
			odbc_driver = excluded.odbc_driver,
			server_group_id = excluded.server_group_id
	`,
		cfg.ID, cfg.Name, cfg.Server, cfg.Port, cfg.Database, string(cfg.AuthType),
		cfg.Username, cfg.Encrypt, cfg.TrustServerCertificate, cfg.QueryTimeout,
		cfg.ConnectionString, cfg.ODBCDriver, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to save connection %s: %w", cfg.ID, err)
	}
	return nil
}

const connectionColumns = `
	id, name, server, port, database_name, auth_type, username,
	encrypt, trust_server_certificate, query_timeout,
	connection_string, odbc_driver, server_group_id`

func scanConnection(row interface{ Scan(...any) error }) (core.ConnectionConfig, error) {
	var cfg core.ConnectionConfig
	var authType string
	var groupID sql.NullString

	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Server, &cfg.Port, &cfg.Database, &authType,
		&cfg.Username, &cfg.Encrypt, &cfg.TrustServerCertificate, &cfg.QueryTimeout,
		&cfg.ConnectionString, &cfg.ODBCDriver, &groupID,
	)
	if err != nil {
		return cfg, err
	}
	cfg.AuthType = core.AuthType(authType)
	cfg.ServerGroupID = groupID.String
	return cfg, nil
}

// Connection retrieves one connection config by id.
func (s *SQLiteStore) Connection(id string) (core.ConnectionConfig, error) {
	if s.db == nil {
		return core.ConnectionConfig{}, fmt.Errorf("database not opened")
	}
	cfg, err := scanConnection(s.db.QueryRow(
		`SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return cfg, fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load connection %s: %w", id, err)
	}
	return cfg, nil
}

// Connections lists every saved connection config, ordered by name.
func (s *SQLiteStore) Connections() ([]core.ConnectionConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT ` + connectionColumns + ` FROM connections ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var configs []core.ConnectionConfig
	for rows.Next() {
		cfg, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return configs, nil
}

// DeleteConnection removes a connection config and its filters.
func (s *SQLiteStore) DeleteConnection(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	for _, stmt := range []string{
		`DELETE FROM database_filters WHERE connection_id = ?`,
		`DELETE FROM table_filters WHERE connection_id = ?`,
		`DELETE FROM connections WHERE id = ?`,
	} {
		if _, err := s.db.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete connection %s: %w", id, err)
		}
	}
	return nil
}

// SaveServerGroup inserts or updates a server group.
func (s *SQLiteStore) SaveServerGroup(g core.ServerGroup) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(`
		INSERT INTO server_groups (id, name, description, color, icon_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			icon_type = excluded.icon_type
	`, g.ID, g.Name, g.Description, g.Color, g.IconType)
	if err != nil {
		return fmt.Errorf("failed to save server group %s: %w", g.ID, err)
	}
	return nil
}

// ServerGroups lists every server group, ordered by name.
func (s *SQLiteStore) ServerGroups() ([]core.ServerGroup, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT id, name, description, color, icon_type FROM server_groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list server groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []core.ServerGroup
	for rows.Next() {
		var g core.ServerGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.IconType); err != nil {
			return nil, fmt.Errorf("failed to scan server group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating server groups: %w", err)
	}
	return groups, nil
}

// DeleteServerGroup removes a group. Member connections are ungrouped, never
// deleted.
func (s *SQLiteStore) DeleteServerGroup(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(
		`UPDATE connections SET server_group_id = NULL WHERE server_group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to ungroup connections for group %s: %w", id, err)
	}
	if _, err := s.db.Exec(`DELETE FROM server_groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete server group %s: %w", id, err)
	}
	return nil
}

// DatabaseFilter returns the database-level filter patterns for a
// connection; nil when none are set.
func (s *SQLiteStore) DatabaseFilter(connectionID string) ([]string, error) {
	return s.filter(
		`SELECT patterns FROM database_filters WHERE connection_id = ?`, connectionID)
}

// SetDatabaseFilter replaces the database-level filter for a connection.
func (s *SQLiteStore) SetDatabaseFilter(connectionID string, patterns []string) error {
	return s.setFilter(`
		INSERT INTO database_filters (connection_id, patterns) VALUES (?, ?)
		ON CONFLICT (connection_id) DO UPDATE SET patterns = excluded.patterns
	`, patterns, connectionID)
}

// TableFilter returns the table-level filter patterns for a
// connection+database pair; nil when none are set.
func (s *SQLiteStore) TableFilter(connectionID, database string) ([]string, error) {
	return s.filter(
		`SELECT patterns FROM table_filters WHERE connection_id = ? AND database_name = ?`,
		connectionID, database)
}

// SetTableFilter replaces the table-level filter for a connection+database
// pair.
func (s *SQLiteStore) SetTableFilter(connectionID, database string, patterns []string) error {
	return s.setFilter(`
		INSERT INTO table_filters (connection_id, database_name, patterns) VALUES (?, ?, ?)
		ON CONFLICT (connection_id, database_name) DO UPDATE SET patterns = excluded.patterns
	`, patterns, connectionID, database)
}

func (s *SQLiteStore) filter(query string, args ...any) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	var raw string
	err := s.db.QueryRow(query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load filter: %w", err)
	}
	var patterns []string
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	return patterns, nil
}

func (s *SQLiteStore) setFilter(stmt string, patterns []string, keys ...any) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if patterns == nil {
		patterns = []string{}
	}
	raw, err := json.Marshal(patterns)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	args := append(keys, string(raw))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("failed to save filter: %w", err)
	}
	return nil
}
