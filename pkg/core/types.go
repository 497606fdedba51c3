// Package core defines the shared domain types for mssqlmgr: connection
// configuration, server groups, query results, and result-set metadata.
//
// The Golden Rule: pkg/core imports only the standard library. Driver
// backends, the registry, and the executor all build on these types without
// pulling each other in.
package core

import "time"

// AuthType selects the authentication strategy, and with it the driver
// backend used for the connection.
type AuthType string

const (
	// AuthSQL is SQL Server authentication (username/password) over the
	// network driver.
	AuthSQL AuthType = "sql"

	// AuthWindows is Windows/Integrated authentication over the ODBC bridge.
	AuthWindows AuthType = "windows"
)

// ConnectionConfig is a named, persisted connection descriptor.
//
// Password is transient: it is resolved from the secret store when a pool is
// created and is never written to plain config persistence.
type ConnectionConfig struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Database string   `json:"database"` // empty = no default database
	AuthType AuthType `json:"authType"`

	Username string `json:"username"`
	Password string `json:"-"`

	Encrypt                bool `json:"encrypt"`
	TrustServerCertificate bool `json:"trustServerCertificate"`

	// QueryTimeout is the per-request timeout in seconds. Zero or negative
	// means unbounded: no deadline is applied to the underlying request.
	QueryTimeout int `json:"queryTimeout"`

	// ConnectionString, when set, is used verbatim and overrides the
	// server/port/database fields.
	ConnectionString string `json:"connectionString,omitempty"`

	// ODBCDriver pins the ODBC driver name. When empty the ODBC backend
	// probes a prioritized candidate list.
	ODBCDriver string `json:"odbcDriver,omitempty"`

	// ServerGroupID is the owning group, empty when ungrouped.
	ServerGroupID string `json:"serverGroupId,omitempty"`
}

// ServerGroup is organizational metadata for grouping connections. Deleting
// a group ungroups its connections; it never cascades.
type ServerGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IconType    string `json:"iconType,omitempty"`
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Recordset is one ordered set of result rows from a single statement.
// Columns preserves the column order reported by the driver, since Row maps
// cannot.
type Recordset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// QueryResult is the normalized outcome of executing one submission, which
// may have been split into multiple GO batches.
type QueryResult struct {
	// Query is the original submitted text.
	Query string `json:"query"`

	// Recordsets holds every result set in submission order across batches.
	Recordsets []Recordset `json:"recordsets"`

	// RowsAffected holds one entry per statement/batch segment, in order.
	RowsAffected []int64 `json:"rowsAffected"`

	// ExecutionMs is wall-clock time from just before the request to just
	// after normalization.
	ExecutionMs int64 `json:"executionTimeMs"`

	// IsSelect reports whether the submission was detected as a pure SELECT.
	IsSelect bool `json:"isSelect"`

	// Metadata is parallel to Recordsets when extraction ran; entries may be
	// nil when extraction failed for that recordset.
	Metadata []*ResultSetMetadata `json:"metadata,omitempty"`
}

// ColumnMetadata describes one result column's provenance as resolved from
// the system catalog.
type ColumnMetadata struct {
	Name         string `json:"name"`
	TypeName     string `json:"typeName,omitempty"`
	Nullable     bool   `json:"nullable"`
	IsIdentity   bool   `json:"isIdentity"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`

	// Source fields are empty when the column could not be traced back to a
	// catalog column (computed expressions, aliases, unparsable queries).
	SourceSchema string `json:"sourceSchema,omitempty"`
	SourceTable  string `json:"sourceTable,omitempty"`
	SourceColumn string `json:"sourceColumn,omitempty"`
}

// ResultSetMetadata annotates one recordset with per-column provenance and
// the derived editability classification.
type ResultSetMetadata struct {
	Columns           []ColumnMetadata `json:"columns"`
	PrimaryKeyColumns []string         `json:"primaryKeyColumns"`
	SourceTables      []string         `json:"sourceTables"`
	HasMultipleTables bool             `json:"hasMultipleTables"`

	// IsEditable is true only if at least one primary-key column was
	// resolved and every column has a resolved source table. This is the
	// load-bearing rule gating UPDATE generation.
	IsEditable bool `json:"isEditable"`
}

// QueryHistoryEntry records one successful execution for the history sink.
type QueryHistoryEntry struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"` // SET-statement lines stripped
	ConnectionID   string    `json:"connectionId"`
	ConnectionName string    `json:"connectionName"`
	Database       string    `json:"database"`
	Server         string    `json:"server"`
	ResultSetCount int       `json:"resultSetCount"`
	RowCounts      []int     `json:"rowCounts"`
	ExecutedAt     time.Time `json:"executedAt"`
	DurationMs     int64     `json:"durationMs"`
	Pinned         bool      `json:"pinned"`
}
