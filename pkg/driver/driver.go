// Package driver provides the pool/request abstraction shared by both SQL
// Server backends (network driver and ODBC bridge).
//
// This package contains the public contract that all backends must implement.
// Concrete backend implementations are in pkg/drivers/ subdirectories and
// register themselves via init(); import them with a blank identifier:
//
//	import _ "github.com/jakubkozera/mssqlmgr/pkg/drivers/mssql"
//	import _ "github.com/jakubkozera/mssqlmgr/pkg/drivers/odbc"
package driver

import (
	"context"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
)

// Config is an alias for core.ConnectionConfig. Backends receive the full
// connection descriptor and pick out the fields they understand.
type Config = core.ConnectionConfig

// Result is the normalized outcome of one Query or Execute call: every
// recordset in execution order plus one rows-affected entry per statement
// segment.
type Result struct {
	Recordsets   []core.Recordset
	RowsAffected []int64
}

// Param is a named stored-procedure parameter.
type Param struct {
	Name  string
	Value any
}

// Request is a single-use handle obtained from a Pool for one query or
// execute call. Requests are not reused across calls.
type Request interface {
	// Query executes a submission, splitting on GO separator lines and
	// running sub-batches sequentially. All recordsets and rows-affected
	// values are concatenated in submission order. Any batch failure aborts
	// the remaining batches and propagates the error.
	Query(ctx context.Context, sqlText string) (*Result, error)

	// Execute runs a stored procedure with named parameters.
	Execute(ctx context.Context, proc string, params []Param) (*Result, error)

	// Cancel aborts the in-flight call if the backend supports it. Backends
	// without cancellation support (the ODBC bridge) must no-op without
	// panicking.
	Cancel()
}

// Pool is a live handle to one physical database connection, reusable across
// multiple queries. Pools are owned by the connection registry; borrowers
// obtain Requests but never close the pool themselves.
type Pool interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// Close tears down the underlying connection. Safe to call when not
	// connected.
	Close() error

	// Connected reports whether Connect has succeeded and Close has not
	// been called since.
	Connected() bool

	// Request returns a fresh single-use request handle.
	Request() Request

	// Config returns the configuration this pool was created with.
	Config() Config
}
