package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
)

// BaseSQLPool provides common database/sql functionality for backends.
// Embed this struct in concrete pool implementations to get standard
// Close, Connected, Config, and batch-execution behavior.
type BaseSQLPool struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	mu        sync.Mutex
	connected bool
}

// Close closes the database connection. Safe to call when not connected.
func (b *BaseSQLPool) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing pool", slog.String("server", b.Cfg.Server))
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Connected reports whether the pool holds a live connection.
func (b *BaseSQLPool) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SetDB installs the connection handle and marks the pool connected.
func (b *BaseSQLPool) SetDB(db *sql.DB) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DB = db
	b.connected = db != nil
}

// Config returns the configuration the pool was created with.
func (b *BaseSQLPool) Config() Config { return b.Cfg }

// RequestContext derives the context for one request from the pool's
// configured query timeout. A timeout of zero or less means unbounded: the
// context carries no deadline at all rather than a zero deadline, since a
// zero deadline would fail immediately.
func (b *BaseSQLPool) RequestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.Cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, time.Duration(b.Cfg.QueryTimeout)*time.Second)
	}
	return context.WithCancel(ctx)
}

// RunBatch executes one already-split batch. Row-returning batches,
// including procedure calls, go through QueryContext and contribute one
// rows-affected entry per recordset (the row count); everything else goes
// through ExecContext and contributes the driver-reported affected count.
// Classification is by leading keyword, an accepted heuristic:
// INSERT ... OUTPUT falls on the exec side and loses its recordset.
func (b *BaseSQLPool) RunBatch(ctx context.Context, batch string) (*Result, error) {
	b.mu.Lock()
	db := b.DB
	b.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("pool is not connected")
	}

	if isRowReturning(batch) {
		rows, err := db.QueryContext(ctx, batch)
		if err != nil {
			return nil, err
		}
		recordsets, err := ScanRecordsets(rows)
		if err != nil {
			return nil, err
		}
		res := &Result{Recordsets: recordsets}
		for _, rs := range recordsets {
			res.RowsAffected = append(res.RowsAffected, int64(len(rs.Rows)))
		}
		return res, nil
	}

	execRes, err := db.ExecContext(ctx, batch)
	if err != nil {
		return nil, err
	}
	affected, err := execRes.RowsAffected()
	if err != nil {
		// Not every statement reports a count (DDL); record zero.
		affected = 0
	}
	return &Result{RowsAffected: []int64{affected}}, nil
}

// ExecuteProc runs a stored procedure with named parameters through the
// shared connection handle.
func (b *BaseSQLPool) ExecuteProc(ctx context.Context, proc string, params []Param) (*Result, error) {
	b.mu.Lock()
	db := b.DB
	b.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("pool is not connected")
	}

	args := make([]any, 0, len(params))
	placeholders := make([]string, 0, len(params))
	for _, p := range params {
		args = append(args, sql.Named(p.Name, p.Value))
		placeholders = append(placeholders, fmt.Sprintf("@%s = @%s", p.Name, p.Name))
	}

	stmt := "EXEC " + proc
	if len(placeholders) > 0 {
		stmt += " " + strings.Join(placeholders, ", ")
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	recordsets, err := ScanRecordsets(rows)
	if err != nil {
		return nil, err
	}
	res := &Result{Recordsets: recordsets}
	for _, rs := range recordsets {
		res.RowsAffected = append(res.RowsAffected, int64(len(rs.Rows)))
	}
	return res, nil
}

// ScanRecordsets drains every result set of rows, including subsequent
// result sets signalled by the driver, into normalized recordsets. Byte
// slices are converted to strings for readability.
func ScanRecordsets(rows *sql.Rows) ([]core.Recordset, error) {
	defer func() { _ = rows.Close() }()

	var recordsets []core.Recordset
	for {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}

		rs := core.Recordset{Columns: cols}
		for rows.Next() {
			values := make([]any, len(cols))
			valuePtrs := make([]any, len(cols))
			for i := range values {
				valuePtrs[i] = &values[i]
			}
			if err := rows.Scan(valuePtrs...); err != nil {
				return nil, err
			}

			row := make(core.Row, len(cols))
			for i, col := range cols {
				val := values[i]
				if b, ok := val.([]byte); ok {
					val = string(b)
				}
				row[col] = val
			}
			rs.Rows = append(rs.Rows, row)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}

		if len(cols) > 0 {
			recordsets = append(recordsets, rs)
		}

		if !rows.NextResultSet() {
			break
		}
	}
	return recordsets, nil
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)--[^\r\n]*`)
)

// LeadingKeyword returns the upper-cased first keyword of a statement after
// stripping -- line comments and /* */ block comments.
func LeadingKeyword(sqlText string) string {
	stripped := blockComment.ReplaceAllString(sqlText, " ")
	stripped = lineComment.ReplaceAllString(stripped, " ")
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// isRowReturning reports whether a batch should run on the query path.
func isRowReturning(batch string) bool {
	switch LeadingKeyword(batch) {
	case "SELECT", "WITH", "VALUES", "EXEC", "EXECUTE":
		return true
	default:
		return false
	}
}
