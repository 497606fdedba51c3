// Package executor runs SQL submissions against a driver pool, normalizes
// the results, classifies failures for display, and feeds the metadata
// extractor and the query history sink.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// HistorySink receives successful executions. Append failures are logged
// and never surface to the caller.
type HistorySink interface {
	AppendHistory(core.QueryHistoryEntry) error
}

// MetadataExtractor annotates SELECT recordsets with column provenance.
type MetadataExtractor interface {
	Extract(ctx context.Context, pool driver.Pool, query string, recordsets []core.Recordset) []*core.ResultSetMetadata
}

// ConnectionInfo tags history entries with the identity of the executing
// connection.
type ConnectionInfo struct {
	ID       string
	Name     string
	Server   string
	Database string
}

// Executor executes queries. One query at a time is tracked for
// cancellation; concurrent executions on the same instance are not
// otherwise coordinated.
type Executor struct {
	logger    *slog.Logger
	extractor MetadataExtractor
	history   HistorySink

	mu      sync.Mutex
	current driver.Request
}

// New creates an executor. Extractor and history may be nil to disable
// metadata extraction and history recording. If logger is nil, a discard
// logger is used.
func New(logger *slog.Logger, extractor MetadataExtractor, history HistorySink) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{logger: logger, extractor: extractor, history: history}
}

// ExecuteQuery runs a submission through the pool and returns the
// normalized, optionally metadata-annotated result. It fails when the pool
// is nil, the query is blank, or the driver rejects the submission.
func (e *Executor) ExecuteQuery(ctx context.Context, query string, pool driver.Pool, info ConnectionInfo) (*core.QueryResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("no active connection")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	req := pool.Request()
	e.mu.Lock()
	e.current = req
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	start := time.Now()
	res, err := req.Query(ctx, query)
	if err != nil {
		qerr := categorize(err)
		e.logger.Debug("query failed",
			slog.String("category", string(qerr.Category)),
			slog.String("error", err.Error()))
		return nil, qerr
	}

	result := &core.QueryResult{
		Query:        query,
		Recordsets:   res.Recordsets,
		RowsAffected: res.RowsAffected,
		IsSelect:     IsSelectQuery(query),
	}
	// Execution time covers the query and normalization only, not the
	// metadata catalog lookups.
	result.ExecutionMs = time.Since(start).Milliseconds()

	if result.IsSelect && e.extractor != nil && hasRows(res.Recordsets) {
		result.Metadata = e.extractor.Extract(ctx, pool, query, res.Recordsets)
	}

	e.appendHistory(result, info)
	return result, nil
}

// CancelCurrentQuery cancels the in-flight request, if any. Backends
// without cancellation support no-op.
func (e *Executor) CancelCurrentQuery() {
	e.mu.Lock()
	req := e.current
	e.mu.Unlock()
	if req != nil {
		req.Cancel()
	}
}

func (e *Executor) appendHistory(result *core.QueryResult, info ConnectionInfo) {
	if e.history == nil {
		return
	}

	rowCounts := make([]int, 0, len(result.Recordsets))
	for _, rs := range result.Recordsets {
		rowCounts = append(rowCounts, len(rs.Rows))
	}

	entry := core.QueryHistoryEntry{
		Query:          StripSetStatements(result.Query),
		ConnectionID:   info.ID,
		ConnectionName: info.Name,
		Database:       info.Database,
		Server:         info.Server,
		ResultSetCount: len(result.Recordsets),
		RowCounts:      rowCounts,
		ExecutedAt:     time.Now().UTC(),
		DurationMs:     result.ExecutionMs,
	}
	if err := e.history.AppendHistory(entry); err != nil {
		e.logger.Warn("failed to append query history", slog.String("error", err.Error()))
	}
}

func hasRows(recordsets []core.Recordset) bool {
	for _, rs := range recordsets {
		if len(rs.Rows) > 0 {
			return true
		}
	}
	return false
}

// IsSelectQuery reports whether the submission's leading keyword, after
// stripping line and block comments, is SELECT.
func IsSelectQuery(query string) bool {
	return driver.LeadingKeyword(query) == "SELECT"
}

var setStatementLine = regexp.MustCompile(`(?im)^[ \t]*SET\s[^\r\n]*\r?\n?`)

// StripSetStatements removes SET-statement lines before a query is
// recorded in history; SET toggles are execution plumbing, not user intent.
func StripSetStatements(query string) string {
	return strings.TrimSpace(setStatementLine.ReplaceAllString(query, ""))
}
