package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// Extractor resolves result columns against the system catalog.
//
// Known limitation, inherited and deliberate: when two joined tables expose
// columns with the same name, the lookup resolves to whichever catalog row
// matches first, which can misclassify editability for such result sets.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor. If logger is nil, a discard logger is
// used.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Extract produces one ResultSetMetadata per recordset. Lookup failures for
// a single column leave that column unresolved and degrade editability;
// they never abort the extraction.
func (e *Extractor) Extract(ctx context.Context, pool driver.Pool, query string, recordsets []core.Recordset) []*core.ResultSetMetadata {
	refs := ScanTableReferences(query)

	out := make([]*core.ResultSetMetadata, 0, len(recordsets))
	for _, rs := range recordsets {
		out = append(out, e.extractOne(ctx, pool, refs, rs))
	}
	return out
}

func (e *Extractor) extractOne(ctx context.Context, pool driver.Pool, refs []TableRef, rs core.Recordset) *core.ResultSetMetadata {
	cols := rs.Columns
	if len(cols) == 0 && len(rs.Rows) > 0 {
		for name := range rs.Rows[0] {
			cols = append(cols, name)
		}
		sort.Strings(cols)
	}

	meta := &core.ResultSetMetadata{}
	for _, name := range cols {
		cm := core.ColumnMetadata{Name: name}
		if len(refs) > 0 {
			resolved, err := lookupColumn(ctx, pool, refs, name)
			if err != nil {
				e.logger.Debug("column lookup failed",
					slog.String("column", name),
					slog.String("error", err.Error()))
			} else if resolved != nil {
				cm = *resolved
				cm.Name = name
			}
		}
		meta.Columns = append(meta.Columns, cm)
	}

	seenTables := make(map[string]struct{})
	allResolved := len(meta.Columns) > 0
	for _, cm := range meta.Columns {
		if cm.IsPrimaryKey {
			meta.PrimaryKeyColumns = append(meta.PrimaryKeyColumns, cm.Name)
		}
		if cm.SourceTable == "" {
			allResolved = false
			continue
		}
		key := cm.SourceSchema + "." + cm.SourceTable
		if _, dup := seenTables[key]; !dup {
			seenTables[key] = struct{}{}
			meta.SourceTables = append(meta.SourceTables, key)
		}
	}
	meta.HasMultipleTables = len(meta.SourceTables) > 1
	meta.IsEditable = len(meta.PrimaryKeyColumns) > 0 && allResolved
	return meta
}

// lookupColumn queries the system catalog for one column, restricted to the
// tables discovered in the query text. The first match wins.
func lookupColumn(ctx context.Context, pool driver.Pool, refs []TableRef, column string) (*core.ColumnMetadata, error) {
	predicates := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Schema != "" {
			predicates = append(predicates, fmt.Sprintf(
				"(s.name = N'%s' AND t.name = N'%s')",
				escapeLiteral(ref.Schema), escapeLiteral(ref.Table)))
		} else {
			predicates = append(predicates, fmt.Sprintf(
				"t.name = N'%s'", escapeLiteral(ref.Table)))
		}
	}

	stmt := fmt.Sprintf(`
SELECT TOP 1
    s.name AS source_schema,
    t.name AS source_table,
    c.name AS source_column,
    ty.name AS type_name,
    c.is_nullable,
    c.is_identity,
    CASE WHEN ic.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key
FROM sys.columns c
JOIN sys.tables t ON c.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
JOIN sys.types ty ON c.user_type_id = ty.user_type_id
LEFT JOIN sys.indexes i
    ON i.object_id = t.object_id AND i.is_primary_key = 1
LEFT JOIN sys.index_columns ic
    ON ic.object_id = i.object_id AND ic.index_id = i.index_id AND ic.column_id = c.column_id
WHERE c.name = N'%s' AND (%s)
ORDER BY s.name, t.name`,
		escapeLiteral(column), strings.Join(predicates, " OR "))

	res, err := pool.Request().Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(res.Recordsets) == 0 || len(res.Recordsets[0].Rows) == 0 {
		return nil, nil
	}

	row := res.Recordsets[0].Rows[0]
	return &core.ColumnMetadata{
		TypeName:     asString(row["type_name"]),
		Nullable:     asBool(row["is_nullable"]),
		IsIdentity:   asBool(row["is_identity"]),
		IsPrimaryKey: asBool(row["is_primary_key"]),
		SourceSchema: asString(row["source_schema"]),
		SourceTable:  asString(row["source_table"]),
		SourceColumn: asString(row["source_column"]),
	}, nil
}

// escapeLiteral doubles single quotes for embedding in an N'' literal. The
// catalog statement cannot use placeholders because the driver request
// contract is plain text.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	case []byte:
		return asBool(string(t))
	default:
		return false
	}
}
