// Package catalog issues the fixed SQL Server system-view queries behind
// the schema-browse operations. These statements are SQL Server contracts;
// porting to another RDBMS means replacing every one of them.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// TableInfo identifies one table or view.
type TableInfo struct {
	Schema string
	Name   string
	Type   string // BASE TABLE or VIEW
}

// ColumnInfo describes one column as reported by INFORMATION_SCHEMA.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
	Position int
}

// ForeignKey describes one foreign-key column pair.
type ForeignKey struct {
	Name             string
	Column           string
	ReferencedSchema string
	ReferencedTable  string
	ReferencedColumn string
}

// Databases lists user-visible databases on the server.
func Databases(ctx context.Context, pool driver.Pool) ([]string, error) {
	res, err := pool.Request().Query(ctx, `
SELECT name FROM sys.databases
WHERE state = 0
ORDER BY CASE WHEN database_id <= 4 THEN 1 ELSE 0 END, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	var names []string
	for _, row := range firstRecordset(res) {
		names = append(names, asString(row["name"]))
	}
	return names, nil
}

// Tables lists tables and views in the current database.
func Tables(ctx context.Context, pool driver.Pool) ([]TableInfo, error) {
	res, err := pool.Request().Query(ctx, `
SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
FROM INFORMATION_SCHEMA.TABLES
ORDER BY TABLE_TYPE, TABLE_SCHEMA, TABLE_NAME`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []TableInfo
	for _, row := range firstRecordset(res) {
		tables = append(tables, TableInfo{
			Schema: asString(row["TABLE_SCHEMA"]),
			Name:   asString(row["TABLE_NAME"]),
			Type:   asString(row["TABLE_TYPE"]),
		})
	}
	return tables, nil
}

// Columns lists the columns of one table.
func Columns(ctx context.Context, pool driver.Pool, schema, table string) ([]ColumnInfo, error) {
	if schema == "" {
		schema = "dbo"
	}
	stmt := fmt.Sprintf(`
SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, ORDINAL_POSITION
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = N'%s' AND TABLE_NAME = N'%s'
ORDER BY ORDINAL_POSITION`, escapeLiteral(schema), escapeLiteral(table))

	res, err := pool.Request().Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s.%s: %w", schema, table, err)
	}

	var cols []ColumnInfo
	for _, row := range firstRecordset(res) {
		cols = append(cols, ColumnInfo{
			Name:     asString(row["COLUMN_NAME"]),
			Type:     asString(row["DATA_TYPE"]),
			Nullable: strings.EqualFold(asString(row["IS_NULLABLE"]), "YES"),
			Default:  asString(row["COLUMN_DEFAULT"]),
			Position: asInt(row["ORDINAL_POSITION"]),
		})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}
	return cols, nil
}

// PrimaryKeys lists the primary-key column names of one table.
func PrimaryKeys(ctx context.Context, pool driver.Pool, schema, table string) ([]string, error) {
	if schema == "" {
		schema = "dbo"
	}
	stmt := fmt.Sprintf(`
SELECT c.name AS column_name
FROM sys.indexes i
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
WHERE i.is_primary_key = 1 AND s.name = N'%s' AND t.name = N'%s'
ORDER BY ic.key_ordinal`, escapeLiteral(schema), escapeLiteral(table))

	res, err := pool.Request().Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary keys for %s.%s: %w", schema, table, err)
	}

	var keys []string
	for _, row := range firstRecordset(res) {
		keys = append(keys, asString(row["column_name"]))
	}
	return keys, nil
}

// ForeignKeys lists the foreign-key columns of one table.
func ForeignKeys(ctx context.Context, pool driver.Pool, schema, table string) ([]ForeignKey, error) {
	if schema == "" {
		schema = "dbo"
	}
	stmt := fmt.Sprintf(`
SELECT
    fk.name AS fk_name,
    pc.name AS column_name,
    rs.name AS referenced_schema,
    rt.name AS referenced_table,
    rc.name AS referenced_column
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.tables pt ON pt.object_id = fk.parent_object_id
JOIN sys.schemas ps ON ps.schema_id = pt.schema_id
JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
WHERE ps.name = N'%s' AND pt.name = N'%s'
ORDER BY fk.name, fkc.constraint_column_id`, escapeLiteral(schema), escapeLiteral(table))

	res, err := pool.Request().Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys for %s.%s: %w", schema, table, err)
	}

	var fks []ForeignKey
	for _, row := range firstRecordset(res) {
		fks = append(fks, ForeignKey{
			Name:             asString(row["fk_name"]),
			Column:           asString(row["column_name"]),
			ReferencedSchema: asString(row["referenced_schema"]),
			ReferencedTable:  asString(row["referenced_table"]),
			ReferencedColumn: asString(row["referenced_column"]),
		})
	}
	return fks, nil
}

func firstRecordset(res *driver.Result) []core.Row {
	if res == nil || len(res.Recordsets) == 0 {
		return nil
	}
	return res.Recordsets[0].Rows
}

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

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}
