package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jakubkozera/mssqlmgr/internal/testutil"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolReturning(rows ...core.Row) *testutil.StubPool {
	return testutil.NewStubPool(func(_ context.Context, _ string) (*driver.Result, error) {
		return &driver.Result{Recordsets: []core.Recordset{{Rows: rows}}}, nil
	})
}

func TestDatabases(t *testing.T) {
	pool := poolReturning(
		core.Row{"name": "Sales"},
		core.Row{"name": []byte("Warehouse")},
	)

	names, err := Databases(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales", "Warehouse"}, names)

	require.Len(t, pool.Req.Queries, 1)
	assert.Contains(t, pool.Req.Queries[0], "sys.databases")
}

func TestDatabases_QueryError(t *testing.T) {
	boom := errors.New("login failed")
	pool := testutil.NewStubPool(func(_ context.Context, _ string) (*driver.Result, error) {
		return nil, boom
	})

	_, err := Databases(context.Background(), pool)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to list databases")
}

func TestTables(t *testing.T) {
	pool := poolReturning(
		core.Row{"TABLE_SCHEMA": "dbo", "TABLE_NAME": "users", "TABLE_TYPE": "BASE TABLE"},
		core.Row{"TABLE_SCHEMA": "rpt", "TABLE_NAME": "v_sales", "TABLE_TYPE": "VIEW"},
	)

	tables, err := Tables(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, []TableInfo{
		{Schema: "dbo", Name: "users", Type: "BASE TABLE"},
		{Schema: "rpt", Name: "v_sales", Type: "VIEW"},
	}, tables)
}

func TestColumns(t *testing.T) {
	pool := poolReturning(
		core.Row{"COLUMN_NAME": "id", "DATA_TYPE": "int", "IS_NULLABLE": "NO", "COLUMN_DEFAULT": nil, "ORDINAL_POSITION": int64(1)},
		core.Row{"COLUMN_NAME": "email", "DATA_TYPE": "nvarchar", "IS_NULLABLE": "YES", "COLUMN_DEFAULT": "('')", "ORDINAL_POSITION": int64(2)},
	)

	cols, err := Columns(context.Background(), pool, "", "users")
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{
		{Name: "id", Type: "int", Nullable: false, Default: "", Position: 1},
		{Name: "email", Type: "nvarchar", Nullable: true, Default: "('')", Position: 2},
	}, cols)

	require.Len(t, pool.Req.Queries, 1)
	assert.Contains(t, pool.Req.Queries[0], "TABLE_SCHEMA = N'dbo'", "empty schema defaults to dbo")
	assert.Contains(t, pool.Req.Queries[0], "TABLE_NAME = N'users'")
}

func TestColumns_TableNotFound(t *testing.T) {
	pool := poolReturning()

	_, err := Columns(context.Background(), pool, "dbo", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table dbo.missing not found")
}

func TestColumns_EscapesLiterals(t *testing.T) {
	pool := poolReturning(core.Row{"COLUMN_NAME": "id", "ORDINAL_POSITION": int64(1)})

	_, err := Columns(context.Background(), pool, "dbo", "o'brien")
	require.NoError(t, err)
	assert.Contains(t, pool.Req.Queries[0], "N'o''brien'")
}

func TestPrimaryKeys(t *testing.T) {
	pool := poolReturning(
		core.Row{"column_name": "order_id"},
		core.Row{"column_name": "line_no"},
	)

	keys, err := PrimaryKeys(context.Background(), pool, "sales", "order_lines")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "line_no"}, keys)

	assert.Contains(t, pool.Req.Queries[0], "is_primary_key = 1")
	assert.Contains(t, pool.Req.Queries[0], "s.name = N'sales'")
}

func TestPrimaryKeys_NoneIsNotAnError(t *testing.T) {
	pool := poolReturning()

	keys, err := PrimaryKeys(context.Background(), pool, "dbo", "heap")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestForeignKeys(t *testing.T) {
	pool := poolReturning(core.Row{
		"fk_name":           "FK_orders_customers",
		"column_name":       "customer_id",
		"referenced_schema": "dbo",
		"referenced_table":  "customers",
		"referenced_column": "id",
	})

	fks, err := ForeignKeys(context.Background(), pool, "dbo", "orders")
	require.NoError(t, err)
	assert.Equal(t, []ForeignKey{{
		Name:             "FK_orders_customers",
		Column:           "customer_id",
		ReferencedSchema: "dbo",
		ReferencedTable:  "customers",
		ReferencedColumn: "id",
	}}, fks)
}
