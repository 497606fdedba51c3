package driver

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadingKeyword(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"plain select", "select * from users", "SELECT"},
		{"leading whitespace", "   \n\t SELECT 1", "SELECT"},
		{"line comment before statement", "-- fetch everything\nSELECT 1", "SELECT"},
		{"block comment before statement", "/* header\ncomment */ WITH cte AS (SELECT 1) SELECT * FROM cte", "WITH"},
		{"update", "UPDATE users SET name = 'x'", "UPDATE"},
		{"values", "VALUES (1), (2)", "VALUES"},
		{"only comments", "-- nothing here\n/* still nothing */", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadingKeyword(tt.sql))
		})
	}
}

func TestBaseSQLPool_RunBatch_NotConnected(t *testing.T) {
	base := &BaseSQLPool{}

	_, err := base.RunBatch(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestBaseSQLPool_RunBatch_QueryPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, []byte("alice")).
		AddRow(2, []byte("bob"))
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)

	base := &BaseSQLPool{}
	base.SetDB(db)

	res, err := base.RunBatch(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	require.Len(t, res.Recordsets, 1)

	rs := res.Recordsets[0]
	assert.Equal(t, []string{"id", "name"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	// Byte slices are normalized to strings
	assert.Equal(t, "alice", rs.Rows[0]["name"])
	assert.Equal(t, "bob", rs.Rows[1]["name"])

	// Row-returning batches report row counts, not driver counts
	assert.Equal(t, []int64{2}, res.RowsAffected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLPool_RunBatch_MultipleRecordsets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	first := sqlmock.NewRows([]string{"a"}).AddRow(1)
	second := sqlmock.NewRows([]string{"b", "c"}).AddRow(2, 3).AddRow(4, 5)
	mock.ExpectQuery("SELECT").WillReturnRows(first, second)

	base := &BaseSQLPool{}
	base.SetDB(db)

	res, err := base.RunBatch(context.Background(), "SELECT a FROM t1; SELECT b, c FROM t2")
	require.NoError(t, err)
	require.Len(t, res.Recordsets, 2)
	assert.Equal(t, []string{"a"}, res.Recordsets[0].Columns)
	assert.Equal(t, []string{"b", "c"}, res.Recordsets[1].Columns)
	assert.Equal(t, []int64{1, 2}, res.RowsAffected)
}

func TestBaseSQLPool_RunBatch_ProcedureCallReturnsRecordsets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"spid", "loginame"}).
		AddRow(51, []byte("sa")).
		AddRow(52, []byte("app"))
	mock.ExpectQuery("EXEC sp_who").WillReturnRows(rows)

	base := &BaseSQLPool{}
	base.SetDB(db)

	res, err := base.RunBatch(context.Background(), "EXEC sp_who")
	require.NoError(t, err)
	require.Len(t, res.Recordsets, 1)
	assert.Len(t, res.Recordsets[0].Rows, 2)
	assert.Equal(t, []int64{2}, res.RowsAffected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRowReturning(t *testing.T) {
	tests := []struct {
		batch string
		want  bool
	}{
		{"SELECT 1", true},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", true},
		{"VALUES (1)", true},
		{"EXEC sp_who", true},
		{"execute dbo.usp_report @year = 2026", true},
		{"UPDATE t SET x = 1", false},
		{"CREATE TABLE t (id int)", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isRowReturning(tt.batch), "batch %q", tt.batch)
	}
}

func TestBaseSQLPool_RunBatch_ExecPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE users SET active = 1").WillReturnResult(sqlmock.NewResult(0, 7))

	base := &BaseSQLPool{}
	base.SetDB(db)

	res, err := base.RunBatch(context.Background(), "UPDATE users SET active = 1")
	require.NoError(t, err)
	assert.Empty(t, res.Recordsets)
	assert.Equal(t, []int64{7}, res.RowsAffected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLPool_RunBatch_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DROP TABLE missing").WillReturnError(assert.AnError)

	base := &BaseSQLPool{}
	base.SetDB(db)

	_, err = base.RunBatch(context.Background(), "DROP TABLE missing")
	require.Error(t, err)
}

func TestBaseSQLPool_ExecuteProc(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"total"}).AddRow(42)
	mock.ExpectQuery(`EXEC dbo\.usp_count @min = @min`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	base := &BaseSQLPool{}
	base.SetDB(db)

	res, err := base.ExecuteProc(context.Background(), "dbo.usp_count", []Param{{Name: "min", Value: 10}})
	require.NoError(t, err)
	require.Len(t, res.Recordsets, 1)
	assert.Equal(t, int64(42), res.Recordsets[0].Rows[0]["total"])
}

func TestBaseSQLPool_RequestContext(t *testing.T) {
	t.Run("positive timeout sets a deadline", func(t *testing.T) {
		base := &BaseSQLPool{Cfg: Config{QueryTimeout: 30}}

		ctx, cancel := base.RequestContext(context.Background())
		defer cancel()

		deadline, ok := ctx.Deadline()
		require.True(t, ok, "context should carry a deadline")
		assert.InDelta(t, 30, time.Until(deadline).Seconds(), 1.0)
	})

	t.Run("zero timeout means unbounded", func(t *testing.T) {
		base := &BaseSQLPool{Cfg: Config{QueryTimeout: 0}}

		ctx, cancel := base.RequestContext(context.Background())
		defer cancel()

		_, ok := ctx.Deadline()
		assert.False(t, ok, "unbounded context must not carry a deadline")
	})

	t.Run("negative timeout means unbounded", func(t *testing.T) {
		base := &BaseSQLPool{Cfg: Config{QueryTimeout: -5}}

		ctx, cancel := base.RequestContext(context.Background())
		defer cancel()

		_, ok := ctx.Deadline()
		assert.False(t, ok)
	})
}

func TestBaseSQLPool_CloseAndConnected(t *testing.T) {
	t.Run("close with nil DB", func(t *testing.T) {
		base := &BaseSQLPool{}
		assert.NoError(t, base.Close())
		assert.False(t, base.Connected())
	})

	t.Run("close with open DB", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()

		base := &BaseSQLPool{}
		base.SetDB(db)
		assert.True(t, base.Connected())

		assert.NoError(t, base.Close())
		assert.False(t, base.Connected())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
