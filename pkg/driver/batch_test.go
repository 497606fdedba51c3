package driver

import (
	"context"
	"fmt"
	"testing"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "no separator returns script unchanged",
			script: "  SELECT 1;\nSELECT 2  ",
			want:   []string{"  SELECT 1;\nSELECT 2  "},
		},
		{
			name:   "simple split",
			script: "SELECT 1\nGO\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "case insensitive separator",
			script: "SELECT 1\ngo\nSELECT 2\nGo\nSELECT 3",
			want:   []string{"SELECT 1", "SELECT 2", "SELECT 3"},
		},
		{
			name:   "separator with leading whitespace",
			script: "SELECT 1\n  \tGO\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "separator with trailing comment",
			script: "SELECT 1\nGO -- run it\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "crlf line endings",
			script: "SELECT 1\r\nGO\r\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "empty batches dropped",
			script: "GO\nSELECT 1\nGO\nGO\nSELECT 2\nGO",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "GO inside a statement is not a separator",
			script: "SELECT 'GO' AS word FROM categories",
			want:   []string{"SELECT 'GO' AS word FROM categories"},
		},
		{
			name:   "GO as column prefix is not a separator",
			script: "SELECT GOods FROM warehouse\nGO\nSELECT 2",
			want:   []string{"SELECT GOods FROM warehouse", "SELECT 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBatches(tt.script))
		})
	}
}

func TestExecBatches_SequentialOrder(t *testing.T) {
	var executed []string
	run := func(_ context.Context, batch string) (*Result, error) {
		executed = append(executed, batch)
		return &Result{
			Recordsets:   []core.Recordset{{Columns: []string{"n"}, Rows: []core.Row{{"n": batch}}}},
			RowsAffected: []int64{1},
		}, nil
	}

	res, err := ExecBatches(context.Background(), "SELECT 1\nGO\nSELECT 2\nGO\nSELECT 3", run)
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3"}, executed)
	require.Len(t, res.Recordsets, 3)
	assert.Equal(t, "SELECT 1", res.Recordsets[0].Rows[0]["n"])
	assert.Equal(t, "SELECT 3", res.Recordsets[2].Rows[0]["n"])
	assert.Equal(t, []int64{1, 1, 1}, res.RowsAffected)
}

func TestExecBatches_FailFast(t *testing.T) {
	var executed []string
	boom := fmt.Errorf("constraint violation")
	run := func(_ context.Context, batch string) (*Result, error) {
		executed = append(executed, batch)
		if batch == "UPDATE t SET x = 1" {
			return nil, boom
		}
		return &Result{RowsAffected: []int64{1}}, nil
	}

	res, err := ExecBatches(context.Background(), "INSERT INTO t VALUES (1)\nGO\nUPDATE t SET x = 1\nGO\nDELETE FROM t", run)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)

	// Third batch never runs
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)", "UPDATE t SET x = 1"}, executed)
}

func TestExecBatches_NoSeparatorSingleRun(t *testing.T) {
	var calls int
	run := func(_ context.Context, batch string) (*Result, error) {
		calls++
		assert.Equal(t, "SELECT a FROM b WHERE c = 'GO fast'", batch)
		return &Result{}, nil
	}

	_, err := ExecBatches(context.Background(), "SELECT a FROM b WHERE c = 'GO fast'", run)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
