package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanTableReferences(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []TableRef
	}{
		{
			name:  "simple from",
			query: "SELECT * FROM users",
			want:  []TableRef{{Table: "users"}},
		},
		{
			name:  "schema qualified",
			query: "SELECT * FROM dbo.users",
			want:  []TableRef{{Schema: "dbo", Table: "users"}},
		},
		{
			name:  "bracketed simple names",
			query: "SELECT * FROM [dbo].[orders]",
			want:  []TableRef{{Schema: "dbo", Table: "orders"}},
		},
		{
			name:  "alias",
			query: "SELECT u.id FROM users u",
			want:  []TableRef{{Table: "users", Alias: "u"}},
		},
		{
			name:  "as alias",
			query: "SELECT u.id FROM users AS u",
			want:  []TableRef{{Table: "users", Alias: "u"}},
		},
		{
			name:  "keyword after table is not an alias",
			query: "SELECT id FROM users WHERE id = 1",
			want:  []TableRef{{Table: "users"}},
		},
		{
			name:  "join collects both tables",
			query: "SELECT * FROM orders o JOIN customers c ON o.customer_id = c.id",
			want: []TableRef{
				{Table: "orders", Alias: "o"},
				{Table: "customers", Alias: "c"},
			},
		},
		{
			name:  "inner join keyword filtered",
			query: "SELECT * FROM orders INNER JOIN customers ON orders.customer_id = customers.id",
			want: []TableRef{
				{Table: "orders"},
				{Table: "customers"},
			},
		},
		{
			name:  "duplicate references deduplicated",
			query: "SELECT * FROM users u1 JOIN users u2 ON u1.id = u2.manager_id",
			want:  []TableRef{{Table: "users", Alias: "u1"}},
		},
		{
			name:  "dedup is case insensitive",
			query: "SELECT * FROM Users JOIN users ON 1=1",
			want:  []TableRef{{Table: "Users"}},
		},
		{
			name:  "temp table",
			query: "SELECT * FROM #staging",
			want:  []TableRef{{Table: "#staging"}},
		},
		{
			name:  "no tables",
			query: "SELECT 1 + 1",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanTableReferences(tt.query))
		})
	}
}
