package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	// Running again must be a no-op, not an error
	require.NoError(t, store.Migrate())
}

func TestSaveConnection_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	cfg := core.ConnectionConfig{
		ID:                     "c1",
		Name:                   "production",
		Server:                 "db01.corp",
		Port:                   1433,
		Database:               "Sales",
		AuthType:               core.AuthSQL,
		Username:               "sa",
		Password:               "must-not-be-persisted",
		Encrypt:                true,
		TrustServerCertificate: true,
		QueryTimeout:           45,
		ODBCDriver:             "ODBC Driver 18 for SQL Server",
	}
	require.NoError(t, store.SaveConnection(cfg))

	got, err := store.Connection("c1")
	require.NoError(t, err)
	assert.Equal(t, "production", got.Name)
	assert.Equal(t, "db01.corp", got.Server)
	assert.Equal(t, 1433, got.Port)
	assert.Equal(t, core.AuthSQL, got.AuthType)
	assert.Equal(t, 45, got.QueryTimeout)
	assert.True(t, got.Encrypt)
	assert.True(t, got.TrustServerCertificate)

	// Passwords live in the secret store, never in the connections table
	assert.Empty(t, got.Password)
}

func TestSaveConnection_Upsert(t *testing.T) {
	store := newTestStore(t)

	cfg := core.ConnectionConfig{ID: "c1", Name: "first", Server: "a", AuthType: core.AuthSQL}
	require.NoError(t, store.SaveConnection(cfg))

	cfg.Name = "second"
	cfg.Server = "b"
	require.NoError(t, store.SaveConnection(cfg))

	got, err := store.Connection("c1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
	assert.Equal(t, "b", got.Server)

	all, err := store.Connections()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConnection_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Connection("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnections_OrderedByName(t *testing.T) {
	store := newTestStore(t)

	for _, c := range []core.ConnectionConfig{
		{ID: "1", Name: "zeta", Server: "z", AuthType: core.AuthSQL},
		{ID: "2", Name: "alpha", Server: "a", AuthType: core.AuthSQL},
		{ID: "3", Name: "mid", Server: "m", AuthType: core.AuthWindows},
	} {
		require.NoError(t, store.SaveConnection(c))
	}

	all, err := store.Connections()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestDeleteConnection_RemovesFilters(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveConnection(core.ConnectionConfig{ID: "c1", Name: "x", Server: "s", AuthType: core.AuthSQL}))
	require.NoError(t, store.SetDatabaseFilter("c1", []string{"Sales*"}))
	require.NoError(t, store.SetTableFilter("c1", "Sales", []string{"dbo.*"}))

	require.NoError(t, store.DeleteConnection("c1"))

	_, err := store.Connection("c1")
	assert.ErrorIs(t, err, ErrNotFound)

	patterns, err := store.DatabaseFilter("c1")
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestServerGroups(t *testing.T) {
	store := newTestStore(t)

	g := core.ServerGroup{ID: "g1", Name: "prod", Description: "production servers"}
	require.NoError(t, store.SaveServerGroup(g))

	require.NoError(t, store.SaveConnection(core.ConnectionConfig{
		ID: "c1", Name: "x", Server: "s", AuthType: core.AuthSQL, ServerGroupID: "g1",
	}))

	groups, err := store.ServerGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "prod", groups[0].Name)

	// Deleting the group ungroups its members but keeps them
	require.NoError(t, store.DeleteServerGroup("g1"))

	got, err := store.Connection("c1")
	require.NoError(t, err)
	assert.Empty(t, got.ServerGroupID)

	groups, err = store.ServerGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFilters_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	// Unset filters read back empty
	patterns, err := store.DatabaseFilter("c1")
	require.NoError(t, err)
	assert.Empty(t, patterns)

	require.NoError(t, store.SetDatabaseFilter("c1", []string{"Sales*", "Hr"}))
	patterns, err = store.DatabaseFilter("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales*", "Hr"}, patterns)

	// Table filters are scoped per database
	require.NoError(t, store.SetTableFilter("c1", "Sales", []string{"dbo.orders"}))
	require.NoError(t, store.SetTableFilter("c1", "Hr", []string{"dbo.people"}))

	got, err := store.TableFilter("c1", "Sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"dbo.orders"}, got)

	got, err = store.TableFilter("c1", "Hr")
	require.NoError(t, err)
	assert.Equal(t, []string{"dbo.people"}, got)

	// Overwriting replaces the previous pattern list
	require.NoError(t, store.SetDatabaseFilter("c1", []string{"*"}))
	patterns, err = store.DatabaseFilter("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, patterns)
}

func TestSettingsAndODBCCache(t *testing.T) {
	store := newTestStore(t)

	val, err := store.Setting("nope")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, store.SetSetting("theme", "dark"))
	require.NoError(t, store.SetSetting("theme", "light"))
	val, err = store.Setting("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", val)

	name, err := store.CachedODBCDriver()
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, store.SetCachedODBCDriver("ODBC Driver 17 for SQL Server"))
	name, err = store.CachedODBCDriver()
	require.NoError(t, err)
	assert.Equal(t, "ODBC Driver 17 for SQL Server", name)
}

func TestSecrets(t *testing.T) {
	store := newTestStore(t)

	val, err := store.Secret("missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, store.SetSecret("k", "v1"))
	require.NoError(t, store.SetSecret("k", "v2"))
	val, err = store.Secret("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)

	require.NoError(t, store.DeleteSecret("k"))
	val, err = store.Secret("k")
	require.NoError(t, err)
	assert.Empty(t, val)

	// Deleting a missing key is not an error
	require.NoError(t, store.DeleteSecret("k"))
}

func historyEntry(id string, at time.Time) core.QueryHistoryEntry {
	return core.QueryHistoryEntry{
		ID:             id,
		Query:          "SELECT 1",
		ConnectionID:   "c1",
		ConnectionName: "prod",
		Database:       "Sales",
		Server:         "db01",
		ResultSetCount: 1,
		RowCounts:      []int{1},
		ExecutedAt:     at,
		DurationMs:     12,
	}
}

func TestHistory_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendHistory(historyEntry("h1", base)))
	require.NoError(t, store.AppendHistory(historyEntry("h2", base.Add(time.Minute))))

	entries, err := store.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, "h2", entries[0].ID)
	assert.Equal(t, "h1", entries[1].ID)
	assert.Equal(t, []int{1}, entries[0].RowCounts)
	assert.Equal(t, int64(12), entries[0].DurationMs)

	limited, err := store.History(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "h2", limited[0].ID)
}

func TestHistory_GeneratesID(t *testing.T) {
	store := newTestStore(t)

	e := historyEntry("", time.Now())
	require.NoError(t, store.AppendHistory(e))

	entries, err := store.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
}

func TestHistory_CapPrunesOldestUnpinned(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	pinned := historyEntry("keep", base)
	pinned.Pinned = true
	require.NoError(t, store.AppendHistoryCapped(pinned, 3))

	for i := 0; i < 5; i++ {
		e := historyEntry("", base.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, store.AppendHistoryCapped(e, 3))
	}

	entries, err := store.History(0)
	require.NoError(t, err)

	// 3 unpinned survivors plus the pinned entry, which predates all of them
	require.Len(t, entries, 4)
	assert.Equal(t, "keep", entries[len(entries)-1].ID)
	assert.True(t, entries[len(entries)-1].Pinned)
}

func TestHistory_PinAndClear(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendHistory(historyEntry("h1", base)))
	require.NoError(t, store.AppendHistory(historyEntry("h2", base.Add(time.Minute))))

	require.NoError(t, store.SetHistoryPinned("h1", true))
	assert.ErrorIs(t, store.SetHistoryPinned("missing", true), ErrNotFound)

	require.NoError(t, store.ClearHistory(true))
	entries, err := store.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "h1", entries[0].ID)

	require.NoError(t, store.ClearHistory(false))
	entries, err = store.History(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
