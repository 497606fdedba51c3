// Package registry owns the set of live driver pools, the catalog of saved
// connection configs and server groups, and per-connection current-database
// tracking.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jakubkozera/mssqlmgr/internal/secret"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// Store is the slice of the persistent store the registry depends on.
type Store interface {
	SaveConnection(core.ConnectionConfig) error
	Connection(id string) (core.ConnectionConfig, error)
	Connections() ([]core.ConnectionConfig, error)
	DeleteConnection(id string) error

	SaveServerGroup(core.ServerGroup) error
	ServerGroups() ([]core.ServerGroup, error)
	DeleteServerGroup(id string) error

	DatabaseFilter(connectionID string) ([]string, error)
	SetDatabaseFilter(connectionID string, patterns []string) error
	TableFilter(connectionID, database string) ([]string, error)
	SetTableFilter(connectionID, database string, patterns []string) error

	CachedODBCDriver() (string, error)
	SetCachedODBCDriver(name string) error
}

// Registry maps connection ids (and id+database composites) to live pools.
// At most one live pool exists per composite key; callers must go through
// EnsureConnectionAndGetDBPool rather than constructing pools directly.
type Registry struct {
	store   Store
	secrets secret.Store
	logger  *slog.Logger
	cache   driver.DriverCache

	mu        sync.RWMutex
	pools     map[string]driver.Pool
	currentDB map[string]string
	listeners []func()

	ensureGroup singleflight.Group

	// newPool is swapped in tests to count physical connections.
	newPool func(cfg core.ConnectionConfig) (driver.Pool, error)
}

// New creates a registry over the given store and secret store.
// If logger is nil, a discard logger is used.
func New(store Store, secrets secret.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		store:     store,
		secrets:   secrets,
		logger:    logger,
		pools:     make(map[string]driver.Pool),
		currentDB: make(map[string]string),
	}
	r.cache = &odbcDriverCache{store: store, logger: logger}
	r.newPool = r.defaultNewPool
	return r
}

func (r *Registry) defaultNewPool(cfg core.ConnectionConfig) (driver.Pool, error) {
	pool, err := driver.New(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	if ca, ok := pool.(driver.CacheAware); ok {
		ca.SetDriverCache(r.cache)
	}
	return pool, nil
}

// poolKey builds the composite key for a connection id and database. The
// base pool (config's default database) uses the bare id.
func poolKey(connectionID, database string) string {
	if database == "" {
		return connectionID
	}
	return connectionID + "::" + database
}

// Connect validates a config, persists it (password going to the secret
// store), opens a pool for it, and registers the pool under the connection
// id. Any live pool previously registered under the same key is closed
// first so duplicate pools never leak.
func (r *Registry) Connect(ctx context.Context, cfg core.ConnectionConfig) (driver.Pool, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("connection id is required")
	}
	if cfg.Server == "" && cfg.ConnectionString == "" {
		return nil, fmt.Errorf("connection %s: server is required", cfg.ID)
	}

	if cfg.Password != "" {
		if err := r.secrets.SetSecret(secret.ConnectionPasswordKey(cfg.ID), cfg.Password); err != nil {
			return nil, fmt.Errorf("failed to store password: %w", err)
		}
	} else if pw, err := r.secrets.Secret(secret.ConnectionPasswordKey(cfg.ID)); err == nil {
		cfg.Password = pw
	}

	if err := r.store.SaveConnection(cfg); err != nil {
		return nil, err
	}

	pool, err := r.newPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Connect(ctx); err != nil {
		return nil, err
	}

	key := poolKey(cfg.ID, "")
	r.mu.Lock()
	if old, ok := r.pools[key]; ok {
		_ = old.Close()
	}
	r.pools[key] = pool
	r.mu.Unlock()

	r.notify()
	return pool, nil
}

// EnsureConnectionAndGetDBPool returns the live pool for the composite key,
// creating and connecting a database-scoped pool from the saved config when
// none exists. Concurrent calls for the same key share one connection
// attempt, so the operation is idempotent and never opens duplicate
// physical connections.
func (r *Registry) EnsureConnectionAndGetDBPool(ctx context.Context, connectionID, database string) (driver.Pool, error) {
	key := poolKey(connectionID, database)

	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	if ok && pool.Connected() {
		return pool, nil
	}

	v, err, _ := r.ensureGroup.Do(key, func() (any, error) {
		r.mu.RLock()
		pool, ok := r.pools[key]
		r.mu.RUnlock()
		if ok && pool.Connected() {
			return pool, nil
		}

		cfg, err := r.store.Connection(connectionID)
		if err != nil {
			return nil, err
		}
		if database != "" {
			cfg.Database = database
		}
		if pw, err := r.secrets.Secret(secret.ConnectionPasswordKey(connectionID)); err == nil && pw != "" {
			cfg.Password = pw
		}

		pool, err = r.newPool(cfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Connect(ctx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		if old, ok := r.pools[key]; ok {
			_ = old.Close()
		}
		r.pools[key] = pool
		r.mu.Unlock()

		r.notify()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(driver.Pool), nil
}

// Pool returns the live pool registered under the composite key, if any.
func (r *Registry) Pool(connectionID, database string) (driver.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[poolKey(connectionID, database)]
	return pool, ok
}

// SetCurrentDatabase tracks the last used database for a connection,
// independent of which pool key is active.
func (r *Registry) SetCurrentDatabase(connectionID, database string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentDB[connectionID] = database
}

// CurrentDatabase returns the last used database for a connection, falling
// back to the saved config's default database.
func (r *Registry) CurrentDatabase(connectionID string) string {
	r.mu.RLock()
	db := r.currentDB[connectionID]
	r.mu.RUnlock()
	if db != "" {
		return db
	}
	if cfg, err := r.store.Connection(connectionID); err == nil {
		return cfg.Database
	}
	return ""
}

// Disconnect closes and unregisters every pool belonging to the connection
// id (base and database-scoped). An empty id closes everything. Already
// disconnected connections are not an error.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	var closed bool
	for key, pool := range r.pools {
		if connectionID != "" && key != connectionID && !strings.HasPrefix(key, connectionID+"::") {
			continue
		}
		if err := pool.Close(); err != nil {
			r.logger.Warn("error closing pool", slog.String("key", key), slog.String("error", err.Error()))
		}
		delete(r.pools, key)
		closed = true
	}
	r.mu.Unlock()

	if closed {
		r.notify()
	}
}

// DeleteConnection removes the persisted config, its stored password, and
// any live pools for the id. Teardown precedes deletion so no live pool
// ever references a deleted config.
func (r *Registry) DeleteConnection(connectionID string) error {
	r.Disconnect(connectionID)

	if err := r.store.DeleteConnection(connectionID); err != nil {
		return err
	}
	if err := r.secrets.DeleteSecret(secret.ConnectionPasswordKey(connectionID)); err != nil {
		r.logger.Warn("failed to delete stored password", slog.String("connection", connectionID), slog.String("error", err.Error()))
	}

	r.mu.Lock()
	delete(r.currentDB, connectionID)
	r.mu.Unlock()

	r.notify()
	return nil
}

// Connections lists the saved connection configs.
func (r *Registry) Connections() ([]core.ConnectionConfig, error) {
	return r.store.Connections()
}

// Connection returns one saved config by id.
func (r *Registry) Connection(id string) (core.ConnectionConfig, error) {
	return r.store.Connection(id)
}

// SaveServerGroup persists a group.
func (r *Registry) SaveServerGroup(g core.ServerGroup) error {
	if err := r.store.SaveServerGroup(g); err != nil {
		return err
	}
	r.notify()
	return nil
}

// ServerGroups lists the saved groups.
func (r *Registry) ServerGroups() ([]core.ServerGroup, error) {
	return r.store.ServerGroups()
}

// DeleteServerGroup removes a group, ungrouping its connections.
func (r *Registry) DeleteServerGroup(id string) error {
	if err := r.store.DeleteServerGroup(id); err != nil {
		return err
	}
	r.notify()
	return nil
}

// DatabaseFilter returns the database-level filter for a connection.
func (r *Registry) DatabaseFilter(connectionID string) ([]string, error) {
	return r.store.DatabaseFilter(connectionID)
}

// SetDatabaseFilter replaces the database-level filter for a connection.
func (r *Registry) SetDatabaseFilter(connectionID string, patterns []string) error {
	return r.store.SetDatabaseFilter(connectionID, patterns)
}

// TableFilter returns the table-level filter for a connection+database.
func (r *Registry) TableFilter(connectionID, database string) ([]string, error) {
	return r.store.TableFilter(connectionID, database)
}

// SetTableFilter replaces the table-level filter for a connection+database.
func (r *Registry) SetTableFilter(connectionID, database string, patterns []string) error {
	return r.store.SetTableFilter(connectionID, database, patterns)
}

// OnConnectionsChanged registers a listener invoked after every connection
// or group change. Listeners run on their own goroutines; ordering across
// listeners is not guaranteed, delivery is at least once per change.
func (r *Registry) OnConnectionsChanged(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify() {
	r.mu.RLock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		go fn()
	}
}

// Close tears down every live pool, for extension/process shutdown.
func (r *Registry) Close() {
	r.Disconnect("")
}
