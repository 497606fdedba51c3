package registry

import (
	"log/slog"
	"sync"
)

// odbcDriverCache adapts the persistent store to driver.DriverCache. A
// process-wide memo avoids re-reading the store on every connection; the
// store read/write keeps the cached name across sessions.
type odbcDriverCache struct {
	store  Store
	logger *slog.Logger

	mu   sync.Mutex
	memo string
}

func (c *odbcDriverCache) CachedDriver() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memo != "" {
		return c.memo
	}
	name, err := c.store.CachedODBCDriver()
	if err != nil {
		c.logger.Warn("failed to read cached odbc driver", slog.String("error", err.Error()))
		return ""
	}
	c.memo = name
	return name
}

func (c *odbcDriverCache) SaveDriver(name string) {
	c.mu.Lock()
	c.memo = name
	c.mu.Unlock()
	if err := c.store.SetCachedODBCDriver(name); err != nil {
		c.logger.Warn("failed to persist cached odbc driver", slog.String("error", err.Error()))
	}
}
