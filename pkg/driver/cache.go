package driver

// DriverCache persists the name of the last ODBC driver that connected
// successfully, so later connections skip the probing loop. Implementations
// are backed by the persistent store and injected by whichever component
// constructs pools; there is no module-level cache.
type DriverCache interface {
	// CachedDriver returns the cached driver name, or "" when none is known.
	CachedDriver() string

	// SaveDriver records a working driver name.
	SaveDriver(name string)
}

// CacheAware is implemented by backends that can use a driver cache. The
// pool owner injects the cache after construction:
//
//	if ca, ok := pool.(driver.CacheAware); ok {
//		ca.SetDriverCache(cache)
//	}
type CacheAware interface {
	SetDriverCache(DriverCache)
}
