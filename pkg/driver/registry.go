package driver

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
)

// Factory constructs an unconnected Pool for a config. A nil logger means
// discard.
type Factory func(cfg Config, logger *slog.Logger) Pool

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend factory to the registry.
// Called by backend implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a backend factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// ListBackends returns all registered backend names (sorted).
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// BackendForAuth maps an auth type to the backend name that serves it.
// Windows/Integrated auth goes through the ODBC bridge; everything else
// through the network driver.
func BackendForAuth(auth core.AuthType) string {
	if auth == core.AuthWindows {
		return "odbc"
	}
	return "mssql"
}

// New creates an unconnected Pool for the config, selecting the backend by
// auth type. The hosting application controls which backends are available
// by importing (or not importing) their packages.
func New(cfg Config, logger *slog.Logger) (Pool, error) {
	name := BackendForAuth(cfg.AuthType)
	factory, ok := Get(name)
	if !ok {
		return nil, &UnavailableBackendError{
			Backend:   name,
			AuthType:  string(cfg.AuthType),
			Available: ListBackends(),
		}
	}
	return factory(cfg, logger), nil
}

// UnavailableBackendError is returned when the backend required by a
// connection's auth type has not been registered by the host.
type UnavailableBackendError struct {
	Backend   string
	AuthType  string
	Available []string
}

func (e *UnavailableBackendError) Error() string {
	return fmt.Sprintf("backend %q (auth type %q) is not available in this build\nAvailable backends: %v\nHint: the hosting application must import the backend package for this auth type", e.Backend, e.AuthType, e.Available)
}
