package driver

import (
	"log/slog"
	"testing"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	Register("test_backend_internal", func(_ Config, _ *slog.Logger) Pool { return nil })

	assert.True(t, IsRegistered("test_backend_internal"), "backend should be registered after Register()")

	factory, ok := Get("test_backend_internal")
	assert.True(t, ok, "Get should find the registered backend")
	assert.NotNil(t, factory, "Get should return non-nil factory")

	assert.Contains(t, ListBackends(), "test_backend_internal")
}

func TestBackendForAuth(t *testing.T) {
	tests := []struct {
		auth core.AuthType
		want string
	}{
		{core.AuthSQL, "mssql"},
		{core.AuthWindows, "odbc"},
		{core.AuthType(""), "mssql"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BackendForAuth(tt.auth), "auth type %q", tt.auth)
	}
}

func TestNew_UnavailableBackend(t *testing.T) {
	// Windows auth requires the odbc backend, which this test does not register.
	cfg := Config{AuthType: core.AuthWindows, Server: "localhost"}

	_, err := New(cfg, nil)
	require.Error(t, err)

	var unavailable *UnavailableBackendError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "odbc", unavailable.Backend)
	assert.Equal(t, "windows", unavailable.AuthType)
	assert.Contains(t, err.Error(), "odbc")
	assert.Contains(t, err.Error(), "import")
}

func TestNew_RegisteredBackend(t *testing.T) {
	var gotCfg Config
	Register("mssql", func(cfg Config, _ *slog.Logger) Pool {
		gotCfg = cfg
		return nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "mssql")
		registryMu.Unlock()
	})

	cfg := Config{AuthType: core.AuthSQL, Server: "db01"}
	_, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "db01", gotCfg.Server)
}
