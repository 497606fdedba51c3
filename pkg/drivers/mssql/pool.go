package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	_ "github.com/denisenkom/go-mssqldb" // registers the "sqlserver" driver
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// Pool implements driver.Pool over a go-mssqldb connection pool.
type Pool struct {
	driver.BaseSQLPool
}

// New creates an unconnected pool for the config.
// If logger is nil, a discard logger is used.
func New(cfg driver.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{BaseSQLPool: driver.BaseSQLPool{Cfg: cfg, Logger: logger}}
}

// Connect opens the connection pool and verifies it with a ping.
func (p *Pool) Connect(ctx context.Context) error {
	dsn := buildDSN(p.Cfg)

	p.Logger.Debug("connecting",
		slog.String("server", p.Cfg.Server),
		slog.String("database", p.Cfg.Database))

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to %s: %w", p.Cfg.Server, err)
	}

	p.SetDB(db)
	return nil
}

// Request returns a fresh single-use request handle.
func (p *Pool) Request() driver.Request {
	return &request{pool: p}
}

// buildDSN constructs a sqlserver:// URL from the config. An explicit raw
// connection string takes precedence over the structured fields.
func buildDSN(cfg driver.Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	host := cfg.Server
	if cfg.Port > 0 {
		host = fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	}

	query := url.Values{}
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	if cfg.Encrypt {
		query.Set("encrypt", "true")
	} else {
		query.Set("encrypt", "disable")
	}
	if cfg.TrustServerCertificate {
		query.Set("trustservercertificate", "true")
	}
	query.Set("app name", "mssqlmgr")

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     host,
		RawQuery: query.Encode(),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

// request is a single-use handle. It supports in-flight cancellation by
// cancelling the request context.
type request struct {
	pool *Pool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *request) Query(ctx context.Context, sqlText string) (*driver.Result, error) {
	ctx, cancel := r.pool.RequestContext(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	return driver.ExecBatches(ctx, sqlText, r.pool.RunBatch)
}

func (r *request) Execute(ctx context.Context, proc string, params []driver.Param) (*driver.Result, error) {
	ctx, cancel := r.pool.RequestContext(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	return r.pool.ExecuteProc(ctx, proc, params)
}

// Cancel aborts the in-flight call, if any.
func (r *request) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
