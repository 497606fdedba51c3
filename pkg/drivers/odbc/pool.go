package odbc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/alexbrainman/odbc" // registers the "odbc" driver
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// Pool implements driver.Pool over the ODBC bridge, used for
// Windows/Integrated authentication. Cancellation of in-flight requests is
// not supported by this backend.
type Pool struct {
	driver.BaseSQLPool

	cache driver.DriverCache

	// openFn is swapped in tests to exercise the probing loop without a
	// driver manager.
	openFn func(ctx context.Context, connStr string) (*sql.DB, error)
}

// New creates an unconnected pool for the config.
// If logger is nil, a discard logger is used.
func New(cfg driver.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool{BaseSQLPool: driver.BaseSQLPool{Cfg: cfg, Logger: logger}}
	p.openFn = p.open
	return p
}

// SetDriverCache injects the cross-session driver cache.
func (p *Pool) SetDriverCache(cache driver.DriverCache) { p.cache = cache }

func (p *Pool) open(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("odbc", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect establishes the ODBC connection. When no explicit driver name is
// configured, candidate drivers are probed in priority order; a driver that
// is simply not installed moves the loop on, while any other failure (bad
// credentials, unreachable host) stops it immediately.
func (p *Pool) Connect(ctx context.Context) error {
	if p.Cfg.ConnectionString != "" {
		db, err := p.openFn(ctx, p.Cfg.ConnectionString)
		if err != nil {
			return maskError(err)
		}
		p.SetDB(db)
		return nil
	}

	names, probing := p.candidates()
	var attempted []string
	var lastErr error

	for _, name := range names {
		connStr := buildConnString(p.Cfg, name)
		attempted = append(attempted, name)

		p.Logger.Debug("attempting odbc driver",
			slog.String("driver", name),
			slog.String("connString", MaskConnString(connStr)))

		db, err := p.openFn(ctx, connStr)
		if err == nil {
			if probing && p.cache != nil {
				p.cache.SaveDriver(name)
			}
			p.SetDB(db)
			return nil
		}

		lastErr = err
		if !isDriverNotFound(err) {
			return maskError(err)
		}
	}

	return fmt.Errorf(
		"no usable ODBC driver for %s (attempted: %s): %s; install the Microsoft ODBC Driver for SQL Server or configure an explicit driver name",
		p.Cfg.Server,
		strings.Join(attempted, ", "),
		maskError(lastErr),
	)
}

// maskError rewrites an error so any password embedded in driver output
// never reaches logs or users. The chain is intentionally flattened.
func maskError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(MaskConnString(err.Error()))
}

// Request returns a fresh single-use request handle.
func (p *Pool) Request() driver.Request {
	return &request{pool: p}
}

// request is a single-use handle. The ODBC bridge cannot abort an in-flight
// statement, so Cancel is a silent no-op.
type request struct {
	pool *Pool
}

func (r *request) Query(ctx context.Context, sqlText string) (*driver.Result, error) {
	ctx, cancel := r.pool.RequestContext(ctx)
	defer cancel()
	return driver.ExecBatches(ctx, sqlText, r.pool.RunBatch)
}

func (r *request) Execute(ctx context.Context, proc string, params []driver.Param) (*driver.Result, error) {
	ctx, cancel := r.pool.RequestContext(ctx)
	defer cancel()
	return r.pool.ExecuteProc(ctx, proc, params)
}

func (r *request) Cancel() {}
