// Package odbc provides the Windows/Integrated auth SQL Server backend over
// the ODBC bridge.
//
// This file registers the backend with the driver registry. The hosting
// application imports this package with a blank identifier only when the
// optional ODBC driver is wanted; without the import, connections requiring
// Windows auth fail with a clear "backend not available" error:
//
//	import _ "github.com/jakubkozera/mssqlmgr/pkg/drivers/odbc"
package odbc

import (
	"log/slog"

	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

func init() {
	driver.Register("odbc", func(cfg driver.Config, logger *slog.Logger) driver.Pool {
		return New(cfg, logger)
	})
}
