// Package mssql provides the network SQL Server backend over the
// go-mssqldb driver.
//
// This file registers the backend with the driver registry. Import this
// package with a blank identifier to make SQL authentication available:
//
//	import _ "github.com/jakubkozera/mssqlmgr/pkg/drivers/mssql"
package mssql

import (
	"log/slog"

	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

func init() {
	driver.Register("mssql", func(cfg driver.Config, logger *slog.Logger) driver.Pool {
		return New(cfg, logger)
	})
}
