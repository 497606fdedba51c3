// Package main provides the mssqlmgr CLI entry point.
package main

import (
	"os"

	"github.com/jakubkozera/mssqlmgr/internal/cli"

	// Register the available driver backends.
	_ "github.com/jakubkozera/mssqlmgr/pkg/drivers/mssql"
	_ "github.com/jakubkozera/mssqlmgr/pkg/drivers/odbc"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
