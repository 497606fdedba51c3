package commands

import (
	"fmt"
	"strings"

	"github.com/jakubkozera/mssqlmgr/internal/catalog"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command group for browsing
// databases, tables, and columns of a connected server.
func NewSchemaCommand() *cobra.Command {
	var (
		connection string
		database   string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Browse databases, tables, and columns",
	}

	cmd.PersistentFlags().StringVarP(&connection, "connection", "c", "", "Connection id")
	cmd.PersistentFlags().StringVarP(&database, "database", "d", "", "Database override")

	resolve := func(cmd *cobra.Command) (*CommandContext, driver.Pool, func(), error) {
		cc, cleanup, err := NewCommandContext(cmd)
		if err != nil {
			return nil, nil, nil, err
		}
		conn := connection
		if conn == "" {
			conn = cc.Cfg.DefaultConnection
		}
		if conn == "" {
			cleanup()
			return nil, nil, nil, fmt.Errorf("no connection specified (use --connection or set default_connection)")
		}
		pool, err := cc.Registry.EnsureConnectionAndGetDBPool(cmd.Context(), conn, database)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		return cc, pool, cleanup, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "databases",
		Short: "List databases on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, pool, cleanup, err := resolve(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return listDatabasesFromPool(cmd.Context(), cmd.OutOrStdout(), pool, cc.Cfg.OutputFormat)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List tables and views in the current database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, pool, cleanup, err := resolve(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return listTablesFromPool(cmd.Context(), cmd.OutOrStdout(), pool, cc.Cfg.OutputFormat)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "columns <table>",
		Short: "Show columns of a table (optionally schema-qualified)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, pool, cleanup, err := resolve(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			schema, tbl := splitTableName(args[0])
			columns, err := catalog.Columns(cmd.Context(), pool, schema, tbl)
			if err != nil {
				return err
			}
			pk, err := catalog.PrimaryKeys(cmd.Context(), pool, schema, tbl)
			if err != nil {
				return err
			}
			pkSet := make(map[string]bool, len(pk))
			for _, name := range pk {
				pkSet[name] = true
			}

			cols := []string{"name", "type", "nullable", "key"}
			rows := make([]core.Row, 0, len(columns))
			for _, c := range columns {
				key := ""
				if pkSet[c.Name] {
					key = "PK"
				}
				rows = append(rows, core.Row{
					"name":     c.Name,
					"type":     c.Type,
					"nullable": c.Nullable,
					"key":      key,
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cc.Cfg.OutputFormat)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "keys <table>",
		Short: "Show foreign keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, pool, cleanup, err := resolve(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			schema, tbl := splitTableName(args[0])
			fks, err := catalog.ForeignKeys(cmd.Context(), pool, schema, tbl)
			if err != nil {
				return err
			}
			cols := []string{"name", "column", "references"}
			rows := make([]core.Row, 0, len(fks))
			for _, fk := range fks {
				rows = append(rows, core.Row{
					"name":       fk.Name,
					"column":     fk.Column,
					"references": fmt.Sprintf("%s.%s(%s)", fk.ReferencedSchema, fk.ReferencedTable, fk.ReferencedColumn),
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cc.Cfg.OutputFormat)
		},
	})

	return cmd
}

// splitTableName splits "schema.table" into its parts, defaulting the
// schema to dbo when unqualified.
func splitTableName(name string) (string, string) {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "dbo", name
}
