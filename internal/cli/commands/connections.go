package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jakubkozera/mssqlmgr/internal/secret"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/spf13/cobra"
)

// NewConnectionsCommand creates the connections command group.
func NewConnectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage saved SQL Server connections",
	}

	cmd.AddCommand(newConnectionsListCommand())
	cmd.AddCommand(newConnectionsAddCommand())
	cmd.AddCommand(newConnectionsRemoveCommand())
	cmd.AddCommand(newConnectionsTestCommand())
	cmd.AddCommand(newGroupsCommand())
	cmd.AddCommand(newFilterCommand())

	return cmd
}

func newConnectionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conns, err := cc.Registry.Connections()
			if err != nil {
				return err
			}
			groups, err := cc.Registry.ServerGroups()
			if err != nil {
				return err
			}
			groupNames := make(map[string]string, len(groups))
			for _, g := range groups {
				groupNames[g.ID] = g.Name
			}

			cols := []string{"id", "name", "server", "database", "auth", "group"}
			rows := make([]core.Row, 0, len(conns))
			for _, c := range conns {
				server := c.Server
				if c.Port > 0 {
					server = fmt.Sprintf("%s,%d", c.Server, c.Port)
				}
				rows = append(rows, core.Row{
					"id":       c.ID,
					"name":     c.Name,
					"server":   server,
					"database": c.Database,
					"auth":     string(c.AuthType),
					"group":    groupNames[c.ServerGroupID],
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cc.Cfg.OutputFormat)
		},
	}
}

func newConnectionsAddCommand() *cobra.Command {
	var (
		cfg      core.ConnectionConfig
		auth     string
		test     bool
		groupID  string
		connsStr string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a connection to the catalog",
		Long: `Add a connection to the catalog.

The password (if any) is stored in the secret store, never in plain
configuration. Use --test to verify the connection before saving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			switch auth {
			case "sql":
				cfg.AuthType = core.AuthSQL
			case "windows":
				cfg.AuthType = core.AuthWindows
			default:
				return fmt.Errorf("unknown auth type %q (expected sql or windows)", auth)
			}

			if cfg.ID == "" {
				cfg.ID = uuid.NewString()
			}
			if cfg.Name == "" {
				cfg.Name = cfg.Server
			}
			cfg.ServerGroupID = groupID
			cfg.ConnectionString = connsStr

			if cfg.Server == "" && cfg.ConnectionString == "" {
				return fmt.Errorf("either --server or --connection-string is required")
			}

			if test {
				if _, err := cc.Registry.Connect(cmd.Context(), cfg); err != nil {
					return fmt.Errorf("connection test failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", cfg.Server)
			} else {
				if err := cc.Store.SaveConnection(cfg); err != nil {
					return err
				}
				if cfg.Password != "" {
					if err := cc.Store.SetSecret(secret.ConnectionPasswordKey(cfg.ID), cfg.Password); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %s (%s)\n", cfg.Name, cfg.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.ID, "id", "", "Connection id (generated when empty)")
	cmd.Flags().StringVar(&cfg.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&cfg.Server, "server", "", "Server host name")
	cmd.Flags().IntVar(&cfg.Port, "port", 0, "Server port (default 1433)")
	cmd.Flags().StringVarP(&cfg.Database, "database", "d", "", "Default database")
	cmd.Flags().StringVar(&auth, "auth", "sql", "Authentication type (sql|windows)")
	cmd.Flags().StringVarP(&cfg.Username, "username", "u", "", "SQL login name")
	cmd.Flags().StringVarP(&cfg.Password, "password", "p", "", "SQL login password")
	cmd.Flags().BoolVar(&cfg.Encrypt, "encrypt", false, "Encrypt the connection")
	cmd.Flags().BoolVar(&cfg.TrustServerCertificate, "trust-server-certificate", false, "Skip server certificate validation")
	cmd.Flags().IntVar(&cfg.QueryTimeout, "timeout", 0, "Query timeout in seconds (0 = unbounded)")
	cmd.Flags().StringVar(&cfg.ODBCDriver, "odbc-driver", "", "Explicit ODBC driver name")
	cmd.Flags().StringVar(&connsStr, "connection-string", "", "Raw connection string (overrides other fields)")
	cmd.Flags().StringVar(&groupID, "group", "", "Server group id")
	cmd.Flags().BoolVar(&test, "test", false, "Connect before saving")

	return cmd
}

func newConnectionsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a connection and its stored password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Registry.DeleteConnection(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %s\n", args[0])
			return nil
		},
	}
}

func newConnectionsTestCommand() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Open a pool for a saved connection and verify it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			pool, err := cc.Registry.EnsureConnectionAndGetDBPool(cmd.Context(), args[0], database)
			if err != nil {
				return err
			}
			cfg := pool.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s", cfg.Server)
			if database != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (database %s)", database)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Database to connect to")
	return cmd
}

func newGroupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage server groups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List server groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			groups, err := cc.Registry.ServerGroups()
			if err != nil {
				return err
			}
			cols := []string{"id", "name", "description"}
			rows := make([]core.Row, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, core.Row{"id": g.ID, "name": g.Name, "description": g.Description})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cc.Cfg.OutputFormat)
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			description, _ := cmd.Flags().GetString("description")
			g := core.ServerGroup{ID: uuid.NewString(), Name: args[0], Description: description}
			if err := cc.Registry.SaveServerGroup(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created group %s (%s)\n", g.Name, g.ID)
			return nil
		},
	}
	addCmd.Flags().String("description", "", "Group description")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a server group (member connections become ungrouped)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Registry.DeleteServerGroup(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed group %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or set database and table visibility filters",
	}

	dbCmd := &cobra.Command{
		Use:   "databases <connection-id> [pattern...]",
		Short: "Show or set the database filter for a connection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				patterns, err := cc.Registry.DatabaseFilter(args[0])
				if err != nil {
					return err
				}
				printPatterns(cmd, patterns)
				return nil
			}
			return cc.Registry.SetDatabaseFilter(args[0], args[1:])
		},
	}
	cmd.AddCommand(dbCmd)

	tableCmd := &cobra.Command{
		Use:   "tables <connection-id> <database> [pattern...]",
		Short: "Show or set the table filter for a database",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 2 {
				patterns, err := cc.Registry.TableFilter(args[0], args[1])
				if err != nil {
					return err
				}
				printPatterns(cmd, patterns)
				return nil
			}
			return cc.Registry.SetTableFilter(args[0], args[1], args[2:])
		},
	}
	cmd.AddCommand(tableCmd)

	return cmd
}

func printPatterns(cmd *cobra.Command, patterns []string) {
	if len(patterns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(no filter)")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(patterns, "\n"))
}
