package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jakubkozera/mssqlmgr/internal/executor"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
	"github.com/spf13/cobra"
)

// QueryOptions holds parsed flags for the query command.
type QueryOptions struct {
	Connection string
	Database   string
	File       string
	Format     string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Execute SQL against a saved connection",
		Long: `Execute SQL against a saved connection.

SQL can be passed as an argument, read from a file with --file, or piped
via stdin. With no SQL and an interactive terminal, an interactive REPL
is started. Scripts may contain GO batch separators; each batch runs
sequentially and all result sets are reported.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if opts.Connection == "" {
				opts.Connection = cc.Cfg.DefaultConnection
			}
			if opts.Connection == "" {
				return fmt.Errorf("no connection specified (use --connection or set default_connection)")
			}
			if opts.Format == "" {
				opts.Format = cc.Cfg.OutputFormat
			}

			query, err := readQueryInput(args, opts.File)
			if err != nil {
				return err
			}

			pool, err := cc.Registry.EnsureConnectionAndGetDBPool(cmd.Context(), opts.Connection, opts.Database)
			if err != nil {
				return err
			}

			if query == "" {
				if !isTerminal(os.Stdin) {
					return fmt.Errorf("no query provided")
				}
				return runQueryREPL(cmd, cc, pool, opts)
			}

			return executeAndRender(cmd, cc, pool, query, opts.Format)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", "", "Connection id")
	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "Database override")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read SQL from a file")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format (table|json|csv|md)")

	return cmd
}

// readQueryInput resolves the SQL text from args, a file, or piped stdin.
// Returns empty when no input source is available.
func readQueryInput(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if !isTerminal(os.Stdin) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

func executeAndRender(cmd *cobra.Command, cc *CommandContext, pool driver.Pool, query, format string) error {
	cfg := pool.Config()
	info := executor.ConnectionInfo{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Server:   cfg.Server,
		Database: cc.Registry.CurrentDatabase(cfg.ID),
	}

	result, err := cc.Executor.ExecuteQuery(cmd.Context(), query, pool, info)
	if err != nil {
		return err
	}
	return renderQueryResult(cmd.OutOrStdout(), result, format)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
