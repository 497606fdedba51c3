package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jakubkozera/mssqlmgr/internal/catalog"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jakubkozera/mssqlmgr/pkg/driver"
	"github.com/spf13/cobra"
)

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, pool driver.Pool, opts *QueryOptions) error {
	ctx := cmd.Context()

	// Readline history lives next to the state database
	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history")

	completer := newTableCompleter(ctx, pool)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt(cc, pool),
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	cfg := pool.Config()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mssqlmgr REPL (connected to %s)\n", cfg.Server)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt(cc, pool))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if strings.HasPrefix(line, ".") && multiLineBuffer.Len() == 0 {
			next, quit := handleDotCommand(cmd, cc, pool, line, opts)
			if quit {
				break
			}
			if next != nil {
				pool = next
				rl.SetPrompt(replPrompt(cc, pool))
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon or a lone GO
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") && !strings.EqualFold(line, "GO") {
			multiLineBuffer.WriteString("\n")
			rl.SetPrompt("   ...> ")
			continue
		}
		rl.SetPrompt(replPrompt(cc, pool))

		query := strings.TrimSuffix(strings.TrimSpace(multiLineBuffer.String()), ";")
		multiLineBuffer.Reset()

		if err := executeAndRender(cmd, cc, pool, query, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func replPrompt(cc *CommandContext, pool driver.Pool) string {
	cfg := pool.Config()
	db := cc.Registry.CurrentDatabase(cfg.ID)
	if db == "" {
		return fmt.Sprintf("%s> ", cfg.Name)
	}
	return fmt.Sprintf("%s(%s)> ", cfg.Name, db)
}

// handleDotCommand runs a REPL dot-command. Returns a replacement pool when
// the command switched databases, and whether the REPL should exit.
func handleDotCommand(cmd *cobra.Command, cc *CommandContext, pool driver.Pool, line string, opts *QueryOptions) (driver.Pool, bool) {
	ctx := cmd.Context()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return nil, true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".tables":
		if err := listTablesFromPool(ctx, cmd.OutOrStdout(), pool, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".databases", ".dbs":
		if err := listDatabasesFromPool(ctx, cmd.OutOrStdout(), pool, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .use <database>")
			return nil, false
		}
		cfg := pool.Config()
		next, err := cc.Registry.EnsureConnectionAndGetDBPool(ctx, cfg.ID, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return nil, false
		}
		cc.Registry.SetCurrentDatabase(cfg.ID, parts[1])
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", parts[1])
		return next, false

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return nil, false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List tables in the current database
  .databases      List databases on the server
  .use <db>       Switch the active database
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements end with a semicolon (;) or a lone GO
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

func listTablesFromPool(ctx context.Context, w io.Writer, pool driver.Pool, format string) error {
	tables, err := catalog.Tables(ctx, pool)
	if err != nil {
		return err
	}
	cols := []string{"schema", "name", "type"}
	rows := make([]core.Row, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, core.Row{"schema": t.Schema, "name": t.Name, "type": t.Type})
	}
	return renderRows(w, cols, rows, format)
}

func listDatabasesFromPool(ctx context.Context, w io.Writer, pool driver.Pool, format string) error {
	dbs, err := catalog.Databases(ctx, pool)
	if err != nil {
		return err
	}
	cols := []string{"name"}
	rows := make([]core.Row, 0, len(dbs))
	for _, name := range dbs {
		rows = append(rows, core.Row{"name": name})
	}
	return renderRows(w, cols, rows, format)
}

// newTableCompleter creates a readline completer seeded with table names
// from the connected database. Completion failures are non-fatal.
func newTableCompleter(ctx context.Context, pool driver.Pool) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	tables, err := catalog.Tables(ctx, pool)
	if err == nil {
		for _, t := range tables {
			items = append(items, readline.PcItem(t.Name))
			items = append(items, readline.PcItem(t.Schema+"."+t.Name))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".databases"),
		readline.PcItem(".use"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
