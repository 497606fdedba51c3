package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/spf13/cobra"
)

// historyQueryPreview truncates long queries for the list view.
const historyQueryPreview = 60

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage query history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent queries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := cc.Store.History(limit)
			if err != nil {
				return err
			}

			cols := []string{"id", "executed", "connection", "database", "duration", "rows", "pinned", "query"}
			rows := make([]core.Row, 0, len(entries))
			for _, e := range entries {
				pinned := ""
				if e.Pinned {
					pinned = "*"
				}
				rows = append(rows, core.Row{
					"id":         e.ID,
					"executed":   e.ExecutedAt.Format(time.DateTime),
					"connection": e.ConnectionName,
					"database":   e.Database,
					"duration":   fmt.Sprintf("%d ms", e.DurationMs),
					"rows":       formatRowCounts(e.RowCounts),
					"pinned":     pinned,
					"query":      previewQuery(e.Query),
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cc.Cfg.OutputFormat)
		},
	}
	listCmd.Flags().Int("limit", 50, "Maximum entries to show")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "pin <id>",
		Short: "Pin a history entry so pruning keeps it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPinned(cmd, args[0], true)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unpin <id>",
		Short: "Unpin a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPinned(cmd, args[0], false)
		},
	})

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear query history (pinned entries are kept unless --all)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			all, _ := cmd.Flags().GetBool("all")
			if err := cc.Store.ClearHistory(!all); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
	clearCmd.Flags().Bool("all", false, "Also remove pinned entries")
	cmd.AddCommand(clearCmd)

	return cmd
}

func setPinned(cmd *cobra.Command, id string, pinned bool) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cc.Store.SetHistoryPinned(id, pinned); err != nil {
		return err
	}
	state := "unpinned"
	if pinned {
		state = "pinned"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entry %s %s\n", id, state)
	return nil
}

func formatRowCounts(counts []int) string {
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, len(counts))
	for i, n := range counts {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}

func previewQuery(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > historyQueryPreview {
		return q[:historyQueryPreview] + "..."
	}
	return q
}
